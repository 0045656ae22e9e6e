package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./artifacts"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

// canonical strips leading slashes and any ".." that would leave the base.
func canonical(key string) (string, error) {
	clean := path.Clean("/" + strings.TrimPrefix(filepath.ToSlash(key), "/"))
	if clean == "/" {
		return "", errors.New("empty key")
	}
	return strings.TrimPrefix(clean, "/"), nil
}

func (s *FSStore) path(key string) (string, error) {
	k, err := canonical(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.base, filepath.FromSlash(k)), nil
}

// Put writes to a temp file and renames it into place, so a concurrent Get
// sees either the old artifact or the new one.
func (s *FSStore) Put(key string, r io.Reader) (string, error) {
	dst, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return canonical(key)
}

func (s *FSStore) Get(key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, err
}

func (s *FSStore) SignedURL(key string) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}
