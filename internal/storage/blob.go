package storage

import (
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob not found")

// BlobStore holds model artifacts: encoder tables and classifier coefficients.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)       // ErrNotFound when absent
	SignedURL(key string) (string, error)        // fs returns "file://..." for dev
}
