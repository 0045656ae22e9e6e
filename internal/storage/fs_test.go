package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_PutGet(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	key, err := s.Put("encoders/encoder.json", strings.NewReader(`{"v":1}`))
	require.NoError(t, err)
	assert.Equal(t, "encoders/encoder.json", key)

	_, err = s.Put("encoders/encoder.json", strings.NewReader(`{"v":2}`))
	require.NoError(t, err)

	rc, err := s.Get("/encoders/encoder.json")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(b))
}

func TestFSStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(dir)
	require.NoError(t, err)
	_, err = s.Put("models/model.json", strings.NewReader("{}"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "models"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "model.json", entries[0].Name())
}

func TestFSStore_Missing(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Get("encoders/none.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSStore_StaysInsideBase(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFSStore(filepath.Join(dir, "store"))
	require.NoError(t, err)

	_, err = s.Put("../../escape.json", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "escape.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "store", "escape.json"))
	assert.NoError(t, err)

	_, err = s.Put("", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestFSStore_SignedURL(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	u, err := s.SignedURL("encoders/encoder.json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "file://"))
	assert.True(t, strings.HasSuffix(u, "/encoders/encoder.json"))
}
