package http

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/flightontime/flightontime/internal/features"
	"github.com/flightontime/flightontime/internal/storage"
)

var maxTableUpload int64 = 64 << 20

// MountArtifacts serves the artifact store. Uploaded encoder tables are
// checked before they replace the stored file; serving them still needs a
// reload.
func MountArtifacts(r chi.Router, bs storage.BlobStore, encoderKey string) {
	// POST /admin/artifacts/encoder   (multipart field "file")
	r.Post("/encoder", func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxTableUpload+1))
		if err != nil {
			http.Error(w, "read upload: "+err.Error(), http.StatusBadRequest)
			return
		}
		if int64(len(data)) > maxTableUpload {
			http.Error(w, "encoder table too large", http.StatusRequestEntityTooLarge)
			return
		}
		t, err := features.ReadTable(bytes.NewReader(data), features.FormatFor(encoderKey))
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		key, err := bs.Put(encoderKey, bytes.NewReader(data))
		if err != nil {
			http.Error(w, "store error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"key":      key,
			"version":  t.Metadata.Version,
			"airlines": len(t.Airlines),
			"routes":   len(t.Routes),
		})
	})

	// GET /admin/artifacts/*   -> returns the blob at whatever follows /admin/artifacts/
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(key)
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	})
}
