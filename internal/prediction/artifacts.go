package prediction

import (
	"fmt"

	"github.com/flightontime/flightontime/internal/classifier"
	"github.com/flightontime/flightontime/internal/features"
	"github.com/flightontime/flightontime/internal/storage"
)

// LoadEncoder reads the table stored under key and pairs it with layout.
// A missing or malformed table is a *features.ConfigError.
func LoadEncoder(bs storage.BlobStore, key string, layout features.Layout) (*features.Encoder, error) {
	rc, err := bs.Get(key)
	if err != nil {
		return nil, &features.ConfigError{Reason: "open encoder table " + key, Err: err}
	}
	defer rc.Close()
	t, err := features.ReadTable(rc, features.FormatFor(key))
	if err != nil {
		return nil, err
	}
	return features.NewEncoder(t, layout)
}

// LoadLogistic reads logistic regression coefficients stored under key.
func LoadLogistic(bs storage.BlobStore, key string) (*classifier.Logistic, error) {
	rc, err := bs.Get(key)
	if err != nil {
		return nil, fmt.Errorf("open model %s: %w", key, err)
	}
	defer rc.Close()
	m, err := classifier.ReadLogistic(rc)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", key, err)
	}
	return m, nil
}
