// Package classifier scores feature vectors. The service treats every
// implementation as an opaque function from a vector to a delay probability.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/flightontime/flightontime/internal/features"
)

var ErrArity = errors.New("feature count does not match classifier")

type Score struct {
	Delayed     bool    `json:"delayed"`
	Probability float64 `json:"probability"`
}

type Info struct {
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Version      string    `json:"version,omitempty"`
	NumFeatures  int       `json:"features_expected"`
	FeatureNames []string  `json:"feature_names,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	Intercept    *float64  `json:"intercept,omitempty"`
	Threshold    float64   `json:"threshold,omitempty"`
	Endpoint     string    `json:"endpoint,omitempty"`
}

type Classifier interface {
	Predict(ctx context.Context, x []float64) (Score, error)
	NumFeatures() int
	Info() Info
}

// CheckLayout fails when the configured layout cannot feed c. Callers run it
// at startup and after every reload.
func CheckLayout(layout features.Layout, c Classifier) error {
	if n := c.NumFeatures(); n != len(layout) {
		return fmt.Errorf("%w: layout has %d fields, classifier expects %d", ErrArity, len(layout), n)
	}
	names := c.Info().FeatureNames
	if len(names) == 0 {
		return nil
	}
	if len(names) != len(layout) {
		return fmt.Errorf("%w: classifier names %d features, layout has %d", ErrArity, len(names), len(layout))
	}
	for i, f := range layout {
		if names[i] != string(f) {
			return fmt.Errorf("%w: position %d is %q in layout but %q in classifier", ErrArity, i, f, names[i])
		}
	}
	return nil
}

func clamp01(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
