package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LogisticModel is the on-disk form of a trained binary logistic regression.
type LogisticModel struct {
	Type         string    `json:"type"`
	Version      string    `json:"version"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Threshold    float64   `json:"threshold,omitempty"`
	FeatureNames []string  `json:"feature_names,omitempty"`
}

type Logistic struct {
	m LogisticModel
	w *mat.VecDense
}

func ReadLogistic(r io.Reader) (*Logistic, error) {
	var m LogisticModel
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return NewLogistic(m)
}

func NewLogistic(m LogisticModel) (*Logistic, error) {
	if len(m.Coefficients) == 0 {
		return nil, errors.New("model has no coefficients")
	}
	if len(m.FeatureNames) > 0 && len(m.FeatureNames) != len(m.Coefficients) {
		return nil, fmt.Errorf("model lists %d feature names for %d coefficients", len(m.FeatureNames), len(m.Coefficients))
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		m.Threshold = 0.5
	}
	if m.Type == "" {
		m.Type = "logistic_regression"
	}
	w := make([]float64, len(m.Coefficients))
	copy(w, m.Coefficients)
	return &Logistic{m: m, w: mat.NewVecDense(len(w), w)}, nil
}

func (l *Logistic) NumFeatures() int { return l.w.Len() }

func (l *Logistic) Predict(_ context.Context, x []float64) (Score, error) {
	if len(x) != l.w.Len() {
		return Score{}, fmt.Errorf("%w: got %d, want %d", ErrArity, len(x), l.w.Len())
	}
	xv := mat.NewVecDense(len(x), append([]float64(nil), x...))
	p := clamp01(sigmoid(mat.Dot(l.w, xv) + l.m.Intercept))
	return Score{Delayed: p >= l.m.Threshold, Probability: p}, nil
}

func (l *Logistic) Info() Info {
	b := l.m.Intercept
	return Info{
		Name:         "Flight Delay Predictor",
		Type:         l.m.Type,
		Version:      l.m.Version,
		NumFeatures:  l.w.Len(),
		FeatureNames: l.m.FeatureNames,
		Coefficients: append([]float64(nil), l.m.Coefficients...),
		Intercept:    &b,
		Threshold:    l.m.Threshold,
	}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
