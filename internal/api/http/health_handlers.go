package http

import (
	"context"
	"net/http"
	"time"

	"github.com/flightontime/flightontime/internal/prediction"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type healthBody struct {
	Status           string    `json:"status"`
	ModelLoaded      bool      `json:"model_loaded"`
	FeaturesExpected int       `json:"features_expected"`
	EncoderVersion   string    `json:"encoder_version,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Error            string    `json:"error,omitempty"`
}

// GET /health
func HealthHandler(svc *prediction.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clf := svc.Classifier()
		body := healthBody{
			Status:           "healthy",
			ModelLoaded:      true,
			FeaturesExpected: clf.NumFeatures(),
			EncoderVersion:   svc.Encoder().Table().Metadata.Version,
			Timestamp:        time.Now().UTC(),
		}
		if p, ok := clf.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				body.Status, body.ModelLoaded, body.Error = "unhealthy", false, err.Error()
				writeJSON(w, http.StatusServiceUnavailable, body)
				return
			}
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// GET /model
func ModelHandler(svc *prediction.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enc := svc.Encoder()
		t := enc.Table()
		writeJSON(w, http.StatusOK, map[string]any{
			"classifier":      svc.Classifier().Info(),
			"layout":          enc.Layout().Strings(),
			"encoder_version": t.Metadata.Version,
			"encoder_created": t.Metadata.CreatedAt,
			"airlines":        len(t.Airlines),
			"routes":          len(t.Routes),
			"endpoints": map[string]string{
				"predict":        "POST /predict",
				"debug_features": "POST /debug-features",
				"health":         "GET /health",
				"model":          "GET /model",
				"history":        "GET /predictions",
				"status":         "GET /status",
			},
		})
	}
}
