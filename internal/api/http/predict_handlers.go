package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/flightontime/flightontime/internal/classifier"
	"github.com/flightontime/flightontime/internal/features"
	"github.com/flightontime/flightontime/internal/prediction"
)

type validationBody struct {
	Status string                `json:"status"`
	Erros  []features.FieldError `json:"erros"`
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (features.Request, bool) {
	var req features.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// writeServiceError maps prediction errors to status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var ve *prediction.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, validationBody{Status: "error", Erros: ve.Errors})
	case errors.Is(err, classifier.ErrArity):
		log.ErrorContext(r.Context(), "classifier arity", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	case errors.Is(err, prediction.ErrScorer):
		log.ErrorContext(r.Context(), "classifier unavailable", slog.Any("error", err))
		http.Error(w, "classifier unavailable", http.StatusBadGateway)
	default:
		log.ErrorContext(r.Context(), "predict", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// POST /predict
func PredictHandler(svc *prediction.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeRequest(w, r)
		if !ok {
			return
		}
		resp, err := svc.Predict(r.Context(), req)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// POST /debug-features
func DebugFeaturesHandler(svc *prediction.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeRequest(w, r)
		if !ok {
			return
		}
		d, err := svc.Explain(r.Context(), req)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}
