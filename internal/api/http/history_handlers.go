package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/flightontime/flightontime/internal/prediction"
)

// GET /predictions?airline=AA&delayed=true&limit=50&offset=0
func ListPredictionsHandler(svc *prediction.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := prediction.ListOpts{
			Airline: strings.TrimSpace(q.Get("airline")),
			Limit:   parseIntDefault(q.Get("limit"), 50),
			Offset:  parseIntDefault(q.Get("offset"), 0),
		}
		if s := q.Get("delayed"); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				http.Error(w, "delayed must be true or false", http.StatusBadRequest)
				return
			}
			opts.Delayed = &b
		}
		list, err := svc.History(r.Context(), opts)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /predictions/{id}
func GetPredictionHandler(svc *prediction.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, prediction.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// GET /status
func StatusHandler(svc *prediction.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := svc.Status(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}
