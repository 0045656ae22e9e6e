package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/flightontime/flightontime/internal/prediction"
	syncx "github.com/flightontime/flightontime/internal/sync"
)

type EventLister interface {
	After(ctx context.Context, after int64, limit int) ([]syncx.Event, error)
}

// POST /admin/encoder/reload
func ReloadHandler(svc *prediction.Service, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := svc.Reload(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status": "error",
				"error":  err.Error(),
			})
			return
		}
		log.InfoContext(r.Context(), "reload requested over http", slog.String("version", t.Metadata.Version))
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "reloaded",
			"version":  t.Metadata.Version,
			"airlines": len(t.Airlines),
			"routes":   len(t.Routes),
		})
	}
}

// GET /admin/events?after=0&limit=100
func EventsHandler(events EventLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
		list, err := events.After(r.Context(), after, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []syncx.Event{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
