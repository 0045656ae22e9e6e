// Package http exposes the prediction service over a chi router.
package http

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/flightontime/flightontime/internal/auth/middleware"
	"github.com/flightontime/flightontime/internal/prediction"
	"github.com/flightontime/flightontime/internal/rbac"
	"github.com/flightontime/flightontime/internal/storage"
)

type Deps struct {
	Service *prediction.Service

	// Admin surfaces are mounted only when Auth is set.
	Auth        *auth.AuthService
	Credentials []auth.Credential
	RBAC        *rbac.Checker // defaults to rbac.RolePermissions
	Events      EventLister
	Blobs       storage.BlobStore
	EncoderKey  string

	CORSOrigins    []string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

func NewRouter(d Deps) chi.Router {
	log := d.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	svc := d.Service
	r.Post("/predict", PredictHandler(svc, log))
	r.Post("/debug-features", DebugFeaturesHandler(svc, log))
	r.Get("/health", HealthHandler(svc))
	r.Get("/model", ModelHandler(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	if d.Auth == nil {
		return r
	}

	rb := d.RBAC
	if rb == nil {
		rb = rbac.NewChecker(nil)
	}
	r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Credentials...))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.With(rb.Require(rbac.PermPredictionsView)).
			Get("/predictions", ListPredictionsHandler(svc))
		pr.With(rb.Require(rbac.PermPredictionsView)).
			Get("/predictions/{id}", GetPredictionHandler(svc))
		pr.With(rb.Require(rbac.PermPredictionsView)).
			Get("/status", StatusHandler(svc))

		pr.With(rb.Require(rbac.PermEncoderReload)).
			Post("/admin/encoder/reload", ReloadHandler(svc, log))
		if d.Events != nil {
			pr.With(rb.Require(rbac.PermEventsView)).
				Get("/admin/events", EventsHandler(d.Events))
		}
		if d.Blobs != nil && d.EncoderKey != "" {
			pr.With(rb.Require(rbac.PermEncoderReload)).
				Route("/admin/artifacts", func(ar chi.Router) {
					MountArtifacts(ar, d.Blobs, d.EncoderKey)
				})
		}
	})
	return r
}
