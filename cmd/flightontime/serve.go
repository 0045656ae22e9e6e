package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	api "github.com/flightontime/flightontime/internal/api/http"
	auth "github.com/flightontime/flightontime/internal/auth/middleware"
	"github.com/flightontime/flightontime/internal/classifier"
	"github.com/flightontime/flightontime/internal/config"
	"github.com/flightontime/flightontime/internal/db"
	"github.com/flightontime/flightontime/internal/features"
	"github.com/flightontime/flightontime/internal/logging"
	"github.com/flightontime/flightontime/internal/prediction"
	"github.com/flightontime/flightontime/internal/storage"
	syncx "github.com/flightontime/flightontime/internal/sync"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the prediction HTTP server",
		Long: "Load the encoder table and classifier, then serve predictions over HTTP.\n" +
			"SIGHUP reloads the encoder table; SIGINT/SIGTERM shut down gracefully.",
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()
	events := syncx.NewEventRepo(dbh)

	// --- Artifacts ---
	bs, err := storage.NewFSStore(cfg.ArtifactsDir)
	if err != nil {
		return fmt.Errorf("artifact store: %w", err)
	}
	layout, err := features.ParseLayout(strings.Join(cfg.FeatureLayout, ","))
	if err != nil {
		return err
	}
	enc, err := prediction.LoadEncoder(bs, cfg.EncoderKey, layout)
	if err != nil {
		return err
	}
	clf, err := buildClassifier(ctx, cfg, bs)
	if err != nil {
		return err
	}

	cacheSize := 0
	if cfg.EnableCache {
		cacheSize = cfg.CacheSize
	}
	svc, err := prediction.New(prediction.Options{
		Encoders:   features.NewHolder(enc),
		Classifier: clf,
		Validator:  features.Validator{MaxDistanceKM: cfg.MaxDistanceKM},
		Store:      prediction.NewSQLStore(dbh),
		Blobs:      bs,
		Events:     events,
		EncoderKey: cfg.EncoderKey,
		CacheSize:  cacheSize,
		CacheTTL:   cfg.CacheTTL,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	deps := api.Deps{
		Service:        svc,
		Events:         events,
		Blobs:          bs,
		EncoderKey:     cfg.EncoderKey,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
	}
	if cfg.AuthHMACSecret != "" {
		deps.Auth = auth.NewAuthService(cfg.AuthHMACSecret)
		if cfg.AdminPassHash != "" {
			deps.Credentials = []auth.Credential{{Username: cfg.AdminUser, Hash: cfg.AdminPassHash, Role: "admin"}}
		}
	} else {
		log.Warn("AUTH_HMAC_SECRET not set; history and admin endpoints are disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t := enc.Table()
		log.Info("listening",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("db", cfg.DBDriver),
			slog.String("classifier", string(cfg.Classifier)),
			slog.String("layout", layout.String()),
			slog.String("encoder_version", t.Metadata.Version),
			slog.Int("airlines", len(t.Airlines)),
			slog.Int("routes", len(t.Routes)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shCtx)
	})
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				// failures are logged and recorded by Reload; the old table keeps serving
				_, _ = svc.Reload(gctx)
			}
		}
	})
	return g.Wait()
}

func buildClassifier(ctx context.Context, cfg config.Config, bs storage.BlobStore) (classifier.Classifier, error) {
	if cfg.Classifier != config.ClassifierRemote {
		return prediction.LoadLogistic(bs, cfg.ModelKey)
	}
	rc, err := classifier.NewRemote(classifier.RemoteConfig{
		URL:          cfg.ClassifierURL,
		TokenURL:     cfg.ClassifierTokenURL,
		ClientID:     cfg.ClassifierClientID,
		ClientSecret: cfg.ClassifierClientSecret,
		Timeout:      cfg.ClassifierTimeout,
		MaxRetries:   cfg.ClassifierRetries,
	})
	if err != nil {
		return nil, err
	}
	dctx, cancel := context.WithTimeout(ctx, cfg.ClassifierTimeout)
	defer cancel()
	if err := rc.Discover(dctx); err != nil {
		return nil, fmt.Errorf("discover classifier arity: %w", err)
	}
	return rc, nil
}
