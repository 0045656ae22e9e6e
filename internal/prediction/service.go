// Package prediction serves delay predictions: it validates a request,
// encodes it with the current encoder snapshot, scores it and keeps history.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/flightontime/flightontime/internal/classifier"
	"github.com/flightontime/flightontime/internal/features"
	"github.com/flightontime/flightontime/internal/storage"
	syncx "github.com/flightontime/flightontime/internal/sync"
)

type Options struct {
	Encoders   *features.Holder
	Classifier classifier.Classifier
	Validator  features.Validator

	// Optional collaborators.
	Store      Store
	Blobs      storage.BlobStore
	Events     EventRecorder
	EncoderKey string
	CacheSize  int // 0 disables the response cache
	CacheTTL   time.Duration
	Logger     *slog.Logger
}

type Service struct {
	encoders   *features.Holder
	clf        classifier.Classifier
	validator  features.Validator
	store      Store
	blobs      storage.BlobStore
	events     EventRecorder
	encoderKey string
	cache      *expirable.LRU[string, classifier.Score]
	log        *slog.Logger
	now        func() time.Time
}

func New(o Options) (*Service, error) {
	if o.Encoders == nil || o.Encoders.Load() == nil {
		return nil, &features.ConfigError{Reason: "no encoder table loaded"}
	}
	if o.Classifier == nil {
		return nil, errors.New("prediction: classifier is required")
	}
	if err := classifier.CheckLayout(o.Encoders.Load().Layout(), o.Classifier); err != nil {
		return nil, err
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	s := &Service{
		encoders:   o.Encoders,
		clf:        o.Classifier,
		validator:  o.Validator,
		store:      o.Store,
		blobs:      o.Blobs,
		events:     o.Events,
		encoderKey: o.EncoderKey,
		log:        o.Logger,
		now:        time.Now,
	}
	if o.CacheSize > 0 {
		ttl := o.CacheTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		s.cache = expirable.NewLRU[string, classifier.Score](o.CacheSize, nil, ttl)
	}
	return s, nil
}

func (s *Service) Classifier() classifier.Classifier { return s.clf }
func (s *Service) Encoder() *features.Encoder { return s.encoders.Load() }

func (s *Service) validate(req features.Request) (features.FlightQuery, error) {
	res := s.validator.Validate(req)
	if !res.Valid {
		return features.FlightQuery{}, &ValidationError{Errors: res.Errors}
	}
	return res.Query, nil
}

func (s *Service) Predict(ctx context.Context, req features.Request) (Response, error) {
	start := s.now()
	q, err := s.validate(req)
	if err != nil {
		return Response{}, err
	}

	enc := s.encoders.Load()
	vec := enc.Encode(q)
	s.logUnknown(ctx, q, vec.Parts)

	key := cacheKey(enc, q)
	score, cached := s.cachedScore(key)
	if !cached {
		score, err = s.clf.Predict(ctx, vec.Values)
		if err != nil {
			return Response{}, fmt.Errorf("%w: %w", ErrScorer, err)
		}
		if s.cache != nil {
			s.cache.Add(key, score)
		}
	}

	resp := Response{
		ID:                 uuid.NewString(),
		Atraso:             score.Delayed,
		Probabilidade:      score.Probability,
		Status:             "success",
		Mensagem:           message(score),
		FeaturesExplicadas: explain(q, vec.Parts),
		Cached:             cached,
	}

	if s.store != nil {
		rec := Record{
			ID:             resp.ID,
			Airline:        q.Airline,
			Origin:         q.Origin,
			Destination:    q.Destination,
			Departure:      q.Departure.Format("2006-01-02T15:04:05"),
			DistanceKM:     q.DistanceKM,
			HourBucket:     vec.Parts.Bucket.String(),
			DayOfWeek:      vec.Parts.DayOfWeek,
			Delayed:        score.Delayed,
			Probability:    score.Probability,
			Features:       vec.Values,
			EncoderVersion: enc.Table().Metadata.Version,
			CreatedAt:      s.now(),
		}
		if err := s.store.Save(ctx, rec); err != nil {
			s.log.ErrorContext(ctx, "save prediction", slog.String("id", rec.ID), slog.Any("error", err))
		}
	}

	resp.LatenciaMS = float64(s.now().Sub(start).Microseconds()) / 1000
	s.log.InfoContext(ctx, "prediction served",
		slog.String("id", resp.ID),
		slog.String("airline", q.Airline),
		slog.String("route", vec.Parts.Route),
		slog.Bool("delayed", score.Delayed),
		slog.Float64("probability", score.Probability),
		slog.Bool("cached", cached))
	return resp, nil
}

// Explain encodes req without scoring it.
func (s *Service) Explain(ctx context.Context, req features.Request) (Debug, error) {
	q, err := s.validate(req)
	if err != nil {
		return Debug{}, err
	}
	enc := s.encoders.Load()
	vec := enc.Encode(q)
	s.logUnknown(ctx, q, vec.Parts)

	named := make(map[string]float64, len(vec.Layout))
	for i, f := range vec.Layout {
		named[string(f)] = vec.Values[i]
	}
	lookup := "UNKNOWN"
	if !vec.Parts.UnknownAirline {
		lookup = strconv.Itoa(vec.Parts.AirlineID)
	}
	return Debug{
		Features:      vec.Values,
		Layout:        vec.Layout.Strings(),
		FeaturesNamed: named,
		Parts:         vec.Parts,
		Input:         req,
		AirlineLookup: lookup,
		Route:         vec.Parts.Route,
		Explained:     explain(q, vec.Parts),
	}, nil
}

func (s *Service) History(ctx context.Context, opts ListOpts) ([]Record, error) {
	if s.store == nil {
		return []Record{}, nil
	}
	return s.store.List(ctx, opts)
}

func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	if s.store == nil {
		return Record{}, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// Status counts predictions since local midnight.
func (s *Service) Status(ctx context.Context) (StatusReport, error) {
	now := s.now()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	rep := StatusReport{Since: since}
	if s.store == nil {
		return rep, nil
	}
	total, delayed, err := s.store.CountSince(ctx, since)
	if err != nil {
		return StatusReport{}, err
	}
	rep.Total, rep.Delayed = total, delayed
	if total > 0 {
		rep.DelayedPercent = float64(delayed) / float64(total) * 100
	}
	return rep, nil
}

// Reload reads the encoder table again and swaps it in. On any error the
// current table keeps serving.
func (s *Service) Reload(ctx context.Context) (*features.Table, error) {
	if s.blobs == nil || s.encoderKey == "" {
		return nil, errors.New("reload: no artifact store configured")
	}
	cur := s.encoders.Load()
	next, err := LoadEncoder(s.blobs, s.encoderKey, cur.Layout())
	if err == nil {
		err = classifier.CheckLayout(next.Layout(), s.clf)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "encoder reload failed", slog.String("key", s.encoderKey), slog.Any("error", err))
		s.record(ctx, syncx.EventReloadFailed, s.encoderKey, map[string]any{"error": err.Error()})
		return nil, err
	}

	s.encoders.Swap(next)
	if s.cache != nil {
		s.cache.Purge()
	}
	t := next.Table()
	s.log.InfoContext(ctx, "encoder reloaded",
		slog.String("key", s.encoderKey),
		slog.String("version", t.Metadata.Version),
		slog.Int("airlines", len(t.Airlines)),
		slog.Int("routes", len(t.Routes)))
	s.record(ctx, syncx.EventEncoderReloaded, s.encoderKey, map[string]any{
		"version":  t.Metadata.Version,
		"airlines": len(t.Airlines),
		"routes":   len(t.Routes),
	})
	return t, nil
}

func (s *Service) record(ctx context.Context, typ, key string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(ctx, typ, key, data); err != nil {
		s.log.WarnContext(ctx, "append event", slog.String("type", typ), slog.Any("error", err))
	}
}

func (s *Service) logUnknown(ctx context.Context, q features.FlightQuery, p features.Parts) {
	if p.UnknownAirline {
		s.log.DebugContext(ctx, "unknown airline", slog.String("airline", q.Airline))
	}
	if p.UnknownRoute {
		s.log.DebugContext(ctx, "unknown route", slog.String("route", p.Route))
	}
}

func (s *Service) cachedScore(key string) (classifier.Score, bool) {
	if s.cache == nil {
		return classifier.Score{}, false
	}
	return s.cache.Get(key)
}

// cacheKey is scoped to the encoder snapshot, so a score computed against a
// table that was swapped out mid-request never answers for the new one.
func cacheKey(enc *features.Encoder, q features.FlightQuery) string {
	return strconv.FormatUint(enc.Generation(), 10) + "|" + q.Airline + "|" + features.RouteKey(q.Origin, q.Destination) + "|" +
		q.Departure.Format(time.RFC3339) + "|" + strconv.FormatFloat(q.DistanceKM, 'g', -1, 64)
}
