package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// RemoteConfig points at an HTTP scoring service that accepts
// {"features": [...]} and answers with a prediction and a probability.
type RemoteConfig struct {
	URL       string // scoring endpoint, e.g. http://ml-api:8000/predict_internal
	HealthURL string // probed by Ping and Discover; defaults to <scheme://host>/health

	// Optional OAuth2 client credentials.
	TokenURL     string
	ClientID     string
	ClientSecret string

	NumFeatures int // 0 means ask HealthURL for features_expected
	Timeout     time.Duration
	MaxRetries  int
	Backoff     time.Duration
}

type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote classifier: %d %s", e.Status, strings.TrimSpace(e.Body))
}

type Remote struct {
	cfg  RemoteConfig
	http *http.Client
	n    int
}

func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote classifier: url is required")
	}
	if cfg.HealthURL == "" {
		cfg.HealthURL = defaultHealthURL(cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2500 * time.Millisecond
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	var h *http.Client
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		h = cc.Client(context.Background())
	} else {
		h = &http.Client{}
	}
	h.Timeout = cfg.Timeout
	return &Remote{cfg: cfg, http: h, n: cfg.NumFeatures}, nil
}

func defaultHealthURL(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		if j := strings.Index(u[i+3:], "/"); j >= 0 {
			return u[:i+3+j] + "/health"
		}
	}
	return strings.TrimSuffix(u, "/") + "/health"
}

// Discover asks the remote service how many features it expects when the
// count was not configured.
func (c *Remote) Discover(ctx context.Context) error {
	if c.n > 0 {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.HealthURL, nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote classifier health: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return &RemoteError{Status: res.StatusCode, Body: string(b)}
	}
	var h struct {
		FeaturesExpected int `json:"features_expected"`
	}
	if err := json.NewDecoder(res.Body).Decode(&h); err != nil {
		return fmt.Errorf("remote classifier health: %w", err)
	}
	if h.FeaturesExpected <= 0 {
		return errors.New("remote classifier health: features_expected missing")
	}
	c.n = h.FeaturesExpected
	return nil
}

// Ping reports whether the remote service answers at all. Any HTTP status,
// even 404, counts as up.
func (c *Remote) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.HealthURL, nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	res.Body.Close()
	return nil
}

func (c *Remote) NumFeatures() int { return c.n }

func (c *Remote) Info() Info {
	return Info{
		Name:        "Flight Delay Predictor",
		Type:        "remote",
		NumFeatures: c.n,
		Endpoint:    c.cfg.URL,
	}
}

func (c *Remote) Predict(ctx context.Context, x []float64) (Score, error) {
	if c.n > 0 && len(x) != c.n {
		return Score{}, fmt.Errorf("%w: got %d, want %d", ErrArity, len(x), c.n)
	}
	body, err := json.Marshal(map[string]any{"features": x})
	if err != nil {
		return Score{}, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.cfg.Backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return Score{}, ctx.Err()
			case <-time.After(wait):
			}
		}
		s, retry, err := c.once(ctx, body)
		if err == nil {
			return s, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return Score{}, lastErr
}

func (c *Remote) once(ctx context.Context, body []byte) (Score, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Score{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		// transport errors are worth another try unless the caller gave up
		return Score{}, ctx.Err() == nil, err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return Score{}, res.StatusCode >= 500, &RemoteError{Status: res.StatusCode, Body: string(b)}
	}

	var out struct {
		Prediction    *float64 `json:"prediction"`
		Resultado     *float64 `json:"resultadoPrevisao"`
		Atraso        *bool    `json:"atraso"`
		Probability   *float64 `json:"probability"`
		Probabilidade *float64 `json:"probabilidade"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Score{}, false, fmt.Errorf("remote classifier: decode: %w", err)
	}

	var s Score
	switch {
	case out.Probability != nil:
		s.Probability = clamp01(*out.Probability)
	case out.Probabilidade != nil:
		s.Probability = clamp01(*out.Probabilidade)
	default:
		return Score{}, false, errors.New("remote classifier: response has no probability")
	}
	switch {
	case out.Atraso != nil:
		s.Delayed = *out.Atraso
	case out.Prediction != nil:
		s.Delayed = *out.Prediction >= 1
	case out.Resultado != nil:
		s.Delayed = *out.Resultado >= 1
	default:
		s.Delayed = s.Probability >= 0.5
	}
	return s, false, nil
}
