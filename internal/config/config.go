package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type ClassifierKind string

const (
	ClassifierLocal  ClassifierKind = "local"
	ClassifierRemote ClassifierKind = "remote"
)

type Config struct {
	HTTPAddr       string        `toml:"http_addr"`
	RequestTimeout time.Duration `toml:"request_timeout"`

	DBDriver string `toml:"db_driver"`
	DBDSN    string `toml:"db_dsn"`

	// Artifacts live in a blob store rooted at ArtifactsDir.
	ArtifactsDir string `toml:"artifacts_dir"`
	EncoderKey   string `toml:"encoder_key"`
	ModelKey     string `toml:"model_key"`

	Classifier             ClassifierKind `toml:"classifier"`
	ClassifierURL          string         `toml:"classifier_url"`
	ClassifierTokenURL     string         `toml:"classifier_token_url"`
	ClassifierClientID     string         `toml:"classifier_client_id"`
	ClassifierClientSecret string         `toml:"classifier_client_secret"`
	ClassifierTimeout      time.Duration  `toml:"classifier_timeout"`
	ClassifierRetries      int            `toml:"classifier_retries"`

	FeatureLayout []string `toml:"feature_layout"`
	MaxDistanceKM float64  `toml:"max_distance_km"`

	EnableCache bool          `toml:"enable_cache"`
	CacheSize   int           `toml:"cache_size"`
	CacheTTL    time.Duration `toml:"cache_ttl"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"` // json|text
	LogFile   string `toml:"log_file"`

	AuthHMACSecret string `toml:"auth_hmac_secret"`
	AdminUser      string `toml:"admin_user"`
	AdminPassHash  string `toml:"admin_pass_hash"` // bcrypt

	CORSOrigins []string `toml:"cors_origins"`
}

func Default() Config {
	return Config{
		HTTPAddr:          ":8080",
		RequestTimeout:    30 * time.Second,
		DBDriver:          "sqlite",
		ArtifactsDir:      "./artifacts",
		EncoderKey:        "encoders/encoder.json",
		ModelKey:          "models/model.json",
		Classifier:        ClassifierLocal,
		ClassifierTimeout: 2500 * time.Millisecond,
		ClassifierRetries: 2,
		FeatureLayout: []string{
			"airline_id", "route_id", "hour_of_day", "hour_bucket",
			"day_of_week", "distance_norm", "is_weekend",
		},
		MaxDistanceKM: 5000,
		EnableCache:   false,
		CacheSize:     1024,
		CacheTTL:      10 * time.Minute,
		LogLevel:      "info",
		LogFormat:     "json",
		AdminUser:     "admin",
		CORSOrigins:   []string{"http://localhost:3000"},
	}
}

// Load builds the configuration from defaults, then the TOML file at path
// (skipped when path is empty), then environment overrides.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &c); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	c.HTTPAddr = envOr("HTTP_ADDR", c.HTTPAddr)
	c.DBDriver = envOr("DB_DRIVER", c.DBDriver)
	c.DBDSN = envOr("DB_DSN", c.DBDSN)
	c.ArtifactsDir = envOr("ARTIFACTS_DIR", c.ArtifactsDir)
	c.EncoderKey = envOr("ENCODER_KEY", c.EncoderKey)
	c.ModelKey = envOr("MODEL_KEY", c.ModelKey)
	c.Classifier = ClassifierKind(envOr("CLASSIFIER", string(c.Classifier)))
	c.ClassifierURL = envOr("CLASSIFIER_URL", c.ClassifierURL)
	c.ClassifierTokenURL = envOr("CLASSIFIER_TOKEN_URL", c.ClassifierTokenURL)
	c.ClassifierClientID = envOr("CLASSIFIER_CLIENT_ID", c.ClassifierClientID)
	c.ClassifierClientSecret = envOr("CLASSIFIER_CLIENT_SECRET", c.ClassifierClientSecret)
	c.FeatureLayout = csvOr("FEATURE_LAYOUT", c.FeatureLayout)
	c.EnableCache = envBool("ENABLE_CACHE", c.EnableCache)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
	c.LogFile = envOr("LOG_FILE", c.LogFile)
	c.AuthHMACSecret = envOr("AUTH_HMAC_SECRET", c.AuthHMACSecret)
	c.AdminUser = envOr("ADMIN_USER", c.AdminUser)
	c.AdminPassHash = envOr("ADMIN_PASS_HASH", c.AdminPassHash)
	c.CORSOrigins = csvOr("CORS_ORIGINS", c.CORSOrigins)

	var err error
	if c.ClassifierTimeout, err = envDuration("CLASSIFIER_TIMEOUT", c.ClassifierTimeout); err != nil {
		return err
	}
	if c.CacheTTL, err = envDuration("CACHE_TTL", c.CacheTTL); err != nil {
		return err
	}
	if c.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", c.RequestTimeout); err != nil {
		return err
	}
	if c.ClassifierRetries, err = envInt("CLASSIFIER_RETRIES", c.ClassifierRetries); err != nil {
		return err
	}
	if c.CacheSize, err = envInt("CACHE_SIZE", c.CacheSize); err != nil {
		return err
	}
	if c.MaxDistanceKM, err = envFloat("MAX_DISTANCE_KM", c.MaxDistanceKM); err != nil {
		return err
	}
	return nil
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.MaxDistanceKM <= 0 {
		errs = append(errs, fmt.Errorf("max_distance_km must be positive, got %g", c.MaxDistanceKM))
	}
	switch c.Classifier {
	case ClassifierLocal:
		if c.ModelKey == "" {
			errs = append(errs, errors.New("local classifier needs model_key"))
		}
	case ClassifierRemote:
		if c.ClassifierURL == "" {
			errs = append(errs, errors.New("remote classifier needs classifier_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown classifier %q (want local or remote)", c.Classifier))
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown db_driver %q", c.DBDriver))
	}
	if c.EncoderKey == "" {
		errs = append(errs, errors.New("encoder_key is empty"))
	}
	if len(c.FeatureLayout) == 0 {
		errs = append(errs, errors.New("feature_layout is empty"))
	}
	if c.ClassifierRetries < 0 {
		errs = append(errs, errors.New("classifier_retries cannot be negative"))
	}
	if c.EnableCache && c.CacheSize <= 0 {
		errs = append(errs, errors.New("cache_size must be positive when the cache is enabled"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func csvOr(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
func envInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}
func envFloat(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return f, nil
}
func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
