// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/airadvisor/airadvisor/internal/advisory"
	"github.com/airadvisor/airadvisor/internal/database"
)

// DefaultPath is read when CONFIG_PATH is unset. A missing default file is
// not an error.
const DefaultPath = "configs/config.yaml"

// DevSigningKey is used outside production when no JWT key is configured.
const DevSigningKey = "local-dev-signing-key-change-in-production"

// ErrInvalidConfig is wrapped by every validation and override error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full service configuration.
type Config struct {
	App          AppConfig          `yaml:"app"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Database     database.Config    `yaml:"database"`
	Model        ModelConfig        `yaml:"model"`
	Weather      WeatherConfig      `yaml:"weather"`
	AirQuality   AirQualityConfig   `yaml:"air_quality"`
	Auth         AuthConfig         `yaml:"auth"`
	PubSub       PubSubConfig       `yaml:"pubsub"`
	Advisory     AdvisoryConfig     `yaml:"advisory"`
	FeatureFlags FeatureFlagsConfig `yaml:"feature_flags"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Env             string        `yaml:"env"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	RequireTLS      bool          `yaml:"require_tls"`
}

// TelemetryConfig holds OpenTelemetry exporter settings.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// ModelConfig selects the regression model sources. There is one slot for
// weather readings and one for pollutant vectors; in each, the remote URL
// wins when both are set.
type ModelConfig struct {
	Path               string        `yaml:"path"`
	RemoteURL          string        `yaml:"remote_url"`
	PollutantPath      string        `yaml:"pollutant_path"`
	PollutantRemoteURL string        `yaml:"pollutant_remote_url"`
	Timeout            time.Duration `yaml:"timeout"`

	// Dir confines model_reload path overrides. Empty means the directory
	// of Path, or of PollutantPath when Path is unset.
	Dir string `yaml:"dir"`
}

// Enabled reports whether any model source is configured.
func (m ModelConfig) Enabled() bool {
	return m.Path != "" || m.RemoteURL != "" || m.PollutantPath != "" || m.PollutantRemoteURL != ""
}

// ArtifactDir returns the directory reload overrides must stay inside, or ""
// when no local artifact is configured.
func (m ModelConfig) ArtifactDir() string {
	switch {
	case m.Dir != "":
		return m.Dir
	case m.Path != "":
		return filepath.Dir(m.Path)
	case m.PollutantPath != "":
		return filepath.Dir(m.PollutantPath)
	}
	return ""
}

// WeatherConfig configures the live weather provider.
type WeatherConfig struct {
	OWMAPIKey  string        `yaml:"owm_api_key"`
	OWMBaseURL string        `yaml:"owm_base_url"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

// AirQualityConfig configures the Luchtmeetnet station network used for live
// pollutant estimates.
type AirQualityConfig struct {
	Enabled     bool          `yaml:"enabled"`
	BaseURL     string        `yaml:"base_url"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	MaxDistance float64       `yaml:"max_distance"` // meters
}

// AuthConfig configures admin bearer tokens.
type AuthConfig struct {
	JWTSigningKey string        `yaml:"jwt_signing_key"`
	Issuer        string        `yaml:"issuer"`
	TokenExpiry   time.Duration `yaml:"token_expiry"`
}

// PubSubConfig configures the assessment worker.
type PubSubConfig struct {
	ProjectID      string `yaml:"project_id"`
	SubscriptionID string `yaml:"subscription_id"`
	ResultsTopicID string `yaml:"results_topic_id"`
	Concurrency    int    `yaml:"concurrency"`
}

// AdvisoryConfig holds classifier defaults.
type AdvisoryConfig struct {
	DefaultPreset string `yaml:"default_preset"`
}

// FeatureFlagsConfig holds feature flag cache settings.
type FeatureFlagsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// RateLimitConfig holds per-IP request limits per minute.
type RateLimitConfig struct {
	EstimatesPerMinute int `yaml:"estimates_per_minute"`
	AdminPerMinute     int `yaml:"admin_per_minute"`
}

// Default returns the development defaults.
func Default() Config {
	return Config{
		App: AppConfig{
			Env:             "development",
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
			LogLevel:        "info",
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			SampleRatio:  1,
		},
		Database: database.DefaultConfig(),
		Model: ModelConfig{
			Timeout: 10 * time.Second,
		},
		Weather: WeatherConfig{
			CacheTTL: 10 * time.Minute,
		},
		AirQuality: AirQualityConfig{
			CacheTTL:    15 * time.Minute,
			MaxDistance: 50000,
		},
		Auth: AuthConfig{
			Issuer:      "airadvisor",
			TokenExpiry: time.Hour,
		},
		PubSub: PubSubConfig{
			SubscriptionID: "aqi-assessments",
			ResultsTopicID: "aqi-assessment-results",
			Concurrency:    4,
		},
		Advisory: AdvisoryConfig{
			DefaultPreset: advisory.PresetFiveTier,
		},
		FeatureFlags: FeatureFlagsConfig{
			CacheTTL: time.Minute,
		},
		RateLimit: RateLimitConfig{
			EstimatesPerMinute: 120,
			AdminPerMinute:     30,
		},
	}
}

// Load reads the file at path (or CONFIG_PATH, or DefaultPath), applies
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	optional := false
	if path == "" {
		path = getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
		optional = true
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalidConfig, path, err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error

	switch c.App.Env {
	case "development", "test", "staging", "production":
	default:
		errs = append(errs, fmt.Errorf("app.env %q is not one of development, test, staging, production", c.App.Env))
	}
	if c.App.Port < 1 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port %d out of range", c.App.Port))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio %v must be within [0, 1]", c.Telemetry.SampleRatio))
	}
	if c.Database.Enabled() && (c.Database.Port < 1 || c.Database.Port > 65535) {
		errs = append(errs, fmt.Errorf("database.port %d out of range", c.Database.Port))
	}
	if _, err := advisory.Lookup(c.Advisory.DefaultPreset); err != nil {
		errs = append(errs, fmt.Errorf("advisory.default_preset: %w", err))
	}
	if c.IsProduction() && c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("auth.jwt_signing_key is required in production"))
	}
	if c.AirQuality.MaxDistance < 0 {
		errs = append(errs, fmt.Errorf("air_quality.max_distance %v must not be negative", c.AirQuality.MaxDistance))
	}
	if c.PubSub.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("pubsub.concurrency %d must be positive", c.PubSub.Concurrency))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// SigningKey returns the configured JWT key, or DevSigningKey outside
// production.
func (c *Config) SigningKey() string {
	if c.Auth.JWTSigningKey == "" && !c.IsProduction() {
		return DevSigningKey
	}
	return c.Auth.JWTSigningKey
}

func (c *Config) applyEnv(getenv func(string) string) error {
	e := envReader{getenv: getenv}

	e.str("APP_ENV", &c.App.Env)
	e.int("APP_PORT", &c.App.Port)
	e.str("LOG_LEVEL", &c.App.LogLevel)
	e.bool("REQUIRE_TLS", &c.App.RequireTLS)

	e.bool("OTEL_ENABLED", &c.Telemetry.Enabled)
	e.str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
	e.float("OTEL_TRACES_SAMPLER_ARG", &c.Telemetry.SampleRatio)

	e.str("DB_HOST", &c.Database.Host)
	e.int("DB_PORT", &c.Database.Port)
	e.str("DB_USER", &c.Database.User)
	e.str("DB_PASSWORD", &c.Database.Password)
	e.str("DB_NAME", &c.Database.Database)
	e.str("DB_SSL_MODE", &c.Database.SSLMode)
	e.int("DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	e.int("DB_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	e.duration("DB_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetime)

	e.str("MODEL_PATH", &c.Model.Path)
	e.str("MODEL_REMOTE_URL", &c.Model.RemoteURL)
	e.str("MODEL_POLLUTANT_PATH", &c.Model.PollutantPath)
	e.str("MODEL_POLLUTANT_REMOTE_URL", &c.Model.PollutantRemoteURL)
	e.str("MODEL_DIR", &c.Model.Dir)
	e.duration("MODEL_TIMEOUT", &c.Model.Timeout)

	e.str("OWM_API_KEY", &c.Weather.OWMAPIKey)
	e.str("OWM_BASE_URL", &c.Weather.OWMBaseURL)

	e.bool("AIRQUALITY_ENABLED", &c.AirQuality.Enabled)
	e.str("AIRQUALITY_BASE_URL", &c.AirQuality.BaseURL)
	e.duration("AIRQUALITY_CACHE_TTL", &c.AirQuality.CacheTTL)

	e.str("JWT_SIGNING_KEY", &c.Auth.JWTSigningKey)

	e.str("PUBSUB_PROJECT_ID", &c.PubSub.ProjectID)
	e.str("PUBSUB_SUBSCRIPTION_ID", &c.PubSub.SubscriptionID)
	e.str("PUBSUB_RESULTS_TOPIC_ID", &c.PubSub.ResultsTopicID)
	e.int("PUBSUB_CONCURRENCY", &c.PubSub.Concurrency)

	e.str("ADVISORY_DEFAULT_PRESET", &c.Advisory.DefaultPreset)

	if len(e.errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(e.errs...))
	}
	return nil
}

// envReader overrides fields from non-empty environment variables and
// collects parse errors.
type envReader struct {
	getenv func(string) string
	errs   []error
}

func (e *envReader) str(key string, dst *string) {
	if v := e.getenv(key); v != "" {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (e *envReader) float(key string, dst *float64) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = f
}

func (e *envReader) bool(key string, dst *bool) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v := e.getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}
