// Package bootstrap builds the shared service graph from configuration for
// the API server, the worker, and the CLI.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/airadvisor/airadvisor/internal/advisory"
	"github.com/airadvisor/airadvisor/internal/airquality"
	"github.com/airadvisor/airadvisor/internal/airquality/luchtmeetnet"
	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/assessment"
	"github.com/airadvisor/airadvisor/internal/config"
	"github.com/airadvisor/airadvisor/internal/database"
	"github.com/airadvisor/airadvisor/internal/featureflags"
	"github.com/airadvisor/airadvisor/internal/provider/resilience"
	"github.com/airadvisor/airadvisor/internal/regression"
	"github.com/airadvisor/airadvisor/internal/telemetry"
	"github.com/airadvisor/airadvisor/internal/weather"
	"github.com/airadvisor/airadvisor/internal/weather/openweathermap"
)

// NewLogger returns a JSON logger at the configured level. Unknown levels
// fall back to info.
func NewLogger(w io.Writer, app config.AppConfig, service, version string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level, err := zerolog.ParseLevel(strings.ToLower(app.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// Options tune Build for each entrypoint.
type Options struct {
	// SkipDatabase keeps feature flags in memory even when a database is
	// configured.
	SkipDatabase bool

	// MeterProvider receives domain metrics. Nil uses the global provider.
	MeterProvider metric.MeterProvider
}

// Components is the wired service graph.
type Components struct {
	Config     *config.Config
	Pool       *pgxpool.Pool
	Registry   *resilience.Registry
	Flags      *featureflags.Service
	Holder     *regression.Holder
	Predictor  aqi.Predictor

	PollutantHolder    *regression.Holder
	PollutantPredictor aqi.Predictor

	Weather    *weather.Service
	AirQuality *airquality.Service
	Classifier *advisory.Classifier
	Metrics    *telemetry.DomainMetrics
	Assessment *assessment.Service
}

// Build wires storage, upstream clients, the model, and the assessment
// service. Close releases what it opened.
func Build(ctx context.Context, cfg *config.Config, opts Options, logger zerolog.Logger) (*Components, error) {
	c := &Components{
		Config:   cfg,
		Registry: resilience.NewRegistry(),
	}

	if cfg.Database.Enabled() && !opts.SkipDatabase {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		c.Pool = pool
		logger.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
	}

	flags, err := newFlags(ctx, cfg, c.Pool, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Flags = flags

	weatherSlot := modelSlot{
		name:     "weather",
		path:     cfg.Model.Path,
		url:      cfg.Model.RemoteURL,
		upstream: regression.RemoteUpstreamName,
		features: aqi.WeatherFeatures,
	}
	if c.Predictor, c.Holder, err = c.buildModel(weatherSlot, cfg.Model.Timeout, logger); err != nil {
		c.Close()
		return nil, err
	}

	pollutantSlot := modelSlot{
		name:     "pollutant",
		path:     cfg.Model.PollutantPath,
		url:      cfg.Model.PollutantRemoteURL,
		upstream: regression.PollutantRemoteUpstreamName,
		features: aqi.PollutantVectorFeatures,
	}
	if c.PollutantPredictor, c.PollutantHolder, err = c.buildModel(pollutantSlot, cfg.Model.Timeout, logger); err != nil {
		c.Close()
		return nil, err
	}

	if cfg.Weather.OWMAPIKey != "" {
		clientCfg := resilience.DefaultClientConfig(openweathermap.ProviderName)
		clientCfg.Registry = c.Registry
		provider := openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:     cfg.Weather.OWMAPIKey,
			BaseURL:    cfg.Weather.OWMBaseURL,
			HTTPClient: resilience.NewClient(clientCfg),
		})
		c.Weather = weather.NewService(weather.ServiceConfig{
			Provider: provider,
			Logger:   logger,
			CacheTTL: cfg.Weather.CacheTTL,
		})
		logger.Info().Str("provider", provider.Name()).Msg("live weather enabled")
	} else {
		logger.Warn().Msg("weather provider not configured - live estimates will return 503")
	}

	if cfg.AirQuality.Enabled {
		c.AirQuality = newAirQuality(cfg.AirQuality, c.Registry, logger)
	}

	classifier, err := advisory.NewClassifier(advisory.ClassifierConfig{
		DefaultPreset: cfg.Advisory.DefaultPreset,
		Logger:        logger,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating classifier: %w", err)
	}
	c.Classifier = classifier

	metrics, err := telemetry.NewDomainMetrics(opts.MeterProvider)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("creating domain metrics: %w", err)
	}
	c.Metrics = metrics

	svc, err := assessment.NewService(assessment.Config{
		Predictor:          c.Predictor,
		PollutantPredictor: c.PollutantPredictor,
		Classifier:         classifier,
		Flags:              flags,
		Weather:            c.Weather,
		AirQuality:         c.AirQuality,
		Metrics:            metrics,
		Logger:             logger,
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Assessment = svc

	return c, nil
}

// Close releases the database pool.
func (c *Components) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// modelSlot is one model source bound to a feature order.
type modelSlot struct {
	name     string
	path     string
	url      string
	upstream string
	features []string
}

// buildModel selects the remote model when a URL is set, otherwise a local
// holder. The holder is created even without a path so a later reload can
// install a model.
func (c *Components) buildModel(slot modelSlot, timeout time.Duration, logger zerolog.Logger) (aqi.Predictor, *regression.Holder, error) {
	log := logger.With().Str("slot", slot.name).Logger()

	if slot.url != "" {
		clientCfg := resilience.DefaultClientConfig(slot.upstream)
		clientCfg.Timeout = timeout
		clientCfg.Registry = c.Registry

		schema := make(regression.Schema, len(slot.features))
		for i, name := range slot.features {
			schema[i] = regression.Feature{Name: name}
		}
		remote, err := regression.NewRemoteModel(resilience.NewClient(clientCfg), slot.url, schema)
		if err != nil {
			return nil, nil, fmt.Errorf("creating remote %s model: %w", slot.name, err)
		}
		log.Info().Str("url", slot.url).Msg("using remote model")
		return remote, nil, nil
	}

	var initial *regression.LinearModel
	if slot.path != "" {
		m, err := regression.Load(slot.path)
		if err != nil {
			return nil, nil, fmt.Errorf("loading %s model: %w", slot.name, err)
		}
		initial = m
		log.Info().
			Str("path", slot.path).
			Str("model", m.Name()).
			Str("version", m.Version()).
			Msg("model loaded")
	} else {
		log.Warn().Msg("no model configured - model estimates will return 503")
	}

	holder, err := regression.NewHolder(initial, slot.features)
	if err != nil {
		return nil, nil, fmt.Errorf("installing %s model: %w", slot.name, err)
	}
	return holder, holder, nil
}

func newAirQuality(cfg config.AirQualityConfig, registry *resilience.Registry, logger zerolog.Logger) *airquality.Service {
	clientCfg := resilience.DefaultClientConfig(luchtmeetnet.ProviderName)
	clientCfg.Registry = registry
	provider := luchtmeetnet.NewClient(luchtmeetnet.ClientConfig{
		BaseURL:    cfg.BaseURL,
		HTTPClient: resilience.NewClient(clientCfg),
		Logger:     logger,
	})

	interp := airquality.DefaultInterpolationConfig()
	if cfg.MaxDistance > 0 {
		interp.MaxDistance = cfg.MaxDistance
	}
	logger.Info().Str("provider", provider.Name()).Msg("live pollutants enabled")
	return airquality.NewService(airquality.ServiceConfig{
		Provider:      provider,
		Logger:        logger,
		CacheTTL:      cfg.CacheTTL,
		Interpolation: interp,
	})
}

func newFlags(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*featureflags.Service, error) {
	var repo featureflags.Repository
	if pool != nil {
		pg := featureflags.NewPostgresRepository(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("preparing feature flag schema: %w", err)
		}
		repo = pg
	} else {
		repo = featureflags.NewInMemoryRepository(nil)
		logger.Info().Msg("feature flags stored in memory")
	}

	return featureflags.NewService(featureflags.ServiceConfig{
		Repository:   repo,
		Logger:       logger,
		CacheTTL:     cfg.FeatureFlags.CacheTTL,
		DefaultFlags: featureflags.DefaultFlags(cfg.Advisory.DefaultPreset),
		Validators:   FlagValidators(),
	}), nil
}

// FlagValidators checks flag values beyond their kind.
func FlagValidators() map[string]func(any) error {
	return map[string]func(any) error{
		featureflags.FlagAdvisoryDefaultPreset: func(v any) error {
			name, _ := v.(string)
			_, err := advisory.Lookup(name)
			return err
		},
	}
}
