// Package assessment combines AQI estimation with health advisories. It is
// shared by the HTTP API, the worker, and the CLI.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/airadvisor/airadvisor/internal/advisory"
	"github.com/airadvisor/airadvisor/internal/airquality"
	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/featureflags"
	"github.com/airadvisor/airadvisor/internal/regression"
	"github.com/airadvisor/airadvisor/internal/telemetry"
	"github.com/airadvisor/airadvisor/internal/weather"
)

// Estimation methods for pollutant readings.
const (
	MethodFormula = "formula"
	MethodModel   = "model"
)

var (
	// ErrEstimatorUnavailable is returned for model-backed estimates when no
	// model is configured or the estimator is switched off by flag.
	ErrEstimatorUnavailable = errors.New("model estimator unavailable")

	// ErrWeatherUnavailable is returned for live estimates when no weather
	// provider is configured.
	ErrWeatherUnavailable = errors.New("live weather not configured")

	// ErrAirQualityUnavailable is returned for live pollutant estimates when
	// no station network is configured.
	ErrAirQualityUnavailable = errors.New("live air quality not configured")

	// ErrUnknownMethod is returned for an unrecognised estimation method.
	ErrUnknownMethod = errors.New("unknown estimation method")
)

// Config holds the dependencies of a Service. Only Classifier is required.
// Predictor serves weather readings and PollutantPredictor serves pollutant
// vectors.
type Config struct {
	Predictor          aqi.Predictor
	PollutantPredictor aqi.Predictor
	Classifier         *advisory.Classifier
	Flags              *featureflags.Service
	Weather            *weather.Service
	AirQuality         *airquality.Service
	Metrics            *telemetry.DomainMetrics
	Logger             zerolog.Logger
}

// Service runs estimates and classifies them.
type Service struct {
	predictor          aqi.Predictor
	estimator          *aqi.ModelEstimator
	pollutantPredictor aqi.Predictor
	pollutantEstimator *aqi.ModelEstimator
	classifier         *advisory.Classifier
	flags              *featureflags.Service
	weather            *weather.Service
	airQuality         *airquality.Service
	metrics            *telemetry.DomainMetrics
	logger             zerolog.Logger
}

// NewService creates an assessment service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Classifier == nil {
		return nil, errors.New("assessment: classifier is required")
	}
	s := &Service{
		predictor:          cfg.Predictor,
		pollutantPredictor: cfg.PollutantPredictor,
		classifier:         cfg.Classifier,
		flags:              cfg.Flags,
		weather:            cfg.Weather,
		airQuality:         cfg.AirQuality,
		metrics:            cfg.Metrics,
		logger:             cfg.Logger,
	}
	if cfg.Predictor != nil {
		s.estimator = aqi.NewModelEstimator(cfg.Predictor, cfg.Logger)
	}
	if cfg.PollutantPredictor != nil {
		s.pollutantEstimator = aqi.NewModelEstimator(cfg.PollutantPredictor, cfg.Logger)
	}
	return s, nil
}

// PollutantResult is the outcome of a pollutant assessment.
type PollutantResult struct {
	AQI           float64
	Method        string
	Contributions []aqi.Contribution
	Warnings      []string
	Advisory      advisory.Advisory
}

// WeatherResult is the outcome of a weather assessment.
type WeatherResult struct {
	AQI      float64
	Reading  aqi.WeatherReading
	Model    regression.Info
	Advisory advisory.Advisory
}

// LiveResult is a weather assessment from a provider observation.
type LiveResult struct {
	WeatherResult
	Observation *weather.Observation
	Provider    string
}

// LivePollutantResult is a formula assessment of pollutant concentrations
// interpolated from nearby monitoring stations.
type LivePollutantResult struct {
	PollutantResult
	Reading    aqi.PollutantReading
	Estimate   *airquality.PointEstimate
	Missing    []aqi.Pollutant
	Confidence airquality.Confidence
	Provider   string
	FetchedAt  time.Time
}

// DefaultPreset returns the preset used when a request names none: the
// feature flag if set, else the classifier default.
func (s *Service) DefaultPreset(ctx context.Context) string {
	return s.flags.DefaultPreset(ctx, s.classifier.DefaultPreset())
}

// ModelAvailable reports whether weather model estimates can be served.
func (s *Service) ModelAvailable(ctx context.Context) bool {
	return s.available(ctx, s.estimator, s.predictor)
}

// PollutantModelAvailable reports whether pollutant vector model estimates
// can be served.
func (s *Service) PollutantModelAvailable(ctx context.Context) bool {
	return s.available(ctx, s.pollutantEstimator, s.pollutantPredictor)
}

func (s *Service) available(ctx context.Context, e *aqi.ModelEstimator, p aqi.Predictor) bool {
	if e == nil || s.flags.IsModelEstimatorDisabled(ctx) {
		return false
	}
	if d, ok := p.(regression.Describer); ok {
		return d.Info().Loaded
	}
	return true
}

// ModelInfo describes the weather model, or nil when there is none.
func (s *Service) ModelInfo() *regression.Info {
	return describe(s.predictor)
}

// PollutantModelInfo describes the pollutant vector model, or nil when there
// is none.
func (s *Service) PollutantModelInfo() *regression.Info {
	return describe(s.pollutantPredictor)
}

func describe(p aqi.Predictor) *regression.Info {
	if p == nil {
		return nil
	}
	if d, ok := p.(regression.Describer); ok {
		info := d.Info()
		return &info
	}
	return &regression.Info{Loaded: true}
}

// Classify classifies value against preset, or the default preset when empty.
func (s *Service) Classify(ctx context.Context, preset string, value float64, p *advisory.Profile) (advisory.Advisory, error) {
	if preset == "" {
		preset = s.DefaultPreset(ctx)
	}
	a, err := s.classifier.Classify(preset, value, p)
	if err != nil {
		return advisory.Advisory{}, err
	}
	s.metrics.RecordClassification(ctx, a.Preset, a.Level)
	return a, nil
}

// AssessPollutants estimates the AQI of a pollutant reading and classifies
// it. The formula is the default method and six-tier the default preset.
func (s *Service) AssessPollutants(ctx context.Context, r aqi.PollutantReading, method, preset string, p *advisory.Profile) (*PollutantResult, error) {
	if method == "" {
		method = MethodFormula
	}
	if preset == "" {
		preset = advisory.PresetSixTier
	}

	res := &PollutantResult{Method: method, Warnings: r.Warnings()}

	switch method {
	case MethodFormula:
		start := time.Now()
		res.AQI = aqi.EstimatePollutants(r)
		res.Contributions = aqi.Contributions(r)
		s.metrics.RecordEstimate(ctx, telemetry.KindFormula, time.Since(start), nil)
	case MethodModel:
		if !s.PollutantModelAvailable(ctx) {
			return nil, ErrEstimatorUnavailable
		}
		start := time.Now()
		v, err := s.pollutantEstimator.EstimatePollutantVector(ctx, r)
		s.metrics.RecordEstimate(ctx, telemetry.KindModelVector, time.Since(start), err)
		if err != nil {
			return nil, err
		}
		res.AQI = v
	default:
		return nil, &aqi.InputError{
			Field:  "method",
			Reason: fmt.Sprintf("must be %q or %q", MethodFormula, MethodModel),
			Err:    ErrUnknownMethod,
		}
	}

	a, err := s.Classify(ctx, preset, res.AQI, p)
	if err != nil {
		return nil, err
	}
	res.Advisory = a
	return res, nil
}

// EstimateWeather runs the model on a weather reading without classifying it.
func (s *Service) EstimateWeather(ctx context.Context, r aqi.WeatherReading) (float64, error) {
	return s.estimateWeather(ctx, telemetry.KindModelWeather, r)
}

func (s *Service) estimateWeather(ctx context.Context, kind string, r aqi.WeatherReading) (float64, error) {
	if !s.ModelAvailable(ctx) {
		return 0, ErrEstimatorUnavailable
	}
	start := time.Now()
	v, err := s.estimator.EstimateWeather(ctx, r)
	s.metrics.RecordEstimate(ctx, kind, time.Since(start), err)
	return v, err
}

// AssessWeather estimates the AQI of a weather reading and classifies it.
func (s *Service) AssessWeather(ctx context.Context, r aqi.WeatherReading, preset string, p *advisory.Profile) (*WeatherResult, error) {
	return s.assessWeather(ctx, telemetry.KindModelWeather, r, preset, p)
}

// AssessWeatherAs is AssessWeather with an explicit estimator kind for metrics.
func (s *Service) AssessWeatherAs(ctx context.Context, kind string, r aqi.WeatherReading, preset string, p *advisory.Profile) (*WeatherResult, error) {
	return s.assessWeather(ctx, kind, r, preset, p)
}

func (s *Service) assessWeather(ctx context.Context, kind string, r aqi.WeatherReading, preset string, p *advisory.Profile) (*WeatherResult, error) {
	// Validate the profile before spending an inference on the reading.
	if p != nil {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	v, err := s.estimateWeather(ctx, kind, r)
	if err != nil {
		return nil, err
	}

	a, err := s.Classify(ctx, preset, v, p)
	if err != nil {
		return nil, err
	}

	res := &WeatherResult{AQI: v, Reading: r, Advisory: a}
	if info := s.ModelInfo(); info != nil {
		res.Model = *info
	}
	return res, nil
}

// AssessLiveWeather fetches current conditions at a point and assesses them.
func (s *Service) AssessLiveWeather(ctx context.Context, lat, lon float64, preset string, p *advisory.Profile) (*LiveResult, error) {
	if s.weather == nil {
		return nil, ErrWeatherUnavailable
	}
	if !s.ModelAvailable(ctx) {
		return nil, ErrEstimatorUnavailable
	}

	obs, err := s.weather.GetCurrentWeather(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	res, err := s.assessWeather(ctx, telemetry.KindLiveWeather, obs.Reading(), preset, p)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Float64("aqi", res.AQI).
		Msg("live weather assessed")

	return &LiveResult{
		WeatherResult: *res,
		Observation:   obs,
		Provider:      s.weather.ProviderName(),
	}, nil
}

// AssessLivePollutants interpolates current station measurements at a point
// and assesses them with the formula. Pollutants no nearby station reports
// count as zero and are listed in Missing.
func (s *Service) AssessLivePollutants(ctx context.Context, lat, lon float64, preset string, p *advisory.Profile) (*LivePollutantResult, error) {
	if s.airQuality == nil {
		return nil, ErrAirQualityUnavailable
	}
	if p != nil {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	if preset == "" {
		preset = advisory.PresetSixTier
	}

	start := time.Now()
	est, snapshot, err := s.airQuality.Estimate(ctx, lat, lon)
	if err != nil {
		s.metrics.RecordEstimate(ctx, telemetry.KindLivePollutants, time.Since(start), err)
		return nil, err
	}
	r, missing := est.Reading()
	value := aqi.EstimatePollutants(r)
	s.metrics.RecordEstimate(ctx, telemetry.KindLivePollutants, time.Since(start), nil)

	a, err := s.Classify(ctx, preset, value, p)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Float64("aqi", value).
		Int("missing", len(missing)).
		Msg("live pollutants assessed")

	return &LivePollutantResult{
		PollutantResult: PollutantResult{
			AQI:           value,
			Method:        MethodFormula,
			Contributions: aqi.Contributions(r),
			Warnings:      r.Warnings(),
			Advisory:      a,
		},
		Reading:    r,
		Estimate:   est,
		Missing:    missing,
		Confidence: est.Confidence(),
		Provider:   snapshot.Provider,
		FetchedAt:  snapshot.FetchedAt,
	}, nil
}
