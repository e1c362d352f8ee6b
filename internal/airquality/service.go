package airquality

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/airadvisor/airadvisor/internal/weather"
)

// Provider fetches station metadata and latest measurements.
type Provider interface {
	FetchSnapshot(ctx context.Context) (*Snapshot, error)
	Name() string
}

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger

	// CacheTTL is how long a snapshot is served before refetching.
	// Default: 15 minutes
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving an old snapshot while the provider
	// fails. Default: 1 hour
	StaleIfErrorTTL time.Duration

	Interpolation InterpolationConfig
}

// Service caches provider snapshots and interpolates them.
type Service struct {
	provider        Provider
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	interpolator    *Interpolator

	mu          sync.RWMutex
	snapshot    *Snapshot
	cacheExpiry time.Time
}

// NewService creates an air quality service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.StaleIfErrorTTL == 0 {
		cfg.StaleIfErrorTTL = time.Hour
	}
	return &Service{
		provider:        cfg.Provider,
		logger:          cfg.Logger,
		cacheTTL:        cfg.CacheTTL,
		staleIfErrorTTL: cfg.StaleIfErrorTTL,
		interpolator:    NewInterpolator(cfg.Interpolation),
	}
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// Estimate interpolates current concentrations at a location.
func (s *Service) Estimate(ctx context.Context, lat, lon float64) (*PointEstimate, *Snapshot, error) {
	if err := weather.ValidateCoordinates(lat, lon); err != nil {
		return nil, nil, err
	}
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	est, err := s.interpolator.Interpolate(lat, lon, snapshot)
	if err != nil {
		return nil, nil, err
	}
	return est, snapshot, nil
}

// Snapshot returns the cached snapshot, refreshing it when expired.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	if s.snapshot != nil && time.Now().Before(s.cacheExpiry) {
		snapshot := s.snapshot
		s.mu.RUnlock()
		return snapshot, nil
	}
	s.mu.RUnlock()

	return s.refresh(ctx)
}

// InvalidateCache drops the cached snapshot.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
	s.cacheExpiry = time.Time{}
}

func (s *Service) refresh(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if s.snapshot != nil && time.Now().Before(s.cacheExpiry) {
		return s.snapshot, nil
	}

	snapshot, err := s.provider.FetchSnapshot(ctx)
	if err != nil {
		if s.snapshot != nil && time.Now().Before(s.snapshot.FetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Err(err).
				Time("fetched_at", s.snapshot.FetchedAt).
				Msg("serving stale air quality snapshot")
			return s.snapshot, nil
		}
		s.logger.Error().Err(err).Msg("failed to fetch air quality snapshot")
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	s.snapshot = snapshot
	s.cacheExpiry = time.Now().Add(s.cacheTTL)

	s.logger.Info().
		Str("provider", snapshot.Provider).
		Int("stations", len(snapshot.Stations)).
		Int("measurements", snapshot.MeasurementCount()).
		Time("expires_at", s.cacheExpiry).
		Msg("air quality snapshot refreshed")

	return snapshot, nil
}
