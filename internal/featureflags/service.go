package featureflags

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository   Repository
	Logger       zerolog.Logger
	CacheTTL     time.Duration // How long to cache flags in memory
	DefaultFlags map[string]*Flag

	// Validators run on updates to the named flag after the kind check.
	Validators map[string]func(value any) error
}

// Service provides feature flag evaluation with caching and fallback.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	cacheTTL     time.Duration
	defaultFlags map[string]*Flag
	validators   map[string]func(any) error

	mu          sync.RWMutex
	cache       map[string]*Flag
	cacheExpiry time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}

	defaultFlags := cfg.DefaultFlags
	if defaultFlags == nil {
		defaultFlags = DefaultFlags("")
	}

	return &Service{
		repo:         cfg.Repository,
		logger:       cfg.Logger,
		cacheTTL:     cacheTTL,
		defaultFlags: defaultFlags,
		validators:   cfg.Validators,
		cache:        make(map[string]*Flag),
	}
}

// GetFlag retrieves a feature flag by key, from cache when fresh, falling
// back to defaults when storage has no value or is unreachable.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if flag := s.getCached(key); flag != nil {
		return flag
	}

	flag, err := s.repo.GetFlag(ctx, key)
	if err == nil {
		s.setCached(key, flag)
		return flag
	}

	if !errors.Is(err, ErrFlagNotFound) {
		s.logger.Warn().Err(err).Str("flag", key).Msg("failed to get feature flag from repository")
	}

	return s.defaultFlags[key]
}

// GetAllFlags returns stored flags merged over defaults.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	result := make(map[string]*Flag, len(s.defaultFlags))
	for k, v := range s.defaultFlags {
		result[k] = v
	}

	flags, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to get feature flags from repository, using defaults")
		return result
	}

	for k, v := range flags {
		result[k] = v
	}

	s.mu.Lock()
	s.cache = flags
	s.cacheExpiry = time.Now().Add(s.cacheTTL)
	s.mu.Unlock()

	return result
}

// Validate checks an update against the flag's kind and any registered validator.
func (s *Service) Validate(key string, value any) error {
	if err := CheckKind(key, value); err != nil {
		return err
	}
	if v, ok := s.validators[key]; ok {
		if err := v(value); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidValue, key, err)
		}
	}
	return nil
}

// SetFlags validates and stores flags atomically, then refreshes the cache.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	for _, flag := range flags {
		if err := s.Validate(flag.Key, flag.Value); err != nil {
			return err
		}
	}

	now := time.Now()
	for _, flag := range flags {
		flag.UpdatedAt = now
	}

	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return err
	}

	s.mu.Lock()
	for _, flag := range flags {
		s.cache[flag.Key] = flag
	}
	s.mu.Unlock()

	return nil
}

// InvalidateCache clears the cached flags, forcing a refresh on next access.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Flag)
	s.cacheExpiry = time.Time{}
}

// IsEnabled returns true if the flag with the given key is truthy.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

func (s *Service) getCached(key string) *Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if time.Now().After(s.cacheExpiry) {
		return nil
	}
	return s.cache[key]
}

func (s *Service) setCached(key string, flag *Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[key] = flag
	if s.cacheExpiry.Before(time.Now()) {
		s.cacheExpiry = time.Now().Add(s.cacheTTL)
	}
}

// DefaultPreset returns the advisory preset to use when none is requested,
// or fallback if the flag is unset.
func (s *Service) DefaultPreset(ctx context.Context, fallback string) string {
	if s == nil {
		return fallback
	}
	return s.GetFlag(ctx, FlagAdvisoryDefaultPreset).StringValue(fallback)
}

// IsModelEstimatorDisabled returns true if model-backed estimates are switched off.
func (s *Service) IsModelEstimatorDisabled(ctx context.Context) bool {
	if s == nil {
		return false
	}
	return s.IsEnabled(ctx, FlagDisableModelEstimator)
}
