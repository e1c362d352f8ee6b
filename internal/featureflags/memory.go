package featureflags

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository keeps flags in process. Used when no database is
// configured and in tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	flags map[string]*Flag
}

// NewInMemoryRepository creates a repository seeded with flags (may be nil).
func NewInMemoryRepository(flags map[string]*Flag) *InMemoryRepository {
	r := &InMemoryRepository{flags: make(map[string]*Flag, len(flags))}
	for k, v := range flags {
		r.flags[k] = copyFlag(v)
	}
	return r
}

// GetFlag retrieves a single feature flag by key.
func (r *InMemoryRepository) GetFlag(_ context.Context, key string) (*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flag, ok := r.flags[key]
	if !ok {
		return nil, ErrFlagNotFound
	}
	return copyFlag(flag), nil
}

// GetAllFlags retrieves all feature flags.
func (r *InMemoryRepository) GetAllFlags(_ context.Context) (map[string]*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*Flag, len(r.flags))
	for k, v := range r.flags {
		result[k] = copyFlag(v)
	}
	return result, nil
}

// SetFlags creates or updates multiple feature flags.
func (r *InMemoryRepository) SetFlags(_ context.Context, flags []*Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, flag := range flags {
		r.flags[flag.Key] = &Flag{Key: flag.Key, Value: flag.Value, UpdatedAt: now}
	}
	return nil
}

// DeleteFlag removes a feature flag by key.
func (r *InMemoryRepository) DeleteFlag(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.flags[key]; !ok {
		return ErrFlagNotFound
	}
	delete(r.flags, key)
	return nil
}

func copyFlag(f *Flag) *Flag {
	return &Flag{Key: f.Key, Value: f.Value, UpdatedAt: f.UpdatedAt}
}

var _ Repository = (*InMemoryRepository)(nil)
