package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Upstream health states reported by the status endpoint.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// UpstreamHealth is a point-in-time view of one upstream.
type UpstreamHealth struct {
	// Name is the upstream identifier.
	Name string

	// CircuitState is the current circuit breaker state.
	CircuitState gobreaker.State

	// Counts contains circuit breaker statistics.
	Counts gobreaker.Counts

	// LastSuccessAt is the timestamp of the last successful request.
	LastSuccessAt *time.Time

	// LastFailureAt is the timestamp of the last failed request.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string
}

// Status maps the breaker state onto healthy, degraded, or unhealthy.
func (h *UpstreamHealth) Status() string {
	switch h.CircuitState {
	case gobreaker.StateOpen:
		return StatusUnhealthy
	case gobreaker.StateHalfOpen:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// IsHealthy returns true if the breaker is closed.
func (h *UpstreamHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// Registry tracks upstream clients and the outcome of their calls.
type Registry struct {
	mu        sync.RWMutex
	upstreams map[string]*trackedUpstream
}

type trackedUpstream struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		upstreams: make(map[string]*trackedUpstream),
	}
}

// Register adds a client under name, replacing any previous one.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upstreams[name] = &trackedUpstream{client: client}
}

// Unregister removes an upstream.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.upstreams, name)
}

// RecordSuccess records a successful call.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.upstreams[name]; ok {
		now := time.Now()
		u.lastSuccessAt = &now
	}
}

// RecordFailure records a failed call.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.upstreams[name]; ok {
		now := time.Now()
		u.lastFailureAt = &now
		if err != nil {
			u.lastError = err.Error()
		}
	}
}

// Health returns the health of one upstream, or nil if it is unknown.
func (r *Registry) Health(name string) *UpstreamHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.upstreams[name]
	if !ok {
		return nil
	}
	return u.snapshot(name)
}

// Snapshot returns the health of every upstream, sorted by name.
func (r *Registry) Snapshot() []*UpstreamHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*UpstreamHealth, 0, len(r.upstreams))
	for name, u := range r.upstreams {
		out = append(out, u.snapshot(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered upstreams.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.upstreams)
}

func (u *trackedUpstream) snapshot(name string) *UpstreamHealth {
	return &UpstreamHealth{
		Name:          name,
		CircuitState:  u.client.CircuitBreakerState(),
		Counts:        u.client.CircuitBreakerCounts(),
		LastSuccessAt: u.lastSuccessAt,
		LastFailureAt: u.lastFailureAt,
		LastError:     u.lastError,
	}
}
