package resilience_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airadvisor/airadvisor/internal/provider/resilience"
)

func TestRegistry_RegisterOnConstruction(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("model-server")
	cfg.Registry = registry

	_ = resilience.NewClient(cfg)

	assert.Equal(t, 1, registry.Len())
	health := registry.Health("model-server")
	require.NotNil(t, health)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.Equal(t, resilience.StatusHealthy, health.Status())
	assert.True(t, health.IsHealthy())
}

func TestRegistry_Unregister(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("model-server")
	cfg.Registry = registry
	_ = resilience.NewClient(cfg)

	registry.Unregister("model-server")

	assert.Equal(t, 0, registry.Len())
	assert.Nil(t, registry.Health("model-server"))
}

func TestRegistry_TracksCallOutcomes(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	cfg := fastConfig("model-server", 0)
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	call := func() {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
		require.NoError(t, err)
		resp, _ := client.Do(req)
		if resp != nil {
			resp.Body.Close()
		}
	}

	call()
	health := registry.Health("model-server")
	require.NotNil(t, health.LastFailureAt)
	assert.Nil(t, health.LastSuccessAt)
	assert.Contains(t, health.LastError, "Bad Gateway")

	fail.Store(false)
	call()
	health = registry.Health("model-server")
	assert.NotNil(t, health.LastSuccessAt)
}

func TestRegistry_UnknownNamesIgnored(t *testing.T) {
	registry := resilience.NewRegistry()

	registry.RecordSuccess("missing")
	registry.RecordFailure("missing", errors.New("boom"))

	assert.Nil(t, registry.Health("missing"))
}

func TestRegistry_SnapshotSorted(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"openweathermap", "model-server"} {
		cfg := resilience.DefaultClientConfig(name)
		cfg.Registry = registry
		_ = resilience.NewClient(cfg)
	}

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "model-server", snapshot[0].Name)
	assert.Equal(t, "openweathermap", snapshot[1].Name)
}

func TestUpstreamHealth_Status(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		want  string
	}{
		{gobreaker.StateClosed, resilience.StatusHealthy},
		{gobreaker.StateHalfOpen, resilience.StatusDegraded},
		{gobreaker.StateOpen, resilience.StatusUnhealthy},
	}
	for _, tt := range tests {
		h := resilience.UpstreamHealth{CircuitState: tt.state}
		assert.Equal(t, tt.want, h.Status())
	}
}
