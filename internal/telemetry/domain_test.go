package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/airadvisor/airadvisor/internal/telemetry"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestDomainMetrics_RecordEstimate(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := telemetry.NewDomainMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordEstimate(ctx, telemetry.KindFormula, time.Millisecond, nil)
	m.RecordEstimate(ctx, telemetry.KindModelWeather, 2*time.Millisecond, nil)
	m.RecordEstimate(ctx, telemetry.KindModelWeather, time.Millisecond, errors.New("boom"))

	got := collect(t, reader)
	assert.Equal(t, int64(3), sumOf(t, got["aqi.estimate.total"]))
	assert.Equal(t, int64(1), sumOf(t, got["aqi.inference.errors"]))
	assert.Contains(t, got, "aqi.estimate.duration")
}

func TestDomainMetrics_RecordClassification(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := telemetry.NewDomainMetrics(mp)
	require.NoError(t, err)

	m.RecordClassification(context.Background(), "five-tier", 2)
	m.RecordClassification(context.Background(), "six-tier", 1)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["advisory.classification.total"]))
}

func TestDomainMetrics_NilSafe(t *testing.T) {
	var m *telemetry.DomainMetrics
	assert.NotPanics(t, func() {
		m.RecordEstimate(context.Background(), telemetry.KindFormula, time.Millisecond, nil)
		m.RecordClassification(context.Background(), "five-tier", 1)
	})
}
