package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const domainMeterName = "github.com/airadvisor/airadvisor/internal/telemetry"

// Estimator kinds used as the "estimator.kind" attribute.
const (
	KindFormula       = "formula"
	KindModelWeather  = "model_weather"
	KindModelVector   = "model_pollutant_vector"
	KindLiveWeather   = "model_live_weather"
	KindWorkerWeather = "worker_weather"

	KindLivePollutants = "formula_live_pollutants"
)

// DomainMetrics records estimator and classifier activity.
type DomainMetrics struct {
	estimates       metric.Int64Counter
	estimateLatency metric.Float64Histogram
	classifications metric.Int64Counter
	inferenceErrors metric.Int64Counter
}

// NewDomainMetrics creates the domain instruments on the given meter provider.
// A nil provider uses the global one.
func NewDomainMetrics(mp metric.MeterProvider) (*DomainMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(domainMeterName)

	estimates, err := meter.Int64Counter(
		"aqi.estimate.total",
		metric.WithDescription("Number of AQI estimates produced"),
		metric.WithUnit("{estimate}"),
	)
	if err != nil {
		return nil, err
	}

	estimateLatency, err := meter.Float64Histogram(
		"aqi.estimate.duration",
		metric.WithDescription("Duration of AQI estimation in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	classifications, err := meter.Int64Counter(
		"advisory.classification.total",
		metric.WithDescription("Number of health advisories issued"),
		metric.WithUnit("{advisory}"),
	)
	if err != nil {
		return nil, err
	}

	inferenceErrors, err := meter.Int64Counter(
		"aqi.inference.errors",
		metric.WithDescription("Number of failed model inferences"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &DomainMetrics{
		estimates:       estimates,
		estimateLatency: estimateLatency,
		classifications: classifications,
		inferenceErrors: inferenceErrors,
	}, nil
}

// RecordEstimate records one estimate attempt. Failed attempts also count
// toward aqi.inference.errors.
func (m *DomainMetrics) RecordEstimate(ctx context.Context, kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("estimator.kind", kind),
		attribute.Bool("error", err != nil),
	)
	m.estimates.Add(ctx, 1, attrs)
	m.estimateLatency.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.inferenceErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("estimator.kind", kind)))
	}
}

// RecordClassification records an issued advisory.
func (m *DomainMetrics) RecordClassification(ctx context.Context, preset string, level int) {
	if m == nil {
		return
	}
	m.classifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("advisory.preset", preset),
		attribute.Int("advisory.level", level),
	))
}
