package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airadvisor/airadvisor/internal/advisory"
	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/assessment"
	"github.com/airadvisor/airadvisor/internal/regression"
	"github.com/airadvisor/airadvisor/internal/worker"
)

// AQI = 2*T + 10
const weatherModelYAML = `
name: weather-test
version: "1"
kind: linear
features:
  - {name: T}
  - {name: TM}
  - {name: Tm}
  - {name: SLP}
  - {name: H}
  - {name: VV}
  - {name: V}
  - {name: VM}
coefficients: [2, 0, 0, 0, 0, 0, 0, 0]
intercept: 10
`

// AQI = PM2.5 + 2*NO2 + 5
const pollutantModelYAML = `
name: pollutant-test
version: "1"
kind: linear
features:
  - {name: PM2.5}
  - {name: NO2}
  - {name: CO}
  - {name: SO2}
  - {name: O3}
coefficients: [1, 2, 0, 0, 0]
intercept: 5
`

type fakePublisher struct {
	mu      sync.Mutex
	results []*worker.Result
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, r *worker.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.results = append(p.results, r)
	return nil
}

func newHolder(t *testing.T, withModel bool) *regression.Holder {
	t.Helper()
	var m *regression.LinearModel
	if withModel {
		var err error
		m, err = regression.Parse([]byte(weatherModelYAML))
		require.NoError(t, err)
	}
	h, err := regression.NewHolder(m, aqi.WeatherFeatures)
	require.NoError(t, err)
	return h
}

func newPollutantHolder(t *testing.T) *regression.Holder {
	t.Helper()
	m, err := regression.Parse([]byte(pollutantModelYAML))
	require.NoError(t, err)
	h, err := regression.NewHolder(m, aqi.PollutantVectorFeatures)
	require.NoError(t, err)
	return h
}

func newProcessor(t *testing.T, holder *regression.Holder, pub worker.Publisher) *worker.Processor {
	t.Helper()
	return buildProcessor(t, worker.ProcessorConfig{Holder: holder, Publisher: pub})
}

// buildProcessor wires an assessment service to the holders in cfg.
func buildProcessor(t *testing.T, cfg worker.ProcessorConfig) *worker.Processor {
	t.Helper()
	classifier, err := advisory.NewClassifier(advisory.ClassifierConfig{Logger: zerolog.Nop()})
	require.NoError(t, err)

	svcCfg := assessment.Config{
		Classifier: classifier,
		Logger:     zerolog.Nop(),
	}
	if cfg.Holder != nil {
		svcCfg.Predictor = cfg.Holder
	}
	if cfg.PollutantHolder != nil {
		svcCfg.PollutantPredictor = cfg.PollutantHolder
	}
	svc, err := assessment.NewService(svcCfg)
	require.NoError(t, err)

	cfg.Service = svc
	cfg.Concurrency = 2
	cfg.Logger = zerolog.Nop()
	p, err := worker.NewProcessor(cfg)
	require.NoError(t, err)
	return p
}

func encode(t *testing.T, msg worker.Message) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func TestNewProcessor_RequiresService(t *testing.T) {
	_, err := worker.NewProcessor(worker.ProcessorConfig{})
	assert.Error(t, err)
}

func TestProcess_AssessmentBatch(t *testing.T) {
	p := newProcessor(t, newHolder(t, true), nil)

	result, err := p.Process(context.Background(), &worker.Message{
		JobType: worker.JobAssessment,
		JobID:   "batch-1",
		Assessments: []worker.AssessmentRequest{
			{
				ID:         "a",
				Kind:       worker.KindPollutants,
				Pollutants: &aqi.PollutantReading{CO: 1, NO2: 10, PM25: 20, SO2: 5, O3: 10},
			},
			{
				ID:      "b",
				Kind:    worker.KindWeather,
				Weather: &aqi.WeatherReading{T: 10, TM: 15, Tm: 5, SLP: 1013, H: 60, VV: 5, V: 10, VM: 20},
			},
			{ID: "c", Kind: worker.KindPollutants},
			{ID: "d", Kind: "satellite"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "batch-1", result.JobID)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Assessments, 4)

	// Results keep request order regardless of completion order.
	a, b, c, d := result.Assessments[0], result.Assessments[1], result.Assessments[2], result.Assessments[3]
	assert.Equal(t, "a", a.ID)
	assert.InDelta(t, 38.0, a.AQI, 1e-9)
	require.NotNil(t, a.Advisory)
	assert.Empty(t, a.Error)

	assert.Equal(t, "b", b.ID)
	assert.InDelta(t, 30.0, b.AQI, 1e-9)
	require.NotNil(t, b.Advisory)

	assert.Equal(t, "pollutants reading is required", c.Error)
	assert.Nil(t, c.Advisory)
	assert.Contains(t, d.Error, "unknown assessment kind")
}

func TestProcess_AssessmentItemErrorsDoNotFailJob(t *testing.T) {
	p := newProcessor(t, newHolder(t, true), nil)

	result, err := p.Process(context.Background(), &worker.Message{
		JobType: worker.JobAssessment,
		Assessments: []worker.AssessmentRequest{
			{ID: "bad-method", Kind: worker.KindPollutants, Pollutants: &aqi.PollutantReading{PM25: 10}, Method: "guess"},
			{ID: "bad-preset", Kind: worker.KindPollutants, Pollutants: &aqi.PollutantReading{PM25: 10}, Preset: "seven-tier"},
			{ID: "no-provider", Kind: worker.KindLiveWeather, Location: &worker.Point{Lat: 52.37, Lon: 4.9}},
			{ID: "no-stations", Kind: worker.KindLivePollutants, Location: &worker.Point{Lat: 52.37, Lon: 4.9}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 4, result.Failed)
	for _, r := range result.Assessments {
		assert.NotEmpty(t, r.Error, r.ID)
	}
}

func TestProcess_EmptyAssessmentBatchIsMalformed(t *testing.T) {
	p := newProcessor(t, newHolder(t, true), nil)

	_, err := p.Process(context.Background(), &worker.Message{JobType: worker.JobAssessment})
	require.ErrorIs(t, err, worker.ErrMalformedMessage)
	assert.False(t, worker.Retryable(err))
}

func TestProcess_UnknownJob(t *testing.T) {
	p := newProcessor(t, newHolder(t, true), nil)

	_, err := p.Process(context.Background(), &worker.Message{JobType: "provider_refresh"})
	require.ErrorIs(t, err, worker.ErrUnknownJob)
	assert.False(t, worker.Retryable(err))
}

func TestProcess_ModelReload(t *testing.T) {
	dir := t.TempDir()
	holder := newHolder(t, true)
	p := buildProcessor(t, worker.ProcessorConfig{Holder: holder, ModelDir: dir})

	path := filepath.Join(dir, "model.yaml")
	v2 := strings.Replace(weatherModelYAML, `version: "1"`, `version: "2"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(v2), 0o600))

	result, err := p.Process(context.Background(), &worker.Message{
		JobType:   worker.JobModelReload,
		ModelPath: path,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Model)
	assert.Equal(t, "2", result.Model.Version)
	assert.Equal(t, "2", holder.Info().Version)
	assert.Equal(t, int64(1), p.Stats().ModelReloads)
}

func TestProcess_ModelReload_PollutantSlot(t *testing.T) {
	dir := t.TempDir()
	weatherHolder := newHolder(t, true)
	pollutantHolder := newPollutantHolder(t)
	p := buildProcessor(t, worker.ProcessorConfig{
		Holder:          weatherHolder,
		PollutantHolder: pollutantHolder,
		ModelDir:        dir,
	})

	v2 := strings.Replace(pollutantModelYAML, `version: "1"`, `version: "2"`, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pollutant.yaml"), []byte(v2), 0o600))

	result, err := p.Process(context.Background(), &worker.Message{
		JobType:   worker.JobModelReload,
		Model:     worker.ModelPollutant,
		ModelPath: "pollutant.yaml",
	})
	require.NoError(t, err)
	assert.Equal(t, "pollutant-test", result.Model.Name)
	assert.Equal(t, "2", pollutantHolder.Info().Version)
	assert.Equal(t, "1", weatherHolder.Info().Version)
}

func TestProcess_ModelReload_SlotRejectsOtherSchema(t *testing.T) {
	dir := t.TempDir()
	p := buildProcessor(t, worker.ProcessorConfig{PollutantHolder: newPollutantHolder(t), ModelDir: dir})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weather.yaml"), []byte(weatherModelYAML), 0o600))

	_, err := p.Process(context.Background(), &worker.Message{
		JobType:   worker.JobModelReload,
		Model:     worker.ModelPollutant,
		ModelPath: "weather.yaml",
	})
	require.ErrorIs(t, err, aqi.ErrFeatureMismatch)
	assert.False(t, worker.Retryable(err))
}

func TestProcess_ModelReloadFailures(t *testing.T) {
	dir := t.TempDir()
	p := buildProcessor(t, worker.ProcessorConfig{Holder: newHolder(t, true), ModelDir: dir})

	t.Run("no path", func(t *testing.T) {
		_, err := p.Process(context.Background(), &worker.Message{JobType: worker.JobModelReload})
		assert.ErrorIs(t, err, worker.ErrReloadDisabled)
	})

	t.Run("no pollutant holder", func(t *testing.T) {
		_, err := p.Process(context.Background(), &worker.Message{JobType: worker.JobModelReload, Model: worker.ModelPollutant})
		assert.ErrorIs(t, err, worker.ErrReloadDisabled)
	})

	t.Run("unknown slot is dropped", func(t *testing.T) {
		_, err := p.Process(context.Background(), &worker.Message{JobType: worker.JobModelReload, Model: "traffic"})
		require.ErrorIs(t, err, worker.ErrMalformedMessage)
		assert.False(t, worker.Retryable(err))
	})

	t.Run("missing file is retried", func(t *testing.T) {
		_, err := p.Process(context.Background(), &worker.Message{
			JobType:   worker.JobModelReload,
			ModelPath: "absent.yaml",
		})
		require.Error(t, err)
		assert.True(t, worker.Retryable(err))
	})

	t.Run("unsupported kind is dropped", func(t *testing.T) {
		path := filepath.Join(dir, "forest.yaml")
		bad := strings.Replace(weatherModelYAML, "kind: linear", "kind: forest", 1)
		require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))

		_, err := p.Process(context.Background(), &worker.Message{JobType: worker.JobModelReload, ModelPath: path})
		require.ErrorIs(t, err, worker.ErrMalformedMessage)
		assert.False(t, worker.Retryable(err))
	})
}

func TestProcess_ModelReload_ConfinedToModelDir(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(outside, []byte(weatherModelYAML), 0o600))

	holder := newHolder(t, true)
	p := buildProcessor(t, worker.ProcessorConfig{Holder: holder, ModelDir: dir})

	for _, path := range []string{outside, "../model.yaml", filepath.Join(dir, "..", "model.yaml"), "/etc/passwd", "."} {
		t.Run(path, func(t *testing.T) {
			_, err := p.Process(context.Background(), &worker.Message{JobType: worker.JobModelReload, ModelPath: path})
			require.ErrorIs(t, err, worker.ErrMalformedMessage)
			assert.False(t, worker.Retryable(err))
		})
	}
	assert.Equal(t, int64(0), p.Stats().ModelReloads)

	t.Run("overrides disabled without a directory", func(t *testing.T) {
		p := buildProcessor(t, worker.ProcessorConfig{Holder: holder})
		_, err := p.Process(context.Background(), &worker.Message{JobType: worker.JobModelReload, ModelPath: outside})
		require.ErrorIs(t, err, worker.ErrMalformedMessage)
	})
}

func TestProcess_PollutantModelAssessment(t *testing.T) {
	p := buildProcessor(t, worker.ProcessorConfig{Holder: newHolder(t, true), PollutantHolder: newPollutantHolder(t)})

	result, err := p.Process(context.Background(), &worker.Message{
		JobType: worker.JobAssessment,
		Assessments: []worker.AssessmentRequest{
			{ID: "m", Kind: worker.KindPollutants, Method: assessment.MethodModel, Pollutants: &aqi.PollutantReading{PM25: 100, NO2: 30}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Succeeded, result.Assessments[0].Error)
	assert.InDelta(t, 165.0, result.Assessments[0].AQI, 1e-9)
	assert.Equal(t, "Moderate", result.Assessments[0].Advisory.Label)
}

func TestProcess_HealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		p := newProcessor(t, newHolder(t, true), nil)
		result, err := p.Process(context.Background(), &worker.Message{JobType: worker.JobHealthCheck})
		require.NoError(t, err)
		require.NotNil(t, result.Health)
		assert.True(t, result.Health.ModelAvailable)
		assert.False(t, result.Health.PollutantModelAvailable)
	})

	t.Run("no model", func(t *testing.T) {
		p := newProcessor(t, newHolder(t, false), nil)
		_, err := p.Process(context.Background(), &worker.Message{JobType: worker.JobHealthCheck})
		require.ErrorIs(t, err, worker.ErrUnhealthy)
		assert.True(t, worker.Retryable(err))
	})
}

func TestHandle_PublishesResult(t *testing.T) {
	pub := &fakePublisher{}
	p := newProcessor(t, newHolder(t, true), pub)

	err := p.Handle(context.Background(), encode(t, worker.Message{
		JobType: worker.JobAssessment,
		JobID:   "job-42",
		Assessments: []worker.AssessmentRequest{
			{ID: "x", Kind: worker.KindPollutants, Pollutants: &aqi.PollutantReading{PM25: 150}, Preset: "five-tier"},
		},
	}))
	require.NoError(t, err)

	require.Len(t, pub.results, 1)
	got := pub.results[0]
	assert.Equal(t, "job-42", got.JobID)
	assert.Equal(t, worker.JobAssessment, got.JobType)
	require.Len(t, got.Assessments, 1)
	assert.InDelta(t, 120.0, got.Assessments[0].AQI, 1e-9)
	assert.Equal(t, 3, got.Assessments[0].Advisory.Level)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestHandle_MalformedJSON(t *testing.T) {
	pub := &fakePublisher{}
	p := newProcessor(t, newHolder(t, true), pub)

	err := p.Handle(context.Background(), []byte(`{"job_type":`))
	require.ErrorIs(t, err, worker.ErrMalformedMessage)
	assert.False(t, worker.Retryable(err))
	assert.Empty(t, pub.results)
}

func TestHandle_PublishFailureIsRetryable(t *testing.T) {
	pub := &fakePublisher{err: errors.New("topic unavailable")}
	p := newProcessor(t, newHolder(t, true), pub)

	err := p.Handle(context.Background(), encode(t, worker.Message{JobType: worker.JobHealthCheck}))
	require.Error(t, err)
	assert.True(t, worker.Retryable(err))
}

func TestStats(t *testing.T) {
	p := newProcessor(t, newHolder(t, true), nil)
	ctx := context.Background()

	_, _ = p.Process(ctx, &worker.Message{
		JobType: worker.JobAssessment,
		Assessments: []worker.AssessmentRequest{
			{ID: "ok", Kind: worker.KindPollutants, Pollutants: &aqi.PollutantReading{PM25: 10}},
			{ID: "bad", Kind: worker.KindWeather},
		},
	})
	_, _ = p.Process(ctx, &worker.Message{JobType: "nope"})

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.JobsProcessed)
	assert.Equal(t, int64(1), stats.AssessmentsOK)
	assert.Equal(t, int64(1), stats.AssessmentsFailed)
	assert.False(t, stats.LastJobAt.IsZero())
}

func TestRetryable(t *testing.T) {
	assert.False(t, worker.Retryable(nil))
	assert.False(t, worker.Retryable(worker.ErrUnknownJob))
	assert.True(t, worker.Retryable(worker.ErrUnhealthy))
	assert.True(t, worker.Retryable(context.DeadlineExceeded))
}
