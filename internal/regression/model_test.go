package regression_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/regression"
)

const pollutantModelYAML = `
name: pollutant-aqi
version: "1"
kind: linear
features:
  - {name: "PM2.5", unit: "µg/m³"}
  - {name: NO2, unit: "µg/m³"}
  - {name: CO, unit: "mg/m³"}
  - {name: SO2, unit: "µg/m³"}
  - {name: O3, unit: "µg/m³"}
coefficients: [0.8, 0.5, 5, 1.2, 0.6]
intercept: 0
`

func TestParse_LinearModel(t *testing.T) {
	m, err := regression.Parse([]byte(pollutantModelYAML))
	require.NoError(t, err)

	assert.Equal(t, "pollutant-aqi", m.Name())
	assert.Equal(t, "1", m.Version())
	assert.Equal(t, aqi.PollutantVectorFeatures, m.Features())

	got, err := m.Predict(context.Background(), []float64{50, 40, 10, 20, 30})
	require.NoError(t, err)
	assert.InDelta(t, 140.0, got, 1e-9)
}

func TestParse_JSONArtifact(t *testing.T) {
	doc := `{"name":"w","kind":"linear","features":[{"name":"a"},{"name":"b"}],"coefficients":[2,3],"intercept":1}`

	m, err := regression.Parse([]byte(doc))
	require.NoError(t, err)

	got, err := m.Predict(context.Background(), []float64{1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 6.0, got, 1e-9)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		artifact regression.Artifact
		mismatch bool
	}{
		{
			name:     "empty schema",
			artifact: regression.Artifact{Coefficients: []float64{}},
		},
		{
			name: "duplicate feature",
			artifact: regression.Artifact{
				Features:     regression.Schema{{Name: "a"}, {Name: "a"}},
				Coefficients: []float64{1, 2},
			},
		},
		{
			name: "unnamed feature",
			artifact: regression.Artifact{
				Features:     regression.Schema{{Name: ""}},
				Coefficients: []float64{1},
			},
		},
		{
			name: "coefficient count differs from schema",
			artifact: regression.Artifact{
				Features:     regression.Schema{{Name: "a"}, {Name: "b"}},
				Coefficients: []float64{1},
			},
			mismatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := regression.New(tt.artifact)
			require.Error(t, err)
			assert.True(t, errors.Is(err, aqi.ErrInvalidInput))
			assert.Equal(t, tt.mismatch, errors.Is(err, aqi.ErrFeatureMismatch))
		})
	}
}

func TestNew_UnsupportedKind(t *testing.T) {
	_, err := regression.New(regression.Artifact{
		Kind:         "forest",
		Features:     regression.Schema{{Name: "a"}},
		Coefficients: []float64{1},
	})
	assert.ErrorIs(t, err, regression.ErrUnsupportedKind)
}

func TestPredict_RowLengthMismatch(t *testing.T) {
	m, err := regression.Parse([]byte(pollutantModelYAML))
	require.NoError(t, err)

	_, err = m.Predict(context.Background(), []float64{1, 2, 3})
	assert.ErrorIs(t, err, aqi.ErrFeatureMismatch)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := regression.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHolder_RequiresSchema(t *testing.T) {
	m, err := regression.Parse([]byte(pollutantModelYAML))
	require.NoError(t, err)

	_, err = regression.NewHolder(m, aqi.WeatherFeatures)
	assert.ErrorIs(t, err, aqi.ErrFeatureMismatch)

	h, err := regression.NewHolder(m, aqi.PollutantVectorFeatures)
	require.NoError(t, err)
	assert.Same(t, m, h.Model())
}

func TestHolder_EmptyPredict(t *testing.T) {
	h, err := regression.NewHolder(nil, nil)
	require.NoError(t, err)

	assert.Nil(t, h.Features())
	_, err = h.Predict(context.Background(), []float64{1})
	assert.ErrorIs(t, err, regression.ErrNoModel)
}

func TestHolder_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pollutantModelYAML), 0o600))

	h, err := regression.NewHolder(nil, aqi.PollutantVectorFeatures)
	require.NoError(t, err)

	m, err := h.Reload(path)
	require.NoError(t, err)
	assert.Same(t, m, h.Model())

	// A model with the wrong schema leaves the current one in place.
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`features: [{name: a}]
coefficients: [1]`), 0o600))
	_, err = h.Reload(bad)
	assert.ErrorIs(t, err, aqi.ErrFeatureMismatch)
	assert.Same(t, m, h.Model())
}

func TestHolder_ConcurrentPredictAndSwap(t *testing.T) {
	m, err := regression.Parse([]byte(pollutantModelYAML))
	require.NoError(t, err)
	h, err := regression.NewHolder(m, aqi.PollutantVectorFeatures)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.Predict(context.Background(), []float64{50, 40, 10, 20, 30})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := h.Swap(m)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestHolder_Info(t *testing.T) {
	h, err := regression.NewHolder(nil, nil)
	require.NoError(t, err)

	info := h.Info()
	assert.False(t, info.Loaded)
	assert.Equal(t, regression.SourceFile, info.Source)

	m, err := regression.Parse([]byte(pollutantModelYAML))
	require.NoError(t, err)
	_, err = h.Swap(m)
	require.NoError(t, err)

	info = h.Info()
	assert.True(t, info.Loaded)
	assert.Equal(t, m.Name(), info.Name)
	assert.Equal(t, m.Version(), info.Version)
	assert.Equal(t, m.Features(), info.Features.Names())
}

func TestLoad_BundledWeatherModel(t *testing.T) {
	m, err := regression.Load(filepath.Join("..", "..", "configs", "models", "weather-linear.yaml"))
	require.NoError(t, err)
	require.NoError(t, m.Schema().Require(aqi.WeatherFeatures))

	h, err := regression.NewHolder(m, aqi.WeatherFeatures)
	require.NoError(t, err)
	assert.True(t, h.Info().Loaded)
}
