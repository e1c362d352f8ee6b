package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/airadvisor/airadvisor/internal/advisory"
	"github.com/airadvisor/airadvisor/internal/airquality"
	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/assessment"
	"github.com/airadvisor/airadvisor/internal/featureflags"
	"github.com/airadvisor/airadvisor/internal/regression"
	"github.com/airadvisor/airadvisor/internal/weather"
)

// AQI = 2*T + 10
const weatherModelYAML = `
name: weather-test
version: "3"
kind: linear
features:
  - {name: T, unit: "°C"}
  - {name: TM, unit: "°C"}
  - {name: Tm, unit: "°C"}
  - {name: SLP, unit: hPa}
  - {name: H, unit: "%"}
  - {name: VV, unit: km}
  - {name: V, unit: km/h}
  - {name: VM, unit: km/h}
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

type stubProvider struct {
	obs *weather.Observation
	err error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) GetCurrentWeather(_ context.Context, lat, lon float64) (*weather.Observation, error) {
	if p.err != nil {
		return nil, p.err
	}
	obs := *p.obs
	obs.Lat, obs.Lon = lat, lon
	return &obs, nil
}

type fixture struct {
	holder    *regression.Holder
	pollutant aqi.Predictor
	flags     *featureflags.Service
	provider  *stubProvider
	stations  airquality.Provider
	service   *assessment.Service
}

type fixtureOption func(*fixture)

func withoutModel() fixtureOption {
	return func(f *fixture) {
		f.holder = nil
		f.pollutant = nil
	}
}

// withWeatherModelForPollutants binds the weather model to the pollutant
// slot.
func withWeatherModelForPollutants() fixtureOption {
	return func(f *fixture) { f.pollutant = f.holder }
}

func withProvider(p *stubProvider) fixtureOption {
	return func(f *fixture) { f.provider = p }
}

func withStations(p airquality.Provider) fixtureOption {
	return func(f *fixture) { f.stations = p }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	m, err := regression.Parse([]byte(weatherModelYAML))
	require.NoError(t, err)
	holder, err := regression.NewHolder(m, aqi.WeatherFeatures)
	require.NoError(t, err)

	pm, err := regression.Parse([]byte(pollutantModelYAML))
	require.NoError(t, err)
	pollutant, err := regression.NewHolder(pm, aqi.PollutantVectorFeatures)
	require.NoError(t, err)

	f := &fixture{
		holder:    holder,
		pollutant: pollutant,
		flags: featureflags.NewService(featureflags.ServiceConfig{
			Repository:   featureflags.NewInMemoryRepository(nil),
			Logger:       zerolog.Nop(),
			DefaultFlags: featureflags.DefaultFlags(""),
		}),
	}
	for _, opt := range opts {
		opt(f)
	}

	classifier, err := advisory.NewClassifier(advisory.ClassifierConfig{Logger: zerolog.Nop()})
	require.NoError(t, err)

	cfg := assessment.Config{
		Classifier: classifier,
		Flags:      f.flags,
		Logger:     zerolog.Nop(),
	}
	if f.holder != nil {
		cfg.Predictor = f.holder
	}
	if f.pollutant != nil {
		cfg.PollutantPredictor = f.pollutant
	}
	if f.provider != nil {
		cfg.Weather = weather.NewService(weather.ServiceConfig{Provider: f.provider, Logger: zerolog.Nop()})
	}

	if f.stations != nil {
		cfg.AirQuality = airquality.NewService(airquality.ServiceConfig{Provider: f.stations, Logger: zerolog.Nop()})
	}

	f.service, err = assessment.NewService(cfg)
	require.NoError(t, err)
	return f
}

func (f *fixture) setFlag(t *testing.T, key string, value any) {
	t.Helper()
	require.NoError(t, f.flags.SetFlags(context.Background(), []*featureflags.Flag{{Key: key, Value: value}}))
}

func doJSON(h http.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// multipartBody encodes form as multipart/form-data and returns the body and
// its Content-Type.
func multipartBody(t *testing.T, form url.Values) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, values := range form {
		for _, v := range values {
			require.NoError(t, mw.WriteField(key, v))
		}
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func doMultipart(t *testing.T, h http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, form)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func doForm(h http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// problem mirrors the fields of models.Problem the tests inspect.
type problem struct {
	Type   string `json:"type"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Errors []struct {
		Field string `json:"field"`
		Code  string `json:"code"`
	} `json:"errors"`
}

func (p problem) fields() []string {
	out := make([]string, len(p.Errors))
	for i, e := range p.Errors {
		out[i] = e.Field
	}
	return out
}
