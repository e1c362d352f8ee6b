package openweathermap_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airadvisor/airadvisor/internal/provider/resilience"
	"github.com/airadvisor/airadvisor/internal/weather"
	"github.com/airadvisor/airadvisor/internal/weather/openweathermap"
)

func testHTTPClient() *resilience.Client {
	cfg := resilience.DefaultClientConfig("test")
	cfg.MaxRetries = 0
	return resilience.NewClient(cfg)
}

func TestClient_GetCurrentWeather(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Equal(t, "28.613900", r.URL.Query().Get("lat"))
		assert.Equal(t, "77.209000", r.URL.Query().Get("lon"))
		assert.Equal(t, "****", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))

		response := map[string]any{
			"coord":   map[string]float64{"lat": 28.6139, "lon": 77.209},
			"weather": []map[string]any{{"id": 721, "main": "Haze", "description": "haze"}},
			"main": map[string]float64{
				"temp":      24.5,
				"temp_min":  22.0,
				"temp_max":  27.0,
				"pressure":  1009.0,
				"sea_level": 1011.0,
				"humidity":  60.0,
			},
			"visibility": 2500,
			"wind":       map[string]float64{"speed": 2.5, "deg": 300.0, "gust": 4.0},
			"dt":         time.Now().Unix(),
			"name":       "New Delhi",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     "****",
		BaseURL:    server.URL,
		HTTPClient: testHTTPClient(),
	})

	obs, err := client.GetCurrentWeather(context.Background(), 28.6139, 77.209)
	require.NoError(t, err)

	assert.Equal(t, 24.5, obs.Temperature)
	assert.Equal(t, 22.0, obs.TempMin)
	assert.Equal(t, 27.0, obs.TempMax)
	assert.Equal(t, 1011.0, obs.Pressure, "sea level pressure preferred")
	assert.Equal(t, 60.0, obs.Humidity)
	assert.Equal(t, 2500.0, obs.Visibility)
	assert.Equal(t, 2.5, obs.WindSpeed)
	assert.Equal(t, 4.0, obs.WindGust)
	assert.Equal(t, weather.ConditionHaze, obs.Condition)
	assert.Equal(t, "haze", obs.Description)

	r := obs.Reading()
	assert.InDelta(t, 2.5, r.VV, 1e-9)
	assert.InDelta(t, 9.0, r.V, 1e-9)
	assert.InDelta(t, 14.4, r.VM, 1e-9)
}

func TestClient_GetCurrentWeather_Conditions(t *testing.T) {
	conditions := []struct {
		owmMain  string
		expected weather.Condition
	}{
		{"Clear", weather.ConditionClear},
		{"Clouds", weather.ConditionClouds},
		{"Rain", weather.ConditionRain},
		{"Smoke", weather.ConditionHaze},
		{"Dust", weather.ConditionHaze},
		{"Mist", weather.ConditionMist},
		{"Unknown", weather.ConditionUnknown},
	}

	for _, tc := range conditions {
		t.Run(tc.owmMain, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				response := map[string]any{
					"coord":      map[string]float64{"lat": 19.07, "lon": 72.87},
					"weather":    []map[string]any{{"main": tc.owmMain, "description": "test"}},
					"main":       map[string]float64{"temp": 30.0, "humidity": 70.0, "pressure": 1008.0},
					"visibility": 6000,
					"wind":       map[string]float64{"speed": 4.0},
					"dt":         time.Now().Unix(),
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(response)
			}))
			defer server.Close()

			client := openweathermap.NewClient(openweathermap.ClientConfig{
				APIKey:     "****",
				BaseURL:    server.URL,
				HTTPClient: testHTTPClient(),
			})

			obs, err := client.GetCurrentWeather(context.Background(), 19.07, 72.87)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, obs.Condition)
			assert.Equal(t, 1008.0, obs.Pressure)
		})
	}
}

func TestClient_GetCurrentWeather_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     "****",
		BaseURL:    server.URL,
		HTTPClient: testHTTPClient(),
	})

	_, err := client.GetCurrentWeather(context.Background(), 28.61, 77.21)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_GetCurrentWeather_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     "****",
		BaseURL:    server.URL,
		HTTPClient: testHTTPClient(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetCurrentWeather(ctx, 28.61, 77.21)
	require.Error(t, err)
}

func TestClient_Name(t *testing.T) {
	client := openweathermap.NewClient(openweathermap.ClientConfig{APIKey: "****"})
	assert.Equal(t, "openweathermap", client.Name())
}
