// Package openweathermap implements weather.Provider against the
// OpenWeatherMap current-weather API.
package openweathermap

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/airadvisor/airadvisor/internal/provider/resilience"
	"github.com/airadvisor/airadvisor/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
)

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenWeatherMap API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetCurrentWeather fetches current weather for a location.
func (c *Client) GetCurrentWeather(ctx context.Context, lat, lon float64) (*weather.Observation, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	var resp currentWeatherResponse
	if err := c.httpClient.DoJSON(ctx, http.MethodGet, c.baseURL+"/weather?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("openweathermap current weather: %w", err)
	}

	c.logger.Debug().
		Float64("lat", lat).
		Float64("lon", lon).
		Str("station", resp.Name).
		Msg("fetched current weather")

	return toObservation(&resp), nil
}

func toObservation(resp *currentWeatherResponse) *weather.Observation {
	pressure := resp.Main.Pressure
	if resp.Main.SeaLevel > 0 {
		pressure = resp.Main.SeaLevel
	}

	obs := &weather.Observation{
		Lat:           resp.Coord.Lat,
		Lon:           resp.Coord.Lon,
		Temperature:   resp.Main.Temp,
		TempMin:       resp.Main.TempMin,
		TempMax:       resp.Main.TempMax,
		Humidity:      resp.Main.Humidity,
		WindSpeed:     resp.Wind.Speed,
		WindDirection: resp.Wind.Deg,
		WindGust:      resp.Wind.Gust,
		Pressure:      pressure,
		Visibility:    float64(resp.Visibility),
		ObservedAt:    time.Unix(resp.Dt, 0),
		FetchedAt:     time.Now(),
		Condition:     weather.ConditionUnknown,
	}

	if len(resp.Weather) > 0 {
		obs.Condition = mapCondition(resp.Weather[0].Main)
		obs.Description = resp.Weather[0].Description
	}

	return obs
}

func mapCondition(owmCondition string) weather.Condition {
	switch owmCondition {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionClouds
	case "Rain":
		return weather.ConditionRain
	case "Drizzle":
		return weather.ConditionDrizzle
	case "Thunderstorm":
		return weather.ConditionThunderstorm
	case "Snow":
		return weather.ConditionSnow
	case "Mist":
		return weather.ConditionMist
	case "Fog":
		return weather.ConditionFog
	case "Haze", "Smoke", "Dust", "Sand", "Ash", "Squall", "Tornado":
		return weather.ConditionHaze
	default:
		return weather.ConditionUnknown
	}
}

type currentWeatherResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		TempMin  float64 `json:"temp_min"`
		TempMax  float64 `json:"temp_max"`
		Pressure float64 `json:"pressure"`
		SeaLevel float64 `json:"sea_level"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Visibility int `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
		Gust  float64 `json:"gust"`
	} `json:"wind"`
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
}
