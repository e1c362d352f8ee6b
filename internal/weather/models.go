// Package weather fetches current conditions from a weather provider and maps
// them onto the meteorological features used by the AQI model.
package weather

import (
	"errors"
	"time"

	"github.com/airadvisor/airadvisor/internal/aqi"
)

// Weather errors.
var (
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
)

// Observation represents current weather at a point.
type Observation struct {
	Lat float64
	Lon float64

	// Temperatures in Celsius
	Temperature float64
	TempMin     float64
	TempMax     float64

	// Humidity percentage (0-100)
	Humidity float64

	// Wind data in m/s. WindGust is 0 when the provider does not report it.
	WindSpeed     float64
	WindDirection float64
	WindGust      float64

	// Sea-level pressure in hPa
	Pressure float64

	Condition   Condition
	Description string

	// Visibility in meters
	Visibility float64

	ObservedAt time.Time
	FetchedAt  time.Time
}

// Condition represents the general weather condition.
type Condition string

const (
	ConditionClear        Condition = "CLEAR"
	ConditionClouds       Condition = "CLOUDS"
	ConditionRain         Condition = "RAIN"
	ConditionDrizzle      Condition = "DRIZZLE"
	ConditionThunderstorm Condition = "THUNDERSTORM"
	ConditionSnow         Condition = "SNOW"
	ConditionMist         Condition = "MIST"
	ConditionFog          Condition = "FOG"
	ConditionHaze         Condition = "HAZE"
	ConditionUnknown      Condition = "UNKNOWN"
)

const msToKmh = 3.6

// Reading converts the observation into the model's weather features:
// visibility in km, wind speeds in km/h. Max wind falls back to the mean
// speed when no gust was reported.
func (o *Observation) Reading() aqi.WeatherReading {
	gust := o.WindGust
	if gust < o.WindSpeed {
		gust = o.WindSpeed
	}
	return aqi.WeatherReading{
		T:   o.Temperature,
		TM:  o.TempMax,
		Tm:  o.TempMin,
		SLP: o.Pressure,
		H:   o.Humidity,
		VV:  o.Visibility / 1000,
		V:   o.WindSpeed * msToKmh,
		VM:  gust * msToKmh,
	}
}
