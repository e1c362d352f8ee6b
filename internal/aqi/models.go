// Package aqi estimates Air Quality Index values from pollutant and weather readings.
package aqi

import (
	"errors"
	"fmt"
)

// Estimation errors.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrFeatureMismatch = errors.New("feature count mismatch")
)

// InputError describes a malformed, missing, or incompatible input field.
// It always matches ErrInvalidInput with errors.Is.
type InputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *InputError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInvalidInput.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Pollutant represents an air pollutant measured for the formula estimator.
type Pollutant string

const (
	PollutantCO   Pollutant = "CO"
	PollutantNO2  Pollutant = "NO2"
	PollutantPM25 Pollutant = "PM2.5"
	PollutantSO2  Pollutant = "SO2"
	PollutantO3   Pollutant = "O3"
)

// AllPollutants returns the pollutants in formula order.
func AllPollutants() []Pollutant {
	return []Pollutant{PollutantCO, PollutantNO2, PollutantPM25, PollutantSO2, PollutantO3}
}

// PollutantReading holds raw pollutant concentrations.
type PollutantReading struct {
	CO   float64 `json:"co"`    // mg/m³
	NO2  float64 `json:"no2"`   // µg/m³
	PM25 float64 `json:"pm2_5"` // µg/m³
	SO2  float64 `json:"so2"`   // µg/m³
	O3   float64 `json:"o3"`    // µg/m³
}

// Get returns the concentration for a pollutant.
func (r PollutantReading) Get(p Pollutant) float64 {
	switch p {
	case PollutantCO:
		return r.CO
	case PollutantNO2:
		return r.NO2
	case PollutantPM25:
		return r.PM25
	case PollutantSO2:
		return r.SO2
	case PollutantO3:
		return r.O3
	default:
		return 0
	}
}

// PollutantVectorFeatures is the column order expected by pollutant regression models.
var PollutantVectorFeatures = []string{"PM2.5", "NO2", "CO", "SO2", "O3"}

// Vector returns the reading as a single feature row in PollutantVectorFeatures order.
func (r PollutantReading) Vector() []float64 {
	return []float64{r.PM25, r.NO2, r.CO, r.SO2, r.O3}
}

// TypicalMax is the upper end of the typical range for each pollutant. It is
// input guidance only and is never enforced by the estimators.
var TypicalMax = map[Pollutant]float64{
	PollutantCO:   10,
	PollutantNO2:  200,
	PollutantPM25: 500,
	PollutantSO2:  50,
	PollutantO3:   100,
}

// Warnings lists the fields that fall outside their typical range.
func (r PollutantReading) Warnings() []string {
	var warnings []string
	for _, p := range AllPollutants() {
		v := r.Get(p)
		switch {
		case v < 0:
			warnings = append(warnings, fmt.Sprintf("%s is negative (%.2f)", p, v))
		case v > TypicalMax[p]:
			warnings = append(warnings, fmt.Sprintf("%s exceeds typical maximum of %g (%.2f)", p, TypicalMax[p], v))
		}
	}
	return warnings
}

// WeatherReading holds meteorological observations used by the model estimator.
type WeatherReading struct {
	T   float64 `json:"t"`     // average temperature, °C
	TM  float64 `json:"t_max"` // maximum temperature, °C
	Tm  float64 `json:"t_min"` // minimum temperature, °C
	SLP float64 `json:"slp"`   // sea level pressure, hPa
	H   float64 `json:"h"`     // relative humidity, %
	VV  float64 `json:"vv"`    // visibility, km
	V   float64 `json:"v"`     // wind speed, km/h
	VM  float64 `json:"vm"`    // maximum wind speed, km/h
}

// WeatherFeatures is the column order expected by weather regression models.
var WeatherFeatures = []string{"T", "TM", "Tm", "SLP", "H", "VV", "V", "VM"}

// Vector returns the reading as a single feature row in WeatherFeatures order.
func (r WeatherReading) Vector() []float64 {
	return []float64{r.T, r.TM, r.Tm, r.SLP, r.H, r.VV, r.V, r.VM}
}
