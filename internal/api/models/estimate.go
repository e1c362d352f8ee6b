package models

import (
	"github.com/airadvisor/airadvisor/internal/advisory"
	"github.com/airadvisor/airadvisor/internal/airquality"
	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/assessment"
	"github.com/airadvisor/airadvisor/internal/regression"
)

// Estimation methods for pollutant readings.
const (
	MethodFormula = assessment.MethodFormula
	MethodModel   = assessment.MethodModel
)

// PollutantEstimateRequest is the body of POST /v1/estimates/pollutants.
// Concentrations are pointers so a missing field can be told apart from zero.
type PollutantEstimateRequest struct {
	CO      *float64          `json:"co"`
	NO2     *float64          `json:"no2"`
	PM25    *float64          `json:"pm2_5"`
	SO2     *float64          `json:"so2"`
	O3      *float64          `json:"o3"`
	Method  string            `json:"method,omitempty"`
	Preset  string            `json:"preset,omitempty"`
	Profile *advisory.Profile `json:"profile,omitempty"`
}

// Reading converts the request into a reading, reporting every missing or
// negative concentration.
func (r *PollutantEstimateRequest) Reading() (aqi.PollutantReading, []FieldError) {
	var errs []FieldError
	get := func(field string, v *float64) float64 {
		switch {
		case v == nil:
			errs = append(errs, FieldError{Field: field, Message: "is required", Code: CodeRequired})
			return 0
		case *v < 0:
			errs = append(errs, FieldError{Field: field, Message: "must not be negative", Code: CodeOutOfRange})
		}
		return *v
	}
	reading := aqi.PollutantReading{
		CO:   get("co", r.CO),
		NO2:  get("no2", r.NO2),
		PM25: get("pm2_5", r.PM25),
		SO2:  get("so2", r.SO2),
		O3:   get("o3", r.O3),
	}
	return reading, errs
}

// Contribution is one pollutant's weighted share of a formula estimate.
type Contribution struct {
	Pollutant     string  `json:"pollutant"`
	Concentration float64 `json:"concentration"`
	Weight        float64 `json:"weight"`
	Value         float64 `json:"value"`
}

// NewContributions converts formula contributions for the wire.
func NewContributions(cs []aqi.Contribution) []Contribution {
	out := make([]Contribution, len(cs))
	for i, c := range cs {
		out[i] = Contribution{
			Pollutant:     string(c.Pollutant),
			Concentration: c.Concentration,
			Weight:        c.Weight,
			Value:         c.Value,
		}
	}
	return out
}

// PollutantEstimateResponse is returned by POST /v1/estimates/pollutants.
type PollutantEstimateResponse struct {
	AQI           float64           `json:"aqi"`
	Method        string            `json:"method"`
	Contributions []Contribution    `json:"contributions,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
	Advisory      advisory.Advisory `json:"advisory"`
}

// WeatherEstimateRequest is the body of POST /v1/estimates/weather.
type WeatherEstimateRequest struct {
	T       *float64          `json:"t"`
	TM      *float64          `json:"t_max"`
	Tm      *float64          `json:"t_min"`
	SLP     *float64          `json:"slp"`
	H       *float64          `json:"h"`
	VV      *float64          `json:"vv"`
	V       *float64          `json:"v"`
	VM      *float64          `json:"vm"`
	Preset  string            `json:"preset,omitempty"`
	Profile *advisory.Profile `json:"profile,omitempty"`
}

// Reading converts the request into a reading, reporting every missing field.
func (r *WeatherEstimateRequest) Reading() (aqi.WeatherReading, []FieldError) {
	var errs []FieldError
	get := func(field string, v *float64) float64 {
		if v == nil {
			errs = append(errs, FieldError{Field: field, Message: "is required", Code: CodeRequired})
			return 0
		}
		return *v
	}
	reading := aqi.WeatherReading{
		T:   get("t", r.T),
		TM:  get("t_max", r.TM),
		Tm:  get("t_min", r.Tm),
		SLP: get("slp", r.SLP),
		H:   get("h", r.H),
		VV:  get("vv", r.VV),
		V:   get("v", r.V),
		VM:  get("vm", r.VM),
	}
	return reading, errs
}

// WeatherEstimateResponse is returned by the weather estimate endpoints.
type WeatherEstimateResponse struct {
	AQI      float64            `json:"aqi"`
	Model    regression.Info    `json:"model"`
	Reading  aqi.WeatherReading `json:"reading"`
	Advisory advisory.Advisory  `json:"advisory"`
}

// LiveWeatherEstimateRequest is the body of POST /v1/estimates/weather:live.
type LiveWeatherEstimateRequest struct {
	Point
	Preset  string            `json:"preset,omitempty"`
	Profile *advisory.Profile `json:"profile,omitempty"`
}

// LiveWeatherEstimateResponse adds the observation source to a weather estimate.
type LiveWeatherEstimateResponse struct {
	WeatherEstimateResponse
	Location   Point     `json:"location"`
	Provider   string    `json:"provider"`
	Condition  string    `json:"condition,omitempty"`
	ObservedAt Timestamp `json:"observedAt"`
}

// LivePollutantEstimateRequest is the body of
// POST /v1/estimates/pollutants:live.
type LivePollutantEstimateRequest struct {
	Point
	Preset  string            `json:"preset,omitempty"`
	Profile *advisory.Profile `json:"profile,omitempty"`
}

// LivePollutantEstimateResponse is a formula estimate over concentrations
// interpolated from nearby monitoring stations.
type LivePollutantEstimateResponse struct {
	PollutantEstimateResponse
	Location   Point                           `json:"location"`
	Reading    aqi.PollutantReading            `json:"reading"`
	Missing    []string                        `json:"missing,omitempty"`
	Confidence airquality.Confidence           `json:"confidence"`
	Pollutants []*airquality.PollutantEstimate `json:"pollutants"`
	Provider   string                          `json:"provider"`
	FetchedAt  Timestamp                       `json:"fetchedAt"`
}

// AdvisoryRequest is the body of POST /v1/advisories.
type AdvisoryRequest struct {
	AQI     *float64          `json:"aqi"`
	Preset  string            `json:"preset,omitempty"`
	Profile *advisory.Profile `json:"profile,omitempty"`
}

// PredictResponse is the legacy /predict payload.
type PredictResponse struct {
	AQI float64 `json:"aqi"`
}

// HealthImpactResponse is the legacy /predict_health payload.
type HealthImpactResponse struct {
	ImpactLevel     string   `json:"impact_level"`
	RiskDescription string   `json:"risk_description"`
	Recommendations []string `json:"recommendations"`
}

// Field error codes.
const (
	CodeRequired   = "REQUIRED"
	CodeInvalid    = "INVALID"
	CodeOutOfRange = "OUT_OF_RANGE"
	CodeUnknown    = "UNKNOWN"
	CodeMismatch   = "FEATURE_MISMATCH"
)
