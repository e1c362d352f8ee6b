// Package worker processes assessment jobs delivered over Pub/Sub and
// publishes their results.
package worker

import (
	"errors"
	"time"

	"github.com/airadvisor/airadvisor/internal/advisory"
	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/regression"
)

// Job types.
const (
	JobAssessment  = "assessment"
	JobModelReload = "model_reload"
	JobHealthCheck = "health_check"
)

// Assessment input kinds.
const (
	KindPollutants  = "pollutants"
	KindWeather     = "weather"
	KindLiveWeather = "live_weather"

	KindLivePollutants = "live_pollutants"
)

// Model slots named by model_reload jobs.
const (
	ModelWeather   = "weather"
	ModelPollutant = "pollutant"
)

// Job errors. Malformed and unknown messages are acknowledged; redelivery
// cannot fix them.
var (
	ErrMalformedMessage = errors.New("malformed job message")
	ErrUnknownJob       = errors.New("unknown job type")
	ErrUnhealthy        = errors.New("worker unhealthy")
	ErrReloadDisabled   = errors.New("model reload not available")
)

// Retryable reports whether a failed job should be redelivered.
func Retryable(err error) bool {
	return err != nil && !errors.Is(err, ErrMalformedMessage) && !errors.Is(err, ErrUnknownJob)
}

// Message is a job delivered to the worker.
type Message struct {
	JobType string `json:"job_type"`
	JobID   string `json:"job_id,omitempty"`

	// Assessments is the batch for assessment jobs.
	Assessments []AssessmentRequest `json:"assessments,omitempty"`

	// Model selects the slot for model_reload jobs. Empty means weather.
	Model string `json:"model,omitempty"`

	// ModelPath overrides the configured artifact for model_reload jobs. It
	// must resolve inside the configured model directory.
	ModelPath string `json:"model_path,omitempty"`
}

// Point is a geographic coordinate for live assessments.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AssessmentRequest is one reading to estimate and classify.
type AssessmentRequest struct {
	ID         string                `json:"id"`
	Kind       string                `json:"kind"`
	Pollutants *aqi.PollutantReading `json:"pollutants,omitempty"`
	Weather    *aqi.WeatherReading   `json:"weather,omitempty"`
	Location   *Point                `json:"location,omitempty"`
	Method     string                `json:"method,omitempty"`
	Preset     string                `json:"preset,omitempty"`
	Profile    *advisory.Profile     `json:"profile,omitempty"`
}

// AssessmentResult is the outcome of one AssessmentRequest. Error is set
// instead of AQI and Advisory when the item failed.
type AssessmentResult struct {
	ID       string             `json:"id"`
	Kind     string             `json:"kind"`
	AQI      float64            `json:"aqi"`
	Advisory *advisory.Advisory `json:"advisory,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	Missing  []string           `json:"missing,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// HealthReport summarises worker dependencies for health_check jobs.
type HealthReport struct {
	ModelAvailable          bool              `json:"modelAvailable"`
	PollutantModelAvailable bool              `json:"pollutantModelAvailable"`
	Upstreams               map[string]string `json:"upstreams,omitempty"`
}

// Result is published for every processed job.
type Result struct {
	JobID       string             `json:"job_id,omitempty"`
	JobType     string             `json:"job_type"`
	CompletedAt time.Time          `json:"completed_at"`
	Duration    time.Duration      `json:"duration_ns"`
	Assessments []AssessmentResult `json:"assessments,omitempty"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	Model       *regression.Info   `json:"model,omitempty"`
	Health      *HealthReport      `json:"health,omitempty"`
}
