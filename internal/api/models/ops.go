package models

import "github.com/airadvisor/airadvisor/internal/regression"

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status                 HealthStatus      `json:"status"`
	Time                   Timestamp         `json:"time"`
	DefaultPreset          string            `json:"defaultPreset"`
	Model                  *regression.Info  `json:"model,omitempty"`
	PollutantModel         *regression.Info  `json:"pollutantModel,omitempty"`
	Subsystems             []SubsystemStatus `json:"subsystems"`
	Providers              []ProviderStatus  `json:"providers"`
	ActiveDegradationFlags []string          `json:"activeDegradationFlags,omitempty"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	Requests      uint32       `json:"requests"`
	Failures      uint32       `json:"consecutiveFailures"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
