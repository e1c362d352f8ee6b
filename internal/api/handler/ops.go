package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/airadvisor/airadvisor/internal/api/models"
	"github.com/airadvisor/airadvisor/internal/api/response"
	"github.com/airadvisor/airadvisor/internal/assessment"
	"github.com/airadvisor/airadvisor/internal/featureflags"
	"github.com/airadvisor/airadvisor/internal/provider/resilience"
	"github.com/airadvisor/airadvisor/internal/regression"
)

// pingTimeout bounds dependency checks in readiness and status.
const pingTimeout = 2 * time.Second

// Pinger is implemented by dependencies that can be health-checked, such as
// *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsConfig holds the dependencies of OpsHandler. Everything except Version
// and BuildTime may be nil.
type OpsConfig struct {
	Version   string
	BuildTime string
	Service   *assessment.Service
	Flags     *featureflags.Service
	Registry  *resilience.Registry
	Database  Pinger
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	service   *assessment.Service
	flags     *featureflags.Service
	registry  *resilience.Registry
	database  Pinger
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		service:   cfg.Service,
		flags:     cfg.Flags,
		registry:  cfg.Registry,
		database:  cfg.Database,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Only the
// database gates readiness; a missing model degrades but does not fail it.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if db := h.databaseStatus(r.Context()); db != nil && db.Status == models.HealthStatusFail {
		health.Status = models.HealthStatusFail
		health.Details = map[string]any{"database": *db.Detail}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - model, subsystem, and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}

	if h.service != nil {
		status.DefaultPreset = h.service.DefaultPreset(ctx)
		status.Model = h.service.ModelInfo()
		status.PollutantModel = h.service.PollutantModelInfo()
		status.Subsystems = append(status.Subsystems,
			h.modelStatus(ctx, "model", status.Model, h.service.ModelAvailable(ctx)),
			h.modelStatus(ctx, "pollutant-model", status.PollutantModel, h.service.PollutantModelAvailable(ctx)),
		)
	}

	if db := h.databaseStatus(ctx); db != nil {
		status.Subsystems = append(status.Subsystems, *db)
	}

	if h.registry != nil {
		for _, u := range h.registry.Snapshot() {
			status.Providers = append(status.Providers, newProviderStatus(u))
		}
	}

	if h.flags.IsModelEstimatorDisabled(ctx) {
		status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, featureflags.FlagDisableModelEstimator)
	}

	status.Status = overallStatus(status)
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) modelStatus(ctx context.Context, name string, info *regression.Info, available bool) models.SubsystemStatus {
	s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
	switch {
	case info == nil:
		s.Status = models.HealthStatusDegraded
		s.Detail = strPtr("no model configured")
	case h.flags.IsModelEstimatorDisabled(ctx):
		s.Status = models.HealthStatusDegraded
		s.Detail = strPtr("disabled by feature flag")
	case !available:
		s.Status = models.HealthStatusFail
		s.Detail = strPtr("model not loaded")
	}
	return s
}

func (h *OpsHandler) databaseStatus(ctx context.Context) *models.SubsystemStatus {
	if h.database == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	s := &models.SubsystemStatus{Name: "database", Status: models.HealthStatusOK}
	if err := h.database.Ping(ctx); err != nil {
		s.Status = models.HealthStatusFail
		s.Detail = strPtr(err.Error())
	}
	return s
}

func newProviderStatus(u *resilience.UpstreamHealth) models.ProviderStatus {
	p := models.ProviderStatus{
		Provider:      u.Name,
		CircuitState:  u.CircuitState.String(),
		Requests:      u.Counts.Requests,
		Failures:      u.Counts.ConsecutiveFailures,
		LastSuccessAt: models.TimestampPtr(u.LastSuccessAt),
		LastFailureAt: models.TimestampPtr(u.LastFailureAt),
	}
	switch u.Status() {
	case resilience.StatusUnhealthy:
		p.Status = models.HealthStatusFail
	case resilience.StatusDegraded:
		p.Status = models.HealthStatusDegraded
	default:
		p.Status = models.HealthStatusOK
	}
	if u.LastError != "" {
		p.Message = strPtr(u.LastError)
	}
	return p
}

// overallStatus is FAIL if any subsystem fails, DEGRADED if anything else is
// not OK, and OK otherwise.
func overallStatus(s models.SystemStatus) models.HealthStatus {
	result := models.HealthStatusOK
	for _, sub := range s.Subsystems {
		if sub.Status == models.HealthStatusFail {
			return models.HealthStatusFail
		}
		if sub.Status != models.HealthStatusOK {
			result = models.HealthStatusDegraded
		}
	}
	for _, p := range s.Providers {
		if p.Status != models.HealthStatusOK {
			result = models.HealthStatusDegraded
		}
	}
	if len(s.ActiveDegradationFlags) > 0 {
		result = models.HealthStatusDegraded
	}
	return result
}

func strPtr(s string) *string {
	return &s
}
