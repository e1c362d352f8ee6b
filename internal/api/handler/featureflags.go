package handler

import (
	"errors"
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"github.com/airadvisor/airadvisor/internal/api/middleware"
	"github.com/airadvisor/airadvisor/internal/api/models"
	"github.com/airadvisor/airadvisor/internal/api/response"
	"github.com/airadvisor/airadvisor/internal/featureflags"
)

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
	logger  zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service, logger zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{
		service: service,
		logger:  logger,
	}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags - list all feature flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.list(r))
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags - update feature flags.
// Updates are applied all-or-nothing; the full flag list is returned.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req featureflags.FlagUpdateRequest
	if !response.DecodeJSON(w, r, &req) {
		return
	}

	if len(req.Updates) == 0 {
		response.BadRequest(w, r, "validation error", []models.FieldError{{
			Field:   "updates",
			Message: "must contain at least one update",
			Code:    models.CodeRequired,
		}})
		return
	}

	var errs []models.FieldError
	flags := make([]*featureflags.Flag, 0, len(req.Updates))
	for _, u := range req.Updates {
		if err := h.service.Validate(u.Key, u.Value); err != nil {
			code := models.CodeInvalid
			if errors.Is(err, featureflags.ErrUnknownFlag) {
				code = models.CodeUnknown
			}
			errs = append(errs, models.FieldError{Field: u.Key, Message: err.Error(), Code: code})
			continue
		}
		flags = append(flags, &featureflags.Flag{Key: u.Key, Value: u.Value})
	}
	if len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	if err := h.service.SetFlags(r.Context(), flags); err != nil {
		h.logger.Error().Err(err).Msg("failed to update feature flags")
		response.InternalError(w, r, "failed to update feature flags")
		return
	}

	keys := make([]string, len(flags))
	for i, f := range flags {
		keys[i] = f.Key
	}
	h.logger.Info().
		Str("subject", middleware.GetSubject(r.Context())).
		Strs("keys", keys).
		Str("reason", req.Reason).
		Msg("feature flags updated")

	response.JSON(w, r, http.StatusOK, h.list(r))
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate - invalidate flag cache.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}

func (h *FeatureFlagsHandler) list(r *http.Request) featureflags.FlagList {
	all := h.service.GetAllFlags(r.Context())
	list := featureflags.FlagList{Items: make([]featureflags.Flag, 0, len(all))}
	for _, f := range all {
		list.Items = append(list.Items, *f)
	}
	sort.Slice(list.Items, func(i, j int) bool { return list.Items[i].Key < list.Items[j].Key })
	return list
}
