// Package handler provides HTTP handlers for the AirAdvisor API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/airadvisor/airadvisor/internal/advisory"
	"github.com/airadvisor/airadvisor/internal/airquality"
	"github.com/airadvisor/airadvisor/internal/api/models"
	"github.com/airadvisor/airadvisor/internal/api/response"
	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/assessment"
	"github.com/airadvisor/airadvisor/internal/provider/resilience"
	"github.com/airadvisor/airadvisor/internal/regression"
	"github.com/airadvisor/airadvisor/internal/weather"
)

// writeError maps domain errors onto problem responses. Unrecognised errors
// are logged and reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	var inputErr *aqi.InputError

	switch {
	case errors.Is(err, aqi.ErrFeatureMismatch):
		response.FeatureMismatch(w, r, err.Error())

	case errors.As(err, &inputErr):
		code := models.CodeInvalid
		if errors.Is(err, assessment.ErrUnknownMethod) {
			code = models.CodeUnknown
		}
		response.BadRequest(w, r, "validation error", []models.FieldError{{
			Field:   inputErr.Field,
			Message: inputErr.Reason,
			Code:    code,
		}})

	case errors.Is(err, advisory.ErrUnknownPreset):
		response.BadRequest(w, r, "validation error", []models.FieldError{{
			Field:   "preset",
			Message: err.Error(),
			Code:    models.CodeUnknown,
		}})

	case errors.Is(err, weather.ErrInvalidCoordinates):
		response.BadRequest(w, r, "validation error", []models.FieldError{{
			Field:   "location",
			Message: "lat must be within [-90, 90] and lon within [-180, 180]",
			Code:    models.CodeOutOfRange,
		}})

	case errors.Is(err, airquality.ErrNoStationsInRange),
		errors.Is(err, airquality.ErrInsufficientData):
		response.NoCoverage(w, r, err.Error())

	case errors.Is(err, assessment.ErrEstimatorUnavailable),
		errors.Is(err, regression.ErrNoModel):
		response.ServiceUnavailable(w, r, "model estimator is unavailable")

	case errors.Is(err, assessment.ErrWeatherUnavailable),
		errors.Is(err, weather.ErrProviderUnavailable),
		errors.Is(err, assessment.ErrAirQualityUnavailable),
		errors.Is(err, airquality.ErrProviderUnavailable),
		errors.Is(err, regression.ErrBadPrediction),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, resilience.ErrMaxRetriesExceeded),
		errors.Is(err, context.DeadlineExceeded):
		logger.Warn().Err(err).Str("path", r.URL.Path).Msg("upstream unavailable")
		response.ServiceUnavailable(w, r, "upstream dependency is unavailable")

	default:
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
