package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/airadvisor/airadvisor/internal/api/models"
	"github.com/airadvisor/airadvisor/internal/api/response"
	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/assessment"
)

// EstimateHandler handles the v1 estimate and advisory endpoints.
type EstimateHandler struct {
	service *assessment.Service
	logger  zerolog.Logger
}

// NewEstimateHandler creates a new EstimateHandler.
func NewEstimateHandler(service *assessment.Service, logger zerolog.Logger) *EstimateHandler {
	return &EstimateHandler{
		service: service,
		logger:  logger,
	}
}

// EstimatePollutants handles POST /v1/estimates/pollutants.
func (h *EstimateHandler) EstimatePollutants(w http.ResponseWriter, r *http.Request) {
	var req models.PollutantEstimateRequest
	if !response.DecodeJSON(w, r, &req) {
		return
	}

	reading, errs := req.Reading()
	if len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	res, err := h.service.AssessPollutants(r.Context(), reading, req.Method, req.Preset, req.Profile)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := models.PollutantEstimateResponse{
		AQI:      res.AQI,
		Method:   res.Method,
		Warnings: res.Warnings,
		Advisory: res.Advisory,
	}
	if len(res.Contributions) > 0 {
		resp.Contributions = models.NewContributions(res.Contributions)
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// EstimateWeather handles POST /v1/estimates/weather.
func (h *EstimateHandler) EstimateWeather(w http.ResponseWriter, r *http.Request) {
	var req models.WeatherEstimateRequest
	if !response.DecodeJSON(w, r, &req) {
		return
	}

	reading, errs := req.Reading()
	if len(errs) > 0 {
		response.BadRequest(w, r, "validation error", errs)
		return
	}

	res, err := h.service.AssessWeather(r.Context(), reading, req.Preset, req.Profile)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, newWeatherResponse(res))
}

// EstimateLiveWeather handles POST /v1/estimates/weather:live.
func (h *EstimateHandler) EstimateLiveWeather(w http.ResponseWriter, r *http.Request) {
	var req models.LiveWeatherEstimateRequest
	if !response.DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.AssessLiveWeather(r.Context(), req.Lat, req.Lon, req.Preset, req.Profile)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.LiveWeatherEstimateResponse{
		WeatherEstimateResponse: newWeatherResponse(&res.WeatherResult),
		Location:                models.Point{Lat: req.Lat, Lon: req.Lon},
		Provider:                res.Provider,
		Condition:               string(res.Observation.Condition),
		ObservedAt:              models.Timestamp(res.Observation.ObservedAt),
	})
}

// EstimateLivePollutants handles POST /v1/estimates/pollutants:live.
func (h *EstimateHandler) EstimateLivePollutants(w http.ResponseWriter, r *http.Request) {
	var req models.LivePollutantEstimateRequest
	if !response.DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.AssessLivePollutants(r.Context(), req.Lat, req.Lon, req.Preset, req.Profile)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := models.LivePollutantEstimateResponse{
		PollutantEstimateResponse: models.PollutantEstimateResponse{
			AQI:           res.AQI,
			Method:        res.Method,
			Contributions: models.NewContributions(res.Contributions),
			Warnings:      res.Warnings,
			Advisory:      res.Advisory,
		},
		Location:   models.Point{Lat: req.Lat, Lon: req.Lon},
		Reading:    res.Reading,
		Confidence: res.Confidence,
		Provider:   res.Provider,
		FetchedAt:  models.Timestamp(res.FetchedAt),
	}
	for _, p := range res.Missing {
		resp.Missing = append(resp.Missing, string(p))
	}
	for _, p := range aqi.AllPollutants() {
		if v, ok := res.Estimate.Values[p]; ok {
			resp.Pollutants = append(resp.Pollutants, v)
		}
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// CreateAdvisory handles POST /v1/advisories.
func (h *EstimateHandler) CreateAdvisory(w http.ResponseWriter, r *http.Request) {
	var req models.AdvisoryRequest
	if !response.DecodeJSON(w, r, &req) {
		return
	}

	if req.AQI == nil {
		response.BadRequest(w, r, "validation error", []models.FieldError{{
			Field:   "aqi",
			Message: "is required",
			Code:    models.CodeRequired,
		}})
		return
	}

	a, err := h.service.Classify(r.Context(), req.Preset, *req.AQI, req.Profile)
	if err != nil {
		// The classifier names the value after the legacy form field.
		var inputErr *aqi.InputError
		if errors.As(err, &inputErr) && inputErr.Field == "aqi_value" {
			inputErr.Field = "aqi"
		}
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, a)
}

func newWeatherResponse(res *assessment.WeatherResult) models.WeatherEstimateResponse {
	return models.WeatherEstimateResponse{
		AQI:      res.AQI,
		Model:    res.Model,
		Reading:  res.Reading,
		Advisory: res.Advisory,
	}
}
