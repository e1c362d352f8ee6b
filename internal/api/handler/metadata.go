package handler

import (
	"net/http"

	"github.com/airadvisor/airadvisor/internal/advisory"
	"github.com/airadvisor/airadvisor/internal/airquality"
	"github.com/airadvisor/airadvisor/internal/api/models"
	"github.com/airadvisor/airadvisor/internal/api/response"
	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/assessment"
)

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct {
	service *assessment.Service
}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler(service *assessment.Service) *MetadataHandler {
	return &MetadataHandler{service: service}
}

// ListPresets handles GET /v1/metadata/presets - the advisory tables and their tiers.
func (h *MetadataHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	def := h.service.DefaultPreset(r.Context())

	tables := advisory.Presets()
	list := models.PresetList{
		Default: def,
		Items:   make([]models.Preset, len(tables)),
	}
	for i, t := range tables {
		list.Items[i] = models.NewPreset(t, t.Name == def)
	}
	response.JSON(w, r, http.StatusOK, list)
}

// GetEnums handles GET /v1/metadata/enums - get enum values used by the API.
func (h *MetadataHandler) GetEnums(w http.ResponseWriter, r *http.Request) {
	conditions := advisory.AllConditions()
	enums := models.Enums{
		HealthConditions: make([]string, len(conditions)),
		EstimateMethods:  []string{assessment.MethodFormula, assessment.MethodModel},
		Pollutants:       models.NewPollutantFields(),
		WeatherFeatures:  aqi.WeatherFeatures,
		Confidence: []string{
			string(airquality.ConfidenceHigh),
			string(airquality.ConfidenceMedium),
			string(airquality.ConfidenceLow),
		},
	}
	for i, c := range conditions {
		enums.HealthConditions[i] = string(c)
	}
	for _, t := range advisory.Presets() {
		enums.Presets = append(enums.Presets, t.Name)
	}
	response.JSON(w, r, http.StatusOK, enums)
}
