package handler

import (
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/airadvisor/airadvisor/internal/advisory"
	"github.com/airadvisor/airadvisor/internal/api/models"
	"github.com/airadvisor/airadvisor/internal/api/response"
	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/assessment"
)

// maxFormMemory bounds the multipart body held in memory; larger file parts
// spill to disk.
const maxFormMemory = 1 << 20

// weatherFormFields are the /predict form keys in model feature order.
var weatherFormFields = []string{"T", "TM", "Tm", "SLP", "H", "VV", "V", "VM"}

// LegacyHandler serves the form-encoded /predict and /predict_health endpoints.
// Their payloads are kept byte-compatible with existing clients.
type LegacyHandler struct {
	service *assessment.Service
	logger  zerolog.Logger
}

// NewLegacyHandler creates a new LegacyHandler.
func NewLegacyHandler(service *assessment.Service, logger zerolog.Logger) *LegacyHandler {
	return &LegacyHandler{
		service: service,
		logger:  logger,
	}
}

// Predict handles POST /predict.
func (h *LegacyHandler) Predict(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		response.BadRequest(w, r, "malformed form body", nil)
		return
	}

	f := formReader{form: r.PostForm}
	values := make([]float64, len(weatherFormFields))
	for i, name := range weatherFormFields {
		values[i] = f.float(name)
	}
	if len(f.errs) > 0 {
		response.BadRequest(w, r, "validation error", f.errs)
		return
	}

	reading := aqi.WeatherReading{
		T: values[0], TM: values[1], Tm: values[2], SLP: values[3],
		H: values[4], VV: values[5], V: values[6], VM: values[7],
	}

	v, err := h.service.EstimateWeather(r.Context(), reading)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.PredictResponse{AQI: v})
}

// PredictHealth handles POST /predict_health. It always uses the five-tier table.
func (h *LegacyHandler) PredictHealth(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		response.BadRequest(w, r, "malformed form body", nil)
		return
	}

	f := formReader{form: r.PostForm}
	value := f.float("aqi_value")
	profile := &advisory.Profile{
		ExposureHours: f.int("exposure_time"),
		Age:           f.int("age"),
		Condition:     advisory.Condition(f.string("health_condition")),
	}
	if len(f.errs) > 0 {
		response.BadRequest(w, r, "validation error", f.errs)
		return
	}

	a, err := h.service.Classify(r.Context(), advisory.PresetFiveTier, value, profile)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.HealthImpactResponse{
		ImpactLevel:     a.Label,
		RiskDescription: a.RiskDescription,
		Recommendations: a.Recommendations,
	})
}

// parseForm fills r.PostForm from URL-encoded or multipart bodies.
func parseForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.ParseForm()
	}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return err
	}
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
	return nil
}

// formReader collects field errors while reading required form values.
type formReader struct {
	form map[string][]string
	errs []models.FieldError
}

func (f *formReader) string(name string) string {
	vs, ok := f.form[name]
	if !ok || len(vs) == 0 || strings.TrimSpace(vs[0]) == "" {
		f.errs = append(f.errs, models.FieldError{Field: name, Message: "is required", Code: models.CodeRequired})
		return ""
	}
	return strings.TrimSpace(vs[0])
}

func (f *formReader) float(name string) float64 {
	s := f.string(name)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		f.errs = append(f.errs, models.FieldError{Field: name, Message: "must be a finite number", Code: models.CodeInvalid})
		return 0
	}
	return v
}

func (f *formReader) int(name string) int {
	s := f.string(name)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		f.errs = append(f.errs, models.FieldError{Field: name, Message: "must be an integer", Code: models.CodeInvalid})
		return 0
	}
	return v
}
