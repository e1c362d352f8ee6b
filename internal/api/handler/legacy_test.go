package handler_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airadvisor/airadvisor/internal/api/handler"
	"github.com/airadvisor/airadvisor/internal/api/models"
)

func weatherForm() url.Values {
	return url.Values{
		"T": {"25.5"}, "TM": {"31"}, "Tm": {"19"}, "SLP": {"1009.2"},
		"H": {"61"}, "VV": {"1.9"}, "V": {"7.2"}, "VM": {"14.8"},
	}
}

func TestPredict(t *testing.T) {
	h := handler.NewLegacyHandler(newFixture(t).service, zerolog.Nop())

	rec := doForm(h.Predict, "/predict", weatherForm())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"aqi":61}`, rec.Body.String())
}

func TestPredict_Multipart(t *testing.T) {
	h := handler.NewLegacyHandler(newFixture(t).service, zerolog.Nop())

	rec := doMultipart(t, h.Predict, "/predict", weatherForm())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"aqi":61}`, rec.Body.String())
}

func TestPredict_FieldErrors(t *testing.T) {
	h := handler.NewLegacyHandler(newFixture(t).service, zerolog.Nop())

	form := weatherForm()
	form.Del("SLP")
	form.Set("VV", "far")

	rec := doForm(h.Predict, "/predict", form)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	p := decode[problem](t, rec)
	require.Len(t, p.Errors, 2)
	assert.Equal(t, "SLP", p.Errors[0].Field)
	assert.Equal(t, models.CodeRequired, p.Errors[0].Code)
	assert.Equal(t, "VV", p.Errors[1].Field)
	assert.Equal(t, models.CodeInvalid, p.Errors[1].Code)
}

func TestPredict_RejectsNonFinite(t *testing.T) {
	h := handler.NewLegacyHandler(newFixture(t).service, zerolog.Nop())

	form := weatherForm()
	form.Set("T", "NaN")

	rec := doForm(h.Predict, "/predict", form)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"T"}, decode[problem](t, rec).fields())
}

func TestPredict_NoModel(t *testing.T) {
	h := handler.NewLegacyHandler(newFixture(t, withoutModel()).service, zerolog.Nop())

	rec := doForm(h.Predict, "/predict", weatherForm())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPredictHealth(t *testing.T) {
	tests := []struct {
		name     string
		form     url.Values
		wantJSON string
	}{
		{
			name: "low risk",
			form: url.Values{"aqi_value": {"42"}, "exposure_time": {"1"}, "age": {"30"}, "health_condition": {"none"}},
			wantJSON: `{
				"impact_level": "Low Health Risk",
				"risk_description": "Air quality is good and poses little or no risk.",
				"recommendations": [
					"Continue with normal outdoor activities",
					"No special precautions needed",
					"Enjoy the clean air"
				]
			}`,
		},
		{
			name: "unhealthy with long exposure",
			form: url.Values{"aqi_value": {"170"}, "exposure_time": {"5"}, "age": {"40"}, "health_condition": {"cardiovascular"}},
			wantJSON: `{
				"impact_level": "Unhealthy",
				"risk_description": "Everyone may begin to experience health effects. Sensitive groups may experience more serious effects. Extended exposure increases health risks.",
				"recommendations": [
					"Avoid prolonged outdoor exertion",
					"Consider rescheduling outdoor activities",
					"Stay indoors with air purification if possible",
					"Have emergency medication readily available",
					"Monitor symptoms closely"
				]
			}`,
		},
	}

	h := handler.NewLegacyHandler(newFixture(t).service, zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doForm(h.PredictHealth, "/predict_health", tt.form)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.JSONEq(t, tt.wantJSON, rec.Body.String())
		})
	}
}

func TestPredictHealth_Multipart(t *testing.T) {
	h := handler.NewLegacyHandler(newFixture(t).service, zerolog.Nop())

	form := url.Values{"aqi_value": {"42"}, "exposure_time": {"1"}, "age": {"30"}, "health_condition": {"none"}}
	rec := doMultipart(t, h.PredictHealth, "/predict_health", form)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Low Health Risk", decode[models.HealthImpactResponse](t, rec).ImpactLevel)
}

func TestPredictHealth_MultipartMissingField(t *testing.T) {
	h := handler.NewLegacyHandler(newFixture(t).service, zerolog.Nop())

	form := url.Values{"aqi_value": {"42"}, "exposure_time": {"1"}, "health_condition": {"none"}}
	rec := doMultipart(t, h.PredictHealth, "/predict_health", form)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"age"}, decode[problem](t, rec).fields())
}

func TestPredictHealth_IgnoresDefaultPresetFlag(t *testing.T) {
	f := newFixture(t)
	f.setFlag(t, "advisory_default_preset", "six-tier")
	h := handler.NewLegacyHandler(f.service, zerolog.Nop())

	form := url.Values{"aqi_value": {"42"}, "exposure_time": {"1"}, "age": {"30"}, "health_condition": {"none"}}
	rec := doForm(h.PredictHealth, "/predict_health", form)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Low Health Risk")
}

func TestPredictHealth_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantFields []string
	}{
		{
			name:       "missing fields",
			form:       url.Values{"aqi_value": {"42"}},
			wantFields: []string{"exposure_time", "age", "health_condition"},
		},
		{
			name:       "non-integer age",
			form:       url.Values{"aqi_value": {"42"}, "exposure_time": {"1"}, "age": {"thirty"}, "health_condition": {"none"}},
			wantFields: []string{"age"},
		},
		{
			name:       "negative aqi",
			form:       url.Values{"aqi_value": {"-1"}, "exposure_time": {"1"}, "age": {"30"}, "health_condition": {"none"}},
			wantFields: []string{"aqi_value"},
		},
		{
			name:       "unknown condition",
			form:       url.Values{"aqi_value": {"42"}, "exposure_time": {"1"}, "age": {"30"}, "health_condition": {"asthma"}},
			wantFields: []string{"health_condition"},
		},
	}

	h := handler.NewLegacyHandler(newFixture(t).service, zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doForm(h.PredictHealth, "/predict_health", tt.form)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantFields, decode[problem](t, rec).fields())
		})
	}
}
