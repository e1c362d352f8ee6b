package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airadvisor/airadvisor/internal/api/middleware"
	"github.com/airadvisor/airadvisor/internal/api/models"
)

func TestRecovery_ReturnsProblem(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.RequestID(middleware.Recovery(zerolog.New(&buf))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("model exploded")
		}),
	))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict", http.NoBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, models.ProblemTypeInternal, problem.Type)
	assert.Equal(t, "/predict", problem.Instance)
	assert.NotEmpty(t, problem.TraceID)

	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "model exploded")
}

func TestRecovery_RepanicsOnAbortHandler(t *testing.T) {
	handler := middleware.Recovery(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	})
}
