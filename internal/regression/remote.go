package regression

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/provider/resilience"
)

// Registry names of the remote model servers.
const (
	RemoteUpstreamName          = "model-server"
	PollutantRemoteUpstreamName = "pollutant-model-server"
)

// ErrBadPrediction is returned when the model server answers with a
// non-finite value.
var ErrBadPrediction = errors.New("model server returned a non-finite prediction")

// RemoteModel forwards inference to a model-serving endpoint. The feature
// schema is declared locally and enforced before any request is sent.
type RemoteModel struct {
	name    string
	client  *resilience.Client
	baseURL string
	schema  Schema
}

// NewRemoteModel creates a remote model client for baseURL.
func NewRemoteModel(client *resilience.Client, baseURL string, schema Schema) (*RemoteModel, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if baseURL == "" {
		return nil, errors.New("remote model: base URL is required")
	}
	name := RemoteUpstreamName
	if client != nil {
		name = client.Name()
	}
	return &RemoteModel{
		name:    name,
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		schema:  append(Schema(nil), schema...),
	}, nil
}

type remotePredictRequest struct {
	Features []float64 `json:"features"`
}

type remotePredictResponse struct {
	Prediction *float64 `json:"prediction"`
}

// Features returns the declared feature names.
func (m *RemoteModel) Features() []string {
	return m.schema.Names()
}

// Predict sends one row to {baseURL}/predict.
func (m *RemoteModel) Predict(ctx context.Context, row []float64) (float64, error) {
	if len(row) != len(m.schema) {
		return 0, &aqi.InputError{
			Field:  "features",
			Reason: fmt.Sprintf("model expects %d features, got %d", len(m.schema), len(row)),
			Err:    aqi.ErrFeatureMismatch,
		}
	}

	var resp remotePredictResponse
	err := m.client.DoJSON(ctx, http.MethodPost, m.baseURL+"/predict", remotePredictRequest{Features: row}, &resp)
	if err != nil {
		return 0, fmt.Errorf("remote predict: %w", err)
	}
	if resp.Prediction == nil {
		return 0, fmt.Errorf("remote predict: %w", ErrBadPrediction)
	}
	p := *resp.Prediction
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("remote predict: %w", ErrBadPrediction)
	}
	return p, nil
}

var _ aqi.Predictor = (*RemoteModel)(nil)
