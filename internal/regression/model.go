// Package regression loads serialized regression models and runs single-row
// inference against them.
//
// A model artifact is a YAML (or JSON) document that declares its ordered
// feature schema next to the fitted parameters:
//
//	name: weather-aqi
//	version: "2024.1"
//	kind: linear
//	features:
//	  - {name: T, unit: "°C"}
//	  - {name: TM, unit: "°C"}
//	coefficients: [1.25, -0.4]
//	intercept: 112.7
//
// The schema is validated when the artifact is loaded so a model that does not
// match the readings it will be fed fails fast instead of predicting garbage.
package regression

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/airadvisor/airadvisor/internal/aqi"
)

// KindLinear is the only supported model kind.
const KindLinear = "linear"

// ErrUnsupportedKind is returned for artifacts of an unknown model kind.
var ErrUnsupportedKind = errors.New("unsupported model kind")

// Feature is a named model input column.
type Feature struct {
	Name string `yaml:"name" json:"name"`
	Unit string `yaml:"unit" json:"unit"`
}

// Schema is the ordered list of features a model consumes.
type Schema []Feature

// Names returns the feature names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Validate checks that the schema is non-empty and its names are unique.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return &aqi.InputError{Field: "features", Reason: "schema declares no features"}
	}
	seen := make(map[string]bool, len(s))
	for i, f := range s {
		if f.Name == "" {
			return &aqi.InputError{Field: "features", Reason: fmt.Sprintf("feature %d has no name", i)}
		}
		if seen[f.Name] {
			return &aqi.InputError{Field: "features", Reason: fmt.Sprintf("duplicate feature %q", f.Name)}
		}
		seen[f.Name] = true
	}
	return nil
}

// Require checks that the schema matches the expected ordered feature names.
func (s Schema) Require(expected []string) error {
	return aqi.CheckSchema(s.Names(), expected)
}

// Artifact is the serialized form of a model.
type Artifact struct {
	Name         string    `yaml:"name"`
	Version      string    `yaml:"version"`
	Kind         string    `yaml:"kind"`
	Features     Schema    `yaml:"features"`
	Coefficients []float64 `yaml:"coefficients"`
	Intercept    float64   `yaml:"intercept"`
}

// LinearModel is a fitted linear regression: prediction = coef·x + intercept.
type LinearModel struct {
	name      string
	version   string
	schema    Schema
	coef      *mat.VecDense
	intercept float64
}

// Load reads and validates a model artifact from disk.
func Load(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates a model artifact. JSON documents are accepted
// as YAML.
func Parse(data []byte) (*LinearModel, error) {
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	return New(a)
}

// New builds a model from an artifact, validating its schema and parameters.
func New(a Artifact) (*LinearModel, error) {
	kind := a.Kind
	if kind == "" {
		kind = KindLinear
	}
	if kind != KindLinear {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, a.Kind)
	}

	if err := a.Features.Validate(); err != nil {
		return nil, err
	}

	if len(a.Coefficients) != len(a.Features) {
		return nil, &aqi.InputError{
			Field:  "coefficients",
			Reason: fmt.Sprintf("schema declares %d features but model has %d coefficients", len(a.Features), len(a.Coefficients)),
			Err:    aqi.ErrFeatureMismatch,
		}
	}

	for i, c := range a.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, &aqi.InputError{Field: "coefficients", Reason: fmt.Sprintf("coefficient %d is not finite", i)}
		}
	}
	if math.IsNaN(a.Intercept) || math.IsInf(a.Intercept, 0) {
		return nil, &aqi.InputError{Field: "intercept", Reason: "intercept is not finite"}
	}

	coef := make([]float64, len(a.Coefficients))
	copy(coef, a.Coefficients)

	return &LinearModel{
		name:      a.Name,
		version:   a.Version,
		schema:    append(Schema(nil), a.Features...),
		coef:      mat.NewVecDense(len(coef), coef),
		intercept: a.Intercept,
	}, nil
}

// Name returns the model name.
func (m *LinearModel) Name() string { return m.name }

// Version returns the model version.
func (m *LinearModel) Version() string { return m.version }

// Schema returns a copy of the model's feature schema.
func (m *LinearModel) Schema() Schema {
	return append(Schema(nil), m.schema...)
}

// Features returns the ordered feature names.
func (m *LinearModel) Features() []string {
	return m.schema.Names()
}

// Predict computes the model output for a single row.
func (m *LinearModel) Predict(_ context.Context, row []float64) (float64, error) {
	if len(row) != m.coef.Len() {
		return 0, &aqi.InputError{
			Field:  "features",
			Reason: fmt.Sprintf("model expects %d features, got %d", m.coef.Len(), len(row)),
			Err:    aqi.ErrFeatureMismatch,
		}
	}

	x := mat.NewVecDense(len(row), append([]float64(nil), row...))
	return mat.Dot(m.coef, x) + m.intercept, nil
}

var _ aqi.Predictor = (*LinearModel)(nil)
