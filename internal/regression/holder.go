package regression

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/airadvisor/airadvisor/internal/aqi"
)

// ErrNoModel is returned when inference is requested before a model is loaded.
var ErrNoModel = errors.New("no model loaded")

// Holder serves predictions from a model that can be replaced at runtime.
type Holder struct {
	current  atomic.Pointer[LinearModel]
	required []string
}

// NewHolder creates a holder whose models must match the required feature
// order. A nil initial model is allowed; Predict fails until one is stored.
func NewHolder(initial *LinearModel, required []string) (*Holder, error) {
	h := &Holder{required: append([]string(nil), required...)}
	if initial != nil {
		if _, err := h.Swap(initial); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Model returns the current model, or nil.
func (h *Holder) Model() *LinearModel {
	return h.current.Load()
}

// Swap validates and installs m, returning the previous model.
func (h *Holder) Swap(m *LinearModel) (*LinearModel, error) {
	if m == nil {
		return nil, ErrNoModel
	}
	if len(h.required) > 0 {
		if err := m.schema.Require(h.required); err != nil {
			return nil, err
		}
	}
	return h.current.Swap(m), nil
}

// Reload loads an artifact from disk and installs it.
func (h *Holder) Reload(path string) (*LinearModel, error) {
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	if _, err := h.Swap(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Features returns the current model's feature names, or nil.
func (h *Holder) Features() []string {
	m := h.current.Load()
	if m == nil {
		return nil
	}
	return m.Features()
}

// Predict runs inference on the current model.
func (h *Holder) Predict(ctx context.Context, row []float64) (float64, error) {
	m := h.current.Load()
	if m == nil {
		return 0, ErrNoModel
	}
	return m.Predict(ctx, row)
}

var _ aqi.Predictor = (*Holder)(nil)
