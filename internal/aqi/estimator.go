package aqi

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// Predictor is an opaque regression model: one ordered feature row in, one
// scalar out.
type Predictor interface {
	// Features returns the ordered feature names the model was trained on.
	Features() []string

	// Predict runs inference on a single row.
	Predict(ctx context.Context, row []float64) (float64, error)
}

// ModelEstimator marshals readings into the order a Predictor expects and
// unwraps its scalar output.
type ModelEstimator struct {
	predictor Predictor
	logger    zerolog.Logger
}

// NewModelEstimator creates a model-backed estimator.
func NewModelEstimator(predictor Predictor, logger zerolog.Logger) *ModelEstimator {
	return &ModelEstimator{
		predictor: predictor,
		logger:    logger,
	}
}

// EstimateWeather predicts the AQI for a weather reading. The prediction is
// returned unrounded.
func (e *ModelEstimator) EstimateWeather(ctx context.Context, r WeatherReading) (float64, error) {
	return e.estimate(ctx, WeatherFeatures, r.Vector())
}

// EstimatePollutantVector predicts the AQI for a pollutant reading, rounded to
// two decimals.
func (e *ModelEstimator) EstimatePollutantVector(ctx context.Context, r PollutantReading) (float64, error) {
	v, err := e.estimate(ctx, PollutantVectorFeatures, r.Vector())
	if err != nil {
		return 0, err
	}
	return Round2(v), nil
}

func (e *ModelEstimator) estimate(ctx context.Context, names []string, row []float64) (float64, error) {
	if err := CheckSchema(e.predictor.Features(), names); err != nil {
		return 0, err
	}

	for i, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &InputError{Field: names[i], Reason: "must be a finite number"}
		}
	}

	prediction, err := e.predictor.Predict(ctx, row)
	if err != nil {
		return 0, fmt.Errorf("model inference: %w", err)
	}

	e.logger.Debug().
		Int("features", len(row)).
		Float64("prediction", prediction).
		Msg("model estimate computed")

	return prediction, nil
}

// CheckSchema verifies that a model's ordered feature list matches the fields
// being supplied.
func CheckSchema(expected, supplied []string) error {
	if len(expected) != len(supplied) {
		return &InputError{
			Field:  "features",
			Reason: fmt.Sprintf("model expects %d features, got %d", len(expected), len(supplied)),
			Err:    ErrFeatureMismatch,
		}
	}
	for i := range expected {
		if expected[i] != supplied[i] {
			return &InputError{
				Field:  "features",
				Reason: fmt.Sprintf("feature %d is %q in the model, %q in the reading", i, expected[i], supplied[i]),
				Err:    ErrFeatureMismatch,
			}
		}
	}
	return nil
}
