// Package featureflags provides runtime switches for the advisory service,
// persisted in Postgres (or memory) and cached in process.
package featureflags

import (
	"fmt"
	"time"
)

// Well-known feature flag keys.
const (
	// FlagAdvisoryDefaultPreset names the tier preset used when a request
	// does not pick one.
	FlagAdvisoryDefaultPreset = "advisory_default_preset"

	// FlagDisableModelEstimator turns off model-backed estimates; weather
	// estimate requests fail with 503 while it is set.
	FlagDisableModelEstimator = "disable_model_estimator"
)

// Kind is the value type a flag holds.
type Kind string

const (
	KindBool   Kind = "bool"
	KindString Kind = "string"
)

// Known maps each well-known flag to its value kind.
var Known = map[string]Kind{
	FlagAdvisoryDefaultPreset: KindString,
	FlagDisableModelEstimator: KindBool,
}

// Flag represents a feature flag with its current value.
type Flag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FlagList represents a list of feature flags.
type FlagList struct {
	Items []Flag `json:"items"`
}

// FlagUpdate represents a single flag update request.
type FlagUpdate struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// FlagUpdateRequest represents a request to update feature flags.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates"`
	Reason  string       `json:"reason"`
}

// CheckKind verifies that value matches the declared kind of a known flag.
func CheckKind(key string, value any) error {
	kind, ok := Known[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFlag, key)
	}
	switch kind {
	case KindBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: %s must be a boolean", ErrInvalidValue, key)
		}
	case KindString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w: %s must be a string", ErrInvalidValue, key)
		}
	}
	return nil
}

// BoolValue returns the flag value as a boolean.
// Returns the default value if the flag is nil or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON numbers decode as float64
		return v != 0
	default:
		return defaultValue
	}
}

// StringValue returns the flag value as a string.
// Returns the default value if the flag is nil, not a string, or empty.
func (f *Flag) StringValue(defaultValue string) string {
	if f == nil {
		return defaultValue
	}
	if v, ok := f.Value.(string); ok && v != "" {
		return v
	}
	return defaultValue
}

// DefaultFlags returns the flags in effect when storage has none.
// The default preset comes from configuration.
func DefaultFlags(defaultPreset string) map[string]*Flag {
	now := time.Now()
	flags := map[string]*Flag{
		FlagDisableModelEstimator: {
			Key:       FlagDisableModelEstimator,
			Value:     false,
			UpdatedAt: now,
		},
	}
	if defaultPreset != "" {
		flags[FlagAdvisoryDefaultPreset] = &Flag{
			Key:       FlagAdvisoryDefaultPreset,
			Value:     defaultPreset,
			UpdatedAt: now,
		}
	}
	return flags
}
