// Package advisory maps AQI values onto named severity tiers and produces
// health advisories, optionally tailored to a personal health profile.
package advisory

import (
	"errors"
	"fmt"
	"math"

	"github.com/airadvisor/airadvisor/internal/aqi"
)

// ErrInvalidTable is returned by Table.Validate for malformed tier tables.
var ErrInvalidTable = errors.New("invalid tier table")

// Unbounded is the Max of the top tier.
var Unbounded = math.Inf(1)

// Tier is a severity bracket. A value belongs to the first tier of its table
// whose Max is >= the value.
type Tier struct {
	Level       int
	Label       string
	Max         float64
	Range       string
	Color       string
	Summary     string
	Description string

	// Recommendations returns the recommendation list and any caveat
	// appended to the description. Profile may be nil.
	Recommendations func(p *Profile) (recs []string, caveat string)
}

// Table is an ordered set of tiers partitioning [0, ∞).
type Table struct {
	Name        string
	Description string
	Deprecated  bool
	Tiers       []Tier
}

// Validate checks that tiers are ordered by strictly increasing Max and the
// last tier is unbounded. Upper-inclusive brackets with increasing bounds
// cover [0, ∞) with no gaps or overlaps.
func (t *Table) Validate() error {
	if len(t.Tiers) == 0 {
		return fmt.Errorf("%w: %s has no tiers", ErrInvalidTable, t.Name)
	}
	prev := math.Inf(-1)
	for i, tier := range t.Tiers {
		if tier.Label == "" {
			return fmt.Errorf("%w: %s tier %d has no label", ErrInvalidTable, t.Name, i)
		}
		if tier.Recommendations == nil {
			return fmt.Errorf("%w: %s tier %q has no recommendations", ErrInvalidTable, t.Name, tier.Label)
		}
		if math.IsNaN(tier.Max) || tier.Max <= prev {
			return fmt.Errorf("%w: %s tier %q is out of order", ErrInvalidTable, t.Name, tier.Label)
		}
		if i == 0 && tier.Max < 0 {
			return fmt.Errorf("%w: %s first tier ends below zero", ErrInvalidTable, t.Name)
		}
		prev = tier.Max
	}
	if !math.IsInf(prev, 1) {
		return fmt.Errorf("%w: %s top tier must be unbounded", ErrInvalidTable, t.Name)
	}
	return nil
}

// Tier returns the tier a value falls into.
func (t *Table) Tier(value float64) (*Tier, error) {
	if err := checkValue(value); err != nil {
		return nil, err
	}
	for i := range t.Tiers {
		if value <= t.Tiers[i].Max {
			return &t.Tiers[i], nil
		}
	}
	// Unreachable for a validated table.
	return &t.Tiers[len(t.Tiers)-1], nil
}

// Classify builds the advisory for value. A nil profile gets the general
// public recommendations and no exposure caveats.
func (t *Table) Classify(value float64, p *Profile) (Advisory, error) {
	tier, err := t.Tier(value)
	if err != nil {
		return Advisory{}, err
	}

	recs, caveat := tier.Recommendations(p)

	return Advisory{
		Preset:          t.Name,
		Value:           value,
		Level:           tier.Level,
		Label:           tier.Label,
		Range:           tier.Range,
		Color:           tier.Color,
		Summary:         tier.Summary,
		RiskDescription: tier.Description + caveat,
		Recommendations: append([]string{}, recs...),
	}, nil
}

func checkValue(value float64) error {
	switch {
	case math.IsNaN(value) || math.IsInf(value, 0):
		return &aqi.InputError{Field: "aqi_value", Reason: "must be a finite number"}
	case value < 0:
		return &aqi.InputError{Field: "aqi_value", Reason: "must not be negative"}
	}
	return nil
}

// Advisory is the result of classifying an AQI value.
type Advisory struct {
	Preset          string   `json:"preset"`
	Value           float64  `json:"aqi"`
	Level           int      `json:"level"`
	Label           string   `json:"label"`
	Range           string   `json:"range"`
	Color           string   `json:"color"`
	Summary         string   `json:"summary"`
	RiskDescription string   `json:"risk_description"`
	Recommendations []string `json:"recommendations"`
}
