package advisory

import (
	"fmt"
	"strings"

	"github.com/airadvisor/airadvisor/internal/aqi"
)

// Condition is a pre-existing health condition category.
type Condition string

const (
	ConditionNone           Condition = "none"
	ConditionRespiratory    Condition = "respiratory"
	ConditionCardiovascular Condition = "cardiovascular"
	ConditionAllergies      Condition = "allergies"
	ConditionOther          Condition = "other"
)

// AllConditions returns the closed set of conditions.
func AllConditions() []Condition {
	return []Condition{
		ConditionNone,
		ConditionRespiratory,
		ConditionCardiovascular,
		ConditionAllergies,
		ConditionOther,
	}
}

// ParseCondition parses a condition name. An empty string means none.
func ParseCondition(s string) (Condition, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ConditionNone, nil
	}
	for _, c := range AllConditions() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", &aqi.InputError{
		Field:  "health_condition",
		Reason: fmt.Sprintf("unknown condition %q", s),
	}
}

// Profile describes the person an advisory is for. A nil profile is treated
// as an adult with no condition and no exposure.
type Profile struct {
	ExposureHours int       `json:"exposure_time"`
	Age           int       `json:"age"`
	Condition     Condition `json:"health_condition"`
}

// Validate checks that exposure and age are positive and the condition is
// known.
func (p Profile) Validate() error {
	_, err := p.Normalize()
	return err
}

// Normalize validates p and returns a copy with Condition in canonical form.
func (p Profile) Normalize() (Profile, error) {
	if p.ExposureHours < 1 {
		return Profile{}, &aqi.InputError{Field: "exposure_time", Reason: "must be a positive number of hours"}
	}
	if p.Age < 1 {
		return Profile{}, &aqi.InputError{Field: "age", Reason: "must be a positive number of years"}
	}
	c, err := ParseCondition(string(p.Condition))
	if err != nil {
		return Profile{}, err
	}
	p.Condition = c
	return p, nil
}

func (p *Profile) hasCondition(set ...Condition) bool {
	if p == nil {
		return false
	}
	for _, c := range set {
		if p.Condition == c {
			return true
		}
	}
	return false
}

func (p *Profile) ageSensitive() bool {
	if p == nil {
		return false
	}
	return p.Age > 65 || p.Age < 10
}

func (p *Profile) exposedLongerThan(hours int) bool {
	if p == nil {
		return false
	}
	return p.ExposureHours > hours
}
