package models

import (
	"math"

	"github.com/airadvisor/airadvisor/internal/advisory"
	"github.com/airadvisor/airadvisor/internal/aqi"
)

// TierInfo describes one advisory tier. Max is null for the unbounded top tier.
type TierInfo struct {
	Level       int      `json:"level"`
	Label       string   `json:"label"`
	Range       string   `json:"range"`
	Max         *float64 `json:"max"`
	Color       string   `json:"color"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
}

// Preset describes a named advisory table.
type Preset struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Deprecated  bool       `json:"deprecated"`
	Default     bool       `json:"default"`
	Tiers       []TierInfo `json:"tiers"`
}

// PresetList is returned by GET /v1/metadata/presets.
type PresetList struct {
	Default string   `json:"default"`
	Items   []Preset `json:"items"`
}

// NewPreset converts an advisory table for the wire.
func NewPreset(t *advisory.Table, isDefault bool) Preset {
	tiers := make([]TierInfo, len(t.Tiers))
	for i, tier := range t.Tiers {
		info := TierInfo{
			Level:       tier.Level,
			Label:       tier.Label,
			Range:       tier.Range,
			Color:       tier.Color,
			Summary:     tier.Summary,
			Description: tier.Description,
		}
		if !math.IsInf(tier.Max, 1) {
			limit := tier.Max
			info.Max = &limit
		}
		tiers[i] = info
	}
	return Preset{
		Name:        t.Name,
		Description: t.Description,
		Deprecated:  t.Deprecated,
		Default:     isDefault,
		Tiers:       tiers,
	}
}

// PollutantField describes one pollutant input.
type PollutantField struct {
	Field      string  `json:"field"`
	Pollutant  string  `json:"pollutant"`
	Weight     float64 `json:"weight"`
	TypicalMax float64 `json:"typicalMax"`
}

// Enums represents the enum values used by the API.
type Enums struct {
	HealthConditions []string         `json:"healthConditions"`
	Presets          []string         `json:"presets"`
	EstimateMethods  []string         `json:"estimateMethods"`
	Pollutants       []PollutantField `json:"pollutants"`
	WeatherFeatures  []string         `json:"weatherFeatures"`
	Confidence       []string         `json:"stationConfidence"`
}

// pollutantFields maps pollutants to their JSON field names.
var pollutantFields = map[aqi.Pollutant]string{
	aqi.PollutantCO:   "co",
	aqi.PollutantNO2:  "no2",
	aqi.PollutantPM25: "pm2_5",
	aqi.PollutantSO2:  "so2",
	aqi.PollutantO3:   "o3",
}

// NewPollutantFields lists the pollutant inputs in formula order.
func NewPollutantFields() []PollutantField {
	pollutants := aqi.AllPollutants()
	out := make([]PollutantField, len(pollutants))
	for i, p := range pollutants {
		out[i] = PollutantField{
			Field:      pollutantFields[p],
			Pollutant:  string(p),
			Weight:     aqi.Weight(p),
			TypicalMax: aqi.TypicalMax[p],
		}
	}
	return out
}
