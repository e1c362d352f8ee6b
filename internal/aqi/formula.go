package aqi

import "math"

// Formula weights applied to each pollutant concentration.
const (
	WeightCO   = 5.0
	WeightNO2  = 0.5
	WeightPM25 = 0.8
	WeightSO2  = 1.2
	WeightO3   = 0.6
)

// Weight returns the formula weight for a pollutant.
func Weight(p Pollutant) float64 {
	switch p {
	case PollutantCO:
		return WeightCO
	case PollutantNO2:
		return WeightNO2
	case PollutantPM25:
		return WeightPM25
	case PollutantSO2:
		return WeightSO2
	case PollutantO3:
		return WeightO3
	default:
		return 0
	}
}

// EstimatePollutants computes the AQI as a fixed weighted sum of the pollutant
// concentrations, rounded to two decimals. Any numeric input is accepted.
func EstimatePollutants(r PollutantReading) float64 {
	sum := r.CO*WeightCO + r.NO2*WeightNO2 + r.PM25*WeightPM25 + r.SO2*WeightSO2 + r.O3*WeightO3
	return Round2(sum)
}

// Contribution is one pollutant's share of a formula estimate.
type Contribution struct {
	Pollutant     Pollutant
	Concentration float64
	Weight        float64
	Value         float64
}

// Contributions breaks a formula estimate down per pollutant. The values are
// unrounded; their sum rounds to EstimatePollutants(r).
func Contributions(r PollutantReading) []Contribution {
	pollutants := AllPollutants()
	out := make([]Contribution, 0, len(pollutants))
	for _, p := range pollutants {
		c := r.Get(p)
		out = append(out, Contribution{
			Pollutant:     p,
			Concentration: c,
			Weight:        Weight(p),
			Value:         c * Weight(p),
		})
	}
	return out
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
