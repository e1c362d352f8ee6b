package airquality

import (
	"math"
	"sort"

	"github.com/airadvisor/airadvisor/internal/aqi"
)

// Confidence grades an interpolated value by station proximity.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// InterpolationConfig tunes inverse distance weighting.
type InterpolationConfig struct {
	// MaxDistance in meters. Stations further away are ignored. Default: 50km.
	MaxDistance float64

	// MaxStations is the number of nearest stations considered. Default: 5.
	MaxStations int

	// Power is the IDW exponent. Default: 2.
	Power float64

	// HighConfidenceDistance and MediumConfidenceDistance grade the nearest
	// contributing station, in meters. Defaults: 5km and 15km.
	HighConfidenceDistance   float64
	MediumConfidenceDistance float64
}

// DefaultInterpolationConfig returns the default configuration.
func DefaultInterpolationConfig() InterpolationConfig {
	return InterpolationConfig{
		MaxDistance:              50000,
		MaxStations:              5,
		Power:                    2,
		HighConfidenceDistance:   5000,
		MediumConfidenceDistance: 15000,
	}
}

// StationContribution is one station's share of an interpolated value.
type StationContribution struct {
	StationID string  `json:"stationId"`
	Distance  float64 `json:"distanceMeters"`
	Value     float64 `json:"value"`
	Weight    float64 `json:"weight"`
}

// PollutantEstimate is the interpolated concentration of one pollutant.
type PollutantEstimate struct {
	Pollutant       aqi.Pollutant         `json:"pollutant"`
	Value           float64               `json:"value"`
	Confidence      Confidence            `json:"confidence"`
	NearestDistance float64               `json:"nearestStationMeters"`
	Stations        []StationContribution `json:"stations"`
}

// PointEstimate holds the interpolated pollutants at a location.
type PointEstimate struct {
	Lat    float64                              `json:"lat"`
	Lon    float64                              `json:"lon"`
	Values map[aqi.Pollutant]*PollutantEstimate `json:"values"`
}

// Reading converts the estimate into formula input. Pollutants without
// nearby measurements are zero and listed in missing, in formula order.
func (p *PointEstimate) Reading() (r aqi.PollutantReading, missing []aqi.Pollutant) {
	for _, pol := range aqi.AllPollutants() {
		v, ok := p.Values[pol]
		if !ok {
			missing = append(missing, pol)
			continue
		}
		switch pol {
		case aqi.PollutantCO:
			r.CO = v.Value
		case aqi.PollutantNO2:
			r.NO2 = v.Value
		case aqi.PollutantPM25:
			r.PM25 = v.Value
		case aqi.PollutantSO2:
			r.SO2 = v.Value
		case aqi.PollutantO3:
			r.O3 = v.Value
		}
	}
	return r, missing
}

// Confidence is the lowest confidence across the estimated pollutants.
func (p *PointEstimate) Confidence() Confidence {
	lowest := ConfidenceHigh
	for _, v := range p.Values {
		if v.Confidence.rank() < lowest.rank() {
			lowest = v.Confidence
		}
	}
	return lowest
}

type stationDistance struct {
	station  *Station
	distance float64
}

// Interpolator estimates concentrations between stations.
type Interpolator struct {
	config InterpolationConfig
}

// NewInterpolator creates an Interpolator, filling unset fields with defaults.
func NewInterpolator(cfg InterpolationConfig) *Interpolator {
	def := DefaultInterpolationConfig()
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = def.MaxDistance
	}
	if cfg.MaxStations <= 0 {
		cfg.MaxStations = def.MaxStations
	}
	if cfg.Power <= 0 {
		cfg.Power = def.Power
	}
	if cfg.HighConfidenceDistance <= 0 {
		cfg.HighConfidenceDistance = def.HighConfidenceDistance
	}
	if cfg.MediumConfidenceDistance <= 0 {
		cfg.MediumConfidenceDistance = def.MediumConfidenceDistance
	}
	return &Interpolator{config: cfg}
}

// Interpolate estimates every formula pollutant at (lat, lon) from the
// nearest stations in snapshot.
func (i *Interpolator) Interpolate(lat, lon float64, snapshot *Snapshot) (*PointEstimate, error) {
	if snapshot == nil {
		return nil, ErrNoStationsInRange
	}

	var nearby []stationDistance
	for _, st := range snapshot.Stations {
		d := haversineDistance(lat, lon, st.Lat, st.Lon)
		if d <= i.config.MaxDistance {
			nearby = append(nearby, stationDistance{station: st, distance: d})
		}
	}
	if len(nearby) == 0 {
		return nil, ErrNoStationsInRange
	}

	sort.Slice(nearby, func(a, b int) bool {
		if nearby[a].distance == nearby[b].distance {
			return nearby[a].station.ID < nearby[b].station.ID
		}
		return nearby[a].distance < nearby[b].distance
	})
	if len(nearby) > i.config.MaxStations {
		nearby = nearby[:i.config.MaxStations]
	}

	est := &PointEstimate{
		Lat:    lat,
		Lon:    lon,
		Values: make(map[aqi.Pollutant]*PollutantEstimate),
	}
	for _, p := range aqi.AllPollutants() {
		if v := i.interpolate(p, nearby, snapshot); v != nil {
			est.Values[p] = v
		}
	}
	if len(est.Values) == 0 {
		return nil, ErrInsufficientData
	}
	return est, nil
}

// interpolate returns the IDW mean of p over nearby, or nil when no nearby
// station has a measurement.
func (i *Interpolator) interpolate(p aqi.Pollutant, nearby []stationDistance, snapshot *Snapshot) *PollutantEstimate {
	contributions := make([]StationContribution, 0, len(nearby))
	var total float64

	for _, sd := range nearby {
		if !sd.station.Measures(p) {
			continue
		}
		m := snapshot.Measurement(sd.station.ID, p)
		if m == nil {
			continue
		}

		// Within a meter the station value dominates.
		weight := 1e10
		if sd.distance >= 1 {
			weight = 1 / math.Pow(sd.distance, i.config.Power)
		}
		contributions = append(contributions, StationContribution{
			StationID: sd.station.ID,
			Distance:  sd.distance,
			Value:     m.Value,
			Weight:    weight,
		})
		total += weight
	}
	if len(contributions) == 0 {
		return nil
	}

	var value float64
	for idx := range contributions {
		contributions[idx].Weight /= total
		value += contributions[idx].Value * contributions[idx].Weight
	}

	nearest := contributions[0].Distance
	return &PollutantEstimate{
		Pollutant:       p,
		Value:           value,
		Confidence:      i.confidence(nearest, len(contributions)),
		NearestDistance: nearest,
		Stations:        contributions,
	}
}

func (i *Interpolator) confidence(nearest float64, stations int) Confidence {
	switch {
	case nearest <= i.config.HighConfidenceDistance && stations >= 2:
		return ConfidenceHigh
	case nearest <= i.config.MediumConfidenceDistance:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// haversineDistance returns the great-circle distance in meters.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
