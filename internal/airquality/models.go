// Package airquality estimates current pollutant concentrations at a point
// from monitoring-station measurements.
package airquality

import (
	"errors"
	"time"

	"github.com/airadvisor/airadvisor/internal/aqi"
)

// Provider errors.
var (
	ErrProviderUnavailable = errors.New("air quality provider unavailable")
	ErrNoStationsInRange   = errors.New("no monitoring stations within range")
	ErrInsufficientData    = errors.New("no pollutant measurements near location")
)

// Station is a monitoring station and the pollutants it reports.
type Station struct {
	ID         string
	Name       string
	Lat        float64
	Lon        float64
	Pollutants []aqi.Pollutant
}

// Measures reports whether the station reports p.
func (s *Station) Measures(p aqi.Pollutant) bool {
	for _, sp := range s.Pollutants {
		if sp == p {
			return true
		}
	}
	return false
}

// Measurement is the latest value of one pollutant at one station, in the
// unit the formula estimator expects (mg/m³ for CO, µg/m³ otherwise).
type Measurement struct {
	StationID  string
	Pollutant  aqi.Pollutant
	Value      float64
	MeasuredAt time.Time
}

type measurementKey struct {
	station   string
	pollutant aqi.Pollutant
}

// Snapshot is a point-in-time view of every station and its latest
// measurements.
type Snapshot struct {
	Provider  string
	FetchedAt time.Time
	Stations  map[string]*Station

	measurements map[measurementKey]*Measurement
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot(provider string) *Snapshot {
	return &Snapshot{
		Provider:     provider,
		FetchedAt:    time.Now(),
		Stations:     make(map[string]*Station),
		measurements: make(map[measurementKey]*Measurement),
	}
}

// AddStation adds or replaces a station.
func (s *Snapshot) AddStation(st *Station) {
	s.Stations[st.ID] = st
}

// Measurement returns the latest value of p at a station, or nil.
func (s *Snapshot) Measurement(stationID string, p aqi.Pollutant) *Measurement {
	return s.measurements[measurementKey{stationID, p}]
}

// SetMeasurement stores m, keeping the newer value when one exists.
func (s *Snapshot) SetMeasurement(m *Measurement) {
	key := measurementKey{m.StationID, m.Pollutant}
	if cur, ok := s.measurements[key]; ok && cur.MeasuredAt.After(m.MeasuredAt) {
		return
	}
	s.measurements[key] = m
}

// MeasurementCount returns the number of stored measurements.
func (s *Snapshot) MeasurementCount() int {
	return len(s.measurements)
}
