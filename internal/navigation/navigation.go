// Package navigation models the check-AQI / health-impact page flow as an
// explicit finite-state machine. The caller owns the Session and threads it
// through Transition; nothing is kept in package state.
package navigation

import (
	"errors"
	"fmt"
	"math"

	"github.com/airadvisor/airadvisor/internal/advisory"
)

// ErrInvalidTransition is returned when an event is not allowed on the current page.
var ErrInvalidTransition = errors.New("invalid page transition")

// Page is a step in the flow.
type Page string

const (
	PageHome         Page = "home"
	PageCheckAQI     Page = "check_aqi"
	PageAQIResult    Page = "aqi_result"
	PageHealthImpact Page = "health_impact"
	PageHealthResult Page = "health_result"
)

// EventKind identifies a user action.
type EventKind string

const (
	// Available from every page.
	EventGoHome     EventKind = "go_home"
	EventGoCheckAQI EventKind = "go_check_aqi"
	// Available from every page once an AQI is known.
	EventGoHealthImpact EventKind = "go_health_impact"

	EventAQIComputed     EventKind = "aqi_computed"
	EventAssessmentReady EventKind = "assessment_ready"
	EventBackToResult    EventKind = "back_to_result"
	EventStartOver       EventKind = "start_over"
)

// Event is a user action with its payload.
type Event struct {
	Kind     EventKind
	AQI      float64
	Advisory *advisory.Advisory
}

// AQIComputed is the event fired when an estimate is available.
func AQIComputed(value float64) Event {
	return Event{Kind: EventAQIComputed, AQI: value}
}

// AssessmentReady is the event fired when a health assessment is available.
func AssessmentReady(a advisory.Advisory) Event {
	return Event{Kind: EventAssessmentReady, Advisory: &a}
}

// Session is the navigation context carried between steps.
type Session struct {
	Page     Page
	AQI      *float64
	Advisory *advisory.Advisory
}

// NewSession returns a session on the home page with no results.
func NewSession() Session {
	return Session{Page: PageHome}
}

// HasAQI reports whether an AQI value has been computed.
func (s Session) HasAQI() bool {
	return s.AQI != nil
}

// Transition applies e to s and returns the resulting session. s is not modified.
func Transition(s Session, e Event) (Session, error) {
	next := s

	switch e.Kind {
	case EventGoHome:
		next.Page = PageHome

	case EventGoCheckAQI:
		next.Page = PageCheckAQI

	case EventGoHealthImpact:
		if !s.HasAQI() {
			return s, invalid(s, e, "no AQI computed yet")
		}
		next.Page = PageHealthImpact

	case EventAQIComputed:
		if s.Page != PageCheckAQI {
			return s, invalid(s, e, "")
		}
		if math.IsNaN(e.AQI) || math.IsInf(e.AQI, 0) || e.AQI < 0 {
			return s, invalid(s, e, "AQI must be a non-negative number")
		}
		v := e.AQI
		next.AQI = &v
		next.Advisory = nil
		next.Page = PageAQIResult

	case EventAssessmentReady:
		if s.Page != PageHealthImpact {
			return s, invalid(s, e, "")
		}
		if e.Advisory == nil {
			return s, invalid(s, e, "missing assessment")
		}
		a := *e.Advisory
		next.Advisory = &a
		next.Page = PageHealthResult

	case EventBackToResult:
		if s.Page != PageHealthImpact {
			return s, invalid(s, e, "")
		}
		next.Page = PageAQIResult

	case EventStartOver:
		if s.Page != PageHealthResult {
			return s, invalid(s, e, "")
		}
		next = NewSession()

	default:
		return s, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, e.Kind)
	}

	return next, nil
}

// Allowed lists the events accepted on the session's current page.
func Allowed(s Session) []EventKind {
	kinds := []EventKind{EventGoHome, EventGoCheckAQI}
	if s.HasAQI() {
		kinds = append(kinds, EventGoHealthImpact)
	}
	switch s.Page {
	case PageCheckAQI:
		kinds = append(kinds, EventAQIComputed)
	case PageHealthImpact:
		kinds = append(kinds, EventAssessmentReady, EventBackToResult)
	case PageHealthResult:
		kinds = append(kinds, EventStartOver)
	}
	return kinds
}

func invalid(s Session, e Event, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: %s on page %s", ErrInvalidTransition, e.Kind, s.Page)
	}
	return fmt.Errorf("%w: %s on page %s: %s", ErrInvalidTransition, e.Kind, s.Page, reason)
}
