package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/airadvisor/airadvisor/internal/advisory"
	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/assessment"
	"github.com/airadvisor/airadvisor/internal/navigation"
)

var walkthroughCmd = &cobra.Command{
	Use:   "walkthrough",
	Short: "Step through the check-AQI and health-impact pages",
	Long: `Interactively estimate an AQI, then assess its health impact for a
profile. Type "help" on any page for the available actions.`,
	Args: cobra.NoArgs,
	RunE: runWalkthrough,
}

func init() {
	rootCmd.AddCommand(walkthroughCmd)
}

func runWalkthrough(cmd *cobra.Command, _ []string) error {
	_, c, err := loadComponents(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	return walk(cmd.Context(), c.Assessment, cmd.InOrStdin(), cmd.OutOrStdout())
}

// actions maps typed commands to page events. Estimate and assess collect
// their payload before firing.
var actions = map[string]navigation.EventKind{
	"home":     navigation.EventGoHome,
	"check":    navigation.EventGoCheckAQI,
	"health":   navigation.EventGoHealthImpact,
	"estimate": navigation.EventAQIComputed,
	"assess":   navigation.EventAssessmentReady,
	"back":     navigation.EventBackToResult,
	"restart":  navigation.EventStartOver,
}

var commandFor = func() map[navigation.EventKind]string {
	m := make(map[navigation.EventKind]string, len(actions))
	for name, kind := range actions {
		m[kind] = name
	}
	return m
}()

type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func (p *prompter) ask(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

func (p *prompter) float(label string) (float64, error) {
	for {
		s, err := p.ask(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return v, nil
		}
		fmt.Fprintf(p.out, "  %q is not a number\n", s)
	}
}

func (p *prompter) int(label string) (int, error) {
	for {
		s, err := p.ask(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(s)
		if err == nil {
			return v, nil
		}
		fmt.Fprintf(p.out, "  %q is not a whole number\n", s)
	}
}

// walk runs the page loop until "quit" or end of input.
func walk(ctx context.Context, svc *assessment.Service, in io.Reader, out io.Writer) error {
	p := &prompter{in: bufio.NewScanner(in), out: out}
	session := navigation.NewSession()

	render(out, session)
	for {
		line, err := p.ask(fmt.Sprintf("[%s]", session.Page))
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "help":
			printHelp(out, session)
			continue
		}

		kind, ok := actions[line]
		if !ok {
			fmt.Fprintf(out, "  unknown action %q, type \"help\"\n", line)
			continue
		}

		// Payloads are only collected when the page accepts the event;
		// otherwise Transition reports the rejection.
		event := navigation.Event{Kind: kind}
		if allowed(session, kind) {
			switch kind {
			case navigation.EventAQIComputed:
				event, err = estimateEvent(ctx, svc, p)
			case navigation.EventAssessmentReady:
				event, err = assessEvent(ctx, svc, p, *session.AQI)
			}
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "  error: %v\n", err)
			continue
		}

		next, err := navigation.Transition(session, event)
		if err != nil {
			fmt.Fprintf(out, "  %v\n", err)
			continue
		}
		session = next
		render(out, session)
	}
}

func allowed(s navigation.Session, kind navigation.EventKind) bool {
	for _, k := range navigation.Allowed(s) {
		if k == kind {
			return true
		}
	}
	return false
}

func estimateEvent(ctx context.Context, svc *assessment.Service, p *prompter) (navigation.Event, error) {
	m, err := p.ask("method (formula/model) [formula]")
	if err != nil {
		return navigation.Event{}, err
	}

	switch m {
	case "", assessment.MethodFormula:
		var r aqi.PollutantReading
		fields := []struct {
			label string
			dst   *float64
		}{
			{"CO (mg/m³)", &r.CO},
			{"NO2 (µg/m³)", &r.NO2},
			{"PM2.5 (µg/m³)", &r.PM25},
			{"SO2 (µg/m³)", &r.SO2},
			{"O3 (µg/m³)", &r.O3},
		}
		for _, f := range fields {
			if *f.dst, err = p.float(f.label); err != nil {
				return navigation.Event{}, err
			}
		}
		res, err := svc.AssessPollutants(ctx, r, assessment.MethodFormula, advisory.PresetSixTier, nil)
		if err != nil {
			return navigation.Event{}, err
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(p.out, "  warning: %s\n", w)
		}
		return navigation.AQIComputed(res.AQI), nil

	case assessment.MethodModel:
		var r aqi.WeatherReading
		fields := []struct {
			label string
			dst   *float64
		}{
			{"average temperature T (°C)", &r.T},
			{"maximum temperature TM (°C)", &r.TM},
			{"minimum temperature Tm (°C)", &r.Tm},
			{"sea level pressure SLP (hPa)", &r.SLP},
			{"humidity H (%)", &r.H},
			{"visibility VV (km)", &r.VV},
			{"wind speed V (km/h)", &r.V},
			{"maximum wind speed VM (km/h)", &r.VM},
		}
		for _, f := range fields {
			if *f.dst, err = p.float(f.label); err != nil {
				return navigation.Event{}, err
			}
		}
		v, err := svc.EstimateWeather(ctx, r)
		if err != nil {
			return navigation.Event{}, err
		}
		return navigation.AQIComputed(v), nil

	default:
		return navigation.Event{}, fmt.Errorf("unknown method %q", m)
	}
}

// assessEvent collects a profile and classifies with the five-tier preset,
// which is the one with profile-aware recommendations.
func assessEvent(ctx context.Context, svc *assessment.Service, p *prompter, value float64) (navigation.Event, error) {
	exposure, err := p.int("exposure time (hours)")
	if err != nil {
		return navigation.Event{}, err
	}
	age, err := p.int("age (years)")
	if err != nil {
		return navigation.Event{}, err
	}
	condition, err := p.ask("health condition (none/respiratory/cardiovascular/allergies/other) [none]")
	if err != nil {
		return navigation.Event{}, err
	}

	profile := &advisory.Profile{
		ExposureHours: exposure,
		Age:           age,
		Condition:     advisory.Condition(condition),
	}
	a, err := svc.Classify(ctx, advisory.PresetFiveTier, value, profile)
	if err != nil {
		return navigation.Event{}, err
	}
	return navigation.AssessmentReady(a), nil
}

func render(out io.Writer, s navigation.Session) {
	switch s.Page {
	case navigation.PageHome:
		fmt.Fprintln(out, "AirAdvisor: estimate the air quality index and what it means for your health.")
	case navigation.PageCheckAQI:
		fmt.Fprintln(out, "Check AQI: type \"estimate\" to enter readings.")
	case navigation.PageAQIResult:
		fmt.Fprintf(out, "Estimated AQI: %.2f\n", *s.AQI)
	case navigation.PageHealthImpact:
		fmt.Fprintf(out, "Health impact for AQI %.2f: type \"assess\" to enter your profile.\n", *s.AQI)
	case navigation.PageHealthResult:
		a := s.Advisory
		fmt.Fprintf(out, "Impact level: %s (%s)\n", a.Label, a.Range)
		fmt.Fprintf(out, "Risk: %s\n", a.RiskDescription)
		for _, r := range a.Recommendations {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
}

func printHelp(out io.Writer, s navigation.Session) {
	names := make([]string, 0, len(actions))
	for _, k := range navigation.Allowed(s) {
		names = append(names, commandFor[k])
	}
	names = append(names, "quit")
	fmt.Fprintf(out, "  actions: %s\n", strings.Join(names, ", "))
}
