// Package luchtmeetnet implements airquality.Provider against the Dutch
// national air quality monitoring network API.
package luchtmeetnet

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/airadvisor/airadvisor/internal/airquality"
	"github.com/airadvisor/airadvisor/internal/aqi"
	"github.com/airadvisor/airadvisor/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the Luchtmeetnet API.
	DefaultBaseURL = "https://api.luchtmeetnet.nl/open_api"

	// ProviderName identifies this provider.
	ProviderName = "luchtmeetnet"

	// maxPages bounds pagination against a misbehaving upstream.
	maxPages = 50
)

// ClientConfig holds configuration for the Luchtmeetnet client.
type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient defaults to a resilient client named ProviderName.
	HTTPClient *resilience.Client

	// Window is how far back measurements are requested. Default: 3 hours
	Window time.Duration

	// DetailConcurrency bounds parallel station detail requests. Default: 8
	DetailConcurrency int

	Logger zerolog.Logger

	// Now overrides the clock. Used by tests.
	Now func() time.Time
}

// Client is a Luchtmeetnet API client.
type Client struct {
	baseURL           string
	httpClient        *resilience.Client
	window            time.Duration
	detailConcurrency int
	logger            zerolog.Logger
	now               func() time.Time
}

// NewClient creates a new Luchtmeetnet client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}
	if cfg.Window <= 0 {
		cfg.Window = 3 * time.Hour
	}
	if cfg.DetailConcurrency <= 0 {
		cfg.DetailConcurrency = 8
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{
		baseURL:           strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:        cfg.HTTPClient,
		window:            cfg.Window,
		detailConcurrency: cfg.DetailConcurrency,
		logger:            cfg.Logger,
		now:               cfg.Now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

type pagination struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

type stationsResponse struct {
	Pagination pagination `json:"pagination"`
	Data       []struct {
		Number   string `json:"number"`
		Location string `json:"location"`
	} `json:"data"`
}

type stationDetailResponse struct {
	Data struct {
		Location   string   `json:"location"`
		Components []string `json:"components"`
		Geometry   struct {
			// Coordinates are [longitude, latitude].
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"data"`
}

type measurementsResponse struct {
	Pagination pagination `json:"pagination"`
	Data       []struct {
		StationNumber     string  `json:"station_number"`
		Formula           string  `json:"formula"`
		Value             float64 `json:"value"`
		TimestampMeasured string  `json:"timestamp_measured"`
	} `json:"data"`
}

// FetchSnapshot fetches every station with its components and the latest
// measurement of each formula pollutant.
func (c *Client) FetchSnapshot(ctx context.Context) (*airquality.Snapshot, error) {
	stations, err := c.FetchStations(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := airquality.NewSnapshot(ProviderName)
	for _, st := range stations {
		snapshot.AddStation(st)
	}

	for _, p := range aqi.AllPollutants() {
		measurements, err := c.FetchMeasurements(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, m := range measurements {
			if _, ok := snapshot.Stations[m.StationID]; ok {
				snapshot.SetMeasurement(m)
			}
		}
	}

	snapshot.FetchedAt = c.now()
	return snapshot, nil
}

// FetchStations lists stations and resolves their coordinates and
// components. Stations without coordinates are skipped.
func (c *Client) FetchStations(ctx context.Context) ([]*airquality.Station, error) {
	var numbers, names []string
	for page := 1; page <= maxPages; page++ {
		var resp stationsResponse
		if err := c.get(ctx, "/stations", url.Values{"page": {strconv.Itoa(page)}}, &resp); err != nil {
			return nil, fmt.Errorf("luchtmeetnet stations: %w", err)
		}
		for _, s := range resp.Data {
			numbers = append(numbers, s.Number)
			names = append(names, s.Location)
		}
		if page >= resp.Pagination.LastPage {
			break
		}
	}

	details := make([]*airquality.Station, len(numbers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.detailConcurrency)
	for i, number := range numbers {
		g.Go(func() error {
			st, err := c.fetchStation(gctx, number)
			if err != nil {
				return err
			}
			if st != nil && st.Name == "" {
				st.Name = names[i]
			}
			details[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stations := make([]*airquality.Station, 0, len(details))
	for _, st := range details {
		if st != nil {
			stations = append(stations, st)
		}
	}
	return stations, nil
}

func (c *Client) fetchStation(ctx context.Context, number string) (*airquality.Station, error) {
	var resp stationDetailResponse
	if err := c.get(ctx, "/stations/"+url.PathEscape(number), nil, &resp); err != nil {
		return nil, fmt.Errorf("luchtmeetnet station %s: %w", number, err)
	}

	coords := resp.Data.Geometry.Coordinates
	if len(coords) < 2 {
		c.logger.Debug().Str("station", number).Msg("skipping station without coordinates")
		return nil, nil
	}

	st := &airquality.Station{
		ID:   number,
		Name: resp.Data.Location,
		Lat:  coords[1],
		Lon:  coords[0],
	}
	for _, comp := range resp.Data.Components {
		if p, ok := toPollutant(comp); ok {
			st.Pollutants = append(st.Pollutants, p)
		}
	}
	return st, nil
}

// FetchMeasurements returns measurements of p within the configured window,
// newest first, converted to formula units.
func (c *Client) FetchMeasurements(ctx context.Context, p aqi.Pollutant) ([]*airquality.Measurement, error) {
	end := c.now().UTC()
	start := end.Add(-c.window)

	var out []*airquality.Measurement
	for page := 1; page <= maxPages; page++ {
		q := url.Values{
			"formula":         {formulaFor(p)},
			"start":           {start.Format(time.RFC3339)},
			"end":             {end.Format(time.RFC3339)},
			"order_by":        {"timestamp_measured"},
			"order_direction": {"desc"},
			"page":            {strconv.Itoa(page)},
		}
		var resp measurementsResponse
		if err := c.get(ctx, "/measurements", q, &resp); err != nil {
			return nil, fmt.Errorf("luchtmeetnet %s measurements: %w", p, err)
		}
		for _, m := range resp.Data {
			pol, ok := toPollutant(m.Formula)
			if !ok || pol != p || m.Value < 0 {
				continue
			}
			measuredAt, _ := time.Parse(time.RFC3339, m.TimestampMeasured)
			out = append(out, &airquality.Measurement{
				StationID:  m.StationNumber,
				Pollutant:  pol,
				Value:      toFormulaUnit(pol, m.Value),
				MeasuredAt: measuredAt,
			})
		}
		if page >= resp.Pagination.LastPage {
			break
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.httpClient.DoJSON(ctx, http.MethodGet, u, nil, out)
}

// toPollutant maps a Luchtmeetnet formula onto a formula pollutant.
func toPollutant(formula string) (aqi.Pollutant, bool) {
	switch strings.ToUpper(formula) {
	case "CO":
		return aqi.PollutantCO, true
	case "NO2":
		return aqi.PollutantNO2, true
	case "PM25":
		return aqi.PollutantPM25, true
	case "SO2":
		return aqi.PollutantSO2, true
	case "O3":
		return aqi.PollutantO3, true
	default:
		return "", false
	}
}

func formulaFor(p aqi.Pollutant) string {
	if p == aqi.PollutantPM25 {
		return "PM25"
	}
	return string(p)
}

// toFormulaUnit converts µg/m³ to the estimator's unit; CO is in mg/m³.
func toFormulaUnit(p aqi.Pollutant, v float64) float64 {
	if p == aqi.PollutantCO {
		return v / 1000
	}
	return v
}
