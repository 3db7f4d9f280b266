// Package water provides the water level panel backed by USGS instantaneous values.
package water

import (
	"context"
	"math"
	"math/rand/v2"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/syntaxsurfers/smartcity/internal/panel"
)

const (
	// DefaultBaseURL is the USGS water services root.
	DefaultBaseURL = "https://waterservices.usgs.gov/nwis"

	// DefaultSite is the gauge queried when none is given (Potomac River near Washington).
	DefaultSite = "01646500"

	// Warning is shown when the panel falls back to sample data.
	Warning = "Unable to fetch water data. Using sample data instead."

	// USGS parameter codes.
	ParamDischarge  = "00060"
	ParamGageHeight = "00065"

	historyPoints = 24
)

var weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Flood risk levels.
const (
	RiskHigh     = "High"
	RiskModerate = "Moderate"
	RiskLow      = "Low"
)

// Report is the water panel payload.
type Report struct {
	Site                  string          `json:"site"`
	CurrentLevel          float64         `json:"currentLevel"` // ft
	CurrentDischarge      float64         `json:"currentDischarge"`
	History               []Reading       `json:"historicalData"`
	Quality               []Metric        `json:"waterQualityData"`
	ReservoirCapacity     float64         `json:"reservoirCapacity"`
	Reservoir             []Metric        `json:"reservoirData"`
	FloodRisk             FloodRisk       `json:"floodRisk"`
	PrecipitationForecast []Precipitation `json:"precipitationForecast"`
}

// Reading is one historical gauge reading.
type Reading struct {
	Time      string  `json:"time"`
	Level     float64 `json:"level"`
	Discharge float64 `json:"discharge"`
}

// Metric is a named value.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// FloodRisk is the flood risk tier.
type FloodRisk struct {
	Level      string `json:"level"`
	Percentage int    `json:"percentage"`
}

// Precipitation is the forecast rainfall for a day in mm.
type Precipitation struct {
	Day           string  `json:"day"`
	Precipitation float64 `json:"precipitation"`
}

// ServiceConfig holds configuration for the water service.
type ServiceConfig struct {
	BaseURL string
	Fetcher panel.Fetcher
	Loader  *panel.Loader
}

// Service loads the water panel.
type Service struct {
	baseURL string
	fetcher panel.Fetcher
	loader  *panel.Loader
}

// NewService creates a new water service.
func NewService(cfg ServiceConfig) *Service {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Service{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		fetcher: cfg.Fetcher,
		loader:  cfg.Loader,
	}
}

// Definition returns the panel definition for a gauge site.
func (s *Service) Definition(site string) panel.Definition[Report] {
	site = strings.TrimSpace(site)
	if site == "" {
		site = DefaultSite
	}
	return panel.Definition[Report]{
		Source: panel.Source{
			Name: "water",
			URL:  InstantValuesURL(s.baseURL, site),
		},
		Fetcher:   s.fetcher,
		Transform: func(body []byte) (Report, error) { return TransformInstantValues(body, site, panel.NewRand()) },
		Sample:    func() Report { return SampleReport(site, panel.NewRand()) },
		Warning:   Warning,
	}
}

// Load loads the water panel.
func (s *Service) Load(ctx context.Context, site string) panel.Result[Report] {
	return panel.Load(ctx, s.loader, s.Definition(site))
}

// InstantValuesURL builds the instantaneous values request for a site.
func InstantValuesURL(baseURL, site string) string {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("sites", site)
	q.Set("parameterCd", ParamDischarge+","+ParamGageHeight)
	q.Set("siteStatus", "active")
	return baseURL + "/iv/?" + q.Encode()
}

type series struct {
	Variable struct {
		VariableCode []struct {
			Value string `json:"value"`
		} `json:"variableCode"`
	} `json:"variable"`
	Values []struct {
		Value []struct {
			Value    string `json:"value"`
			DateTime string `json:"dateTime"`
		} `json:"value"`
	} `json:"values"`
}

func (s *series) code() string {
	if len(s.Variable.VariableCode) == 0 {
		return ""
	}
	return s.Variable.VariableCode[0].Value
}

func (s *series) point(i int) (value float64, at string, ok bool) {
	if s == nil || len(s.Values) == 0 || i >= len(s.Values[0].Value) {
		return 0, "", false
	}
	p := s.Values[0].Value[i]
	v, err := strconv.ParseFloat(p.Value, 64)
	if err != nil {
		return 0, p.DateTime, false
	}
	return v, p.DateTime, true
}

type instantValuesResponse struct {
	Value *struct {
		TimeSeries []series `json:"timeSeries"`
	} `json:"value"`
}

// TransformInstantValues maps a USGS instantaneous values response onto a Report.
// Gauge height is required; discharge readings default to zero when absent.
func TransformInstantValues(body []byte, site string, rng *rand.Rand) (Report, error) {
	var resp instantValuesResponse
	if err := panel.DecodeJSON(body, &resp); err != nil {
		return Report{}, err
	}
	if resp.Value == nil {
		return Report{}, panel.MissingField("value.timeSeries")
	}

	var discharge, height *series
	for i := range resp.Value.TimeSeries {
		switch resp.Value.TimeSeries[i].code() {
		case ParamDischarge:
			discharge = &resp.Value.TimeSeries[i]
		case ParamGageHeight:
			height = &resp.Value.TimeSeries[i]
		}
	}

	level, _, ok := height.point(0)
	if !ok {
		return Report{}, panel.MissingField("gage height " + ParamGageHeight)
	}
	flow, _, _ := discharge.point(0)

	history := make([]Reading, 0, historyPoints)
	for i := 0; i < historyPoints; i++ {
		l, at, ok := height.point(i)
		if !ok {
			break
		}
		d, _, _ := discharge.point(i)
		history = append(history, Reading{Time: clock(at), Level: l, Discharge: d})
	}
	// USGS lists newest first.
	slices.Reverse(history)

	capacity := 85 + rng.Float64()*10
	return Report{
		Site:             site,
		CurrentLevel:     level,
		CurrentDischarge: flow,
		History:          history,
		Quality: []Metric{
			{Name: "Dissolved Oxygen", Value: 7.2 + rng.Float64()*1.5},
			{Name: "pH", Value: 6.8 + rng.Float64()*1.4},
			{Name: "Turbidity", Value: 2.5 + rng.Float64()*3},
			{Name: "Temperature", Value: 18 + rng.Float64()*4},
			{Name: "Conductivity", Value: 320 + rng.Float64()*80},
		},
		ReservoirCapacity:     capacity,
		Reservoir:             reservoir(capacity),
		FloodRisk:             AssessFloodRisk(level),
		PrecipitationForecast: precipitation(rng),
	}, nil
}

// SampleReport generates a synthetic report.
func SampleReport(site string, rng *rand.Rand) Report {
	history := make([]Reading, historyPoints)
	for i := range history {
		wave := math.Sin(float64(i) / 3)
		history[i] = Reading{
			Time:      panel.HourLabel((i + 1) % 24),
			Level:     8 + wave*2 + rng.Float64()*0.5,
			Discharge: 200 + wave*50 + rng.Float64()*20,
		}
	}

	const capacity = 78
	return Report{
		Site:             site,
		CurrentLevel:     9.2,
		CurrentDischarge: 245,
		History:          history,
		Quality: []Metric{
			{Name: "Dissolved Oxygen", Value: 7.8},
			{Name: "pH", Value: 7.2},
			{Name: "Turbidity", Value: 3.5},
			{Name: "Temperature", Value: 19.5},
			{Name: "Conductivity", Value: 350},
		},
		ReservoirCapacity:     capacity,
		Reservoir:             reservoir(capacity),
		FloodRisk:             FloodRisk{Level: RiskLow, Percentage: 15},
		PrecipitationForecast: precipitation(rng),
	}
}

// AssessFloodRisk maps a gauge height in feet to a risk tier.
func AssessFloodRisk(level float64) FloodRisk {
	switch {
	case level > 15:
		return FloodRisk{Level: RiskHigh, Percentage: 80}
	case level > 10:
		return FloodRisk{Level: RiskModerate, Percentage: 40}
	default:
		return FloodRisk{Level: RiskLow, Percentage: 10}
	}
}

func reservoir(capacity float64) []Metric {
	return []Metric{
		{Name: "Current Level", Value: capacity},
		{Name: "Remaining", Value: 100 - capacity},
	}
}

func precipitation(rng *rand.Rand) []Precipitation {
	out := make([]Precipitation, len(weekdays))
	for i, d := range weekdays {
		out[i] = Precipitation{Day: d, Precipitation: rng.Float64() * 25}
	}
	return out
}

// clock formats a USGS timestamp as HH:MM in the gauge's own offset.
func clock(ts string) string {
	t, err := time.Parse("2006-01-02T15:04:05.000-07:00", ts)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, ts); err != nil {
			return ts
		}
	}
	return t.Format("15:04")
}
