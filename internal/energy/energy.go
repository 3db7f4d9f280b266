// Package energy provides the electricity panel backed by the EIA v2 API.
//
// EIA publishes daily region demand only, so the live transform fills the daily
// series from the API and derives the remaining fields from the usage profile.
package energy

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/syntaxsurfers/smartcity/internal/panel"
)

const (
	// DefaultBaseURL is the EIA v2 API root.
	DefaultBaseURL = "https://api.eia.gov/v2"

	// DefaultRespondent is the balancing authority queried when none is given.
	DefaultRespondent = "CISO"

	// Warning is shown when the panel falls back to sample data.
	Warning = "Unable to fetch energy data. Using sample data instead."

	dailyDays = 30
)

var renewables = []string{"Solar", "Wind", "Hydro"}

var months = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Report is the energy panel payload.
type Report struct {
	Respondent          string        `json:"respondent"`
	CurrentUsage        float64       `json:"currentUsage"`
	DailyPeak           float64       `json:"dailyPeak"`
	Hourly              []HourlyUsage `json:"hourlyConsumption"`
	Daily               []DailyUsage  `json:"dailyConsumption"`
	Sources             []Source      `json:"energySources"`
	RenewablePercentage float64       `json:"renewablePercentage"`
	CarbonFootprint     Carbon        `json:"carbonFootprint"`
	Efficiency          float64       `json:"energyEfficiency"`
	CostSavings         float64       `json:"costSavings"`
}

// HourlyUsage is consumption for one hour of the day.
type HourlyUsage struct {
	Hour        int     `json:"hour"`
	Time        string  `json:"time"`
	Consumption float64 `json:"consumption"`
}

// DailyUsage is consumption for one calendar day.
type DailyUsage struct {
	Date        string  `json:"date"`
	Consumption float64 `json:"consumption"`
}

// Source is the share of one generation source.
type Source struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Carbon is the carbon footprint card.
type Carbon struct {
	Current float64        `json:"current"`
	Target  float64        `json:"target"`
	Trend   []MonthlyValue `json:"trend"`
}

// MonthlyValue is one point of a monthly trend.
type MonthlyValue struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

// ServiceConfig holds configuration for the energy service.
type ServiceConfig struct {
	BaseURL string
	APIKey  string
	Fetcher panel.Fetcher
	Loader  *panel.Loader
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service loads the energy panel.
type Service struct {
	baseURL string
	apiKey  string
	fetcher panel.Fetcher
	loader  *panel.Loader
	now     func() time.Time
}

// NewService creates a new energy service.
func NewService(cfg ServiceConfig) *Service {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  cfg.APIKey,
		fetcher: cfg.Fetcher,
		loader:  cfg.Loader,
		now:     now,
	}
}

// Definition returns the panel definition for a balancing authority.
func (s *Service) Definition(respondent string) panel.Definition[Report] {
	respondent = strings.ToUpper(strings.TrimSpace(respondent))
	if respondent == "" {
		respondent = DefaultRespondent
	}
	return panel.Definition[Report]{
		Source: panel.Source{
			Name: "energy",
			URL:  RegionDataURL(s.baseURL, s.apiKey, respondent),
		},
		Fetcher: s.fetcher,
		Transform: func(body []byte) (Report, error) {
			return TransformRegionData(body, respondent, panel.NewRand())
		},
		Sample: func() Report {
			return SampleReport(respondent, s.now(), panel.NewRand())
		},
		Warning: Warning,
	}
}

// Load loads the energy panel.
func (s *Service) Load(ctx context.Context, respondent string) panel.Result[Report] {
	return panel.Load(ctx, s.loader, s.Definition(respondent))
}

// RegionDataURL builds the daily region data request.
func RegionDataURL(baseURL, apiKey, respondent string) string {
	q := url.Values{}
	q.Set("api_key", apiKey)
	q.Set("frequency", "daily")
	q.Set("data[0]", "value")
	q.Set("facets[respondent][]", respondent)
	q.Set("sort[0][column]", "period")
	q.Set("sort[0][direction]", "desc")
	q.Set("length", strconv.Itoa(dailyDays))
	return baseURL + "/electricity/rto/daily-region-data/data/?" + q.Encode()
}

type regionDataResponse struct {
	Response *struct {
		Data []struct {
			Period string          `json:"period"`
			Value  json.RawMessage `json:"value"`
		} `json:"data"`
	} `json:"response"`
}

// TransformRegionData maps the EIA daily series onto a Report.
func TransformRegionData(body []byte, respondent string, rng *rand.Rand) (Report, error) {
	var resp regionDataResponse
	if err := panel.DecodeJSON(body, &resp); err != nil {
		return Report{}, err
	}
	if resp.Response == nil || len(resp.Response.Data) == 0 {
		return Report{}, panel.MissingField("response.data")
	}

	daily := make([]DailyUsage, 0, len(resp.Response.Data))
	for _, row := range resp.Response.Data {
		day, err := time.Parse(time.DateOnly, row.Period)
		if err != nil {
			return Report{}, panel.MissingField("response.data.period")
		}
		v, ok := number(row.Value)
		if !ok {
			return Report{}, panel.MissingField("response.data.value")
		}
		daily = append(daily, DailyUsage{Date: day.Format("Jan 2"), Consumption: v})
		if len(daily) == dailyDays {
			break
		}
	}
	// EIA returns newest first; the chart reads left to right.
	slices.Reverse(daily)

	r := profile(respondent, rng)
	r.Daily = daily
	return r, nil
}

// SampleReport generates a full synthetic report.
func SampleReport(respondent string, now time.Time, rng *rand.Rand) Report {
	r := profile(respondent, rng)
	r.Daily = make([]DailyUsage, dailyDays)
	for i := range r.Daily {
		day := now.AddDate(0, 0, -(dailyDays - 1 - i))
		r.Daily[i] = DailyUsage{
			Date:        day.Format("Jan 2"),
			Consumption: 800 + rng.Float64()*400,
		}
	}
	return r
}

// profile fills everything except the daily series.
func profile(respondent string, rng *rand.Rand) Report {
	r := Report{
		Respondent:   respondent,
		CurrentUsage: 42 + rng.Float64()*20,
		DailyPeak:    75 + rng.Float64()*15,
		Hourly:       make([]HourlyUsage, 24),
		Sources: []Source{
			{Name: "Solar", Value: 35 + rng.Float64()*10},
			{Name: "Wind", Value: 25 + rng.Float64()*10},
			{Name: "Hydro", Value: 15 + rng.Float64()*5},
			{Name: "Natural Gas", Value: 20 + rng.Float64()*5},
			{Name: "Coal", Value: 5 + rng.Float64()*3},
		},
		Efficiency:  82 + rng.Float64()*10,
		CostSavings: 15 + rng.Float64()*10,
	}

	for h := range r.Hourly {
		r.Hourly[h] = HourlyUsage{
			Hour:        h,
			Time:        panel.HourLabel(h),
			Consumption: hourlyConsumption(h, rng),
		}
	}

	r.RenewablePercentage = RenewableShare(r.Sources)

	r.CarbonFootprint = Carbon{
		Current: 120 + rng.Float64()*30,
		Target:  100,
		Trend:   make([]MonthlyValue, len(months)),
	}
	for i, m := range months {
		r.CarbonFootprint.Trend[i] = MonthlyValue{
			Month: m,
			Value: 180 - float64(i)*5 + (rng.Float64()*20 - 10),
		}
	}
	return r
}

// hourlyConsumption models morning and evening peaks.
func hourlyConsumption(hour int, rng *rand.Rand) float64 {
	switch {
	case hour >= 6 && hour <= 9:
		return 50 + rng.Float64()*20
	case hour >= 17 && hour <= 21:
		return 65 + rng.Float64()*25
	case hour <= 5:
		return 20 + rng.Float64()*10
	default:
		return 35 + rng.Float64()*15
	}
}

// RenewableShare sums the renewable sources.
func RenewableShare(sources []Source) float64 {
	var total float64
	for _, s := range sources {
		if slices.Contains(renewables, s.Name) {
			total += s.Value
		}
	}
	return total
}

// number accepts both numeric and quoted numeric JSON values.
func number(raw json.RawMessage) (float64, bool) {
	s := strings.Trim(string(raw), `"`)
	if s == "" || s == "null" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
