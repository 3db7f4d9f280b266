package traffic

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/syntaxsurfers/smartcity/internal/panel"
)

// InsightsWarning is shown when insights fall back to estimated data.
const InsightsWarning = "Unable to fetch real-time traffic data. Using estimated data instead."

// peakThreshold is the congestion above which an hour counts as a peak hour.
const peakThreshold = 70

var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Insights is the traffic panel payload.
type Insights struct {
	Latitude          float64       `json:"latitude"`
	Longitude         float64       `json:"longitude"`
	CurrentCongestion float64       `json:"currentCongestion"`
	CurrentSpeed      float64       `json:"currentSpeed,omitempty"`
	FreeFlowSpeed     float64       `json:"freeFlowSpeed,omitempty"`
	Hourly            []HourlyPoint `json:"hourly"`
	Weekly            []DailyPoint  `json:"weekly"`
	PeakHours         []string      `json:"peakHours"`
	IncidentsToday    int           `json:"incidentsToday"`
}

// HourlyPoint is one bar of the hourly congestion chart.
type HourlyPoint struct {
	Hour       int     `json:"hour"`
	Time       string  `json:"time"`
	Congestion float64 `json:"congestion"`
	Incidents  int     `json:"incidents"`
}

// DailyPoint is one bar of the weekly congestion chart.
type DailyPoint struct {
	Day        string  `json:"day"`
	Congestion float64 `json:"congestion"`
}

// InsightsServiceConfig holds configuration for the insights panel.
type InsightsServiceConfig struct {
	BaseURL string
	APIKey  string
	Fetcher panel.Fetcher
	Loader  *panel.Loader
	// Now defaults to time.Now.
	Now func() time.Time
}

// InsightsService builds the traffic insights panel for a location.
type InsightsService struct {
	baseURL string
	apiKey  string
	fetcher panel.Fetcher
	loader  *panel.Loader
	now     func() time.Time
}

// NewInsightsService creates an InsightsService.
func NewInsightsService(cfg InsightsServiceConfig) *InsightsService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tomtom.com"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &InsightsService{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		fetcher: cfg.Fetcher,
		loader:  cfg.Loader,
		now:     now,
	}
}

// Definition returns the panel definition for a location.
func (s *InsightsService) Definition(lat, lng float64) panel.Definition[Insights] {
	return panel.Definition[Insights]{
		Source: panel.Source{
			Name: "traffic",
			URL:  FlowSegmentURL(s.baseURL, s.apiKey, lat, lng),
		},
		Fetcher: s.fetcher,
		Transform: func(body []byte) (Insights, error) {
			return TransformFlowSegment(body, lat, lng, s.now(), panel.NewRand())
		},
		Sample: func() Insights {
			return SampleInsights(lat, lng, s.now())
		},
		Warning: InsightsWarning,
	}
}

// Insights loads the panel for a location.
func (s *InsightsService) Insights(ctx context.Context, lat, lng float64) panel.Result[Insights] {
	return panel.Load(ctx, s.loader, s.Definition(lat, lng))
}

// TransformFlowSegment derives insights from a flow segment response. The current
// hour and day carry the live congestion; the rest follow the daily pattern.
func TransformFlowSegment(body []byte, lat, lng float64, now time.Time, rng *rand.Rand) (Insights, error) {
	var payload struct {
		FlowSegmentData *struct {
			CurrentSpeed  *float64 `json:"currentSpeed"`
			FreeFlowSpeed *float64 `json:"freeFlowSpeed"`
		} `json:"flowSegmentData"`
	}
	if err := panel.DecodeJSON(body, &payload); err != nil {
		return Insights{}, err
	}
	if payload.FlowSegmentData == nil {
		return Insights{}, panel.MissingField("flowSegmentData")
	}
	if payload.FlowSegmentData.CurrentSpeed == nil {
		return Insights{}, panel.MissingField("flowSegmentData.currentSpeed")
	}
	if payload.FlowSegmentData.FreeFlowSpeed == nil || *payload.FlowSegmentData.FreeFlowSpeed <= 0 {
		return Insights{}, panel.MissingField("flowSegmentData.freeFlowSpeed")
	}

	current := *payload.FlowSegmentData.CurrentSpeed
	freeFlow := *payload.FlowSegmentData.FreeFlowSpeed
	congestion := Congestion(current, freeFlow)

	hourly := make([]HourlyPoint, 24)
	for h := range hourly {
		level := hourlyPattern(h, 0, rng)
		if h == now.Hour() {
			level = congestion
		}
		hourly[h] = hourlyPoint(h, level)
	}

	today := weekdayIndex(now)
	weekly := make([]DailyPoint, len(weekdays))
	for i, day := range weekdays {
		level := math.Floor((50 + rng.Float64()*30) * weekendFactor(i))
		if i == today {
			level = congestion
		}
		weekly[i] = DailyPoint{Day: day, Congestion: level}
	}

	return finish(Insights{
		Latitude:          lat,
		Longitude:         lng,
		CurrentCongestion: congestion,
		CurrentSpeed:      current,
		FreeFlowSpeed:     freeFlow,
		Hourly:            hourly,
		Weekly:            weekly,
	}), nil
}

// SampleInsights returns estimated insights. The same location yields the same data.
func SampleInsights(lat, lng float64, now time.Time) Insights {
	seed := LocationSeed(lat, lng)
	rng := panel.SeededRand(seed)

	hourly := make([]HourlyPoint, 24)
	for h := range hourly {
		hourly[h] = hourlyPoint(h, hourlyPattern(h, seed, rng))
	}

	weekly := make([]DailyPoint, len(weekdays))
	for i, day := range weekdays {
		level := math.Floor((50 + float64(seed%30) + rng.Float64()*30) * weekendFactor(i))
		weekly[i] = DailyPoint{Day: day, Congestion: panel.Clamp(level, 0, 100)}
	}

	current := hourly[now.Hour()].Congestion
	if current == 0 {
		current = 50
	}

	return finish(Insights{
		Latitude:          lat,
		Longitude:         lng,
		CurrentCongestion: current,
		Hourly:            hourly,
		Weekly:            weekly,
	})
}

// Congestion converts speeds to a 0-100 congestion percentage.
func Congestion(currentSpeed, freeFlowSpeed float64) float64 {
	if freeFlowSpeed <= 0 {
		return 0
	}
	return panel.Clamp(100-(currentSpeed/freeFlowSpeed)*100, 0, 100)
}

// LocationSeed derives the sample seed for a location.
func LocationSeed(lat, lng float64) int64 {
	return int64(math.Floor(math.Mod(lat*10+lng*10, 100)))
}

// hourlyPattern models morning and evening peaks. offset shifts each band for
// sample data.
func hourlyPattern(hour int, offset int64, rng *rand.Rand) float64 {
	var base, spread float64
	var mod int64
	switch {
	case hour >= 7 && hour <= 9:
		base, spread, mod = 70, 30, 30
	case hour >= 16 && hour <= 19:
		base, spread, mod = 80, 20, 20
	case hour >= 11 && hour <= 14:
		base, spread, mod = 40, 30, 30
	case hour <= 5:
		base, spread, mod = 10, 15, 15
	default:
		base, spread, mod = 30, 40, 40
	}
	level := base + math.Floor(float64(offset%mod)+rng.Float64()*spread)
	return panel.Clamp(level, 0, 100)
}

func hourlyPoint(hour int, level float64) HourlyPoint {
	return HourlyPoint{
		Hour:       hour,
		Time:       panel.HourLabel(hour),
		Congestion: level,
		Incidents:  int(level / 20),
	}
}

func weekendFactor(day int) float64 {
	if day >= 5 {
		return 0.7
	}
	return 1
}

// weekdayIndex maps time.Weekday onto Mon=0 ... Sun=6.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func finish(in Insights) Insights {
	in.PeakHours = []string{}
	for _, h := range in.Hourly {
		if h.Congestion > peakThreshold {
			in.PeakHours = append(in.PeakHours, h.Time)
		}
		in.IncidentsToday += h.Incidents
	}
	return in
}
