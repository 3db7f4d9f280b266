package worker

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/syntaxsurfers/smartcity/internal/energy"
	"github.com/syntaxsurfers/smartcity/internal/panel"
	"github.com/syntaxsurfers/smartcity/internal/traffic"
	"github.com/syntaxsurfers/smartcity/internal/water"
	"github.com/syntaxsurfers/smartcity/internal/weather"
)

// WeatherLoader loads the weather panel. *weather.Service satisfies this interface.
type WeatherLoader interface {
	Forecast(ctx context.Context, city string) panel.Result[weather.Report]
}

// TrafficLoader loads the traffic panel. *traffic.InsightsService satisfies this interface.
type TrafficLoader interface {
	Insights(ctx context.Context, lat, lng float64) panel.Result[traffic.Insights]
}

// EnergyLoader loads the energy panel. *energy.Service satisfies this interface.
type EnergyLoader interface {
	Load(ctx context.Context, respondent string) panel.Result[energy.Report]
}

// WaterLoader loads the water panel. *water.Service satisfies this interface.
type WaterLoader interface {
	Load(ctx context.Context, site string) panel.Result[water.Report]
}

// RefreshJob loads every configured panel and reports which ones could only
// show sample data. The latest outcome per panel and target is kept for the
// worker's health endpoint, and every load is counted by the panel loader.
type RefreshJob struct {
	config RefreshConfig
	logger zerolog.Logger

	// Services (optional, nil if not configured)
	weather WeatherLoader
	traffic TrafficLoader
	energy  EnergyLoader
	water   WaterLoader

	// Metrics
	metrics *RefreshMetrics

	statusMu sync.RWMutex
	statuses map[string]PanelStatus
}

// PanelStatus is the outcome of the latest load of one panel for one target.
type PanelStatus struct {
	Panel     string    `json:"panel"`
	Target    string    `json:"target"`
	Live      bool      `json:"live"`
	Warning   string    `json:"warning,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns    int64
	LivePanels   int64
	SamplePanels int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Logger  zerolog.Logger
	Weather WeatherLoader
	Traffic TrafficLoader
	Energy  EnergyLoader
	Water   WaterLoader
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config = DefaultRefreshConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &RefreshJob{
		config:   config,
		logger:   cfg.Logger,
		weather:  cfg.Weather,
		traffic:  cfg.Traffic,
		energy:   cfg.Energy,
		water:    cfg.Water,
		metrics:  &RefreshMetrics{},
		statuses: make(map[string]PanelStatus),
	}
}

// RefreshResult contains the result of a refresh operation.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Targets   int
	Live      int
	Sample    int
	Fallbacks []Fallback
}

// Fallback records a panel that fell back to sample data.
type Fallback struct {
	Panel   string
	Target  string
	Warning string
}

// Healthy reports whether at least as many panels were live as fell back.
func (r *RefreshResult) Healthy() bool {
	return r.Sample <= r.Live
}

// Run executes the refresh job for all configured targets.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	targets := j.config.OrderedTargets()
	result := &RefreshResult{
		StartTime: startTime,
		Targets:   len(targets),
	}

	j.logger.Info().
		Int("targets", len(targets)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting panel refresh job")

	targetsChan := make(chan RefreshTarget, len(targets))
	resultsChan := make(chan []outcome, len(targets)+1)

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, targetsChan, resultsChan)
		}()
	}

	for _, t := range targets {
		targetsChan <- t
	}
	close(targetsChan)

	wg.Add(1)
	go func() {
		defer wg.Done()
		resultsChan <- j.refreshRegional(ctx)
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for outcomes := range resultsChan {
		j.recordStatuses(outcomes)
		for _, o := range outcomes {
			if o.live {
				result.Live++
				continue
			}
			result.Sample++
			result.Fallbacks = append(result.Fallbacks, Fallback{Panel: o.panel, Target: o.target, Warning: o.warning})
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("live", result.Live).
		Int("sample", result.Sample).
		Msg("panel refresh job completed")

	return result
}

type outcome struct {
	panel     string
	target    string
	live      bool
	warning   string
	updatedAt time.Time
}

func (j *RefreshJob) refreshWorker(ctx context.Context, targets <-chan RefreshTarget, results chan<- []outcome) {
	for target := range targets {
		select {
		case <-ctx.Done():
			results <- nil
		default:
			results <- j.refreshTarget(ctx, target)
		}
	}
}

func (j *RefreshJob) refreshTarget(ctx context.Context, target RefreshTarget) []outcome {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	var outcomes []outcome
	if j.config.RefreshWeather && j.weather != nil {
		res := j.weather.Forecast(ctx, target.Name)
		outcomes = append(outcomes, outcome{panel: "weather", target: target.Name, live: res.Live, warning: res.Warning, updatedAt: res.UpdatedAt})
	}
	if j.config.RefreshTraffic && j.traffic != nil {
		res := j.traffic.Insights(ctx, target.Point.Lat, target.Point.Lon)
		outcomes = append(outcomes, outcome{panel: "traffic", target: target.Name, live: res.Live, warning: res.Warning, updatedAt: res.UpdatedAt})
	}
	return outcomes
}

// refreshRegional loads the panels that have a single default source.
func (j *RefreshJob) refreshRegional(ctx context.Context) []outcome {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	var outcomes []outcome
	if j.config.RefreshEnergy && j.energy != nil {
		res := j.energy.Load(ctx, "")
		outcomes = append(outcomes, outcome{panel: "energy", target: res.Data.Respondent, live: res.Live, warning: res.Warning, updatedAt: res.UpdatedAt})
	}
	if j.config.RefreshWater && j.water != nil {
		res := j.water.Load(ctx, "")
		outcomes = append(outcomes, outcome{panel: "water", target: res.Data.Site, live: res.Live, warning: res.Warning, updatedAt: res.UpdatedAt})
	}
	return outcomes
}

func (j *RefreshJob) recordStatuses(outcomes []outcome) {
	j.statusMu.Lock()
	defer j.statusMu.Unlock()
	for _, o := range outcomes {
		j.statuses[o.panel+"/"+o.target] = PanelStatus{
			Panel:     o.panel,
			Target:    o.target,
			Live:      o.live,
			Warning:   o.warning,
			UpdatedAt: o.updatedAt,
		}
	}
}

// Statuses returns the latest outcome of every panel, ordered by panel then target.
func (j *RefreshJob) Statuses() []PanelStatus {
	j.statusMu.RLock()
	out := make([]PanelStatus, 0, len(j.statuses))
	for _, s := range j.statuses {
		out = append(out, s)
	}
	j.statusMu.RUnlock()

	slices.SortFunc(out, func(a, b PanelStatus) int {
		return cmp.Or(cmp.Compare(a.Panel, b.Panel), cmp.Compare(a.Target, b.Target))
	})
	return out
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.LivePanels += int64(result.Live)
	j.metrics.SamplePanels += int64(result.Sample)
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:           j.metrics.TotalRuns,
		LivePanels:          j.metrics.LivePanels,
		SamplePanels:        j.metrics.SamplePanels,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":            m.TotalRuns,
		"live_panels":           m.LivePanels,
		"sample_panels":         m.SamplePanels,
		"last_refresh_at":       m.LastRefreshAt,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"total_duration":        m.TotalDuration.String(),
		"panels":                j.Statuses(),
	}
}
