// Package dashboard keeps the overview snapshot shown on the dashboard home page.
//
// The snapshot is refreshed on a fixed timer. Refreshes are not serialised: a
// slow refresh may overlap the next tick and whichever finishes last is kept.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/syntaxsurfers/smartcity/internal/panel"
	"github.com/syntaxsurfers/smartcity/internal/traffic"
	"github.com/syntaxsurfers/smartcity/internal/weather"
)

// WeatherSource defines the weather panel for a city. *weather.Service
// satisfies this interface.
type WeatherSource interface {
	Definition(city string) panel.Definition[weather.Report]
}

// TrafficSource defines the traffic panel for a location.
// *traffic.InsightsService satisfies this interface.
type TrafficSource interface {
	Definition(lat, lng float64) panel.Definition[traffic.Insights]
}

// Overview is the dashboard snapshot.
type Overview struct {
	City        string           `json:"city"`
	Weather     weather.Report   `json:"weather"`
	Traffic     traffic.Insights `json:"traffic"`
	Live        map[string]bool  `json:"live"`
	Warnings    []string         `json:"warnings,omitempty"`
	RefreshedAt time.Time        `json:"refreshedAt"`
}

// PollerConfig holds configuration for the overview poller.
type PollerConfig struct {
	Weather   WeatherSource
	Traffic   TrafficSource
	Loader    *panel.Loader
	City      string
	Latitude  float64
	Longitude float64

	// Interval between refreshes (default: 1 minute).
	Interval time.Duration

	// Timeout bounds a single refresh (default: 30 seconds).
	Timeout time.Duration

	Logger zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Poller refreshes the overview on a timer. Each panel keeps its own latest
// result, so overlapping refreshes settle per panel on whichever finished last.
type Poller struct {
	cfg       PollerConfig
	scheduler *gocron.Scheduler
	logger    zerolog.Logger

	weather *panel.Panel[weather.Report]
	traffic *panel.Panel[traffic.Insights]

	mu          sync.RWMutex
	refreshedAt time.Time
}

// NewPoller creates a new overview poller.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Loader == nil {
		cfg.Loader = panel.NewLoader(cfg.Logger, nil)
	}
	return &Poller{
		cfg:       cfg,
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    cfg.Logger.With().Str("component", "dashboard_poller").Logger(),
		weather:   panel.New(cfg.Loader, cfg.Weather.Definition(cfg.City)),
		traffic:   panel.New(cfg.Loader, cfg.Traffic.Definition(cfg.Latitude, cfg.Longitude)),
	}
}

// Start schedules the refresh job and runs the first refresh immediately.
func (p *Poller) Start() error {
	_, err := p.scheduler.Every(p.cfg.Interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
		defer cancel()
		p.Refresh(ctx)
	})
	if err != nil {
		return err
	}

	p.scheduler.StartAsync()
	p.logger.Info().Dur("interval", p.cfg.Interval).Msg("overview poller started")
	return nil
}

// Stop stops the scheduler. A refresh already running completes.
func (p *Poller) Stop() {
	p.scheduler.Stop()
}

// Refresh loads every panel of the overview and returns the snapshot.
func (p *Poller) Refresh(ctx context.Context) Overview {
	var (
		wg sync.WaitGroup
		wr panel.Result[weather.Report]
		tr panel.Result[traffic.Insights]
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		wr = p.weather.Refresh(ctx)
	}()
	go func() {
		defer wg.Done()
		tr = p.traffic.Refresh(ctx)
	}()
	wg.Wait()

	refreshedAt := p.cfg.Now().UTC()
	p.mu.Lock()
	p.refreshedAt = refreshedAt
	p.mu.Unlock()

	p.logger.Debug().
		Bool("weather_live", wr.Live).
		Bool("traffic_live", tr.Live).
		Msg("overview refreshed")
	return overview(wr, tr, refreshedAt)
}

// Current returns the latest snapshot and whether a refresh has completed.
func (p *Poller) Current() (Overview, bool) {
	wr, weatherOK := p.weather.Current()
	tr, trafficOK := p.traffic.Current()
	if !weatherOK || !trafficOK {
		return Overview{}, false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return overview(wr, tr, p.refreshedAt), true
}

func overview(wr panel.Result[weather.Report], tr panel.Result[traffic.Insights], refreshedAt time.Time) Overview {
	ov := Overview{
		City:        wr.Data.City,
		Weather:     wr.Data,
		Traffic:     tr.Data,
		Live:        map[string]bool{"weather": wr.Live, "traffic": tr.Live},
		RefreshedAt: refreshedAt,
	}
	for _, w := range []string{wr.Warning, tr.Warning} {
		if w != "" {
			ov.Warnings = append(ov.Warnings, w)
		}
	}
	return ov
}
