package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/syntaxsurfers/smartcity/internal/news"
)

// Job types accepted by the dispatcher.
const (
	JobPanelRefresh = "panel_refresh"
	JobNewsFetch    = "news_fetch"
	JobHealthCheck  = "health_check"
)

// Dispatch errors.
var (
	ErrMalformedMessage = errors.New("malformed job message")
	ErrUnknownJob       = errors.New("unknown job type")
)

// NewsFetcher fetches and stores news. *news.Service satisfies this interface.
type NewsFetcher interface {
	FetchAndStore(ctx context.Context) (news.FetchResult, error)
}

// JobMessage is the payload of a job trigger.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// Dispatcher runs the job named by a message.
type Dispatcher struct {
	refreshJob *RefreshJob
	news       NewsFetcher
	logger     zerolog.Logger
}

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	RefreshJob *RefreshJob
	News       NewsFetcher
	Logger     zerolog.Logger
}

// NewDispatcher creates a new job dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		refreshJob: cfg.RefreshJob,
		news:       cfg.News,
		logger:     cfg.Logger,
	}
}

// Dispatch decodes data and runs the job it names.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) (string, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	switch msg.JobType {
	case JobPanelRefresh:
		return msg.JobType, d.PanelRefresh(ctx)
	case JobNewsFetch:
		return msg.JobType, d.NewsFetch(ctx)
	case JobHealthCheck:
		return msg.JobType, d.HealthCheck(ctx)
	default:
		return msg.JobType, fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

// PanelRefresh runs the refresh job. It fails when more panels fell back to
// sample data than loaded live.
func (d *Dispatcher) PanelRefresh(ctx context.Context) error {
	if d.refreshJob == nil {
		return errors.New("panel refresh is not configured")
	}
	result := d.refreshJob.Run(ctx)
	if !result.Healthy() {
		return fmt.Errorf("too many sample fallbacks: %d/%d", result.Sample, result.Live+result.Sample)
	}
	return nil
}

// NewsFetch fetches and stores yesterday's news.
func (d *Dispatcher) NewsFetch(ctx context.Context) error {
	if d.news == nil {
		return errors.New("news fetch is not configured")
	}
	result, err := d.news.FetchAndStore(ctx)
	if err != nil {
		return err
	}
	d.logger.Info().
		Int("fetched", result.Fetched).
		Int("stored", result.Stored).
		Msg("news fetch completed")
	return nil
}

// HealthCheck refreshes the first target's panels to verify provider connectivity.
func (d *Dispatcher) HealthCheck(ctx context.Context) error {
	if d.refreshJob == nil {
		return errors.New("panel refresh is not configured")
	}

	targets := d.refreshJob.config.OrderedTargets()
	if len(targets) == 0 {
		return nil
	}

	cfg := d.refreshJob.config
	cfg.Targets = targets[:1]
	cfg.Concurrency = 1
	cfg.RefreshEnergy = false
	cfg.RefreshWater = false

	check := NewRefreshJob(RefreshJobConfig{
		Config:  cfg,
		Logger:  d.logger,
		Weather: d.refreshJob.weather,
		Traffic: d.refreshJob.traffic,
	})

	result := check.Run(ctx)
	if result.Sample > 0 {
		return fmt.Errorf("health check failed: %d panels fell back to sample data", result.Sample)
	}

	d.logger.Debug().Msg("health check passed")
	return nil
}
