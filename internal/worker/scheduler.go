package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// ScheduledJob is a job run on a fixed interval.
type ScheduledJob struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs jobs on fixed intervals.
type Scheduler struct {
	scheduler *gocron.Scheduler
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewScheduler creates a new Scheduler. timeout bounds each run.
func NewScheduler(timeout time.Duration, logger zerolog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		timeout:   timeout,
		logger:    logger,
	}
}

// Add schedules job. Runs of the same job never overlap; the first run starts
// when the scheduler starts.
func (s *Scheduler) Add(job ScheduledJob) error {
	_, err := s.scheduler.Every(job.Interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		if err := job.Run(ctx); err != nil {
			s.logger.Error().Err(err).Str("job", job.Name).Msg("scheduled job failed")
			return
		}
		s.logger.Info().
			Str("job", job.Name).
			Dur("duration", time.Since(start)).
			Msg("scheduled job completed")
	})
	return err
}

// Start starts the scheduler in the background.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels any future runs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
