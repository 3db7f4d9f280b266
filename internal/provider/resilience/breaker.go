// Package resilience guards calls to the upstream data sources behind the
// dashboard panels. Each source gets its own circuit breaker so a failing
// provider is skipped quickly and its panel falls back to sample data.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker of one upstream data source.
type BreakerConfig struct {
	Name string

	// HalfOpenRequests is how many calls may test a recovering source.
	HalfOpenRequests uint32

	// Window clears the failure counts periodically while closed.
	Window time.Duration

	// Cooldown is how long the breaker stays open before testing the source again.
	Cooldown time.Duration

	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig trips on TripOnFailures and tries again after 30s,
// the same cadence as the dashboard poller.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		HalfOpenRequests: 1,
		Window:           2 * time.Minute,
		Cooldown:         30 * time.Second,
		ReadyToTrip:      TripOnFailures,
	}
}

// TripOnFailures opens after 5 consecutive failures, or when at least half of
// 10 or more calls in the current window failed.
func TripOnFailures(counts gobreaker.Counts) bool {
	if counts.ConsecutiveFailures >= 5 {
		return true
	}
	return counts.Requests >= 10 && counts.TotalFailures*2 >= counts.Requests
}

// NeverTrip keeps the breaker closed. The counts are still kept for the
// registry, but every call reaches the source.
func NeverTrip(gobreaker.Counts) bool {
	return false
}

func newBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.HalfOpenRequests,
		Interval:      cfg.Window,
		Timeout:       cfg.Cooldown,
		ReadyToTrip:   cfg.ReadyToTrip,
		OnStateChange: cfg.OnStateChange,
		// A dashboard client that went away says nothing about the source.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// LogStateChanges returns an OnStateChange hook that logs every transition.
// Opening is a warning since the source's panels switch to sample data.
func LogStateChanges(log zerolog.Logger) func(name string, from, to gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		event := log.Info()
		if to == gobreaker.StateOpen {
			event = log.Warn()
		}
		event.
			Str("provider", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	}
}
