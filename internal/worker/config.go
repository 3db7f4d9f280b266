// Package worker provides background job processing for the smart city services.
package worker

import (
	"slices"
	"time"
)

// RefreshTarget is a city whose panels are refreshed.
type RefreshTarget struct {
	// Name is the city name passed to the weather panel.
	Name string

	// Point is the location used for the traffic panel.
	Point Point

	// Priority determines refresh order (lower = higher priority).
	Priority int
}

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// RefreshConfig holds configuration for the panel refresh job.
type RefreshConfig struct {
	// Targets are the cities to refresh.
	// If empty, uses DefaultRefreshTargets.
	Targets []RefreshTarget

	// Concurrency is the number of concurrent refresh operations.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each target.
	// Default: 30 seconds
	Timeout time.Duration

	// RefreshWeather enables the weather panel.
	RefreshWeather bool

	// RefreshTraffic enables the traffic insights panel.
	RefreshTraffic bool

	// RefreshEnergy enables the energy panel. Energy is regional, not per target.
	RefreshEnergy bool

	// RefreshWater enables the water panel. Water is per gauge site, not per target.
	RefreshWater bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Targets:        DefaultRefreshTargets(),
		Concurrency:    3,
		Timeout:        30 * time.Second,
		RefreshWeather: true,
		RefreshTraffic: true,
		RefreshEnergy:  true,
		RefreshWater:   true,
	}
}

// DefaultRefreshTargets returns the home city followed by the searchable cities.
func DefaultRefreshTargets() []RefreshTarget {
	return []RefreshTarget{
		{Name: "Palghar", Point: Point{Lat: 19.3835727, Lon: 72.8294563}, Priority: 1},
		{Name: "London", Point: Point{Lat: 51.5074, Lon: -0.1278}, Priority: 2},
		{Name: "New York", Point: Point{Lat: 40.7128, Lon: -74.0060}, Priority: 2},
		{Name: "Tokyo", Point: Point{Lat: 35.6762, Lon: 139.6503}, Priority: 2},
		{Name: "Paris", Point: Point{Lat: 48.8566, Lon: 2.3522}, Priority: 2},
	}
}

// OrderedTargets returns the targets sorted by priority, keeping the
// configured order within a priority.
func (c RefreshConfig) OrderedTargets() []RefreshTarget {
	targets := append([]RefreshTarget(nil), c.Targets...)
	slices.SortStableFunc(targets, func(a, b RefreshTarget) int {
		return a.Priority - b.Priority
	})
	return targets
}

// PanelsPerTarget returns how many per-target panels are enabled.
func (c RefreshConfig) PanelsPerTarget() int {
	n := 0
	if c.RefreshWeather {
		n++
	}
	if c.RefreshTraffic {
		n++
	}
	return n
}
