// Package panel implements the fetch, transform and fall-back-to-sample routine
// shared by every dashboard panel.
//
// A panel always ends in a defined state: either the transformed live payload or a
// synthetic sample with a user-visible warning. Nothing is retried and nothing is
// cached between loads.
package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultWarning is shown when a panel falls back to sample data.
const DefaultWarning = "Unable to fetch live data. Showing sample data instead."

// Errors that cause a fallback to sample data.
var (
	ErrFetchFailed      = errors.New("fetch failed")
	ErrTransformFailure = errors.New("transform failed")
)

// Fetcher retrieves the raw body of an upstream resource.
// *resilience.Client satisfies this interface.
type Fetcher interface {
	Fetch(ctx context.Context, url string, header http.Header) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string, header http.Header) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string, header http.Header) ([]byte, error) {
	return f(ctx, url, header)
}

// Source describes a single upstream call.
type Source struct {
	// Name identifies the panel in logs and metrics.
	Name   string
	URL    string
	Header http.Header
}

// Definition binds a source to the transform and sample generator that agree on T.
type Definition[T any] struct {
	Source    Source
	Fetcher   Fetcher
	Transform func(body []byte) (T, error)
	Sample    func() T
	// Warning overrides DefaultWarning.
	Warning string
}

// Result is the outcome of a load.
type Result[T any] struct {
	Data      T         `json:"data"`
	Live      bool      `json:"live"`
	Warning   string    `json:"warning,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Loader carries the logging and metrics shared by all panels.
type Loader struct {
	logger  zerolog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewLoader creates a Loader. metrics may be nil.
func NewLoader(logger zerolog.Logger, metrics *Metrics) *Loader {
	return &Loader{
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Load fetches and transforms the live payload, falling back to the sample
// generator on any failure. It never panics into the caller.
func Load[T any](ctx context.Context, l *Loader, def Definition[T]) Result[T] {
	start := l.now()
	data, err := fetchAndTransform(ctx, def)
	if err != nil {
		warning := def.Warning
		if warning == "" {
			warning = DefaultWarning
		}
		l.logger.Warn().
			Err(err).
			Str("panel", def.Source.Name).
			Msg("live data unavailable, using sample data")
		l.metrics.observe(def.Source.Name, outcomeSample, l.now().Sub(start))

		return Result[T]{
			Data:      def.Sample(),
			Live:      false,
			Warning:   warning,
			UpdatedAt: l.now(),
		}
	}

	l.metrics.observe(def.Source.Name, outcomeLive, l.now().Sub(start))
	return Result[T]{
		Data:      data,
		Live:      true,
		UpdatedAt: l.now(),
	}
}

func fetchAndTransform[T any](ctx context.Context, def Definition[T]) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrTransformFailure, r)
		}
	}()

	body, err := def.Fetcher.Fetch(ctx, def.Source.URL, def.Source.Header)
	if err != nil {
		return data, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	data, err = def.Transform(body)
	if err != nil {
		if errors.Is(err, ErrTransformFailure) {
			return data, err
		}
		return data, fmt.Errorf("%w: %w", ErrTransformFailure, err)
	}
	return data, nil
}

// MissingField reports a required upstream field that was absent.
func MissingField(path string) error {
	return fmt.Errorf("%w: missing field %s", ErrTransformFailure, path)
}

// DecodeJSON unmarshals body into v, reporting failures as ErrTransformFailure.
func DecodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", ErrTransformFailure, err)
	}
	return nil
}

// Panel keeps the latest result of a fixed definition.
// Refreshes may overlap; whichever finishes last is kept.
type Panel[T any] struct {
	loader *Loader
	def    Definition[T]

	mu      sync.RWMutex
	current Result[T]
	loaded  bool
}

// New creates a Panel for def.
func New[T any](loader *Loader, def Definition[T]) *Panel[T] {
	return &Panel[T]{loader: loader, def: def}
}

// Refresh loads the panel and stores the result, clearing any previous warning
// when live data was obtained.
func (p *Panel[T]) Refresh(ctx context.Context) Result[T] {
	res := Load(ctx, p.loader, p.def)

	p.mu.Lock()
	p.current = res
	p.loaded = true
	p.mu.Unlock()

	return res
}

// Current returns the last stored result and whether any refresh has completed.
func (p *Panel[T]) Current() (Result[T], bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.loaded
}
