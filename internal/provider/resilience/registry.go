package resilience

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is a point-in-time view of one upstream data source.
// Counts is the breaker's current window and resets on every state change;
// Successes and Failures accumulate since the source was registered.
type ProviderHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	Successes     uint64
	Failures      uint64
	LastSuccessAt time.Time
	LastFailureAt time.Time
	LastError     string
}

// ServingSampleData reports whether panels backed by this source currently
// fall back to sample data.
func (h ProviderHealth) ServingSampleData() bool {
	return h.CircuitState != gobreaker.StateClosed
}

// Registry tracks the clients of every upstream data source for the status
// endpoint and the circuit state gauge.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*source
}

type source struct {
	client      *Client
	successes   uint64
	failures    uint64
	lastSuccess time.Time
	lastFailure time.Time
	lastError   string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]*source)}
}

// Register adds c under its name, replacing any client registered before.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[c.Name()] = &source{client: c}
}

// RecordSuccess stamps the last successful call of a source.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sources[name]; ok {
		s.successes++
		s.lastSuccess = time.Now()
	}
}

// RecordFailure stamps the last failed call of a source and keeps its error.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sources[name]; ok {
		s.failures++
		s.lastFailure = time.Now()
		if err != nil {
			s.lastError = err.Error()
		}
	}
}

// Health returns the state of one source, or false when it is unknown.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	if !ok {
		return ProviderHealth{}, false
	}
	return s.health(name), true
}

// Snapshot returns the state of every source ordered by name.
func (r *Registry) Snapshot() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(r.sources))
	for name, s := range r.sources {
		out = append(out, s.health(name))
	}
	slices.SortFunc(out, func(a, b ProviderHealth) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

func (s *source) health(name string) ProviderHealth {
	return ProviderHealth{
		Name:          name,
		CircuitState:  s.client.State(),
		Counts:        s.client.Counts(),
		Successes:     s.successes,
		Failures:      s.failures,
		LastSuccessAt: s.lastSuccess,
		LastFailureAt: s.lastFailure,
		LastError:     s.lastError,
	}
}
