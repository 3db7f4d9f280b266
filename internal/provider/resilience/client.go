package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without calling the source while its breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig configures the client for one upstream data source.
type ClientConfig struct {
	// Name identifies the source in the registry, logs and metrics.
	Name string

	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a 5xx or transport
	// error. Zero means a single attempt.
	MaxRetries uint64

	RetryWait    time.Duration
	RetryWaitMax time.Duration

	// Breaker defaults to DefaultBreakerConfig(Name).
	Breaker *BreakerConfig

	// Registry, when set, tracks the client and the outcome of each call.
	Registry *Registry
}

// DefaultClientConfig returns the policy for upstream data sources: a 10s
// timeout and no retries.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:         name,
		Timeout:      10 * time.Second,
		RetryWait:    100 * time.Millisecond,
		RetryWaitMax: 5 * time.Second,
		Breaker:      &breaker,
	}
}

// Client calls one upstream data source through its circuit breaker.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	config  ClientConfig
}

// NewClient creates a client and adds it to cfg.Registry when set.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 100 * time.Millisecond
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = 5 * time.Second
	}
	if cfg.Breaker == nil {
		breaker := DefaultBreakerConfig(cfg.Name)
		cfg.Breaker = &breaker
	}

	c := &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker[*http.Response](*cfg.Breaker), //nolint:bodyclose // type param, not response
		config:  cfg,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(c)
	}
	return c
}

// Name returns the source name.
func (c *Client) Name() string {
	return c.config.Name
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the breaker counts for the current window.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

// Do sends req through the breaker, retrying 5xx and transport errors up to
// MaxRetries times with exponential backoff. A 5xx that outlasts the retries
// is returned as a response, not an error. The caller closes the body.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	wait := backoff.NewExponentialBackOff()
	wait.InitialInterval = c.config.RetryWait
	wait.MaxInterval = c.config.RetryWaitMax
	wait.MaxElapsedTime = 0

	var last *http.Response
	attempt := func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // kept in last
			return c.roundTrip(ctx, req)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		if resp != nil {
			if last != nil {
				last.Body.Close()
			}
			last = resp
		}
		return err
	}

	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(wait, c.config.MaxRetries), ctx))
	if last != nil {
		return last, nil
	}
	return nil, err
}

func (c *Client) roundTrip(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req.Clone(ctx))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		// Counted against the breaker and retried; the response is still kept.
		return resp, &ServerError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// ServerError marks a 5xx answer from the source.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("upstream answered %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
