package traffic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/syntaxsurfers/smartcity/internal/provider/resilience"
)

// Getter performs an outbound GET and returns the body whatever the status.
// *resilience.Client satisfies this interface.
type Getter interface {
	Get(ctx context.Context, url string, header http.Header) (*resilience.Response, error)
}

// ProxyConfig holds configuration for the metric proxy.
type ProxyConfig struct {
	// BaseURL is the TomTom API root (default: https://api.tomtom.com).
	BaseURL string
	APIKey  string
	Client  Getter
	Logger  zerolog.Logger
}

// Proxy forwards a validated MetricRequest to TomTom. It is stateless and makes
// exactly one outbound call per request.
type Proxy struct {
	baseURL string
	apiKey  string
	client  Getter
	logger  zerolog.Logger
}

// ProxyClientConfig is the client policy for the proxy: one attempt and a
// breaker that never opens, so every valid request reaches TomTom once.
func ProxyClientConfig(name string) resilience.ClientConfig {
	cfg := resilience.DefaultClientConfig(name)
	cfg.MaxRetries = 0
	cfg.Breaker.ReadyToTrip = resilience.NeverTrip
	return cfg
}

// NewProxy creates a Proxy.
func NewProxy(cfg ProxyConfig) *Proxy {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tomtom.com"
	}
	return &Proxy{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client:  cfg.Client,
		logger:  cfg.Logger,
	}
}

// Query performs the outbound call and post-processes the body.
// The upstream body is returned unmodified except for the two average types,
// which are narrowed to a single field. Failures wrap ErrUpstreamFetch.
func (p *Proxy) Query(ctx context.Context, req MetricRequest) (json.RawMessage, error) {
	start := time.Now()
	resp, err := p.client.Get(ctx, req.Endpoint(p.baseURL, p.apiKey), nil)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("type", string(req.Type)).
			Dur("duration", time.Since(start)).
			Msg("traffic upstream call failed")
		return nil, fmt.Errorf("%w: %w", ErrUpstreamFetch, err)
	}

	if !json.Valid(resp.Body) {
		p.logger.Error().
			Int("status", resp.StatusCode).
			Str("type", string(req.Type)).
			Msg("traffic upstream returned invalid JSON")
		return nil, fmt.Errorf("%w: upstream body is not JSON (status %d)", ErrUpstreamFetch, resp.StatusCode)
	}

	p.logger.Debug().
		Int("status", resp.StatusCode).
		Str("type", string(req.Type)).
		Dur("duration", time.Since(start)).
		Msg("traffic upstream call completed")

	switch req.Type {
	case AverageTravelTime:
		return narrow(resp.Body, "currentTravelTime", "averageTravelTime")
	case AverageSpeed:
		return narrow(resp.Body, "currentSpeed", "averageSpeed")
	default:
		return json.RawMessage(resp.Body), nil
	}
}

// notAvailable is substituted when the narrowed field is absent or null.
const notAvailable = "N/A"

// narrow extracts flowSegmentData.<field> into {"<as>": value}.
func narrow(body []byte, field, as string) (json.RawMessage, error) {
	var payload struct {
		FlowSegmentData map[string]json.RawMessage `json:"flowSegmentData"`
	}
	// The body is already known to be valid JSON. One that is not an object
	// (null, an array, a number) has no flowSegmentData and reads as N/A.
	if err := json.Unmarshal(body, &payload); err != nil {
		payload.FlowSegmentData = nil
	}

	var value any = notAvailable
	if v, ok := payload.FlowSegmentData[field]; ok && string(v) != "null" {
		value = v
	}

	out, err := json.Marshal(map[string]any{as: value})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstreamFetch, err)
	}
	return out, nil
}
