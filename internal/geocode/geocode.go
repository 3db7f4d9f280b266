// Package geocode resolves free-text locations with the Google Geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/syntaxsurfers/smartcity/internal/panel"
)

// DefaultBaseURL is the Google Maps API root.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api"

// Geocoding errors.
var (
	ErrEmptyQuery   = errors.New("empty location query")
	ErrNotFound     = errors.New("location not found")
	ErrLookupFailed = errors.New("location lookup failed")
)

// Location is a resolved place.
type Location struct {
	Query            string  `json:"query"`
	FormattedAddress string  `json:"formattedAddress,omitempty"`
	Latitude         float64 `json:"lat"`
	Longitude        float64 `json:"lng"`
}

// ClientConfig holds configuration for the geocoding client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Fetcher panel.Fetcher
	Logger  zerolog.Logger
}

// Client geocodes addresses.
type Client struct {
	baseURL string
	apiKey  string
	fetcher panel.Fetcher
	logger  zerolog.Logger
}

// NewClient creates a new geocoding client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  cfg.APIKey,
		fetcher: cfg.Fetcher,
		logger:  cfg.Logger,
	}
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Lookup resolves an address to its first match.
// Any status other than OK with at least one result is ErrNotFound.
func (c *Client) Lookup(ctx context.Context, address string) (*Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrEmptyQuery
	}

	body, err := c.fetcher.Fetch(ctx, c.url(address), nil)
	if err != nil {
		c.logger.Error().Err(err).Str("query", address).Msg("geocoding request failed")
		return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}

	var resp geocodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrLookupFailed, err)
	}

	if resp.Status != "OK" || len(resp.Results) == 0 {
		c.logger.Debug().
			Str("query", address).
			Str("status", resp.Status).
			Str("error_message", resp.ErrorMessage).
			Msg("location not found")
		return nil, fmt.Errorf("%w: %s (status %s)", ErrNotFound, address, resp.Status)
	}

	first := resp.Results[0]
	return &Location{
		Query:            address,
		FormattedAddress: first.FormattedAddress,
		Latitude:         first.Geometry.Location.Lat,
		Longitude:        first.Geometry.Location.Lng,
	}, nil
}

func (c *Client) url(address string) string {
	q := url.Values{}
	q.Set("address", address)
	q.Set("key", c.apiKey)
	return c.baseURL + "/geocode/json?" + q.Encode()
}
