// Package traffic proxies traffic metric requests to TomTom and builds the
// traffic insights panel.
package traffic

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MetricType selects which upstream endpoint a request is routed to.
type MetricType string

// Recognised metric types.
const (
	TravelTime        MetricType = "travel-time"
	TrafficJams       MetricType = "traffic-jams"
	Speed             MetricType = "speed"
	AverageTravelTime MetricType = "average-travel-time"
	AverageSpeed      MetricType = "average-speed"
)

// MetricTypes lists every recognised metric type in routing order.
var MetricTypes = []MetricType{TravelTime, TrafficJams, Speed, AverageTravelTime, AverageSpeed}

// Proxy errors.
var (
	ErrMissingParameters  = errors.New("missing parameters")
	ErrInvalidType        = errors.New("invalid type parameter")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrUpstreamFetch      = errors.New("failed to fetch data")
)

// ErrorMessage returns the body text clients expect for a proxy error.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingParameters):
		return "Missing parameters"
	case errors.Is(err, ErrInvalidType):
		return "Invalid type parameter"
	case errors.Is(err, ErrInvalidCoordinates):
		return "Invalid coordinates"
	default:
		return "Failed to fetch data"
	}
}

// Valid reports whether t is a recognised metric type.
func (t MetricType) Valid() bool {
	for _, known := range MetricTypes {
		if t == known {
			return true
		}
	}
	return false
}

// MetricRequest is a validated proxy request.
type MetricRequest struct {
	Latitude  float64
	Longitude float64
	Type      MetricType
}

// ParseMetricRequest validates raw query values. Presence is checked first, then
// the type, then the coordinates, so no outbound call is made for a bad request.
func ParseMetricRequest(lat, lng, metricType string) (MetricRequest, error) {
	lat, lng, metricType = strings.TrimSpace(lat), strings.TrimSpace(lng), strings.TrimSpace(metricType)
	if lat == "" || lng == "" || metricType == "" {
		return MetricRequest{}, ErrMissingParameters
	}

	t := MetricType(metricType)
	if !t.Valid() {
		return MetricRequest{}, ErrInvalidType
	}

	latitude, err := strconv.ParseFloat(lat, 64)
	if err != nil || latitude < -90 || latitude > 90 {
		return MetricRequest{}, ErrInvalidCoordinates
	}
	longitude, err := strconv.ParseFloat(lng, 64)
	if err != nil || longitude < -180 || longitude > 180 {
		return MetricRequest{}, ErrInvalidCoordinates
	}

	return MetricRequest{Latitude: latitude, Longitude: longitude, Type: t}, nil
}

// Endpoint returns the TomTom URL for the request.
func (r MetricRequest) Endpoint(baseURL, apiKey string) string {
	base := strings.TrimRight(baseURL, "/")
	key := url.QueryEscape(apiKey)
	lat, lng := r.Latitude, r.Longitude

	switch r.Type {
	case TravelTime:
		return fmt.Sprintf("%s/routing/1/calculateRoute/%s,%s:%s,%s/json?key=%s&traffic=true",
			base, coord(lat), coord(lng), coord(lat+0.1), coord(lng+0.1), key)
	case TrafficJams:
		return fmt.Sprintf("%s/traffic/services/5/incidents/box/%s,%s,%s,%s/json?key=%s",
			base, coord(lat-0.05), coord(lng-0.05), coord(lat+0.05), coord(lng+0.05), key)
	default:
		return FlowSegmentURL(base, apiKey, lat, lng)
	}
}

// FlowSegmentURL returns the flow segment endpoint for a point.
func FlowSegmentURL(baseURL, apiKey string, lat, lng float64) string {
	return fmt.Sprintf("%s/traffic/services/4/flowSegmentData/absolute/10/json?point=%s,%s&key=%s",
		strings.TrimRight(baseURL, "/"), coord(lat), coord(lng), url.QueryEscape(apiKey))
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
