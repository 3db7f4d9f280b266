package traffic_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntaxsurfers/smartcity/internal/provider/resilience"
	"github.com/syntaxsurfers/smartcity/internal/traffic"
)

func newProxy(t *testing.T, handler http.HandlerFunc) (*traffic.Proxy, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	proxy := traffic.NewProxy(traffic.ProxyConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Client:  resilience.NewClient(traffic.ProxyClientConfig("tomtom-test")),
		Logger:  zerolog.Nop(),
	})
	return proxy, &calls
}

func TestProxy_PassesThroughBody(t *testing.T) {
	body := `{"routes":[{"summary":{"travelTimeInSeconds":600}}]}`
	proxy, calls := newProxy(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/routing/1/calculateRoute/19,72:19.1,72.1/json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "true", r.URL.Query().Get("traffic"))
		_, _ = w.Write([]byte(body))
	})

	out, err := proxy.Query(context.Background(), traffic.MetricRequest{Latitude: 19, Longitude: 72, Type: traffic.TravelTime})
	require.NoError(t, err)
	assert.JSONEq(t, body, string(out))
	assert.Equal(t, int32(1), calls.Load())
}

func TestProxy_AverageTravelTime(t *testing.T) {
	tests := []struct {
		name     string
		upstream string
		want     string
	}{
		{
			name:     "value present",
			upstream: `{"flowSegmentData":{"currentTravelTime":42,"currentSpeed":30}}`,
			want:     `{"averageTravelTime":42}`,
		},
		{
			name:     "flowSegmentData missing",
			upstream: `{"error":"nothing here"}`,
			want:     `{"averageTravelTime":"N/A"}`,
		},
		{
			name:     "field null",
			upstream: `{"flowSegmentData":{"currentTravelTime":null}}`,
			want:     `{"averageTravelTime":"N/A"}`,
		},
		{
			name:     "zero is kept",
			upstream: `{"flowSegmentData":{"currentTravelTime":0}}`,
			want:     `{"averageTravelTime":0}`,
		},
		{
			name:     "body is an array",
			upstream: `[1,2,3]`,
			want:     `{"averageTravelTime":"N/A"}`,
		},
		{
			name:     "body is null",
			upstream: `null`,
			want:     `{"averageTravelTime":"N/A"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxy, _ := newProxy(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.upstream))
			})

			out, err := proxy.Query(context.Background(), traffic.MetricRequest{Latitude: 1, Longitude: 2, Type: traffic.AverageTravelTime})
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(out))
		})
	}
}

func TestProxy_AverageSpeed(t *testing.T) {
	proxy, _ := newProxy(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/traffic/services/4/flowSegmentData/absolute/10/json", r.URL.Path)
		assert.Equal(t, "1,2", r.URL.Query().Get("point"))
		_, _ = w.Write([]byte(`{"flowSegmentData":{"currentSpeed":55.5,"currentTravelTime":90}}`))
	})

	out, err := proxy.Query(context.Background(), traffic.MetricRequest{Latitude: 1, Longitude: 2, Type: traffic.AverageSpeed})
	require.NoError(t, err)
	assert.JSONEq(t, `{"averageSpeed":55.5}`, string(out))
}

func TestProxy_UpstreamErrorBodyIsPassedThrough(t *testing.T) {
	proxy, _ := newProxy(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detailedError":{"code":"Forbidden"}}`))
	})

	out, err := proxy.Query(context.Background(), traffic.MetricRequest{Latitude: 1, Longitude: 2, Type: traffic.TrafficJams})
	require.NoError(t, err)
	assert.Contains(t, string(out), "Forbidden")
}

func TestProxy_EveryRequestReachesUpstreamDuringOutage(t *testing.T) {
	proxy, calls := newProxy(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"maintenance"}`))
	})

	const requests = 12
	for i := 1; i <= requests; i++ {
		out, err := proxy.Query(context.Background(), traffic.MetricRequest{Latitude: 1, Longitude: 2, Type: traffic.Speed})
		require.NoError(t, err, "request %d", i)
		assert.JSONEq(t, `{"error":"maintenance"}`, string(out))
		assert.Equal(t, int32(i), calls.Load(), "request %d", i)
	}
}

func TestProxyClientConfig(t *testing.T) {
	cfg := traffic.ProxyClientConfig("tomtom-proxy")

	assert.Equal(t, "tomtom-proxy", cfg.Name)
	assert.Zero(t, cfg.MaxRetries)
	require.NotNil(t, cfg.Breaker)
	assert.False(t, cfg.Breaker.ReadyToTrip(gobreaker.Counts{Requests: 100, TotalFailures: 100, ConsecutiveFailures: 100}))
}

func TestProxy_InvalidJSONFails(t *testing.T) {
	proxy, _ := newProxy(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	})

	_, err := proxy.Query(context.Background(), traffic.MetricRequest{Latitude: 1, Longitude: 2, Type: traffic.Speed})
	assert.ErrorIs(t, err, traffic.ErrUpstreamFetch)
}

func TestProxy_NetworkFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		if conn, _, err := hj.Hijack(); err == nil {
			_ = conn.Close()
		}
	}))
	defer server.Close()

	proxy := traffic.NewProxy(traffic.ProxyConfig{
		BaseURL: server.URL,
		APIKey:  "k",
		Client:  resilience.NewClient(traffic.ProxyClientConfig("tomtom-hangup")),
		Logger:  zerolog.Nop(),
	})

	_, err := proxy.Query(context.Background(), traffic.MetricRequest{Latitude: 1, Longitude: 2, Type: traffic.Speed})
	assert.ErrorIs(t, err, traffic.ErrUpstreamFetch)
	assert.Equal(t, int32(1), calls.Load())
}
