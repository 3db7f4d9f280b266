package telemetry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/syntaxsurfers/smartcity/internal/config"
	"github.com/syntaxsurfers/smartcity/internal/provider/resilience"
	"github.com/syntaxsurfers/smartcity/internal/telemetry"
)

func TestInit_DisabledUsesGlobalNoop(t *testing.T) {
	p, err := telemetry.Init(context.Background(), telemetry.Config{ServiceName: "smartcity-worker"})
	require.NoError(t, err)

	assert.NotNil(t, p.Tracer)
	assert.NotNil(t, p.Meter)
	assert.Nil(t, p.TracerProvider)
	assert.Nil(t, p.MeterProvider)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Environment = "staging"
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.SampleRatio = 0.25

	assert.Equal(t, telemetry.Config{
		ServiceName:    "smartcity-api",
		ServiceVersion: "1.2.3",
		Environment:    "staging",
		OTLPEndpoint:   "localhost:4317",
		SampleRatio:    0.25,
		Enabled:        true,
	}, telemetry.NewConfig(&cfg, "smartcity-api", "1.2.3"))
}

func TestSampler(t *testing.T) {
	traceID := trace.TraceID{0x0a, 0xf7, 0x65, 0x19}
	sampledParent := trace.ContextWithRemoteSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0xb7, 0xad},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))

	tests := []struct {
		name   string
		ratio  float64
		ctx    context.Context
		record bool
	}{
		{"all root traces", 1, context.Background(), true},
		{"no root traces", 0, context.Background(), false},
		{"sampled dashboard parent wins", 0, sampledParent, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := telemetry.Sampler(tt.ratio).ShouldSample(sdktrace.SamplingParameters{
				ParentContext: tt.ctx,
				TraceID:       traceID,
				Name:          "GET /v1/cities/{cityId}",
			})
			assert.Equal(t, tt.record, res.Decision == sdktrace.RecordAndSample)
		})
	}
}

func collectCircuitStates(t *testing.T, registry *resilience.Registry) map[string]int64 {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	require.NoError(t, telemetry.RegisterProviderHealth(mp.Meter("test"), registry))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	m := rm.ScopeMetrics[0].Metrics[0]
	require.Equal(t, "smartcity.provider.circuit_state", m.Name)

	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)

	states := map[string]int64{}
	for _, dp := range gauge.DataPoints {
		provider, _ := dp.Attributes.Value("provider")
		states[provider.AsString()] = dp.Value
	}
	return states
}

func TestRegisterProviderHealth(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	registry := resilience.NewRegistry()

	weather := resilience.DefaultClientConfig("weatherapi")
	weather.Registry = registry
	resilience.NewClient(weather)

	usgs := resilience.DefaultClientConfig("usgs")
	usgs.Registry = registry
	usgs.Breaker.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 }
	_, err := resilience.NewClient(usgs).Fetch(context.Background(), down.URL, nil)
	require.Error(t, err)

	assert.Equal(t, map[string]int64{"usgs": 2, "weatherapi": 0}, collectCircuitStates(t, registry))
}
