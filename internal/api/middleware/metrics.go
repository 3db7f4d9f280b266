package middleware

import (
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/syntaxsurfers/smartcity/internal/api/middleware"

// Metrics records request counts, latency, response size and in-flight
// requests. Series are labelled by chi route pattern so cities and
// coordinates in the path or query never create new series.
type Metrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	size     metric.Int64Histogram
}

// NewMetrics creates the instruments on meter, or on the global meter when nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	var m Metrics
	var err, e error
	m.duration, e = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"),
	)
	err = errors.Join(err, e)
	m.requests, e = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("HTTP server requests served"),
		metric.WithUnit("{request}"),
	)
	err = errors.Join(err, e)
	m.inFlight, e = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("HTTP server requests being served"),
		metric.WithUnit("{request}"),
	)
	err = errors.Join(err, e)
	m.size, e = meter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("Size of HTTP server response bodies"),
		metric.WithUnit("By"),
	)
	err = errors.Join(err, e)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Middleware records one observation per request.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()

			method := metric.WithAttributes(attribute.String("http.request.method", r.Method))
			m.inFlight.Add(ctx, 1, method)
			defer m.inFlight.Add(ctx, -1, method)

			ww := record(w, r)
			next.ServeHTTP(ww, r)

			attrs := metric.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", routePattern(r)),
				attribute.Int("http.response.status_code", statusOf(ww)),
			)
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.requests.Add(ctx, 1, attrs)
			m.size.Record(ctx, int64(ww.BytesWritten()), attrs)
		})
	}
}
