package panel

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeLive   = "live"
	outcomeSample = "sample"
)

// Metrics counts panel loads by outcome.
type Metrics struct {
	loads    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the panel collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		loads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartcity",
			Subsystem: "panel",
			Name:      "loads_total",
			Help:      "Panel loads partitioned by panel and outcome (live or sample).",
		}, []string{"panel", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smartcity",
			Subsystem: "panel",
			Name:      "load_duration_seconds",
			Help:      "Time spent fetching and transforming panel data.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"panel"}),
	}
}

// Loads returns the counter for a panel and outcome.
func (m *Metrics) Loads(panel, outcome string) prometheus.Counter {
	return m.loads.WithLabelValues(panel, outcome)
}

func (m *Metrics) observe(panel, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(panel, outcome).Inc()
	m.duration.WithLabelValues(panel).Observe(d.Seconds())
}
