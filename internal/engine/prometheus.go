package engine

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports engine operations as a counter and a latency
// histogram, both labelled by dashboard, operation and status.
type PrometheusRecorder struct {
	dashboard string
	total     *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// Collectors are shared by every dashboard of a process.
type Collectors struct {
	Total   *prometheus.CounterVec
	Latency *prometheus.HistogramVec
}

// NewCollectors registers the engine collectors with reg.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashcore",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by outcome.",
		}, []string{"dashboard", "operation", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dashcore",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"dashboard", "operation"}),
	}
	for _, col := range []prometheus.Collector{c.Total, c.Latency} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Recorder returns a MetricsRecorder bound to one dashboard.
func (c *Collectors) Recorder(dashboard string) *PrometheusRecorder {
	return &PrometheusRecorder{dashboard: dashboard, total: c.Total, latency: c.Latency}
}

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "error"
	if success {
		status = "success"
	}
	r.total.WithLabelValues(r.dashboard, operation, status).Inc()
	r.latency.WithLabelValues(r.dashboard, operation).Observe(duration.Seconds())
}

// MultiRecorder fans observations out to several recorders.
type MultiRecorder []MetricsRecorder

// Observe implements MetricsRecorder.
func (m MultiRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		r.Observe(ctx, operation, success, duration)
	}
}
