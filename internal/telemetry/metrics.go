package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	RequestTotal       *prometheus.CounterVec
	RequestDurationMs  *prometheus.HistogramVec
	UpstreamErrorTotal *prometheus.CounterVec
	StreamEventsTotal  *prometheus.CounterVec
	AuthRejectTotal    *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_request_total",
			Help: "Total number of requests processed by the relay.",
		}, []string{"handler", "status", "mode"}),

		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_request_duration_ms",
			Help:    "Total request duration in milliseconds (including upstream latency).",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"handler"}),

		UpstreamErrorTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_upstream_error_total",
			Help: "Total upstream failures by reason.",
		}, []string{"handler", "reason"}),

		StreamEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_stream_events_total",
			Help: "Total SSE events relayed to clients.",
		}, []string{"handler", "kind"}),

		AuthRejectTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_auth_reject_total",
			Help: "Total rejected shared-secret authentications.",
		}, []string{"reason"}),
	}
}

// RecordRequest records a completed request.
func (m *Metrics) RecordRequest(handler, status, mode string, durationMs float64) {
	m.RequestTotal.WithLabelValues(handler, status, mode).Inc()
	m.RequestDurationMs.WithLabelValues(handler).Observe(durationMs)
}

// RecordUpstreamError records an upstream failure. Reason is one of
// network, status, stream.
func (m *Metrics) RecordUpstreamError(handler, reason string) {
	m.UpstreamErrorTotal.WithLabelValues(handler, reason).Inc()
}

// RecordStreamEvents adds to the relayed-event count for a stream kind.
func (m *Metrics) RecordStreamEvents(handler, kind string, n int) {
	if n > 0 {
		m.StreamEventsTotal.WithLabelValues(handler, kind).Add(float64(n))
	}
}

// RecordAuthReject records a rejected authentication. Reason is missing or
// mismatch.
func (m *Metrics) RecordAuthReject(reason string) {
	m.AuthRejectTotal.WithLabelValues(reason).Inc()
}
