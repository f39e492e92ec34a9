package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PoolMetrics holds metrics related to session slots.
type PoolMetrics struct {
	// AcquireTotal counts session requests by the tier that served them.
	// Labels: tier (idle, fresh, fallback, none)
	AcquireTotal *prometheus.CounterVec

	// AcquireLatency tracks how long callers waited for a session.
	AcquireLatency *prometheus.HistogramVec

	// ConnectTotal counts connection attempts by outcome.
	// Labels: outcome (success, timeout, lifecycle, bootstrap, dial, canceled)
	ConnectTotal *prometheus.CounterVec

	// ConnectLatency tracks connection attempt durations by outcome.
	ConnectLatency *prometheus.HistogramVec

	// EvictionsTotal counts sessions removed from their slot.
	// Labels: reason (expired, auth_failed, disconnected, closed, replaced)
	EvictionsTotal *prometheus.CounterVec

	// LiveSessions is the number of slots currently holding a session.
	LiveSessions prometheus.Gauge
}

// DefaultConnectLatencyBuckets cover a local ensemble (milliseconds) up to
// a full session timeout.
var DefaultConnectLatencyBuckets = []float64{
	0.001, // 1ms
	0.005, // 5ms
	0.01,  // 10ms
	0.05,  // 50ms
	0.1,   // 100ms
	0.25,  // 250ms
	0.5,   // 500ms
	1.0,   // 1s
	2.5,   // 2.5s
	5.0,   // 5s
	10.0,  // 10s
	30.0,  // 30s
}

// NewPoolMetrics creates pool metrics registered with the default registry.
func NewPoolMetrics() *PoolMetrics {
	return NewPoolMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewPoolMetricsWithRegistry creates pool metrics registered with reg.
// Useful for testing to avoid conflicts with the default registry.
func NewPoolMetricsWithRegistry(reg prometheus.Registerer) *PoolMetrics {
	factory := promauto.With(reg)
	return &PoolMetrics{
		AcquireTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "acquire_total",
				Help:      "Total number of session requests, broken down by the selection tier that served them.",
			},
			[]string{"tier"},
		),
		AcquireLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "acquire_latency_seconds",
				Help:      "Time spent waiting for a session, broken down by selection tier.",
				Buckets:   DefaultConnectLatencyBuckets,
			},
			[]string{"tier"},
		),
		ConnectTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "connect_attempts_total",
				Help:      "Total number of session connection attempts, broken down by outcome.",
			},
			[]string{"outcome"},
		),
		ConnectLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "connect_latency_seconds",
				Help:      "Session connection attempt duration in seconds, broken down by outcome.",
				Buckets:   DefaultConnectLatencyBuckets,
			},
			[]string{"outcome"},
		),
		EvictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "evictions_total",
				Help:      "Total number of sessions removed from their slot, broken down by reason.",
			},
			[]string{"reason"},
		),
		LiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "live_sessions",
				Help:      "Current number of slots holding an established session.",
			},
		),
	}
}

// RecordAcquire records a session request served by tier.
func (m *PoolMetrics) RecordAcquire(tier string, durationSeconds float64) {
	m.AcquireTotal.WithLabelValues(tier).Inc()
	m.AcquireLatency.WithLabelValues(tier).Observe(durationSeconds)
}

// RecordConnect records a finished connection attempt.
func (m *PoolMetrics) RecordConnect(outcome string, durationSeconds float64) {
	m.ConnectTotal.WithLabelValues(outcome).Inc()
	m.ConnectLatency.WithLabelValues(outcome).Observe(durationSeconds)
}

// RecordEviction records a session leaving its slot.
func (m *PoolMetrics) RecordEviction(reason string) {
	m.EvictionsTotal.WithLabelValues(reason).Inc()
}

// SetLiveSessions sets the live session gauge.
func (m *PoolMetrics) SetLiveSessions(n int) {
	m.LiveSessions.Set(float64(n))
}
