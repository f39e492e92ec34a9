package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StoreMetrics holds metrics related to path store operations.
type StoreMetrics struct {
	// LatencyHistogram tracks operation latencies broken down by operation type and status.
	// Labels: operation (create, set_data, get_data, ensure_parents), status (success, failure)
	LatencyHistogram *prometheus.HistogramVec

	// RequestsTotal tracks total operations by operation type and status.
	RequestsTotal *prometheus.CounterVec
}

// Store operation label values.
const (
	OpCreate        = "create"
	OpSetData       = "set_data"
	OpGetData       = "get_data"
	OpEnsureParents = "ensure_parents"
)

// DefaultStoreLatencyBuckets are latency buckets for node operations,
// which are typically fast (sub-ms to tens of ms) unless a session has to
// be established first.
var DefaultStoreLatencyBuckets = []float64{
	0.0001, // 0.1ms
	0.0005, // 0.5ms
	0.001,  // 1ms
	0.002,  // 2ms
	0.005,  // 5ms
	0.01,   // 10ms
	0.025,  // 25ms
	0.05,   // 50ms
	0.1,    // 100ms
	0.25,   // 250ms
	0.5,    // 500ms
	1.0,    // 1s
	2.5,    // 2.5s
	5.0,    // 5s
	10.0,   // 10s
}

// NewStoreMetrics creates store metrics registered with the default registry.
func NewStoreMetrics() *StoreMetrics {
	return NewStoreMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewStoreMetricsWithRegistry creates store metrics registered with reg.
func NewStoreMetricsWithRegistry(reg prometheus.Registerer) *StoreMetrics {
	factory := promauto.With(reg)
	return &StoreMetrics{
		LatencyHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operation_latency_seconds",
				Help:      "Path store operation latency in seconds, broken down by operation type and status.",
				Buckets:   DefaultStoreLatencyBuckets,
			},
			[]string{"operation", "status"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Total number of path store operations, broken down by operation type and status.",
			},
			[]string{"operation", "status"},
		),
	}
}

// RecordOperation records an operation latency and increments the request counter.
// operation should be one of OpCreate, OpSetData, OpGetData, OpEnsureParents.
func (m *StoreMetrics) RecordOperation(operation string, durationSeconds float64, success bool) {
	status := StatusFailure
	if success {
		status = StatusSuccess
	}
	m.LatencyHistogram.WithLabelValues(operation, status).Observe(durationSeconds)
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
}
