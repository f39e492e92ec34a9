// Package metrics provides Prometheus metrics for the session pool and the
// path store.
//
// Exposed series:
//   - curator_pool_acquire_total / _latency_seconds by selection tier
//     (idle, fresh, fallback, none)
//   - curator_pool_connect_attempts_total / _latency_seconds by outcome
//   - curator_pool_evictions_total by lifecycle reason
//   - curator_pool_live_sessions
//   - curator_store_operations_total / _operation_latency_seconds by
//     operation and status
//
// Metrics are exposed via a dedicated HTTP server on /metrics in Prometheus
// format, next to a /healthz probe.
//
// Usage:
//
//	poolMetrics := metrics.NewPoolMetrics()
//	storeMetrics := metrics.NewStoreMetrics()
//
//	p := pool.New(dialer, pool.Config{..., Metrics: poolMetrics})
//	s := store.New(p, store.Config{..., Metrics: storeMetrics})
//
//	srv := metrics.NewServer(":9090")
//	srv.SetHealthCheck(func() any { return p.Stats() })
//	srv.Start()
package metrics

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

const namespace = "curator"
