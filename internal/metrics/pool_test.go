package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewPoolMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPoolMetricsWithRegistry(reg)

	m.RecordAcquire("idle", 0.0001)
	m.RecordConnect("success", 0.02)
	m.RecordEviction("expired")
	m.SetLiveSessions(2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	expectedNames := map[string]bool{
		"curator_pool_acquire_total":           false,
		"curator_pool_acquire_latency_seconds": false,
		"curator_pool_connect_attempts_total":  false,
		"curator_pool_connect_latency_seconds": false,
		"curator_pool_evictions_total":         false,
		"curator_pool_live_sessions":           false,
	}
	for _, mf := range mfs {
		if _, ok := expectedNames[mf.GetName()]; ok {
			expectedNames[mf.GetName()] = true
		}
	}
	for name, found := range expectedNames {
		if !found {
			t.Errorf("expected metric %s to be registered", name)
		}
	}
}

func TestPoolMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPoolMetricsWithRegistry(reg)

	m.RecordAcquire("idle", 0.001)
	m.RecordAcquire("idle", 0.001)
	m.RecordAcquire("fallback", 0.001)
	m.RecordConnect("timeout", 10)
	m.RecordEviction("disconnected")
	m.RecordEviction("disconnected")
	m.SetLiveSessions(4)
	m.SetLiveSessions(3)

	if got := testutil.ToFloat64(m.AcquireTotal.WithLabelValues("idle")); got != 2 {
		t.Errorf("idle acquires = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.AcquireTotal.WithLabelValues("fallback")); got != 1 {
		t.Errorf("fallback acquires = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ConnectTotal.WithLabelValues("timeout")); got != 1 {
		t.Errorf("timeout connects = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EvictionsTotal.WithLabelValues("disconnected")); got != 2 {
		t.Errorf("evictions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LiveSessions); got != 3 {
		t.Errorf("live sessions = %v, want 3", got)
	}
}

func TestNewPoolMetricsDefaultRegistry(t *testing.T) {
	m := NewPoolMetrics()
	if m.LiveSessions == nil {
		t.Fatal("expected LiveSessions to be non-nil")
	}
}
