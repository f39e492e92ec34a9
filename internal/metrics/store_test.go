package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStoreMetrics_RecordOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStoreMetricsWithRegistry(reg)

	tests := []struct {
		operation string
		duration  float64
		success   bool
	}{
		{OpCreate, 0.001, true},
		{OpSetData, 0.002, true},
		{OpSetData, 0.002, false},
		{OpGetData, 0.001, true},
		{OpGetData, 0.001, false},
		{OpGetData, 0.001, false},
		{OpEnsureParents, 0.004, true},
	}
	for _, tt := range tests {
		m.RecordOperation(tt.operation, tt.duration, tt.success)
	}

	checks := []struct {
		operation string
		status    string
		want      float64
	}{
		{OpCreate, StatusSuccess, 1},
		{OpSetData, StatusSuccess, 1},
		{OpSetData, StatusFailure, 1},
		{OpGetData, StatusSuccess, 1},
		{OpGetData, StatusFailure, 2},
		{OpEnsureParents, StatusSuccess, 1},
	}
	for _, c := range checks {
		got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(c.operation, c.status))
		if got != c.want {
			t.Errorf("%s/%s = %v, want %v", c.operation, c.status, got, c.want)
		}
	}

	if n := testutil.CollectAndCount(m.LatencyHistogram); n != 6 {
		t.Errorf("latency series = %d, want 6", n)
	}
}
