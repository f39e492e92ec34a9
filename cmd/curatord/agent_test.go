package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curator-io/curator/internal/config"
	"github.com/curator-io/curator/internal/logging"
	"github.com/curator-io/curator/internal/session"
	"github.com/curator-io/curator/internal/store"
)

func testAgent(t *testing.T, d session.Dialer) *Agent {
	t.Helper()

	cfg := config.Default()
	cfg.Observability.MetricsAddr = "127.0.0.1:0"
	cfg.Pool.Size = 3
	cfg.Coordinator.SessionTimeoutMs = 1000

	agent, err := NewAgent(AgentOptions{
		Config:   cfg,
		Logger:   logging.New(logging.Config{Level: logging.LevelError, Output: io.Discard}),
		Version:  "test",
		Dialer:   d,
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = agent.Shutdown(context.Background()) })
	return agent
}

func getHealth(t *testing.T, addr string) (int, healthReport) {
	t.Helper()

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var report healthReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	return resp.StatusCode, report
}

func TestAgentStartAndShutdown(t *testing.T) {
	d := session.NewMockDialer(session.NewMockServer())
	agent := testAgent(t, d)

	require.NoError(t, agent.Start())
	assert.Error(t, agent.Start(), "second start must fail")

	// ceil(3/3) sessions are warmed.
	require.Eventually(t, func() bool {
		return d.Live() == 1
	}, 2*time.Second, 10*time.Millisecond)

	code, report := getHealth(t, agent.MetricsAddr())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, config.BackendZookeeper, report.Backend)
	assert.Equal(t, 3, report.Pool.Size)
	assert.Equal(t, 1, report.Pool.Live)

	resp, err := http.Get("http://" + agent.MetricsAddr() + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(body), "curator_pool_live_sessions"), "metrics body missing pool gauge")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, agent.Shutdown(ctx))
	assert.Equal(t, 0, d.Live())
}

func TestAgentUnhealthyWithoutSessions(t *testing.T) {
	d := session.NewMockDialer(session.NewMockServer())
	d.SetDialError(assert.AnError)
	agent := testAgent(t, d)

	require.NoError(t, agent.Start())

	code, report := getHealth(t, agent.MetricsAddr())
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, 0, report.Pool.Live)
}

func TestAgentStoreRoundTrip(t *testing.T) {
	d := session.NewMockDialer(session.NewMockServer())
	agent := testAgent(t, d)
	ctx := context.Background()

	st := agent.Store()
	assert.Equal(t, "/metadata", st.Root())
	require.True(t, st.Create(ctx, "/svc/node", store.Text("hello")))

	data, ok := st.GetData(ctx, "/svc/node")
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
	assert.True(t, d.Server().Exists("/metadata/svc/node"))
}

func TestNewAgentRequiresConfig(t *testing.T) {
	_, err := NewAgent(AgentOptions{})
	assert.Error(t, err)
}

func TestNewAgentRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Coordinator.Backend = "consul"

	_, err := NewAgent(AgentOptions{
		Config:   cfg,
		Logger:   logging.New(logging.Config{Output: io.Discard}),
		Registry: prometheus.NewRegistry(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consul")
}
