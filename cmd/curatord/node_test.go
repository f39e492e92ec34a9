package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curator-io/curator/internal/config"
	"github.com/curator-io/curator/internal/logging"
	"github.com/curator-io/curator/internal/session"
	"github.com/curator-io/curator/internal/session/etcd"
	"github.com/curator-io/curator/internal/session/oxia"
	"github.com/curator-io/curator/internal/session/zookeeper"
)

func strPtr(s string) *string { return &s }

func TestExecNodeRoundTrip(t *testing.T) {
	d := session.NewMockDialer(session.NewMockServer())
	st := testAgent(t, d).Store()
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, execNode(ctx, st, nodeRequest{Op: "create", Path: "/svc/node"}, &out))
	assert.Equal(t, "Created /svc/node\n", out.String())

	out.Reset()
	require.NoError(t, execNode(ctx, st, nodeRequest{Op: "set", Path: "/svc/node", Data: strPtr(`{"a": 1}`), JSON: true}, &out))
	var setResult nodeResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &setResult))
	require.NotNil(t, setResult.Version)
	assert.GreaterOrEqual(t, *setResult.Version, int64(0))

	out.Reset()
	require.NoError(t, execNode(ctx, st, nodeRequest{Op: "get", Path: "/svc/node"}, &out))
	assert.Equal(t, `{"a":1}`, out.String())

	out.Reset()
	require.NoError(t, execNode(ctx, st, nodeRequest{Op: "get", Path: "/svc/node", JSON: true}, &out))
	var getResult nodeResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &getResult))
	assert.JSONEq(t, `{"a":1}`, string(getResult.Data))
}

func TestExecNodeTextData(t *testing.T) {
	d := session.NewMockDialer(session.NewMockServer())
	st := testAgent(t, d).Store()
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, execNode(ctx, st, nodeRequest{Op: "set", Path: "plain", Data: strPtr("not json")}, &out))
	assert.Contains(t, out.String(), "Set plain (version 1)")

	out.Reset()
	require.NoError(t, execNode(ctx, st, nodeRequest{Op: "get", Path: "plain", JSON: true}, &out))
	var result nodeResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	require.NotNil(t, result.Text)
	assert.Equal(t, "not json", *result.Text)
}

func TestExecNodeFailures(t *testing.T) {
	d := session.NewMockDialer(session.NewMockServer())
	st := testAgent(t, d).Store()
	ctx := context.Background()

	err := execNode(ctx, st, nodeRequest{Op: "get", Path: "missing"}, io.Discard)
	assert.ErrorIs(t, err, errOperationFailed)

	err = execNode(ctx, st, nodeRequest{Op: "set", Path: "bad", Data: strPtr("{"), JSON: true}, io.Discard)
	assert.ErrorContains(t, err, "invalid JSON data")

	err = execNode(ctx, st, nodeRequest{Op: "delete", Path: "x"}, io.Discard)
	assert.ErrorContains(t, err, "unknown operation")
}

func TestExecNodeMkdirp(t *testing.T) {
	d := session.NewMockDialer(session.NewMockServer())
	st := testAgent(t, d).Store()

	require.NoError(t, execNode(context.Background(), st, nodeRequest{Op: "mkdirp", Path: "a/b/c"}, io.Discard))
	assert.True(t, d.Server().Exists("/metadata/a/b/c"))
}

func TestNewDialerSelectsBackend(t *testing.T) {
	logger := logging.New(logging.Config{Output: io.Discard})

	tests := []struct {
		backend string
		check   func(t *testing.T, d session.Dialer)
	}{
		{config.BackendZookeeper, func(t *testing.T, d session.Dialer) {
			assert.IsType(t, &zookeeper.Dialer{}, d)
		}},
		{config.BackendOxia, func(t *testing.T, d session.Dialer) {
			assert.IsType(t, &oxia.Dialer{}, d)
		}},
		{config.BackendEtcd, func(t *testing.T, d session.Dialer) {
			assert.IsType(t, &etcd.Dialer{}, d)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Coordinator.Backend = tc.backend
			d, err := newDialer(cfg, logger)
			require.NoError(t, err)
			tc.check(t, d)
		})
	}

	cfg := config.Default()
	cfg.Coordinator.Backend = "consul"
	_, err := newDialer(cfg, logger)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Coordinator.Host = " , "
	_, err = newDialer(cfg, logger)
	assert.Error(t, err, "no servers")
}

func TestEtcdLogger(t *testing.T) {
	quiet := logging.New(logging.Config{Level: logging.LevelInfo, Output: io.Discard})
	assert.False(t, etcdLogger(quiet).Core().Enabled(-1))
	assert.False(t, etcdLogger(nil).Core().Enabled(0))

	verbose := logging.New(logging.Config{Level: logging.LevelDebug, Output: io.Discard})
	assert.True(t, etcdLogger(verbose).Core().Enabled(0))
}

func TestPoolDuration(t *testing.T) {
	assert.Equal(t, time.Duration(-1), poolDuration(0))
	assert.Equal(t, 5*time.Second, poolDuration(5*time.Second))
}

func TestPayloadFor(t *testing.T) {
	p, err := payloadFor(nodeRequest{})
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())

	p, err = payloadFor(nodeRequest{Data: strPtr(`[1, 2]`), JSON: true})
	require.NoError(t, err)
	data, err := p.Encode()
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", string(data))
}
