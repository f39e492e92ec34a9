package zookeeper

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curator-io/curator/internal/logging"
	"github.com/curator-io/curator/internal/session"
)

func TestNewValidation(t *testing.T) {
	_, err := New(Config{SessionTimeout: time.Second})
	assert.Error(t, err)

	_, err = New(Config{Servers: []string{"localhost:2181"}})
	assert.Error(t, err)

	d, err := New(Config{Servers: []string{"localhost:2181"}, SessionTimeout: time.Second, ConnectRetries: -3})
	require.NoError(t, err)
	assert.Equal(t, 0, d.config.ConnectRetries)
	assert.NotNil(t, d.config.Logger)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		ev   zk.Event
		want session.EventKind
		ok   bool
	}{
		{zk.Event{Type: zk.EventSession, State: zk.StateHasSession}, session.EventConnected, true},
		{zk.Event{Type: zk.EventSession, State: zk.StateExpired}, session.EventExpired, true},
		{zk.Event{Type: zk.EventSession, State: zk.StateAuthFailed}, session.EventAuthFailed, true},
		{zk.Event{Type: zk.EventSession, State: zk.StateDisconnected}, session.EventDisconnected, true},
		{zk.Event{Type: zk.EventSession, State: zk.StateConnecting}, 0, false},
		{zk.Event{Type: zk.EventNodeDataChanged, State: zk.StateHasSession}, 0, false},
	}

	for _, tc := range tests {
		kind, ok := translate(tc.ev)
		assert.Equal(t, tc.ok, ok, "event %+v", tc.ev)
		if tc.ok {
			assert.Equal(t, tc.want, kind)
		}
	}
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(zk.ErrNodeExists), session.ErrNodeExists)
	assert.ErrorIs(t, mapError(zk.ErrNoNode), session.ErrNoNode)
	assert.ErrorIs(t, mapError(zk.ErrConnectionClosed), session.ErrClosed)

	other := mapError(zk.ErrBadVersion)
	assert.ErrorIs(t, other, zk.ErrBadVersion)
	assert.False(t, errors.Is(other, session.ErrNoNode))
}

func TestRetryDialer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	dial := retryDialer(2, time.Millisecond)
	conn, err := dial("tcp", ln.Addr().String(), time.Second)
	require.NoError(t, err)
	conn.Close()

	// Nothing listens on a closed listener's port.
	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := closed.Addr().String()
	closed.Close()

	start := time.Now()
	_, err = dial("tcp", addr, 100*time.Millisecond)
	assert.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Millisecond)
}

func TestLibraryLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logging.New(logging.Config{Level: logging.LevelDebug, Format: logging.FormatText, Output: &buf})

	libraryLogger{l}.Printf("connected to %s", "127.0.0.1:2181")
	out := buf.String()
	assert.True(t, strings.Contains(out, "connected to 127.0.0.1:2181"), out)
	assert.True(t, strings.Contains(out, "component=zk"), out)
}
