package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKind(t *testing.T) {
	tests := []struct {
		kind     EventKind
		name     string
		terminal bool
	}{
		{EventConnected, "connected", false},
		{EventExpired, "expired", true},
		{EventAuthFailed, "auth_failed", true},
		{EventDisconnected, "disconnected", true},
		{EventKind(42), "unknown", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.name, tc.kind.String())
			assert.Equal(t, tc.terminal, tc.kind.Terminal())
		})
	}
}

func TestMockSessionNodeRules(t *testing.T) {
	ctx := context.Background()
	d := NewMockDialer(NewMockServer())

	s, events, err := d.Dial(ctx)
	require.NoError(t, err)
	ev := <-events
	assert.Equal(t, EventConnected, ev.Kind)

	// Parent must exist.
	err = s.Create(ctx, "/a/b", nil)
	assert.ErrorIs(t, err, ErrNoNode)

	require.NoError(t, s.Create(ctx, "/a", []byte("x")))
	assert.ErrorIs(t, s.Create(ctx, "/a", nil), ErrNodeExists)
	require.NoError(t, s.Create(ctx, "/a/b", nil))

	_, err = s.Set(ctx, "/missing", []byte("v"))
	assert.ErrorIs(t, err, ErrNoNode)

	stat, err := s.Set(ctx, "/a/b", []byte("v1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stat.Version)
	assert.Equal(t, 2, stat.DataLength)

	stat, err = s.Set(ctx, "/a/b", []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), stat.Version)

	data, err := s.Get(ctx, "/a/b")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	_, err = s.Get(ctx, "/nope")
	assert.ErrorIs(t, err, ErrNoNode)
}

func TestMockSessionClose(t *testing.T) {
	ctx := context.Background()
	d := NewMockDialer(NewMockServer())

	s, events, err := d.Dial(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Live())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 0, d.Live())
	assert.Equal(t, 1, d.MaxLive())

	// Drain the buffered connected event, then the channel is closed.
	<-events
	_, ok := <-events
	assert.False(t, ok)

	ms := s.(*MockSession)
	ms.Emit(EventExpired)
	assert.True(t, ms.Closed())
	assert.ErrorIs(t, s.Create(ctx, "/a", nil), ErrClosed)
}

func TestMockDialerScripting(t *testing.T) {
	ctx := context.Background()
	d := NewMockDialer(NewMockServer())

	boom := errors.New("boom")
	d.SetDialError(boom)
	_, _, err := d.Dial(ctx)
	assert.ErrorIs(t, err, boom)
	d.SetDialError(nil)

	d.SetInitialEvents(EventAuthFailed)
	_, events, err := d.Dial(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventAuthFailed, (<-events).Kind)

	d.SetInitialEvents()
	d.SetOperationError(boom)
	s, events, err := d.Dial(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 0)
	assert.ErrorIs(t, s.Create(ctx, "/x", nil), boom)
	assert.Equal(t, 1, s.(*MockSession).Calls())
	assert.Equal(t, 2, d.Dials())
}

func TestDialerFunc(t *testing.T) {
	called := false
	var d Dialer = DialerFunc(func(ctx context.Context) (Session, <-chan Event, error) {
		called = true
		return nil, nil, ErrClosed
	})
	_, _, err := d.Dial(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, called)
}
