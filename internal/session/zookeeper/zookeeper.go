// Package zookeeper implements session.Dialer on top of
// github.com/go-zookeeper/zk.
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/curator-io/curator/internal/logging"
	"github.com/curator-io/curator/internal/session"
)

// persistent is the zk create flag for a plain, non-sequential node.
const persistent int32 = 0

// Config configures the ZooKeeper dialer.
type Config struct {
	// Servers is the ensemble, as host:port pairs.
	Servers []string

	// SessionTimeout is negotiated with the server for every session.
	SessionTimeout time.Duration

	// ConnectRetries is how many times a failed TCP dial to a server is
	// retried before the client library moves on to the next server.
	ConnectRetries int

	// RetryDelay is the pause between dial retries.
	RetryDelay time.Duration

	// Logger receives the client library's own log lines at debug level.
	Logger *logging.Logger
}

// Dialer opens ZooKeeper sessions.
type Dialer struct {
	config Config
}

// New creates a ZooKeeper dialer.
func New(cfg Config) (*Dialer, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("zookeeper: at least one server is required")
	}
	if cfg.SessionTimeout <= 0 {
		return nil, errors.New("zookeeper: session timeout must be positive")
	}
	if cfg.ConnectRetries < 0 {
		cfg.ConnectRetries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Global()
	}
	return &Dialer{config: cfg}, nil
}

// Dial starts a new session. The client library connects in the
// background and reports progress on the returned channel.
func (d *Dialer) Dial(_ context.Context) (session.Session, <-chan session.Event, error) {
	conn, zkEvents, err := zk.Connect(
		d.config.Servers,
		d.config.SessionTimeout,
		zk.WithDialer(retryDialer(d.config.ConnectRetries, d.config.RetryDelay)),
		zk.WithLogger(libraryLogger{d.config.Logger}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("zookeeper: connect failed: %w", err)
	}

	s := &Session{
		conn: conn,
		done: make(chan struct{}),
	}
	events := make(chan session.Event, 8)
	go s.forward(zkEvents, events)
	return s, events, nil
}

// retryDialer retries a failed TCP dial up to retries extra times.
func retryDialer(retries int, delay time.Duration) zk.Dialer {
	return func(network, address string, timeout time.Duration) (net.Conn, error) {
		var lastErr error
		for attempt := 0; attempt <= retries; attempt++ {
			if attempt > 0 && delay > 0 {
				time.Sleep(delay)
			}
			conn, err := net.DialTimeout(network, address, timeout)
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
}

// Session wraps a *zk.Conn.
type Session struct {
	conn *zk.Conn

	closeOnce sync.Once
	done      chan struct{}
}

// forward translates session-state events until the library closes its
// channel, then closes out.
func (s *Session) forward(in <-chan zk.Event, out chan<- session.Event) {
	defer close(out)
	for ev := range in {
		kind, ok := translate(ev)
		if !ok {
			continue
		}
		select {
		case out <- session.Event{Kind: kind, Err: ev.Err}:
		case <-s.done:
		}
	}
}

func translate(ev zk.Event) (session.EventKind, bool) {
	if ev.Type != zk.EventSession {
		return 0, false
	}
	switch ev.State {
	case zk.StateHasSession:
		return session.EventConnected, true
	case zk.StateExpired:
		return session.EventExpired, true
	case zk.StateAuthFailed:
		return session.EventAuthFailed, true
	case zk.StateDisconnected:
		return session.EventDisconnected, true
	default:
		return 0, false
	}
}

func (s *Session) Create(_ context.Context, path string, data []byte) error {
	_, err := s.conn.Create(path, data, persistent, zk.WorldACL(zk.PermAll))
	return mapError(err)
}

func (s *Session) Set(_ context.Context, path string, data []byte) (session.Stat, error) {
	// -1 skips the version check.
	stat, err := s.conn.Set(path, data, -1)
	if err != nil {
		return session.Stat{}, mapError(err)
	}
	return session.Stat{
		Version:    int64(stat.Version),
		Revision:   stat.Mzxid,
		DataLength: int(stat.DataLength),
	}, nil
}

func (s *Session) Get(_ context.Context, path string) ([]byte, error) {
	data, _, err := s.conn.Get(path)
	if err != nil {
		return nil, mapError(err)
	}
	return data, nil
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
	return nil
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, zk.ErrNodeExists):
		return session.ErrNodeExists
	case errors.Is(err, zk.ErrNoNode):
		return session.ErrNoNode
	case errors.Is(err, zk.ErrClosing), errors.Is(err, zk.ErrConnectionClosed):
		return fmt.Errorf("%w: %v", session.ErrClosed, err)
	default:
		return fmt.Errorf("zookeeper: %w", err)
	}
}

// libraryLogger routes zk client logs to the structured logger.
type libraryLogger struct {
	l *logging.Logger
}

func (z libraryLogger) Printf(format string, args ...any) {
	z.l.Debugf(fmt.Sprintf(format, args...), map[string]any{"component": "zk"})
}

// Ensure Dialer implements session.Dialer and Session implements session.Session.
var (
	_ session.Dialer  = (*Dialer)(nil)
	_ session.Session = (*Session)(nil)
)
