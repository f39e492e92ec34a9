// Package etcd implements session.Dialer on top of the etcd v3 client.
//
// Each session owns a lease (concurrency.Session). The session reports
// EventConnected once the lease is granted and EventExpired when the lease
// is lost, which mirrors ZooKeeper session expiry.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
	"go.uber.org/zap"

	"github.com/curator-io/curator/internal/session"
)

const defaultPort = "2379"

// Config configures the etcd dialer.
type Config struct {
	// Endpoints are etcd client URLs or host:port pairs. A missing port
	// defaults to 2379.
	Endpoints []string

	// DialTimeout bounds the initial connection.
	DialTimeout time.Duration

	// SessionTimeout is the lease TTL. Rounded up to whole seconds.
	SessionTimeout time.Duration

	// Logger is handed to the etcd client. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Dialer opens etcd sessions.
type Dialer struct {
	config Config
}

// New creates an etcd dialer.
func New(cfg Config) (*Dialer, error) {
	var endpoints []string
	for _, address := range cfg.Endpoints {
		if len(address) == 0 {
			continue
		}
		endpoints = append(endpoints, withDefaultPort(address))
	}
	if len(endpoints) == 0 {
		return nil, errors.New("etcd: at least one endpoint is required")
	}
	cfg.Endpoints = endpoints

	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dialer{config: cfg}, nil
}

func withDefaultPort(address string) string {
	host, port, err := net.SplitHostPort(address)
	var ae *net.AddrError
	if errors.As(err, &ae) && ae.Err == "missing port in address" {
		return net.JoinHostPort(address, defaultPort)
	}
	if err != nil {
		return address
	}
	return net.JoinHostPort(host, port)
}

// ttlSeconds converts the session timeout to a lease TTL.
func ttlSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Dial creates the client and grants the lease in the background.
func (d *Dialer) Dial(_ context.Context) (session.Session, <-chan session.Event, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   d.config.Endpoints,
		DialTimeout: d.config.DialTimeout,
		Logger:      d.config.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("etcd: failed to create client: %w", err)
	}

	s := &Session{
		client: cli,
		events: make(chan session.Event, 2),
		done:   make(chan struct{}),
	}
	go s.grant(ttlSeconds(d.config.SessionTimeout))
	return s, s.events, nil
}

// Session is an etcd client plus its lease.
type Session struct {
	client *clientv3.Client

	mu     sync.Mutex
	lease  *concurrency.Session
	closed bool
	events chan session.Event
	done   chan struct{}
}

func (s *Session) grant(ttl int) {
	var opts []concurrency.SessionOption
	if ttl > 0 {
		opts = append(opts, concurrency.WithTTL(ttl))
	}
	lease, err := concurrency.NewSession(s.client, opts...)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if err == nil {
			_ = lease.Close()
		}
		return
	}
	if err != nil {
		s.events <- session.Event{Kind: session.EventDisconnected, Err: fmt.Errorf("etcd: lease grant failed: %w", err)}
		s.mu.Unlock()
		return
	}
	s.lease = lease
	s.events <- session.Event{Kind: session.EventConnected}
	s.mu.Unlock()

	select {
	case <-lease.Done():
		s.mu.Lock()
		if !s.closed {
			select {
			case s.events <- session.Event{Kind: session.EventExpired}:
			default:
			}
		}
		s.mu.Unlock()
	case <-s.done:
	}
}

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return session.ErrClosed
	}
	return nil
}

// Create puts the key only if it has never been created.
func (s *Session) Create(ctx context.Context, path string, data []byte) error {
	if err := s.check(); err != nil {
		return err
	}

	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(path), "=", 0)).
		Then(clientv3.OpPut(path, string(data))).
		Commit()
	if err != nil {
		return fmt.Errorf("etcd: create failed: %w", err)
	}
	if !resp.Succeeded {
		return session.ErrNodeExists
	}
	return nil
}

// Set overwrites an existing key.
func (s *Session) Set(ctx context.Context, path string, data []byte) (session.Stat, error) {
	if err := s.check(); err != nil {
		return session.Stat{}, err
	}

	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(path), ">", 0)).
		Then(clientv3.OpPut(path, string(data), clientv3.WithPrevKV())).
		Commit()
	if err != nil {
		return session.Stat{}, fmt.Errorf("etcd: set failed: %w", err)
	}
	if !resp.Succeeded {
		return session.Stat{}, session.ErrNoNode
	}

	// etcd versions start at 1 on creation; the previous version is the
	// number of overwrites after this write.
	var version int64
	if len(resp.Responses) > 0 {
		if put := resp.Responses[0].GetResponsePut(); put != nil && put.PrevKv != nil {
			version = put.PrevKv.Version
		}
	}
	return session.Stat{
		Version:    version,
		Revision:   resp.Header.Revision,
		DataLength: len(data),
	}, nil
}

// Get reads a key.
func (s *Session) Get(ctx context.Context, path string) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("etcd: get failed: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, session.ErrNoNode
	}
	return resp.Kvs[0].Value, nil
}

// Close revokes the lease and closes the client.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	close(s.events)
	lease := s.lease
	s.mu.Unlock()

	var errs []error
	if lease != nil {
		errs = append(errs, lease.Close())
	}
	errs = append(errs, s.client.Close())
	for i, err := range errs {
		if errors.Is(err, context.Canceled) {
			errs[i] = nil
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("etcd: close failed: %w", err)
	}
	return nil
}

// Ensure Dialer implements session.Dialer and Session implements session.Session.
var (
	_ session.Dialer  = (*Dialer)(nil)
	_ session.Session = (*Session)(nil)
)
