// Package oxia implements session.Dialer using Oxia.
//
// Oxia has no ZooKeeper-style session events, so a session reports
// EventConnected once the client has loaded its shard assignments and
// EventDisconnected if that fails. Nodes map to keys one-to-one; Oxia keys
// need no parents, so parent creation is harmless.
//
// Usage:
//
//	d, err := oxia.New(oxia.Config{
//	    ServiceAddress: "localhost:6648",
//	    Namespace:      "default",
//	})
package oxia

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	oxiaclient "github.com/oxia-db/oxia/oxia"

	"github.com/curator-io/curator/internal/session"
)

// Config configures the Oxia dialer.
type Config struct {
	// ServiceAddress is the Oxia service endpoint (e.g., "localhost:6648").
	ServiceAddress string

	// Namespace is the Oxia namespace to use.
	Namespace string

	// RequestTimeout is the timeout for individual requests.
	// Default: 30 seconds.
	RequestTimeout time.Duration

	// SessionTimeout is the Oxia client session timeout.
	// Default: 15 seconds.
	SessionTimeout time.Duration
}

// Dialer opens Oxia client sessions.
type Dialer struct {
	config Config
}

// New creates an Oxia dialer.
func New(cfg Config) (*Dialer, error) {
	if cfg.ServiceAddress == "" {
		return nil, errors.New("oxia: service address is required")
	}
	if cfg.Namespace == "" {
		return nil, errors.New("oxia: namespace is required")
	}
	return &Dialer{config: cfg}, nil
}

func (d *Dialer) options() []oxiaclient.ClientOption {
	opts := []oxiaclient.ClientOption{
		oxiaclient.WithNamespace(d.config.Namespace),
	}
	if d.config.RequestTimeout > 0 {
		opts = append(opts, oxiaclient.WithRequestTimeout(d.config.RequestTimeout))
	}
	if d.config.SessionTimeout > 0 {
		opts = append(opts, oxiaclient.WithSessionTimeout(d.config.SessionTimeout))
	}
	return opts
}

// Dial starts building a client in the background.
func (d *Dialer) Dial(_ context.Context) (session.Session, <-chan session.Event, error) {
	s := &Session{events: make(chan session.Event, 2)}
	go s.connect(d.config.ServiceAddress, d.options())
	return s, s.events, nil
}

// Session is one Oxia sync client.
type Session struct {
	mu     sync.RWMutex
	client oxiaclient.SyncClient
	closed bool
	events chan session.Event
}

func (s *Session) connect(addr string, opts []oxiaclient.ClientOption) {
	client, err := oxiaclient.NewSyncClient(addr, opts...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		if err == nil {
			_ = client.Close()
		}
		return
	}
	if err != nil {
		s.events <- session.Event{Kind: session.EventDisconnected, Err: fmt.Errorf("oxia: failed to create client: %w", err)}
		return
	}
	s.client = client
	s.events <- session.Event{Kind: session.EventConnected}
}

func (s *Session) get() (oxiaclient.SyncClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.client == nil {
		return nil, session.ErrClosed
	}
	return s.client, nil
}

// Create writes the key only if it does not exist yet.
func (s *Session) Create(ctx context.Context, path string, data []byte) error {
	client, err := s.get()
	if err != nil {
		return err
	}

	_, _, err = client.Put(ctx, path, data, oxiaclient.ExpectedRecordNotExists())
	if err != nil {
		if errors.Is(err, oxiaclient.ErrUnexpectedVersionId) {
			return session.ErrNodeExists
		}
		return fmt.Errorf("oxia: create failed: %w", err)
	}
	return nil
}

// Set overwrites an existing key.
func (s *Session) Set(ctx context.Context, path string, data []byte) (session.Stat, error) {
	client, err := s.get()
	if err != nil {
		return session.Stat{}, err
	}

	// A plain Put would create missing keys; ZooKeeper semantics require
	// the node to exist.
	if _, _, _, err := client.Get(ctx, path); err != nil {
		if errors.Is(err, oxiaclient.ErrKeyNotFound) {
			return session.Stat{}, session.ErrNoNode
		}
		return session.Stat{}, fmt.Errorf("oxia: set failed: %w", err)
	}

	_, version, err := client.Put(ctx, path, data)
	if err != nil {
		return session.Stat{}, fmt.Errorf("oxia: set failed: %w", err)
	}
	return session.Stat{
		Version:    version.ModificationsCount,
		Revision:   version.VersionId,
		DataLength: len(data),
	}, nil
}

// Get reads a key.
func (s *Session) Get(ctx context.Context, path string) ([]byte, error) {
	client, err := s.get()
	if err != nil {
		return nil, err
	}

	_, value, _, err := client.Get(ctx, path)
	if err != nil {
		if errors.Is(err, oxiaclient.ErrKeyNotFound) {
			return nil, session.ErrNoNode
		}
		return nil, fmt.Errorf("oxia: get failed: %w", err)
	}
	return value, nil
}

// Close releases the client and closes the event channel.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			return fmt.Errorf("oxia: close failed: %w", err)
		}
	}
	return nil
}

// Ensure Dialer implements session.Dialer and Session implements session.Session.
var (
	_ session.Dialer  = (*Dialer)(nil)
	_ session.Session = (*Session)(nil)
)
