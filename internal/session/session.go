// Package session defines the contract between the connection pool and a
// coordination-service client library.
//
// A Session is one live connection. It is produced by a Dialer together
// with a channel of lifecycle Events. The channel reports EventConnected
// once the session is usable and one of the terminal kinds (expired,
// auth-failed, disconnected) when it stops being usable. The channel is
// closed after the session is closed.
//
// Drivers live in sub-packages:
//
//	session/zookeeper  ZooKeeper via github.com/go-zookeeper/zk
//	session/oxia       Oxia via github.com/oxia-db/oxia
//	session/etcd       etcd via go.etcd.io/etcd/client/v3
package session

import (
	"context"
	"errors"
)

// Errors shared by every driver.
var (
	// ErrNodeExists is returned by Create when the node is already present.
	ErrNodeExists = errors.New("session: node already exists")

	// ErrNoNode is returned when the addressed node does not exist.
	ErrNoNode = errors.New("session: node does not exist")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session: closed")
)

// EventKind identifies a lifecycle notification.
type EventKind int

const (
	// EventConnected means the session is established and usable.
	EventConnected EventKind = iota
	// EventExpired means the server expired the session.
	EventExpired
	// EventAuthFailed means authentication was rejected.
	EventAuthFailed
	// EventDisconnected means the connection to the server was lost.
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventExpired:
		return "expired"
	case EventAuthFailed:
		return "auth_failed"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session is unusable after this event.
func (k EventKind) Terminal() bool {
	return k != EventConnected
}

// Event is a lifecycle notification for a single session.
type Event struct {
	Kind EventKind
	// Err carries the driver's reason, if any.
	Err error
}

// Stat is the node metadata returned by a write.
type Stat struct {
	// Version is the data version of the node after the write. Zero for a
	// node written once.
	Version int64
	// Revision is the store-wide modification id of the write, when the
	// backend exposes one.
	Revision int64
	// DataLength is the payload size in bytes.
	DataLength int
}

// Session is one live connection to the coordination service. A Session
// is safe for concurrent use; drivers pipeline requests.
type Session interface {
	// Create creates a persistent node holding data. Returns ErrNodeExists
	// if the node is already present.
	Create(ctx context.Context, path string, data []byte) error

	// Set overwrites the data of an existing node regardless of its
	// current version.
	Set(ctx context.Context, path string, data []byte) (Stat, error)

	// Get returns the data of a node. Returns ErrNoNode if it is missing.
	Get(ctx context.Context, path string) ([]byte, error)

	// Close releases the connection. Close is idempotent.
	Close() error
}

// Dialer opens sessions to the configured endpoint.
//
// Dial must not wait for the session to be established: it returns as soon
// as the handle exists and reports progress on the returned channel.
type Dialer interface {
	Dial(ctx context.Context) (Session, <-chan Event, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Session, <-chan Event, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Session, <-chan Event, error) {
	return f(ctx)
}
