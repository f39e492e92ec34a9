// Package store reads and writes nodes below a root path using sessions
// handed out by the pool.
//
// Every operation is best-effort: Create, SetData and GetData report
// success as a boolean and log the underlying error. Paths are relative to
// the configured root.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/curator-io/curator/internal/logging"
	"github.com/curator-io/curator/internal/paths"
	"github.com/curator-io/curator/internal/session"
)

// Operation names, used as metric labels.
const (
	OpCreate        = "create"
	OpSetData       = "set_data"
	OpGetData       = "get_data"
	OpEnsureParents = "ensure_parents"
)

// SessionSource hands out usable sessions. *pool.Pool implements it.
type SessionSource interface {
	Acquire(ctx context.Context) (session.Session, error)
}

// MetricsRecorder receives store operation measurements.
type MetricsRecorder interface {
	RecordOperation(operation string, durationSeconds float64, success bool)
}

// Config configures a Store.
type Config struct {
	// RootPath prefixes every path. Defaults to "/".
	RootPath string

	// Logger defaults to the global logger.
	Logger *logging.Logger

	// Metrics is optional.
	Metrics MetricsRecorder
}

// Store is the path-oriented data access layer.
type Store struct {
	source  SessionSource
	root    string
	logger  *logging.Logger
	metrics MetricsRecorder
}

// New creates a store on top of source.
func New(source SessionSource, cfg Config) (*Store, error) {
	if source == nil {
		return nil, errors.New("store: session source is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Global()
	}
	return &Store{
		source:  source,
		root:    paths.Clean(cfg.RootPath),
		logger:  logger.With(map[string]any{"component": "store"}),
		metrics: cfg.Metrics,
	}, nil
}

// Root returns the root path.
func (s *Store) Root() string {
	return s.root
}

// Create creates the node at path holding data. An existing node counts as
// success. Missing ancestors are created when the first attempt reports
// them absent.
func (s *Store) Create(ctx context.Context, path string, data Payload) bool {
	start := time.Now()
	full := paths.Join(s.root, path)

	err := s.create(ctx, full, data)
	s.record(OpCreate, start, err == nil)
	if err != nil {
		s.log(ctx).Warnf("create failed", map[string]any{"path": full, "error": err.Error()})
		return false
	}
	return true
}

func (s *Store) create(ctx context.Context, full string, data Payload) error {
	sess, err := s.source.Acquire(ctx)
	if err != nil {
		return err
	}
	body, err := data.Encode()
	if err != nil {
		return err
	}

	err = createNode(ctx, sess, full, body)
	if errors.Is(err, session.ErrNoNode) {
		_ = ensureChain(ctx, sess, paths.Parent(full))
		err = createNode(ctx, sess, full, body)
	}
	return err
}

// SetData overwrites the node at path regardless of its version. Ancestors
// are created first; failures there are ignored since they usually mean the
// node already exists.
func (s *Store) SetData(ctx context.Context, path string, data Payload) (session.Stat, bool) {
	start := time.Now()
	full := paths.Join(s.root, path)

	stat, err := s.setData(ctx, full, data)
	s.record(OpSetData, start, err == nil)
	if err != nil {
		s.log(ctx).Warnf("set data failed", map[string]any{"path": full, "error": err.Error()})
		return session.Stat{}, false
	}
	return stat, true
}

func (s *Store) setData(ctx context.Context, full string, data Payload) (session.Stat, error) {
	sess, err := s.source.Acquire(ctx)
	if err != nil {
		return session.Stat{}, err
	}
	if err := ensureChain(ctx, sess, full); err != nil {
		s.log(ctx).Debugf("ensure parents incomplete", map[string]any{"path": full, "error": err.Error()})
	}
	body, err := data.Encode()
	if err != nil {
		return session.Stat{}, err
	}
	return sess.Set(ctx, full, body)
}

// GetData returns the bytes stored at path exactly as written. Data
// written with Value comes back as JSON text; see DecodeJSON.
func (s *Store) GetData(ctx context.Context, path string) ([]byte, bool) {
	start := time.Now()
	full := paths.Join(s.root, path)

	data, err := s.getData(ctx, full)
	s.record(OpGetData, start, err == nil)
	if err != nil {
		fields := map[string]any{"path": full, "error": err.Error()}
		if errors.Is(err, session.ErrNoNode) {
			s.log(ctx).Debugf("node not found", fields)
		} else {
			s.log(ctx).Warnf("get data failed", fields)
		}
		return nil, false
	}
	return data, true
}

func (s *Store) getData(ctx context.Context, full string) ([]byte, error) {
	sess, err := s.source.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return sess.Get(ctx, full)
}

// EnsureParents creates the root, every prefix of path and path itself as
// empty nodes. It keeps going past failures and returns the first one.
func (s *Store) EnsureParents(ctx context.Context, path string) error {
	start := time.Now()
	full := paths.Join(s.root, path)

	err := s.ensureParents(ctx, full)
	s.record(OpEnsureParents, start, err == nil)
	if err != nil {
		s.log(ctx).Warnf("ensure parents failed", map[string]any{"path": full, "error": err.Error()})
	}
	return err
}

func (s *Store) ensureParents(ctx context.Context, full string) error {
	sess, err := s.source.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("store: ensure parents: %w", err)
	}
	return ensureChain(ctx, sess, full)
}

// ensureChain creates every node of paths.Chain(full), tolerating existing
// nodes, and returns the first other error.
func ensureChain(ctx context.Context, sess session.Session, full string) error {
	var first error
	for _, node := range paths.Chain(full) {
		if err := createNode(ctx, sess, node, nil); err != nil && first == nil {
			first = fmt.Errorf("store: create %s: %w", node, err)
		}
	}
	return first
}

// createNode creates a node and treats an existing one as success.
func createNode(ctx context.Context, sess session.Session, full string, data []byte) error {
	err := sess.Create(ctx, full, data)
	if err != nil && !errors.Is(err, session.ErrNodeExists) {
		return err
	}
	return nil
}

func (s *Store) log(ctx context.Context) *logging.Logger {
	return logging.FromCtx(ctx, s.logger)
}

func (s *Store) record(op string, start time.Time, success bool) {
	if s.metrics != nil {
		s.metrics.RecordOperation(op, time.Since(start).Seconds(), success)
	}
}
