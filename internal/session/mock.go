package session

import (
	"context"
	"sort"
	"sync"
)

// MockServer is an in-memory node tree shared by the sessions of a
// MockDialer. It follows ZooKeeper rules: a node can only be created under
// an existing parent, and Set requires the node to exist.
// It is exported so that tests in other packages can use it.
type MockServer struct {
	mu       sync.RWMutex
	nodes    map[string]mockNode
	revision int64
}

type mockNode struct {
	data    []byte
	version int64
}

// NewMockServer creates an empty tree holding only "/".
func NewMockServer() *MockServer {
	return &MockServer{
		nodes: map[string]mockNode{"/": {}},
	}
}

// Exists reports whether the node at path exists.
func (m *MockServer) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nodes[path]
	return ok
}

// Data returns a copy of the data stored at path.
func (m *MockServer) Data(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

// Paths returns every node path in lexicographic order.
func (m *MockServer) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.nodes))
	for p := range m.nodes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *MockServer) create(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[path]; ok {
		return ErrNodeExists
	}
	if _, ok := m.nodes[parentOf(path)]; !ok {
		return ErrNoNode
	}
	m.revision++
	m.nodes[path] = mockNode{data: append([]byte(nil), data...)}
	return nil
}

func (m *MockServer) set(path string, data []byte) (Stat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[path]
	if !ok {
		return Stat{}, ErrNoNode
	}
	m.revision++
	n.data = append([]byte(nil), data...)
	n.version++
	m.nodes[path] = n
	return Stat{Version: n.version, Revision: m.revision, DataLength: len(data)}, nil
}

func (m *MockServer) get(path string) ([]byte, error) {
	data, ok := m.Data(path)
	if !ok {
		return nil, ErrNoNode
	}
	return data, nil
}

func parentOf(path string) string {
	for i := len(path) - 1; i > 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "/"
}

// MockDialer hands out MockSessions backed by a MockServer. By default
// every session reports EventConnected immediately after Dial.
type MockDialer struct {
	server *MockServer

	mu       sync.Mutex
	dialErr  error
	initial  []EventKind
	opErr    error
	sessions []*MockSession
	live     int
	maxLive  int
}

// NewMockDialer creates a dialer over server.
func NewMockDialer(server *MockServer) *MockDialer {
	return &MockDialer{
		server:  server,
		initial: []EventKind{EventConnected},
	}
}

// Server returns the backing tree.
func (d *MockDialer) Server() *MockServer {
	return d.server
}

// SetDialError makes every following Dial fail with err. Pass nil to
// restore normal dialing.
func (d *MockDialer) SetDialError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErr = err
}

// SetInitialEvents sets the events delivered to each new session. With no
// kinds, new sessions never connect.
func (d *MockDialer) SetInitialEvents(kinds ...EventKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initial = append([]EventKind(nil), kinds...)
}

// SetOperationError makes every data operation on new sessions fail with
// err. Pass nil to restore normal behavior.
func (d *MockDialer) SetOperationError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opErr = err
}

// Dial implements Dialer.
func (d *MockDialer) Dial(_ context.Context) (Session, <-chan Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dialErr != nil {
		return nil, nil, d.dialErr
	}

	s := &MockSession{
		dialer: d,
		events: make(chan Event, 16),
		opErr:  d.opErr,
	}
	for _, k := range d.initial {
		s.events <- Event{Kind: k}
	}
	d.sessions = append(d.sessions, s)
	d.live++
	if d.live > d.maxLive {
		d.maxLive = d.live
	}
	return s, s.events, nil
}

// Dials returns the number of sessions handed out.
func (d *MockDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// Sessions returns every session handed out, in dial order.
func (d *MockDialer) Sessions() []*MockSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*MockSession(nil), d.sessions...)
}

// Live returns the number of sessions not yet closed.
func (d *MockDialer) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// MaxLive returns the highest number of simultaneously open sessions.
func (d *MockDialer) MaxLive() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxLive
}

func (d *MockDialer) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live--
}

// MockSession implements Session over a MockServer.
type MockSession struct {
	dialer *MockDialer

	mu     sync.Mutex
	opErr  error
	events chan Event
	closed bool
	calls  int
}

// Emit delivers a lifecycle event. It is a no-op after Close.
func (s *MockSession) Emit(kind EventKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- Event{Kind: kind}:
	default:
	}
}

// SetError makes every following data operation fail with err. Pass nil
// to restore normal behavior.
func (s *MockSession) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opErr = err
}

// Closed reports whether Close was called.
func (s *MockSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Calls returns the number of data operations issued on the session.
func (s *MockSession) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *MockSession) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.calls++
	return s.opErr
}

func (s *MockSession) Create(_ context.Context, path string, data []byte) error {
	if err := s.begin(); err != nil {
		return err
	}
	return s.dialer.server.create(path, data)
}

func (s *MockSession) Set(_ context.Context, path string, data []byte) (Stat, error) {
	if err := s.begin(); err != nil {
		return Stat{}, err
	}
	return s.dialer.server.set(path, data)
}

func (s *MockSession) Get(_ context.Context, path string) ([]byte, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	return s.dialer.server.get(path)
}

func (s *MockSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	s.dialer.release()
	return nil
}

// Ensure MockSession implements Session and MockDialer implements Dialer.
var (
	_ Session = (*MockSession)(nil)
	_ Dialer  = (*MockDialer)(nil)
)
