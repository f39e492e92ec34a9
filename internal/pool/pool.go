// Package pool keeps a fixed set of coordination-service sessions warm and
// hands a usable one to every caller.
//
// The pool owns Size slots. Each slot holds at most one session, which is
// always connected and bootstrapped (the root path exists) or absent.
// Acquire picks a session in three tiers:
//
//  1. the lowest slot whose session has not been handed out within
//     StaleAfter;
//  2. a fresh session on the lowest empty slot whose connect cooldown has
//     elapsed;
//  3. any live session, scanning outward from a random slot.
//
// Sessions leave their slot as soon as they report expiry, auth failure or
// disconnection. Only slot bookkeeping is serialized; dialing, bootstrap
// and data operations run without the pool lock.
package pool

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/curator-io/curator/internal/logging"
	"github.com/curator-io/curator/internal/paths"
	"github.com/curator-io/curator/internal/session"
)

// Errors returned by the pool.
var (
	// ErrNoUsableSession is returned when no slot is live or could be
	// established.
	ErrNoUsableSession = errors.New("pool: no usable session")

	// ErrConnectTimeout is returned when a session did not connect within
	// the session timeout.
	ErrConnectTimeout = errors.New("pool: connect timeout")

	// ErrSessionLifecycle is returned when a session expired, failed
	// authentication or disconnected before it became usable.
	ErrSessionLifecycle = errors.New("pool: session lifecycle failure")

	// ErrBootstrap is returned when the root path could not be created on a
	// new session.
	ErrBootstrap = errors.New("pool: bootstrap failed")

	// ErrPoolClosed is returned after Close.
	ErrPoolClosed = errors.New("pool: closed")
)

// Selection tiers, used as metric labels.
const (
	TierIdle     = "idle"
	TierFresh    = "fresh"
	TierFallback = "fallback"
	TierNone     = "none"
)

// Connect outcomes, used as metric labels.
const (
	OutcomeSuccess   = "success"
	OutcomeTimeout   = "timeout"
	OutcomeLifecycle = "lifecycle"
	OutcomeBootstrap = "bootstrap"
	OutcomeDial      = "dial"
	OutcomeCanceled  = "canceled"
)

// Eviction reasons that are not lifecycle event kinds.
const (
	ReasonClosed   = "closed"
	ReasonReplaced = "replaced"
)

// MetricsRecorder receives pool measurements. It decouples the pool from
// the metrics package.
type MetricsRecorder interface {
	RecordAcquire(tier string, durationSeconds float64)
	RecordConnect(outcome string, durationSeconds float64)
	RecordEviction(reason string)
	SetLiveSessions(n int)
}

// Config configures a Pool.
type Config struct {
	// Size is the number of slots. Must be at least 1.
	Size int

	// RootPath is created on every new session before it is installed.
	RootPath string

	// SessionTimeout bounds a connection attempt.
	SessionTimeout time.Duration

	// ConnectCooldown is the minimum interval between two attempts on the
	// same slot. Zero selects the default of 10 seconds; negative disables
	// the cooldown.
	ConnectCooldown time.Duration

	// StaleAfter is how long a session must have been idle to be preferred
	// by the first selection tier. Zero selects the default of 10 seconds;
	// negative makes every live session eligible.
	StaleAfter time.Duration

	// Logger defaults to the global logger.
	Logger *logging.Logger

	// Metrics is optional.
	Metrics MetricsRecorder
}

const (
	defaultConnectCooldown = 10 * time.Second
	defaultStaleAfter      = 10 * time.Second
)

// slot is one pool position.
type slot struct {
	session          session.Session
	connectStartedAt time.Time
	lastHandedOutAt  time.Time
	connecting       bool
	// generation identifies the attempt that produced session, so that a
	// late event from a replaced session cannot evict its successor.
	generation uint64
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Size       int `json:"size"`
	Live       int `json:"live"`
	Connecting int `json:"connecting"`
}

// Pool is a fixed-capacity set of session slots.
type Pool struct {
	dialer  session.Dialer
	config  Config
	logger  *logging.Logger
	metrics MetricsRecorder

	// now and rnd are replaceable in tests.
	now func() time.Time
	rnd *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	slots  []slot
	closed bool
}

// New creates a pool. No session is opened until Start or Acquire.
func New(dialer session.Dialer, cfg Config) (*Pool, error) {
	if dialer == nil {
		return nil, errors.New("pool: dialer is required")
	}
	if cfg.Size < 1 {
		return nil, fmt.Errorf("pool: size must be at least 1, got %d", cfg.Size)
	}
	if cfg.SessionTimeout <= 0 {
		return nil, errors.New("pool: session timeout must be positive")
	}
	if cfg.RootPath == "" {
		cfg.RootPath = "/"
	}
	switch {
	case cfg.ConnectCooldown == 0:
		cfg.ConnectCooldown = defaultConnectCooldown
	case cfg.ConnectCooldown < 0:
		cfg.ConnectCooldown = 0
	}
	switch {
	case cfg.StaleAfter == 0:
		cfg.StaleAfter = defaultStaleAfter
	case cfg.StaleAfter < 0:
		cfg.StaleAfter = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Global()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		dialer:  dialer,
		config:  cfg,
		logger:  logger.With(map[string]any{"component": "pool"}),
		metrics: cfg.Metrics,
		now:     time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		ctx:     ctx,
		cancel:  cancel,
		slots:   make([]slot, cfg.Size),
	}, nil
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return len(p.slots)
}

// Start warms ceil(Size/3) sessions in the background and returns
// immediately. Failures are logged; Acquire establishes sessions lazily
// regardless.
func (p *Pool) Start() {
	warm := (len(p.slots) + 2) / 3

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		var g errgroup.Group
		for i := 0; i < warm; i++ {
			g.Go(func() error {
				idx := p.reserveEmptySlot()
				if idx < 0 {
					return ErrNoUsableSession
				}
				_, err := p.establish(p.ctx, idx)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			p.logger.Warnf("pool warm-up incomplete", map[string]any{
				"error":  err.Error(),
				"target": warm,
				"live":   p.Stats().Live,
			})
			return
		}
		p.logger.Infof("pool warm-up complete", map[string]any{"live": p.Stats().Live})
	}()
}

// Acquire returns a usable session. It blocks at most for one connection
// attempt (SessionTimeout plus the bootstrap round trip). The session stays
// owned by the pool; callers use it for one operation and must not close it.
func (p *Pool) Acquire(ctx context.Context) (session.Session, error) {
	start := p.now()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if idx := p.findIdleSlot(start); idx >= 0 {
		s := p.handOutLocked(idx)
		p.mu.Unlock()
		p.recordAcquire(TierIdle, start)
		return s, nil
	}
	idx := p.findEmptySlot(start)
	if idx >= 0 {
		p.beginAttemptLocked(idx, start)
	}
	p.mu.Unlock()

	if idx >= 0 {
		s, err := p.establish(ctx, idx)
		if err == nil {
			p.mu.Lock()
			switch {
			case p.closed:
				err = ErrPoolClosed
			case p.slots[idx].session == s:
				p.slots[idx].lastHandedOutAt = p.now()
			default:
				// Evicted before it could be handed out.
				err = fmt.Errorf("%w: evicted after connect", ErrSessionLifecycle)
			}
			p.mu.Unlock()
			if err == nil {
				p.recordAcquire(TierFresh, start)
				return s, nil
			}
		}
		if errors.Is(err, ErrPoolClosed) {
			return nil, err
		}
		p.logger.Warnf("acquire could not establish a session", map[string]any{
			"slot":  idx,
			"error": err.Error(),
		})
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	if idx := p.findAnyLiveSlot(); idx >= 0 {
		s := p.handOutLocked(idx)
		p.recordAcquire(TierFallback, start)
		return s, nil
	}
	p.recordAcquire(TierNone, start)
	return nil, ErrNoUsableSession
}

func (p *Pool) handOutLocked(idx int) session.Session {
	p.slots[idx].lastHandedOutAt = p.now()
	return p.slots[idx].session
}

// findIdleSlot returns the lowest live slot not handed out within
// StaleAfter, or -1. Caller holds p.mu.
func (p *Pool) findIdleSlot(now time.Time) int {
	for i := range p.slots {
		s := &p.slots[i]
		if s.session == nil {
			continue
		}
		if s.lastHandedOutAt.IsZero() || now.Sub(s.lastHandedOutAt) > p.config.StaleAfter {
			return i
		}
	}
	return -1
}

// findEmptySlot returns the lowest slot without a session, not mid-connect,
// whose cooldown has elapsed, or -1. Caller holds p.mu.
func (p *Pool) findEmptySlot(now time.Time) int {
	for i := range p.slots {
		if p.slots[i].session == nil && p.attemptAllowed(i, now) {
			return i
		}
	}
	return -1
}

// findAnyLiveSlot scans outward from a random slot (distance 0, then -d and
// +d) for any live session regardless of staleness. Caller holds p.mu.
func (p *Pool) findAnyLiveSlot() int {
	n := len(p.slots)
	origin := p.rnd.Intn(n)
	for d := 0; d < n; d++ {
		if i := origin - d; i >= 0 && p.slots[i].session != nil {
			return i
		}
		if i := origin + d; i < n && p.slots[i].session != nil {
			return i
		}
	}
	return -1
}

func (p *Pool) attemptAllowed(idx int, now time.Time) bool {
	s := &p.slots[idx]
	if s.connecting {
		return false
	}
	return s.connectStartedAt.IsZero() || now.Sub(s.connectStartedAt) >= p.config.ConnectCooldown
}

// reserveEmptySlot finds and claims an empty slot in one critical section.
func (p *Pool) reserveEmptySlot() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return -1
	}
	idx := p.findEmptySlot(p.now())
	if idx >= 0 {
		p.beginAttemptLocked(idx, p.now())
	}
	return idx
}

func (p *Pool) beginAttemptLocked(idx int, now time.Time) {
	p.slots[idx].connecting = true
	p.slots[idx].connectStartedAt = now
}

// establish opens a new session on slot idx, closing any session the slot
// still holds, and installs it once connected and bootstrapped. The slot
// must have been reserved with beginAttemptLocked, which enforces the
// cooldown and the single in-flight attempt per slot.
func (p *Pool) establish(ctx context.Context, idx int) (session.Session, error) {
	start := p.now()
	attemptID := uuid.NewString()
	log := logging.FromCtx(ctx, p.logger).With(map[string]any{
		"slot":    idx,
		"attempt": attemptID,
	})

	p.mu.Lock()
	p.slots[idx].generation++
	gen := p.slots[idx].generation
	old := p.slots[idx].session
	p.slots[idx].session = nil
	p.mu.Unlock()

	if old != nil {
		closeSession(old)
		p.recordEviction(ReasonReplaced)
		p.publishLive()
	}

	s, err := p.attempt(ctx, log)

	p.mu.Lock()
	if err == nil && p.closed {
		err = ErrPoolClosed
	}
	if err == nil {
		p.slots[idx].session = s.handle
		p.slots[idx].connecting = false
		// Registered before unlocking so that Close waits for the watcher.
		p.wg.Add(1)
		p.mu.Unlock()

		go p.watch(idx, gen, s, log)

		p.recordConnect(OutcomeSuccess, start)
		p.publishLive()
		log.Infof("session installed", map[string]any{
			"durationMs": p.now().Sub(start).Milliseconds(),
		})
		return s.handle, nil
	}
	p.mu.Unlock()

	// The failed handle is closed before the slot is released so the slot
	// never accounts for two open sessions.
	if s != nil {
		closeSession(s.handle)
	}
	p.mu.Lock()
	p.slots[idx].connecting = false
	p.mu.Unlock()

	outcome := classify(err)
	p.recordConnect(outcome, start)
	log.Warnf("session attempt failed", map[string]any{
		"error":   err.Error(),
		"outcome": outcome,
	})
	return nil, err
}

// pending is a dialed session and its remaining lifecycle events.
type pending struct {
	handle session.Session
	events <-chan session.Event
}

// attempt dials and waits for the first terminal outcome. The select loop is
// the only place resolving the attempt, so exactly one result is produced no
// matter how many events race. On error the returned pending (if non-nil)
// still needs closing.
func (p *Pool) attempt(ctx context.Context, log *logging.Logger) (*pending, error) {
	handle, events, err := p.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool: dial: %w", err)
	}
	s := &pending{handle: handle, events: events}

	timer := time.NewTimer(p.config.SessionTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return s, fmt.Errorf("%w: event stream closed", ErrSessionLifecycle)
			}
			if ev.Kind.Terminal() {
				return s, fmt.Errorf("%w: %s", ErrSessionLifecycle, ev.Kind)
			}
			log.Debug("session connected, bootstrapping root path")
			if err := p.bootstrap(ctx, handle); err != nil {
				return s, fmt.Errorf("%w: %v", ErrBootstrap, err)
			}
			return s, nil
		case <-timer.C:
			return s, fmt.Errorf("%w after %s", ErrConnectTimeout, p.config.SessionTimeout)
		case <-ctx.Done():
			return s, ctx.Err()
		case <-p.ctx.Done():
			return s, ErrPoolClosed
		}
	}
}

// bootstrap creates the root path and its ancestors on a new session.
func (p *Pool) bootstrap(ctx context.Context, s session.Session) error {
	for _, node := range paths.Chain(p.config.RootPath) {
		err := s.Create(ctx, node, nil)
		if err != nil && !errors.Is(err, session.ErrNodeExists) {
			return fmt.Errorf("create %s: %w", node, err)
		}
	}
	return nil
}

// watch consumes the events of an installed session and evicts it on the
// first terminal event or when the stream ends.
func (p *Pool) watch(idx int, gen uint64, s *pending, log *logging.Logger) {
	defer p.wg.Done()

	reason := ReasonClosed
	for ev := range s.events {
		if ev.Kind.Terminal() {
			reason = ev.Kind.String()
			break
		}
	}

	// Close first so that a freed slot never coexists with the open handle.
	closeSession(s.handle)
	if p.evict(idx, gen, s.handle) {
		p.recordEviction(reason)
		p.publishLive()
		log.Warnf("session evicted", map[string]any{"reason": reason})
	}
}

// evict empties slot idx if it still holds the session from attempt gen.
func (p *Pool) evict(idx int, gen uint64, handle session.Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	sl := &p.slots[idx]
	if sl.generation != gen || sl.session != handle {
		return false
	}
	sl.session = nil
	return true
}

// closeSession closes s, ignoring nil handles and repeated closes.
func closeSession(s session.Session) {
	if s == nil {
		return
	}
	_ = s.Close()
}

// Stats returns a snapshot of slot usage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Stats{Size: len(p.slots)}
	for i := range p.slots {
		if p.slots[i].session != nil {
			st.Live++
		}
		if p.slots[i].connecting {
			st.Connecting++
		}
	}
	return st
}

// Close closes every session and stops background work. In-flight
// attempts fail with ErrPoolClosed. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	var open []session.Session
	for i := range p.slots {
		if s := p.slots[i].session; s != nil {
			open = append(open, s)
			p.slots[i].session = nil
		}
	}
	p.mu.Unlock()

	p.cancel()
	for _, s := range open {
		closeSession(s)
	}
	p.wg.Wait()
	p.publishLive()

	p.logger.Infof("pool closed", map[string]any{"closedSessions": len(open)})
	return nil
}

func classify(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrConnectTimeout):
		return OutcomeTimeout
	case errors.Is(err, ErrBootstrap):
		return OutcomeBootstrap
	case errors.Is(err, ErrPoolClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.Is(err, ErrSessionLifecycle):
		return OutcomeLifecycle
	default:
		return OutcomeDial
	}
}

func (p *Pool) recordAcquire(tier string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordAcquire(tier, p.now().Sub(start).Seconds())
	}
}

func (p *Pool) recordConnect(outcome string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordConnect(outcome, p.now().Sub(start).Seconds())
	}
}

func (p *Pool) recordEviction(reason string) {
	if p.metrics != nil {
		p.metrics.RecordEviction(reason)
	}
}

func (p *Pool) publishLive() {
	if p.metrics != nil {
		p.metrics.SetLiveSessions(p.Stats().Live)
	}
}
