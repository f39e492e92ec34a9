package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/curator-io/curator/internal/config"
	"github.com/curator-io/curator/internal/logging"
	"github.com/curator-io/curator/internal/metrics"
	"github.com/curator-io/curator/internal/pool"
	"github.com/curator-io/curator/internal/session"
	"github.com/curator-io/curator/internal/store"
)

// AgentOptions contains the configuration for creating an agent.
type AgentOptions struct {
	Config  *config.Config
	Logger  *logging.Logger
	Version string

	// Dialer overrides the dialer built from Config.
	Dialer session.Dialer

	// Registry receives the pool and store metrics. Defaults to the
	// Prometheus default registry.
	Registry *prometheus.Registry
}

// Agent owns the session pool and the store built on it.
type Agent struct {
	opts          AgentOptions
	logger        *logging.Logger
	pool          *pool.Pool
	store         *store.Store
	metricsServer *metrics.Server

	mu      sync.Mutex
	started bool
}

// healthReport is the /healthz body.
type healthReport struct {
	Status  string     `json:"status"`
	Backend string     `json:"backend"`
	Version string     `json:"version,omitempty"`
	Pool    pool.Stats `json:"pool"`
}

// NewAgent builds the pool and the store. No session is opened until Start
// or the first store operation.
func NewAgent(opts AgentOptions) (*Agent, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("agent: config is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger()
	}
	cfg := opts.Config

	dialer := opts.Dialer
	if dialer == nil {
		d, err := newDialer(cfg, opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("agent: %w", err)
		}
		dialer = d
	}

	var (
		poolMetrics  *metrics.PoolMetrics
		storeMetrics *metrics.StoreMetrics
		server       *metrics.Server
	)
	if opts.Registry != nil {
		poolMetrics = metrics.NewPoolMetricsWithRegistry(opts.Registry)
		storeMetrics = metrics.NewStoreMetricsWithRegistry(opts.Registry)
		server = metrics.NewServerWithRegistry(cfg.Observability.MetricsAddr, opts.Registry)
	} else {
		poolMetrics = metrics.NewPoolMetrics()
		storeMetrics = metrics.NewStoreMetrics()
		server = metrics.NewServer(cfg.Observability.MetricsAddr)
	}

	p, err := pool.New(dialer, pool.Config{
		Size:            cfg.Pool.Size,
		RootPath:        cfg.Coordinator.RootPath,
		SessionTimeout:  cfg.Coordinator.SessionTimeout(),
		ConnectCooldown: poolDuration(cfg.Pool.ConnectCooldown()),
		StaleAfter:      poolDuration(cfg.Pool.StaleAfter()),
		Logger:          opts.Logger,
		Metrics:         poolMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}

	st, err := store.New(p, store.Config{
		RootPath: cfg.Coordinator.RootPath,
		Logger:   opts.Logger,
		Metrics:  storeMetrics,
	})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("agent: %w", err)
	}

	return &Agent{
		opts:          opts,
		logger:        opts.Logger,
		pool:          p,
		store:         st,
		metricsServer: server,
	}, nil
}

// Store returns the path store.
func (a *Agent) Store() *store.Store {
	return a.store
}

// Start warms the pool and serves /metrics and /healthz. It returns once
// the metrics listener is bound.
func (a *Agent) Start() error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("agent already started")
	}
	a.started = true
	a.mu.Unlock()

	cfg := a.opts.Config
	a.logger.Infof("starting curatord", map[string]any{
		"backend":  cfg.Coordinator.Backend,
		"endpoint": cfg.Coordinator.Endpoints(),
		"rootPath": cfg.Coordinator.RootPath,
		"poolSize": cfg.Pool.Size,
		"version":  a.opts.Version,
	})

	a.pool.Start()

	a.metricsServer.SetHealthCheck(a.health)
	if err := a.metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	a.logger.Infof("metrics server started", map[string]any{
		"addr": a.metricsServer.Addr(),
	})
	return nil
}

// health reports healthy while at least one session is live.
func (a *Agent) health() (any, bool) {
	st := a.pool.Stats()
	report := healthReport{
		Status:  "ok",
		Backend: a.opts.Config.Coordinator.Backend,
		Version: a.opts.Version,
		Pool:    st,
	}
	if st.Live == 0 {
		report.Status = "no live sessions"
		return report, false
	}
	return report, true
}

// MetricsAddr returns the bound metrics address.
func (a *Agent) MetricsAddr() string {
	return a.metricsServer.Addr()
}

// Shutdown stops the metrics server and closes every pooled session.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down curatord")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.metricsServer.Close(); err != nil {
			a.logger.Warnf("error closing metrics server", map[string]any{
				"error": err.Error(),
			})
		}
		if err := a.pool.Close(); err != nil {
			a.logger.Warnf("error closing pool", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}
