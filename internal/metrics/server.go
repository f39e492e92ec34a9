package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthFunc returns the body of the /healthz response and whether the
// process is healthy.
type HealthFunc func() (any, bool)

// Server serves /metrics for Prometheus scraping and a /healthz probe.
type Server struct {
	mu        sync.RWMutex
	addr      string
	boundAddr string
	server    *http.Server
	registry  prometheus.Gatherer
	health    HealthFunc
	serveErr  error
}

// NewServer creates a metrics server on addr using the default registry.
// Use addr ":9090" for the default metrics port.
func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

// NewServerWithRegistry creates a metrics server exposing gatherer.
// Useful for testing to avoid conflicts with the default registry.
func NewServerWithRegistry(addr string, gatherer prometheus.Gatherer) *Server {
	return &Server{addr: addr, registry: gatherer}
}

// SetHealthCheck installs the /healthz handler body. Without one, /healthz
// always reports ok.
func (s *Server) SetHealthCheck(fn HealthFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = fn
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	if s.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.HandleFunc("/healthz", s.handleHealth)

	srv := &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.server = srv
	s.boundAddr = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.mu.Lock()
			s.serveErr = err
			s.mu.Unlock()
		}
	}()

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	fn := s.health
	s.mu.RUnlock()

	var body any = map[string]string{"status": "ok"}
	healthy := true
	if fn != nil {
		body, healthy = fn()
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(body)
}

// Addr returns the actual bound address of the server.
// Returns the configured address if the server hasn't started yet.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.boundAddr != "" {
		return s.boundAddr
	}
	return s.addr
}

// Err returns the error that stopped the server, if any.
func (s *Server) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serveErr
}

// Close shuts down the metrics server.
func (s *Server) Close() error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
