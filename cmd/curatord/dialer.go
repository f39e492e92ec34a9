package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/curator-io/curator/internal/config"
	"github.com/curator-io/curator/internal/logging"
	"github.com/curator-io/curator/internal/session"
	"github.com/curator-io/curator/internal/session/etcd"
	"github.com/curator-io/curator/internal/session/oxia"
	"github.com/curator-io/curator/internal/session/zookeeper"
)

// newDialer builds the session dialer for the configured backend.
func newDialer(cfg *config.Config, logger *logging.Logger) (session.Dialer, error) {
	c := cfg.Coordinator

	switch c.Backend {
	case config.BackendZookeeper:
		d, err := zookeeper.New(zookeeper.Config{
			Servers:        c.Endpoints(),
			SessionTimeout: c.SessionTimeout(),
			ConnectRetries: c.ConnectRetries,
			RetryDelay:     c.RetryDelay(),
			Logger:         logger,
		})
		if err != nil {
			return nil, err
		}
		return d, nil

	case config.BackendOxia:
		d, err := oxia.New(oxia.Config{
			ServiceAddress: c.Endpoint(),
			Namespace:      c.Namespace,
			RequestTimeout: c.SessionTimeout(),
			SessionTimeout: c.SessionTimeout(),
		})
		if err != nil {
			return nil, err
		}
		return d, nil

	case config.BackendEtcd:
		d, err := etcd.New(etcd.Config{
			Endpoints:      c.Endpoints(),
			DialTimeout:    c.SessionTimeout(),
			SessionTimeout: c.SessionTimeout(),
			Logger:         etcdLogger(logger),
		})
		if err != nil {
			return nil, err
		}
		return d, nil

	default:
		return nil, fmt.Errorf("unknown coordination backend %q", c.Backend)
	}
}

// etcdLogger returns a zap logger for the etcd client. The client is
// chatty, so it only logs when debug logging is on.
func etcdLogger(logger *logging.Logger) *zap.Logger {
	if logger == nil || !logger.Enabled(logging.LevelDebug) {
		return zap.NewNop()
	}
	zl, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return zl.Named("etcd")
}

// poolDuration maps a configured duration onto the pool's convention,
// where zero selects the default and a negative value disables.
func poolDuration(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}
