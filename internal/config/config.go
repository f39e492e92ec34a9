// Package config provides configuration loading and validation for curator.
// Values come from defaults, an optional YAML file, and environment
// variables, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported coordination backends.
const (
	BackendZookeeper = "zookeeper"
	BackendOxia      = "oxia"
	BackendEtcd      = "etcd"
)

// Config holds all configuration for curator.
type Config struct {
	Coordinator   CoordinatorConfig   `yaml:"coordinator"`
	Pool          PoolConfig          `yaml:"pool"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type CoordinatorConfig struct {
	Backend          string `yaml:"backend" env:"ZOOKEEPER_CURATOR_BACKEND"`
	Host             string `yaml:"host" env:"ZOOKEEPER_CURATOR_HOST"`
	Port             int    `yaml:"port" env:"ZOOKEEPER_CURATOR_PORT"`
	SessionTimeoutMs int64  `yaml:"sessionTimeoutMs" env:"ZOOKEEPER_CURATOR_TIMEOUT"`
	RootPath         string `yaml:"rootPath" env:"ZOOKEEPER_CURATOR_ROOT_PATH"`
	ConnectRetries   int    `yaml:"connectRetries" env:"ZOOKEEPER_CURATOR_RETRIES"`
	RetryDelayMs     int64  `yaml:"retryDelayMs" env:"ZOOKEEPER_CURATOR_RETRY_DELAY_MS"`
	Namespace        string `yaml:"namespace" env:"ZOOKEEPER_CURATOR_NAMESPACE"`
}

type PoolConfig struct {
	Size              int   `yaml:"size" env:"ZOOKEEPER_CURATOR_SIZE"`
	ConnectCooldownMs int64 `yaml:"connectCooldownMs" env:"ZOOKEEPER_CURATOR_COOLDOWN_MS"`
	StaleAfterMs      int64 `yaml:"staleAfterMs" env:"ZOOKEEPER_CURATOR_STALE_AFTER_MS"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"ZOOKEEPER_CURATOR_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"ZOOKEEPER_CURATOR_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"ZOOKEEPER_CURATOR_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			Backend:          BackendZookeeper,
			Host:             "dev.local",
			Port:             2181,
			SessionTimeoutMs: 10000,
			RootPath:         "/metadata",
			ConnectRetries:   0,
			RetryDelayMs:     1000,
			Namespace:        "default",
		},
		Pool: PoolConfig{
			Size:              10,
			ConnectCooldownMs: 10000,
			StaleAfterMs:      10000,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load returns the defaults overridden by environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads a YAML file on top of the defaults, then applies
// environment overrides.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults without env overrides or
// validation.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// applyEnv walks the env tags of every section and overrides the fields
// whose variable is set.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	sections := reflect.ValueOf(c).Elem()
	for i := 0; i < sections.NumField(); i++ {
		section := sections.Field(i)
		st := section.Type()
		for j := 0; j < st.NumField(); j++ {
			name := st.Field(j).Tag.Get("env")
			if name == "" {
				continue
			}
			raw, ok := lookup(name)
			if !ok {
				continue
			}
			if err := setField(section.Field(j), strings.TrimSpace(raw)); err != nil {
				return fmt.Errorf("config: %s: %w", name, err)
			}
		}
	}
	return nil
}

func setField(f reflect.Value, raw string) error {
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		f.SetInt(n)
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}
	return nil
}

// Validate checks the configuration for values the pool cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Coordinator.Backend {
	case BackendZookeeper, BackendOxia, BackendEtcd:
	default:
		errs = append(errs, fmt.Errorf("coordinator.backend: unknown backend %q", c.Coordinator.Backend))
	}
	if c.Coordinator.Host == "" {
		errs = append(errs, errors.New("coordinator.host is required"))
	}
	if c.Coordinator.Port <= 0 || c.Coordinator.Port > 65535 {
		errs = append(errs, fmt.Errorf("coordinator.port out of range: %d", c.Coordinator.Port))
	}
	if c.Coordinator.SessionTimeoutMs <= 0 {
		errs = append(errs, errors.New("coordinator.sessionTimeoutMs must be positive"))
	}
	if !strings.HasPrefix(c.Coordinator.RootPath, "/") {
		errs = append(errs, fmt.Errorf("coordinator.rootPath must be absolute: %q", c.Coordinator.RootPath))
	}
	if c.Coordinator.ConnectRetries < 0 {
		errs = append(errs, errors.New("coordinator.connectRetries must not be negative"))
	}
	if c.Coordinator.RetryDelayMs < 0 {
		errs = append(errs, errors.New("coordinator.retryDelayMs must not be negative"))
	}
	if c.Coordinator.Backend == BackendOxia && c.Coordinator.Namespace == "" {
		errs = append(errs, errors.New("coordinator.namespace is required for oxia"))
	}
	if c.Pool.Size < 1 {
		errs = append(errs, fmt.Errorf("pool.size must be at least 1, got %d", c.Pool.Size))
	}
	if c.Pool.ConnectCooldownMs < 0 || c.Pool.StaleAfterMs < 0 {
		errs = append(errs, errors.New("pool durations must not be negative"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// Endpoint returns host:port of the coordination service.
func (c CoordinatorConfig) Endpoint() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Endpoints splits Host on commas and pairs every host with Port unless it
// carries its own port.
func (c CoordinatorConfig) Endpoints() []string {
	var out []string
	for _, h := range strings.Split(c.Host, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(h); err == nil {
			out = append(out, h)
			continue
		}
		out = append(out, net.JoinHostPort(h, strconv.Itoa(c.Port)))
	}
	return out
}

func (c CoordinatorConfig) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMs) * time.Millisecond
}

func (c CoordinatorConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

func (c PoolConfig) ConnectCooldown() time.Duration {
	return time.Duration(c.ConnectCooldownMs) * time.Millisecond
}

func (c PoolConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMs) * time.Millisecond
}
