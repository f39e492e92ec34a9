package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/curator-io/curator/internal/config"
	"github.com/curator-io/curator/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-version") {
		fmt.Printf("curatord version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	switch subcommand {
	case "serve":
		runServe(os.Args[2:])
	case "create", "set", "get", "mkdirp":
		os.Exit(runNode(subcommand, os.Args[2:]))
	case "version":
		fmt.Printf("curatord version %s (built %s, commit %s)\n", version, buildTime, gitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: curatord <command> [options]

Commands:
  serve       Keep a warm session pool and serve /metrics and /healthz
  create      Create a node (idempotent)
  set         Overwrite a node's data, creating missing ancestors
  get         Print a node's data
  mkdirp      Create a node and all of its ancestors
  version     Print version information

Run 'curatord <command> --help' for more information on a command.`)
}

// loadConfig reads path when set, otherwise defaults plus environment.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) *logging.Logger {
	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Observability.LogLevel),
		Format: logging.ParseFormat(cfg.Observability.LogFormat),
	})
	logging.SetGlobal(logger)
	return logger
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	metricsAddr := fs.String("metrics-addr", "", "Override metrics endpoint address (e.g., :9090)")
	backend := fs.String("backend", "", "Override coordination backend (zookeeper, oxia, etcd)")

	fs.Usage = func() {
		fmt.Println(`Usage: curatord serve [options]

Open the session pool, warm a third of its slots and keep them healthy.
Pool state is exported on /metrics and /healthz.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *metricsAddr != "" {
		cfg.Observability.MetricsAddr = *metricsAddr
	}
	if *backend != "" {
		cfg.Coordinator.Backend = *backend
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
			os.Exit(1)
		}
	}

	logger := newLogger(cfg)

	agent, err := NewAgent(AgentOptions{
		Config:  cfg,
		Logger:  logger,
		Version: version,
	})
	if err != nil {
		logger.Errorf("failed to create agent", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	if err := agent.Start(); err != nil {
		logger.Errorf("failed to start agent", map[string]any{"error": err.Error()})
		_ = agent.Shutdown(context.Background())
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Infof("received shutdown signal", map[string]any{"signal": sig.String()})

	logger.Info("initiating graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := agent.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	logger.Info("curatord shutdown complete")
}
