package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/curator-io/curator/internal/logging"
	"github.com/curator-io/curator/internal/store"
)

// errOperationFailed is reported when a store operation returns false.
var errOperationFailed = errors.New("operation failed")

// nodeRequest is one create/set/get/mkdirp invocation.
type nodeRequest struct {
	Op   string
	Path string
	Data *string
	JSON bool
}

// nodeResult is printed with -json.
type nodeResult struct {
	Path       string          `json:"path"`
	Created    bool            `json:"created,omitempty"`
	Version    *int64          `json:"version,omitempty"`
	Revision   *int64          `json:"revision,omitempty"`
	DataLength *int            `json:"dataLength,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Text       *string         `json:"text,omitempty"`
}

func runNode(op string, args []string) int {
	fs := flag.NewFlagSet(op, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOutput := fs.Bool("json", false, "Treat data as JSON and output in JSON format")
	timeout := fs.Duration("timeout", 30*time.Second, "Overall operation timeout")

	fs.Usage = func() {
		fmt.Printf(`Usage: curatord %s [options] <path>%s

Paths are relative to the configured root path.

Options:
`, op, dataUsage(op))
		fs.PrintDefaults()
		fmt.Print(`
Examples:
  curatord create /svc/node
  curatord set -json /svc/node '{"a":1}'
  curatord get /svc/node
`)
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "error: path required")
		fs.Usage()
		return 1
	}
	req := nodeRequest{Op: op, Path: fs.Arg(0), JSON: *jsonOutput}
	if fs.NArg() > 1 {
		data := fs.Arg(1)
		req.Data = &data
	}
	if op == "set" && req.Data == nil {
		fmt.Fprintln(os.Stderr, "error: data required")
		fs.Usage()
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		return 1
	}
	logger := newLogger(cfg)

	agent, err := NewAgent(AgentOptions{Config: cfg, Logger: logger, Version: version})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = agent.Shutdown(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logging.WithCorrelationIDCtx(ctx, uuid.NewString())

	if err := execNode(ctx, agent.Store(), req, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s %s: %v\n", op, req.Path, err)
		return 1
	}
	return 0
}

func dataUsage(op string) string {
	switch op {
	case "create":
		return " [data]"
	case "set":
		return " <data>"
	default:
		return ""
	}
}

// payloadFor builds the node payload for req.
func payloadFor(req nodeRequest) (store.Payload, error) {
	if req.Data == nil {
		return store.Empty(), nil
	}
	if !req.JSON {
		return store.Text(*req.Data), nil
	}
	var v any
	if err := json.Unmarshal([]byte(*req.Data), &v); err != nil {
		return store.Payload{}, fmt.Errorf("invalid JSON data: %w", err)
	}
	return store.Value(v), nil
}

// execNode runs req against st and writes the result to w.
func execNode(ctx context.Context, st *store.Store, req nodeRequest, w io.Writer) error {
	result := nodeResult{Path: req.Path}

	switch req.Op {
	case "create":
		payload, err := payloadFor(req)
		if err != nil {
			return err
		}
		if !st.Create(ctx, req.Path, payload) {
			return errOperationFailed
		}
		result.Created = true

	case "set":
		payload, err := payloadFor(req)
		if err != nil {
			return err
		}
		stat, ok := st.SetData(ctx, req.Path, payload)
		if !ok {
			return errOperationFailed
		}
		result.Version = &stat.Version
		result.Revision = &stat.Revision
		result.DataLength = &stat.DataLength

	case "get":
		data, ok := st.GetData(ctx, req.Path)
		if !ok {
			return errOperationFailed
		}
		if !req.JSON {
			_, err := w.Write(data)
			return err
		}
		if json.Valid(data) {
			result.Data = data
		} else {
			text := string(data)
			result.Text = &text
		}

	case "mkdirp":
		if err := st.EnsureParents(ctx, req.Path); err != nil {
			return err
		}
		result.Created = true

	default:
		return fmt.Errorf("unknown operation %q", req.Op)
	}

	if req.JSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}

	switch req.Op {
	case "set":
		_, err := fmt.Fprintf(w, "Set %s (version %d)\n", req.Path, *result.Version)
		return err
	default:
		_, err := fmt.Fprintf(w, "Created %s\n", req.Path)
		return err
	}
}
