// Package logging provides leveled structured logging for curator with
// correlation IDs carried through context.Context.
package logging

import (
	"encoding/json"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level. Unknown values yield LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format represents the output format for log messages.
type Format int

const (
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = iota
	// FormatText writes "timestamp [level] message key=value ..." lines.
	FormatText
)

// ParseFormat converts a string to a Format. Unknown values yield FormatJSON.
func ParseFormat(s string) Format {
	if s == "text" {
		return FormatText
	}
	return FormatJSON
}

// Entry is a single log record.
type Entry struct {
	Timestamp     time.Time      `json:"timestamp"`
	Level         string         `json:"level"`
	Message       string         `json:"message"`
	CorrelationID string         `json:"correlationId,omitempty"`
	File          string         `json:"file,omitempty"`
	Line          int            `json:"line,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
}

// Config holds configuration for a Logger.
type Config struct {
	Level     Level
	Format    Format
	Output    io.Writer
	AddCaller bool
}

// sink is shared by a Logger and every child derived from it so that
// writes from children are serialized on the same writer.
type sink struct {
	mu  sync.Mutex
	out io.Writer
}

func (s *sink) write(p []byte) {
	s.mu.Lock()
	_, _ = s.out.Write(p)
	s.mu.Unlock()
}

// Logger writes structured log entries. Loggers are immutable once built;
// With and WithCorrelationID return children sharing the same output.
type Logger struct {
	sink          *sink
	level         Level
	format        Format
	addCaller     bool
	fields        map[string]any
	correlationID string
}

// New creates a new Logger with the given configuration.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		sink:      &sink{out: out},
		level:     cfg.Level,
		format:    cfg.Format,
		addCaller: cfg.AddCaller,
	}
}

// DefaultLogger returns an info-level JSON logger on stderr.
func DefaultLogger() *Logger {
	return New(Config{Level: LevelInfo, Format: FormatJSON})
}

// Level returns the minimum level written by l.
func (l *Logger) Level() Level {
	return l.level
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return level >= l.level
}

func (l *Logger) clone() *Logger {
	c := *l
	return &c
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	c := l.clone()
	c.fields = make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		c.fields[k] = v
	}
	for k, v := range fields {
		c.fields[k] = v
	}
	return c
}

// WithCorrelationID returns a child logger tagging entries with id.
func (l *Logger) WithCorrelationID(id string) *Logger {
	c := l.clone()
	c.correlationID = id
	return c
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) { l.log(LevelDebug, msg, nil) }

// Debugf logs a debug message with fields.
func (l *Logger) Debugf(msg string, fields map[string]any) { l.log(LevelDebug, msg, fields) }

// Info logs an info message.
func (l *Logger) Info(msg string) { l.log(LevelInfo, msg, nil) }

// Infof logs an info message with fields.
func (l *Logger) Infof(msg string, fields map[string]any) { l.log(LevelInfo, msg, fields) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string) { l.log(LevelWarn, msg, nil) }

// Warnf logs a warning message with fields.
func (l *Logger) Warnf(msg string, fields map[string]any) { l.log(LevelWarn, msg, fields) }

// Error logs an error message.
func (l *Logger) Error(msg string) { l.log(LevelError, msg, nil) }

// Errorf logs an error message with fields.
func (l *Logger) Errorf(msg string, fields map[string]any) { l.log(LevelError, msg, fields) }

func (l *Logger) log(level Level, msg string, extra map[string]any) {
	if !l.Enabled(level) {
		return
	}

	entry := Entry{
		Timestamp:     time.Now().UTC(),
		Level:         level.String(),
		Message:       msg,
		CorrelationID: l.correlationID,
	}

	if l.addCaller {
		// log <- Infof <- caller
		if _, file, line, ok := runtime.Caller(2); ok {
			entry.File = file
			entry.Line = line
		}
	}

	if len(l.fields) > 0 || len(extra) > 0 {
		entry.Fields = make(map[string]any, len(l.fields)+len(extra))
		for k, v := range l.fields {
			entry.Fields[k] = v
		}
		for k, v := range extra {
			entry.Fields[k] = v
		}
	}

	var data []byte
	if l.format == FormatText {
		data = formatText(entry)
	} else {
		data, _ = json.Marshal(entry)
		data = append(data, '\n')
	}
	l.sink.write(data)
}

func formatText(e Entry) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, e.Timestamp.Format(time.RFC3339)...)
	buf = append(buf, " ["...)
	buf = append(buf, e.Level...)
	buf = append(buf, "] "...)
	buf = append(buf, e.Message...)

	if e.CorrelationID != "" {
		buf = append(buf, " correlationId="...)
		buf = append(buf, e.CorrelationID...)
	}
	if e.File != "" {
		buf = append(buf, " file="...)
		buf = append(buf, e.File...)
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, int64(e.Line), 10)
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf = append(buf, ' ')
		buf = append(buf, k...)
		buf = append(buf, '=')
		switch v := e.Fields[k].(type) {
		case string:
			buf = append(buf, v...)
		case error:
			buf = append(buf, v.Error()...)
		default:
			data, _ := json.Marshal(v)
			buf = append(buf, data...)
		}
	}
	buf = append(buf, '\n')
	return buf
}
