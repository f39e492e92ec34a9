package logging

import "context"

type contextKey int

const (
	correlationIDKey contextKey = iota
	loggerKey
)

// WithCorrelationIDCtx returns a new context with the correlation ID set.
func WithCorrelationIDCtx(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromCtx extracts the correlation ID from the context.
func CorrelationIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// WithLoggerCtx returns a new context carrying l.
func WithLoggerCtx(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromCtx returns the context's logger, falling back to base and then to
// the global logger, tagged with the context's correlation ID if any.
func FromCtx(ctx context.Context, base *Logger) *Logger {
	l, _ := ctx.Value(loggerKey).(*Logger)
	if l == nil {
		l = base
	}
	if l == nil {
		l = Global()
	}
	if id := CorrelationIDFromCtx(ctx); id != "" {
		l = l.WithCorrelationID(id)
	}
	return l
}
