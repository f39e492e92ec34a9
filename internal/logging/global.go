package logging

import (
	"os"
	"sync"
)

var (
	globalLogger = DefaultLogger()
	globalMu     sync.RWMutex
)

// SetGlobal sets the global logger.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Global returns the global logger.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Configure builds a stderr logger from config strings and installs it as
// the global logger. Debug level also records the caller.
func Configure(level, format string) *Logger {
	lvl := ParseLevel(level)
	l := New(Config{
		Level:     lvl,
		Format:    ParseFormat(format),
		Output:    os.Stderr,
		AddCaller: lvl == LevelDebug,
	})
	SetGlobal(l)
	return l
}
