// Package logging provides centralized logging infrastructure for queuez.
// Components retrieve loggers via Component() instead of building their own.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
	logLevel      = new(slog.LevelVar)
	once          sync.Once
)

// Init initializes the global logger from QUEUEZ_LOG_LEVEL.
// Safe to call multiple times; only the first call takes effect.
func Init() {
	once.Do(func() {
		logLevel.Set(ParseLevel(os.Getenv("QUEUEZ_LOG_LEVEL")))
		logger := New(os.Stderr, logLevel)

		mu.Lock()
		if defaultLogger == nil {
			defaultLogger = logger
		}
		mu.Unlock()
	})
}

// New builds a JSON logger writing to w.
func New(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetLogger replaces the global logger. Loggers already handed out by
// Component keep the handler they were built with.
func SetLogger(l *slog.Logger) {
	once.Do(func() {})
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// Logger returns the global logger.
// Automatically initializes if not already done.
func Logger() *slog.Logger {
	Init()
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Component returns a logger with component context.
func Component(name string) *slog.Logger {
	return Logger().With("component", name)
}

// SetLevel changes the level of the default handler.
func SetLevel(l slog.Level) {
	logLevel.Set(l)
}

// Level returns the current level of the default handler.
func Level() slog.Level {
	Init()
	return logLevel.Level()
}

// IsDebugEnabled returns true if debug logging is enabled.
func IsDebugEnabled() bool {
	return Level() <= slog.LevelDebug
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to warn.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
