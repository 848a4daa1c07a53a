// Package logging provides structured logging for the streamscope engine and hosts.
//
// This package wraps the standard library's log/slog package to provide
// consistent logging across all components. It supports both text and JSON
// output formats, configurable log levels, and component-based loggers.
//
// Usage:
//
//	// Initialize at startup
//	logging.Init(slog.LevelInfo, false) // Text format
//	logging.Init(slog.LevelDebug, true) // JSON format for production
//
//	// Get a component logger
//	log := logging.Component("ingestion")
//	log.Info("ingestion started", "interval", interval)
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu sync.RWMutex

	// Logger is the global logger instance.
	Logger *slog.Logger
)

// Init initializes the global logger with the specified level and format.
// If jsonFormat is true, logs are output as JSON; otherwise, human-readable text.
func Init(level slog.Level, jsonFormat bool) {
	InitWriter(os.Stdout, level, jsonFormat)
}

// InitWriter is Init with an explicit destination. The terminal dashboard
// uses it to keep log lines off the screen it draws on.
func InitWriter(w io.Writer, level slog.Level, jsonFormat bool) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	InitWithHandler(handler)
}

// InitWithHandler initializes the global logger with a custom handler.
// This is useful for testing or custom output destinations.
func InitWithHandler(handler slog.Handler) {
	l := slog.New(handler)
	mu.Lock()
	Logger = l
	mu.Unlock()
	slog.SetDefault(l)
}

// ParseLevel converts a config string (debug, info, warn, error) to a level.
// Unknown values map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func current() *slog.Logger {
	mu.RLock()
	l := Logger
	mu.RUnlock()
	if l == nil {
		Init(slog.LevelInfo, false)
		mu.RLock()
		l = Logger
		mu.RUnlock()
	}
	return l
}

// With returns a new logger with additional attributes.
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

// Component returns a logger for a specific component.
// The component name is added as an attribute to all log entries.
//
// Example:
//
//	log := logging.Component("render")
//	log.Info("started") // Output: time=... level=INFO component=render msg=started
func Component(name string) *slog.Logger {
	return current().With("component", name)
}

// WithContext returns a logger that includes context values.
func WithContext(ctx context.Context) *slog.Logger {
	logger := current()

	if requestID, ok := ctx.Value(contextKeyRequestID).(string); ok {
		logger = logger.With("request_id", requestID)
	}
	if route, ok := ctx.Value(contextKeyRoute).(string); ok {
		logger = logger.With("route", route)
	}

	return logger
}

// Context key types for type-safe context value extraction.
type contextKey int

const (
	contextKeyRequestID contextKey = iota
	contextKeyRoute
)

// ContextWithRequestID adds a request ID to the context for logging.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// ContextWithRoute adds the HTTP route to the context for logging.
func ContextWithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, contextKeyRoute, route)
}

// =============================================================================
// Convenience Functions
// =============================================================================

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// Warn logs at warning level.
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}
