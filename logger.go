package chromaffi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with chromaffi-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr at warn level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// ParseLevel converts debug, info, warn or error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// NewLoggerFromConfig builds a stderr logger from a level and a format
// (text or json).
func NewLoggerFromConfig(level, format string) (*Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	switch format {
	case "", "text":
		return NewTextLogger(os.Stderr, l), nil
	case "json":
		return NewJSONLogger(os.Stderr, l), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// WithSource adds the entry point name to the logger.
func (l *Logger) WithSource(source string) *Logger {
	return &Logger{
		Logger: l.Logger.With("source", source),
	}
}

// WithCollection adds the collection namespace to the logger.
func (l *Logger) WithCollection(c *Collection) *Logger {
	return &Logger{
		Logger: l.Logger.With("collection", c.ID(), "tenant", c.Tenant(), "database", c.Database()),
	}
}

// LogCall logs the outcome of a boundary call.
func (l *Logger) LogCall(ctx context.Context, source string, duration time.Duration, err error) {
	if err == nil {
		l.DebugContext(ctx, "call completed",
			"source", source,
			"duration", duration,
		)
		return
	}

	attrs := []any{
		"source", source,
		"duration", duration,
		"code", ErrorCode(err).String(),
		"error", err,
	}
	if ErrorCode(err) == InternalError || ErrorCode(err) == MemoryError {
		l.ErrorContext(ctx, "call failed", attrs...)
		return
	}
	l.DebugContext(ctx, "call rejected", attrs...)
}

// LogClientOpened logs a client construction.
func (l *Logger) LogClientOpened(ctx context.Context, persistPath string, cacheCapacity int) {
	if persistPath == "" {
		l.InfoContext(ctx, "client opened", "persist_path", "(memory)", "cache_capacity", cacheCapacity)
		return
	}
	l.InfoContext(ctx, "client opened", "persist_path", persistPath, "cache_capacity", cacheCapacity)
}

// LogClientClosed logs a client destruction.
func (l *Logger) LogClientClosed(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "client close failed", "error", err)
		return
	}
	l.InfoContext(ctx, "client closed")
}
