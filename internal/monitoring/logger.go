// Package monitoring provides structured logging via zerolog plus the
// per-call context helpers hooks rely on.
//
// DESIGN: Thin wrapper around zerolog with:
//   - Configurable level, format (json/console), output (stdout/file)
//   - Global() sets the default logger for the entire application
//   - Request ID and call-start context helpers for tracing hooks
package monitoring

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Context keys for per-call values.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	callStartKey contextKey = "call_start"
	callInfoKey  contextKey = "call_info"
)

// LoggerConfig selects level, format, and output destination.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // "json" or "console"
	Output string `yaml:"output"` // "stdout", "stderr", or a file path
}

// Logger wraps zerolog.Logger.
type Logger struct {
	zl zerolog.Logger
}

// New creates a new Logger with the given configuration.
func New(cfg LoggerConfig) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writer io.Writer
	switch cfg.Output {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			writer = os.Stdout
		} else {
			writer = f
		}
	}

	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
	}

	zl := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Global sets the global zerolog logger.
func Global(cfg LoggerConfig) {
	logger := New(cfg)
	log.Logger = logger.zl
}

// Debug returns a debug event.
func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }

// Info returns an info event.
func (l *Logger) Info() *zerolog.Event { return l.zl.Info() }

// Warn returns a warn event.
func (l *Logger) Warn() *zerolog.Event { return l.zl.Warn() }

// Error returns an error event.
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// RequestIDFromContext retrieves the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestIDContext returns a new context with the request ID.
func WithRequestIDContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithCallStart stamps the call start time into the context. The façade
// sets it once per call; timing hooks read it.
func WithCallStart(ctx context.Context, start time.Time) context.Context {
	return context.WithValue(ctx, callStartKey, start)
}

// CallStart retrieves the call start time, if stamped.
func CallStart(ctx context.Context) (time.Time, bool) {
	start, ok := ctx.Value(callStartKey).(time.Time)
	return start, ok
}

// CallInfo identifies the in-flight call for hooks that correlate the
// request and response sides (caching, auditing).
type CallInfo struct {
	Method string
	Target string
}

// WithCallInfo stamps the call identity into the context.
func WithCallInfo(ctx context.Context, method, target string) context.Context {
	return context.WithValue(ctx, callInfoKey, CallInfo{Method: method, Target: target})
}

// CallInfoFromContext retrieves the call identity, if stamped.
func CallInfoFromContext(ctx context.Context) (CallInfo, bool) {
	info, ok := ctx.Value(callInfoKey).(CallInfo)
	return info, ok
}
