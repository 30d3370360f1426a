package utils

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/Qwejay/Qconverto/constants"
)

// Logger wraps slog.Logger with context support.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a Logger writing to stderr, keeping stdout free for command output.
func NewLogger(level, format string) *Logger {
	return NewLoggerWithWriter(os.Stderr, level, format)
}

// NewLoggerWithWriter creates a new Logger that writes to the specified writer.
func NewLoggerWithWriter(w io.Writer, level, format string) *Logger {
	handlerOpts := &slog.HandlerOptions{
		Level: ParseLogLevel(level),
	}

	var handler slog.Handler
	if format == constants.LogFormatJSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return &Logger{logger: slog.New(handler)}
}

// DiscardLogger returns a Logger that drops every record.
func DiscardLogger() *Logger {
	return NewLoggerWithWriter(io.Discard, constants.LogLevelError, constants.LogFormatText)
}

// ParseLogLevel maps a constants.LogLevel* string to a slog level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case constants.LogLevelDebug:
		return slog.LevelDebug
	case constants.LogLevelInfo:
		return slog.LevelInfo
	case constants.LogLevelWarn:
		return slog.LevelWarn
	case constants.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext returns a logger with context values attached.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	attrs := extractContextAttrs(ctx)
	if len(attrs) == 0 {
		return l
	}
	return &Logger{logger: l.logger.With(attrs...)}
}

// With returns a logger with the specified attributes attached.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

// WithGroup returns a logger with a new group.
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{logger: l.logger.WithGroup(name)}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// Context keys for logger values
type contextKey string

const (
	// LoggerJobIDKey is the context key for the conversion job ID.
	LoggerJobIDKey contextKey = "job_id"
	// LoggerBatchIDKey is the context key for a batch of conversions.
	LoggerBatchIDKey contextKey = "batch_id"
)

// ContextWithJobID returns a context with a job ID.
func ContextWithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, LoggerJobIDKey, jobID)
}

// ContextWithBatchID returns a context with a batch ID.
func ContextWithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, LoggerBatchIDKey, batchID)
}

// JobIDFromContext returns the job ID stored in ctx, if any.
func JobIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(LoggerJobIDKey).(string)
	return s
}

// extractContextAttrs extracts logger attributes from context.
func extractContextAttrs(ctx context.Context) []any {
	var attrs []any

	if s, ok := ctx.Value(LoggerBatchIDKey).(string); ok && s != "" {
		attrs = append(attrs, slog.String("batch_id", s))
	}
	if s, ok := ctx.Value(LoggerJobIDKey).(string); ok && s != "" {
		attrs = append(attrs, slog.String("job_id", s))
	}

	return attrs
}

// SetDefault sets the logger as the default slog logger.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.logger)
}

// Slog returns the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}
