package utils

import (
	"context"
	"log/slog"
	"sync"
)

var (
	componentLogLevels = make(map[string]slog.Level)
	componentLogMu     sync.RWMutex
)

// SetComponentLogLevel sets the log level for a specific component.
// Components with a specific level will use that level instead of the handler's level.
func SetComponentLogLevel(component string, level string) {
	componentLogMu.Lock()
	defer componentLogMu.Unlock()
	componentLogLevels[component] = ParseLogLevel(level)
}

// componentLevel returns the override for a component, if one is set.
func componentLevel(component string) (slog.Level, bool) {
	componentLogMu.RLock()
	defer componentLogMu.RUnlock()
	level, ok := componentLogLevels[component]
	return level, ok
}

// ComponentLogger tags every record with a component name and writes through the default slog logger.
type ComponentLogger struct {
	component string
	attrs     []any
}

// NewComponentLogger creates a new component logger
func NewComponentLogger(component string) *ComponentLogger {
	return &ComponentLogger{component: component}
}

// With adds additional attributes to the logger
func (l *ComponentLogger) With(args ...any) *ComponentLogger {
	newAttrs := make([]any, len(l.attrs)+len(args))
	copy(newAttrs, l.attrs)
	copy(newAttrs[len(l.attrs):], args)
	return &ComponentLogger{component: l.component, attrs: newAttrs}
}

// WithContext attaches the job and batch IDs carried by ctx.
func (l *ComponentLogger) WithContext(ctx context.Context) *ComponentLogger {
	attrs := extractContextAttrs(ctx)
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

func (l *ComponentLogger) buildArgs(args []any) []any {
	out := make([]any, 0, len(args)+len(l.attrs)+2)
	out = append(out, "component", l.component)
	out = append(out, l.attrs...)
	return append(out, args...)
}

func (l *ComponentLogger) shouldLog(level slog.Level) bool {
	if floor, ok := componentLevel(l.component); ok {
		return level >= floor
	}
	return slog.Default().Enabled(context.Background(), level)
}

// Debug logs a debug message
func (l *ComponentLogger) Debug(msg string, args ...any) {
	if l.shouldLog(slog.LevelDebug) {
		slog.Debug(msg, l.buildArgs(args)...)
	}
}

// Info logs an info message
func (l *ComponentLogger) Info(msg string, args ...any) {
	if l.shouldLog(slog.LevelInfo) {
		slog.Info(msg, l.buildArgs(args)...)
	}
}

// Warn logs a warning message
func (l *ComponentLogger) Warn(msg string, args ...any) {
	if l.shouldLog(slog.LevelWarn) {
		slog.Warn(msg, l.buildArgs(args)...)
	}
}

// Error logs an error message
func (l *ComponentLogger) Error(msg string, args ...any) {
	if l.shouldLog(slog.LevelError) {
		slog.Error(msg, l.buildArgs(args)...)
	}
}
