package utils

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/Qwejay/Qconverto/constants"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"debug json", constants.LogLevelDebug, constants.LogFormatJSON},
		{"info text", constants.LogLevelInfo, constants.LogFormatText},
		{"warn json", constants.LogLevelWarn, constants.LogFormatJSON},
		{"error text", constants.LogLevelError, constants.LogFormatText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.level, tt.format)
			if logger == nil {
				t.Fatal("NewLogger() returned nil")
			}
			if logger.Slog() == nil {
				t.Error("Logger.Slog() returned nil")
			}
		})
	}
}

func TestNewLoggerWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, constants.LogLevelInfo, constants.LogFormatText)

	logger.Info("test message")

	if buf.Len() == 0 {
		t.Error("Logger did not write to buffer")
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, constants.LogLevelDebug, constants.LogFormatText)

	childLogger := logger.With("category", "audio")
	childLogger.Info("test message")

	if !strings.Contains(buf.String(), "category=audio") {
		t.Errorf("expected attribute in output, got: %s", buf.String())
	}
}

func TestLoggerWithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, constants.LogLevelDebug, constants.LogFormatText)

	childLogger := logger.WithGroup("chain")
	childLogger.Info("test message", "strategy", "ffmpeg")

	if !strings.Contains(buf.String(), "chain.strategy=ffmpeg") {
		t.Errorf("expected grouped attribute in output, got: %s", buf.String())
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, constants.LogLevelDebug, constants.LogFormatText)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	if len(output) == 0 {
		t.Error("Logger did not write any messages")
	}
}

func TestLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, constants.LogLevelDebug, constants.LogFormatText)

	ctx := context.Background()
	ctx = ContextWithBatchID(ctx, "batch-1")
	ctx = ContextWithJobID(ctx, "job-456")

	logger.WithContext(ctx).Info("test message")

	output := buf.String()
	if !strings.Contains(output, "job_id=job-456") {
		t.Errorf("expected job_id attribute, got: %s", output)
	}
	if !strings.Contains(output, "batch_id=batch-1") {
		t.Errorf("expected batch_id attribute, got: %s", output)
	}
}

func TestContextFunctions(t *testing.T) {
	ctx := context.Background()

	if got := JobIDFromContext(ctx); got != "" {
		t.Errorf("JobIDFromContext(empty) = %q, want empty", got)
	}

	ctx = ContextWithJobID(ctx, "job-456")
	if got := JobIDFromContext(ctx); got != "job-456" {
		t.Errorf("JobIDFromContext: got %v, want job-456", got)
	}

	ctx = ContextWithBatchID(ctx, "batch-1")
	if v := ctx.Value(LoggerBatchIDKey); v != "batch-1" {
		t.Errorf("ContextWithBatchID: got %v, want batch-1", v)
	}
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	NewLoggerWithWriter(&buf, constants.LogLevelDebug, constants.LogFormatText).SetDefault()
	defer slog.SetDefault(previous)

	ctx := ContextWithJobID(context.Background(), "job-9")
	NewComponentLogger("pipeline").WithContext(ctx).With("category", "image").Info("job started")

	output := buf.String()
	for _, want := range []string{"component=pipeline", "job_id=job-9", "category=image"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}

	buf.Reset()
	SetComponentLogLevel("quiet", constants.LogLevelError)
	NewComponentLogger("quiet").Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("expected component level to suppress info, got: %s", buf.String())
	}
}

func TestLoggerWithEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, constants.LogLevelDebug, constants.LogFormatText)

	ctx := context.Background()
	ctxLogger := logger.WithContext(ctx)

	// Should return the same logger when context has no values
	if ctxLogger == nil {
		t.Error("WithContext returned nil")
	}

	ctxLogger.Info("test message")
	output := buf.String()
	if len(output) == 0 {
		t.Error("Logger did not write to buffer")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{constants.LogLevelDebug, slog.LevelDebug},
		{constants.LogLevelInfo, slog.LevelInfo},
		{constants.LogLevelWarn, slog.LevelWarn},
		{constants.LogLevelError, slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := ParseLogLevel(tt.level); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}
