// Package logger configures the process-wide slog logger.
package logger

import (
	"log/slog"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/utils"
)

// Init installs a logger with the specified level and format as the slog default.
// Records go to stderr so command output on stdout stays machine readable.
func Init(level, format string) *utils.Logger {
	handlerFormat := format
	unsupported := format != constants.LogFormatJSON && format != constants.LogFormatText && format != ""
	if unsupported {
		handlerFormat = constants.LogFormatText
	}

	l := utils.NewLogger(level, handlerFormat)
	l.SetDefault()

	if unsupported {
		slog.Warn("Unsupported log format, defaulting to text", "format", format)
	}
	return l
}

// SetComponentLevels applies per-component level overrides such as {"pipeline": "debug"}.
func SetComponentLevels(levels map[string]string) {
	for component, level := range levels {
		utils.SetComponentLogLevel(component, level)
	}
}
