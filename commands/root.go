// Package commands implements the qconverto command line.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Qwejay/Qconverto/commands/formatter"
	"github.com/Qwejay/Qconverto/internal/config"
	"github.com/Qwejay/Qconverto/internal/logger"
	"github.com/Qwejay/Qconverto/models"
)

// app carries global flags and the loaded configuration to every command.
type app struct {
	configPath   string
	logLevel     string
	logFormat    string
	outputFormat string
	noColor      bool

	cfg    *models.Config
	out    *formatter.Output
	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand builds the qconverto command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "qconverto",
		Short: "Convert images, audio, video and documents",
		Long: `Qconverto identifies files by their content, picks a target format and converts
them through an ordered chain of backends (pure Go codecs, ffmpeg, LibreOffice),
falling back to the next backend when one fails.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, true)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to config file (default ./qconverto.yaml when present)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text, json")
	flags.StringVarP(&a.outputFormat, "format", "f", "table", "output format: table, json, csv")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newConvertCommand(a),
		newClassifyCommand(a),
		newFormatsCommand(a),
		newHistoryCommand(a),
		newStatsCommand(a),
		newRetryCommand(a),
		newValidateCommand(a),
		newDetectCommand(a),
	)
	return root
}

// Execute runs the command line with os.Args.
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

// init sets up output, logging and (when loadConfig is set) the configuration.
func (a *app) init(cmd *cobra.Command, loadConfig bool) error {
	a.stdout = cmd.OutOrStdout()
	a.stderr = cmd.ErrOrStderr()

	format, err := formatter.ParseFormat(a.outputFormat)
	if err != nil {
		return err
	}
	a.out = formatter.New(a.stdout, format)
	if a.noColor || format != formatter.FormatTable {
		color.NoColor = true
	}

	cfg := config.Default()
	if loadConfig {
		if cfg, err = config.Load(a.configPath); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.SetComponentLevels(cfg.Logging.Components)

	a.cfg = cfg
	return nil
}

// requireValidConfig fails with every validation problem at once.
func (a *app) requireValidConfig() error {
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
