// Package config loads the Qconverto configuration from defaults, YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/models"
)

// Default returns the built-in configuration.
func Default() *models.Config {
	return &models.Config{
		Pipeline: models.PipelineSettings{
			HeaderSize:  constants.DefaultHeaderSize,
			Concurrency: max(runtime.NumCPU()/2, 1),
			JobTimeout:  30 * time.Minute,
			WorkDir:     filepath.Join(os.TempDir(), constants.DefaultWorkDirName),
			WorkMaxAge:  24 * time.Hour,
		},
		FFmpeg: models.FFmpegSettings{
			UseVulkan:    true,
			Preset:       constants.PresetMedium,
			CRF:          constants.DefaultCRF,
			AudioBitrate: "192k",
			Timeout:      2 * time.Hour,
		},
		Vulkan: models.VulkanSettings{
			PreferredDevice: "auto",
		},
		Image: models.ImageSettings{
			JPEGQuality: constants.DefaultJPEGQuality,
		},
		Document: models.DocumentSettings{
			RenderDPI: constants.DefaultRenderDPI,
			WrapWidth: constants.DefaultWrapWidth,
			Timeout:   10 * time.Minute,
		},
		Database: models.DatabaseSettings{
			Path:    filepath.Join("~", ".qconverto", constants.DefaultHistoryDBName),
			Enabled: true,
		},
		Logging: models.LoggingSettings{
			Level:  constants.LogLevelInfo,
			Format: constants.LogFormatText,
		},
	}
}

// Load builds the configuration. An empty path reads constants.DefaultConfigFile when it
// exists; an explicit path must exist. Values are applied in the order defaults, YAML,
// .env file, environment.
func Load(path string) (*models.Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = constants.DefaultConfigFile
	}

	// #nosec G304 - path is supplied by the operator
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	applyEnvOverrides(cfg)

	cfg.Database.Path = expandHome(cfg.Database.Path)
	cfg.Pipeline.WorkDir = expandHome(cfg.Pipeline.WorkDir)
	cfg.Output.DefaultDir = expandHome(cfg.Output.DefaultDir)
	cfg.Document.FontPath = expandHome(cfg.Document.FontPath)

	return cfg, nil
}

func applyEnvOverrides(cfg *models.Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{constants.EnvFFmpegPath, &cfg.Tools.FFmpegPath},
		{constants.EnvFFprobePath, &cfg.Tools.FFprobePath},
		{constants.EnvSofficePath, &cfg.Tools.SofficePath},
		{constants.EnvOutputDir, &cfg.Output.DefaultDir},
		{constants.EnvDBPath, &cfg.Database.Path},
		{constants.EnvLogLevel, &cfg.Logging.Level},
		{constants.EnvLogFormat, &cfg.Logging.Format},
		{constants.EnvWorkDir, &cfg.Pipeline.WorkDir},
		{constants.EnvFontPath, &cfg.Document.FontPath},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.env); ok && strings.TrimSpace(v) != "" {
			*o.target = strings.TrimSpace(v)
		}
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
