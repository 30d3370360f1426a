package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qwejay/Qconverto/constants"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultHeaderSize, cfg.Pipeline.HeaderSize)
	assert.GreaterOrEqual(t, cfg.Pipeline.Concurrency, 1)
	assert.Equal(t, constants.PresetMedium, cfg.FFmpeg.Preset)
	assert.Equal(t, constants.DefaultJPEGQuality, cfg.Image.JPEGQuality)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Document.Timeout)
	assert.Empty(t, cfg.Document.FontPath)
	assert.False(t, strings.HasPrefix(cfg.Database.Path, "~"), "home dir should be expanded")
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yamlData := `
pipeline:
  concurrency: 3
  job_timeout: 5m
  chains:
    audio: [wav-pcm, byte-copy]
ffmpeg:
  preset: slow
  use_vulkan: false
document:
  timeout: 90s
  font_path: ~/fonts/DroidSansFallbackFull.ttf
logging:
  level: debug
`
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Pipeline.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.JobTimeout)
	assert.Equal(t, []string{constants.StrategyWAV, constants.StrategyByteCopy}, cfg.Pipeline.Chains["audio"])
	assert.Equal(t, constants.PresetSlow, cfg.FFmpeg.Preset)
	assert.False(t, cfg.FFmpeg.UseVulkan)
	assert.Equal(t, constants.LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, 90*time.Second, cfg.Document.Timeout)
	assert.False(t, strings.HasPrefix(cfg.Document.FontPath, "~"), "home dir should be expanded")
	assert.Equal(t, 2*time.Hour, cfg.FFmpeg.Timeout, "ffmpeg timeout is separate")
	// untouched sections keep their defaults
	assert.Equal(t, constants.DefaultCRF, cfg.FFmpeg.CRF)
	assert.Equal(t, constants.DefaultWrapWidth, cfg.Document.WrapWidth)
}

func TestLoadDefaultFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, constants.DefaultConfigFile), []byte("image:\n  jpeg_quality: 75\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.Image.JPEGQuality)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte(constants.EnvLogFormat+"=json\n"+constants.EnvLogLevel+"=warn\n"), 0o600))

	// godotenv exports .env values into the process
	t.Cleanup(func() { _ = os.Unsetenv(constants.EnvLogFormat) })
	t.Setenv(constants.EnvFFmpegPath, "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv(constants.EnvOutputDir, "/srv/converted")
	t.Setenv(constants.EnvLogLevel, "error")
	t.Setenv(constants.EnvDBPath, "~/custom/history.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.Tools.FFmpegPath)
	assert.Equal(t, "/srv/converted", cfg.Output.DefaultDir)
	// the real environment wins over .env
	assert.Equal(t, constants.LogLevelError, cfg.Logging.Level)
	assert.Equal(t, constants.LogFormatJSON, cfg.Logging.Format)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "custom", "history.db"), cfg.Database.Path)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		in, want string
	}{
		{"~", home},
		{"~/a/b", filepath.Join(home, "a", "b")},
		{"/abs/path", "/abs/path"},
		{"relative/~", "relative/~"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandHome(tt.in), tt.in)
	}
}
