// Package models defines the data models and configuration structures shared by Qconverto packages.
package models

import "time"

// LoggingSettings defines logging configuration
type LoggingSettings struct {
	Level      string            `yaml:"level"`      // debug, info, warn, error
	Format     string            `yaml:"format"`     // json, text
	Components map[string]string `yaml:"components"` // per-component level overrides
}

// OutputSettings controls where converted files are written.
type OutputSettings struct {
	DefaultDir string `yaml:"default_dir"` // empty = next to the input
}

// PipelineSettings tunes the conversion pipeline.
type PipelineSettings struct {
	HeaderSize  int                 `yaml:"header_size"`
	Concurrency int                 `yaml:"concurrency"`
	JobTimeout  time.Duration       `yaml:"job_timeout"`
	WorkDir     string              `yaml:"work_dir"`
	WorkMaxAge  time.Duration       `yaml:"work_max_age"`
	Chains      map[string][]string `yaml:"chains"` // category -> ordered strategy names
}

// ToolSettings holds override paths for external conversion tools.
type ToolSettings struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	SofficePath string `yaml:"soffice_path"`
}

// FFmpegSettings defines encoder parameters for the ffmpeg strategies.
type FFmpegSettings struct {
	UseVulkan    bool          `yaml:"use_vulkan"`
	Preset       string        `yaml:"preset"`
	CRF          int           `yaml:"crf"`
	AudioBitrate string        `yaml:"audio_bitrate"`
	Timeout      time.Duration `yaml:"timeout"`
}

// VulkanSettings selects the GPU used by the Vulkan strategy.
type VulkanSettings struct {
	PreferredDevice  string `yaml:"preferred_device"` // GPU name or "auto"
	EnableValidation bool   `yaml:"enable_validation"`
}

// ImageSettings defines image encoder parameters.
type ImageSettings struct {
	JPEGQuality int `yaml:"jpeg_quality"`
}

// DocumentSettings defines document rendering parameters.
type DocumentSettings struct {
	RenderDPI float64       `yaml:"render_dpi"`
	WrapWidth int           `yaml:"wrap_width"`
	FontPath  string        `yaml:"font_path"` // TrueType font for txt -> pdf; empty = probe system fonts
	Timeout   time.Duration `yaml:"timeout"`   // per soffice run
}

// DatabaseSettings locates the conversion history.
type DatabaseSettings struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

// Config holds the complete Qconverto configuration.
type Config struct {
	Output   OutputSettings   `yaml:"output"`
	Pipeline PipelineSettings `yaml:"pipeline"`
	Tools    ToolSettings     `yaml:"tools"`
	FFmpeg   FFmpegSettings   `yaml:"ffmpeg"`
	Vulkan   VulkanSettings   `yaml:"vulkan"`
	Image    ImageSettings    `yaml:"image"`
	Document DocumentSettings `yaml:"document"`
	Database DatabaseSettings `yaml:"database"`
	Logging  LoggingSettings  `yaml:"logging"`
}
