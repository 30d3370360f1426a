// Package constants holds the string constants shared across Qconverto packages.
package constants

// Job states
const (
	JobStatePending   = "pending"
	JobStateRunning   = "running"
	JobStateSucceeded = "succeeded"
	JobStateFailed    = "failed"
	JobStateCancelled = "cancelled"
)

// Categories
const (
	CategoryImage    = "image"
	CategoryAudio    = "audio"
	CategoryVideo    = "video"
	CategoryDocument = "document"
)

// Classification confidence
const (
	ConfidenceSignatureConfirmed = "signature_confirmed"
	ConfidenceExtensionOnly      = "extension_only"
)

// Progress phases
const (
	PhaseClassifying = "classifying"
	PhaseDispatching = "dispatching"
	PhaseConverting  = "converting"
	PhaseFinalizing  = "finalizing"
)

// Progress checkpoints (percent)
const (
	ProgressClassified     = 0
	ProgressAccepted       = 10
	ProgressConvertCeiling = 90
	ProgressComplete       = 100
)

// Backend attempt outcomes
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Skip reasons recorded in the attempt log
const (
	SkipPreemptedBySuccess = "preempted-by-success"
	SkipPreemptedByFatal   = "preempted-by-fatal"
	SkipCancelled          = "cancelled"
)

// Strategy kinds
const (
	StrategyKindLibrary      = "library"
	StrategyKindExternalTool = "external-tool"
	StrategyKindByteCopy     = "byte-copy"
)

// Strategy names used in chain configuration
const (
	StrategyImage        = "image"
	StrategyFFmpeg       = "ffmpeg"
	StrategyFFmpegVulkan = "ffmpeg-vulkan"
	StrategyWAV          = "wav-pcm"
	StrategyByteCopy     = "byte-copy"
	StrategyDocument     = "document"
	StrategyOffice       = "office"
)

// Vulkan device types
const (
	VulkanDeviceTypeDiscrete   = "discrete"
	VulkanDeviceTypeIntegrated = "integrated"
	VulkanDeviceTypeVirtual    = "virtual"
	VulkanDeviceTypeCPU        = "cpu"
)

// Default values
const (
	DefaultHeaderSize    = 8192
	MinHeaderSize        = 1024
	ProgressBufferSize   = 64
	DefaultJPEGQuality   = 90
	DefaultRenderDPI     = 216
	DefaultWrapWidth     = 80
	DefaultCRF           = 23
	DefaultHistoryLimit  = 50
	DefaultRetryLimit    = 100
	DefaultConfigFile    = "qconverto.yaml"
	DefaultWorkDirName   = "qconverto"
	DefaultHistoryDBName = "history.db"
)

// Video codecs
const (
	CodecH264       = "libx264"
	CodecH264Vulkan = "h264_vulkan"
	CodecMPEG4      = "mpeg4"
	CodecWMV2       = "wmv2"
)

// Audio codecs
const (
	AudioCodecAAC    = "aac"
	AudioCodecMP3    = "libmp3lame"
	AudioCodecVorbis = "libvorbis"
	AudioCodecFLAC   = "flac"
	AudioCodecPCM    = "pcm_s16le"
	AudioCodecWMA    = "wmav2"
)

// Presets
const (
	PresetFast   = "fast"
	PresetMedium = "medium"
	PresetSlow   = "slow"
)

// Log levels
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Log formats
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Environment overrides
const (
	EnvFFmpegPath  = "QCONVERTO_FFMPEG_PATH"
	EnvFFprobePath = "QCONVERTO_FFPROBE_PATH"
	EnvSofficePath = "QCONVERTO_SOFFICE_PATH"
	EnvOutputDir   = "QCONVERTO_OUTPUT_DIR"
	EnvDBPath      = "QCONVERTO_DB_PATH"
	EnvLogLevel    = "QCONVERTO_LOG_LEVEL"
	EnvLogFormat   = "QCONVERTO_LOG_FORMAT"
	EnvWorkDir     = "QCONVERTO_WORK_DIR"
	EnvFontPath    = "QCONVERTO_FONT_PATH"
)
