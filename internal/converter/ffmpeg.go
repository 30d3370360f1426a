package converter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/internal/backend"
	"github.com/Qwejay/Qconverto/models"
	"github.com/Qwejay/Qconverto/utils"
)

const defaultAudioBitrate = "192k"

// FFmpegOptions configures the ffmpeg strategies.
type FFmpegOptions struct {
	FFmpegPath string
	Prober     *Prober
	Runner     Runner
	Settings   models.FFmpegSettings
	// GPU is only used by the Vulkan variant.
	GPU GPUDetector
}

// FFmpeg converts image, audio and video files with an external ffmpeg binary.
type FFmpeg struct {
	name       string
	ffmpegPath string
	prober     *Prober
	runner     Runner
	settings   models.FFmpegSettings
	vulkan     bool
	gpu        *cachedGPU
	validator  *Validator
	log        *utils.ComponentLogger
}

// NewFFmpeg creates the software-encoding ffmpeg strategy.
func NewFFmpeg(opts FFmpegOptions) *FFmpeg {
	return newFFmpeg(constants.StrategyFFmpeg, opts, false)
}

// NewFFmpegVulkan creates the Vulkan-accelerated video strategy.
func NewFFmpegVulkan(opts FFmpegOptions) *FFmpeg {
	return newFFmpeg(constants.StrategyFFmpegVulkan, opts, true)
}

func newFFmpeg(name string, opts FFmpegOptions, vulkan bool) *FFmpeg {
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	s := opts.Settings
	if s.Preset == "" {
		s.Preset = constants.PresetMedium
	}
	if s.CRF == 0 {
		s.CRF = constants.DefaultCRF
	}
	if s.AudioBitrate == "" {
		s.AudioBitrate = defaultAudioBitrate
	}
	return &FFmpeg{
		name:       name,
		ffmpegPath: opts.FFmpegPath,
		prober:     opts.Prober,
		runner:     opts.Runner,
		settings:   s,
		vulkan:     vulkan,
		gpu:        &cachedGPU{det: opts.GPU},
		validator:  NewValidator(),
		log:        utils.NewComponentLogger(name),
	}
}

// Name implements backend.Strategy.
func (f *FFmpeg) Name() string { return f.name }

// Kind implements backend.Strategy.
func (f *FFmpeg) Kind() backend.Kind { return backend.KindExternalTool }

// Attempt implements backend.Strategy.
func (f *FFmpeg) Attempt(ctx context.Context, req backend.Request, progress backend.ProgressFunc) (backend.Outcome, error) {
	if f.ffmpegPath == "" {
		return backend.Outcome{}, backend.Unavailable("ffmpeg not found")
	}
	if f.vulkan {
		if err := f.checkVulkan(req); err != nil {
			return backend.Outcome{}, err
		}
	}

	tmp := scratchOutput(req.ScratchDir, req.TargetExt)
	args, err := buildFFmpegArgs(req, tmp, f.settings, f.vulkan)
	if err != nil {
		return backend.Outcome{}, err
	}

	log := f.log.WithContext(ctx)
	var duration float64
	if f.prober.Available() {
		if info, err := f.prober.Probe(ctx, req.InputPath); err != nil {
			log.Debug("Probe failed, progress limited to start and end", "error", err)
		} else {
			duration = info.Duration
		}
	}

	runCtx := ctx
	if f.settings.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.settings.Timeout)
		defer cancel()
	}

	progress(0)
	parser := &progressParser{duration: duration}
	err = f.runner.Run(runCtx, f.ffmpegPath, args, func(line string) {
		if p, ok := parser.parse(line); ok {
			progress(p)
		}
	})
	if err != nil {
		_ = utils.RemoveIfExists(tmp)
		if ctx.Err() != nil {
			return backend.Outcome{}, ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return backend.Outcome{}, fmt.Errorf("ffmpeg timed out after %s", f.settings.Timeout)
		}
		return backend.Outcome{}, fmt.Errorf("ffmpeg conversion failed: %w", err)
	}

	if err := f.validator.ValidateFile(tmp); err != nil {
		return backend.Outcome{}, err
	}
	if err := utils.MoveFile(tmp, req.OutputPath); err != nil {
		return backend.Outcome{}, fmt.Errorf("failed to move output into place: %w", err)
	}
	progress(100)
	return backend.Outcome{}, nil
}

func (f *FFmpeg) checkVulkan(req backend.Request) error {
	if req.Category != models.CategoryVideo {
		return backend.Unsupported(req.InputExt, req.TargetExt)
	}
	if !f.settings.UseVulkan {
		return backend.Unavailable("vulkan disabled by configuration")
	}
	caps, err := f.gpu.get()
	if err != nil {
		return backend.Unavailable(fmt.Sprintf("vulkan detection failed: %v", err))
	}
	if !caps.Supported || !caps.CanEncode {
		return backend.Unavailable("no vulkan device with encode support")
	}
	return nil
}

// buildFFmpegArgs constructs the ffmpeg arguments writing req's conversion to output.
func buildFFmpegArgs(req backend.Request, output string, s models.FFmpegSettings, vulkan bool) ([]string, error) {
	args := []string{"-hide_banner", "-nostdin", "-y"}
	if vulkan {
		args = append(args,
			"-init_hw_device", "vulkan=vk",
			"-hwaccel", "vulkan",
			"-hwaccel_output_format", "vulkan",
		)
	}
	args = append(args, "-i", req.InputPath, "-progress", "pipe:1", "-nostats")

	var codec []string
	var err error
	switch req.Category {
	case models.CategoryVideo:
		codec, err = videoArgs(req.TargetExt, s, vulkan)
	case models.CategoryAudio:
		codec, err = audioArgs(req.TargetExt, s.AudioBitrate)
		codec = append([]string{"-vn"}, codec...)
	case models.CategoryImage:
		codec, err = imageArgs(req.TargetExt)
	default:
		err = backend.Unsupported(req.InputExt, req.TargetExt)
	}
	if err != nil {
		return nil, err
	}

	args = append(args, codec...)
	return append(args, output), nil
}

func videoArgs(ext string, s models.FFmpegSettings, vulkan bool) ([]string, error) {
	switch ext {
	case ".mp4", ".mkv", ".mov":
		var args []string
		if vulkan {
			args = []string{"-c:v", constants.CodecH264Vulkan, "-qp", strconv.Itoa(s.CRF)}
		} else {
			args = []string{
				"-c:v", constants.CodecH264,
				"-preset", s.Preset,
				"-crf", strconv.Itoa(s.CRF),
				"-pix_fmt", "yuv420p",
			}
		}
		args = append(args, "-c:a", constants.AudioCodecAAC, "-b:a", s.AudioBitrate)
		if ext != ".mkv" {
			args = append(args, "-movflags", "+faststart")
		}
		return args, nil
	case ".avi":
		if vulkan {
			return nil, backend.Unsupported("video", ext+" with vulkan")
		}
		return []string{"-c:v", constants.CodecMPEG4, "-q:v", "5", "-c:a", constants.AudioCodecMP3, "-b:a", s.AudioBitrate}, nil
	case ".wmv":
		if vulkan {
			return nil, backend.Unsupported("video", ext+" with vulkan")
		}
		return []string{"-c:v", constants.CodecWMV2, "-q:v", "5", "-c:a", constants.AudioCodecWMA, "-b:a", s.AudioBitrate}, nil
	default:
		return nil, backend.Unsupported("video", ext)
	}
}

func audioArgs(ext, bitrate string) ([]string, error) {
	switch ext {
	case ".mp3":
		return []string{"-c:a", constants.AudioCodecMP3, "-b:a", bitrate}, nil
	case ".wav":
		return []string{"-c:a", constants.AudioCodecPCM}, nil
	case ".flac":
		return []string{"-c:a", constants.AudioCodecFLAC}, nil
	case ".ogg":
		return []string{"-c:a", constants.AudioCodecVorbis, "-b:a", bitrate}, nil
	case ".m4a":
		return []string{"-c:a", constants.AudioCodecAAC, "-b:a", bitrate}, nil
	default:
		return nil, backend.Unsupported("audio", ext)
	}
}

func imageArgs(ext string) ([]string, error) {
	single := []string{"-frames:v", "1", "-update", "1"}
	switch ext {
	case ".jpg", ".jpeg":
		return append(single, "-q:v", "2"), nil
	case ".png":
		return single, nil
	case ".webp":
		return append(single, "-c:v", "libwebp", "-quality", "90"), nil
	default:
		return nil, backend.Unsupported("image", ext)
	}
}

// progressParser turns `-progress pipe:1` key=value lines into percentages.
type progressParser struct {
	duration float64 // seconds, 0 when unknown
}

func (p *progressParser) parse(line string) (int, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return 0, false
	}
	switch key {
	case "progress":
		if value == "end" {
			return 100, true
		}
	case "out_time_ms", "out_time_us":
		// both keys carry microseconds
		if p.duration <= 0 {
			return 0, false
		}
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		pct := int(float64(us) / (p.duration * 1e6) * 100)
		if pct > 99 {
			pct = 99
		}
		return pct, true
	}
	return 0, false
}
