package converter

import (
	"github.com/Qwejay/Qconverto/internal/backend"
	"github.com/Qwejay/Qconverto/models"
	"github.com/Qwejay/Qconverto/utils"
)

// Toolset holds resolved external tool paths; an empty path means the tool is missing.
type Toolset struct {
	FFmpeg  string
	FFprobe string
	Soffice string
}

// ResolveTools finds ffmpeg, ffprobe and LibreOffice, honoring configured overrides.
func ResolveTools(cfg models.ToolSettings) Toolset {
	log := utils.NewComponentLogger("converter")
	var t Toolset
	var err error

	if t.FFmpeg, err = LookupTool(cfg.FFmpegPath, "ffmpeg"); err != nil {
		log.Debug("ffmpeg not resolved", "error", err)
	}
	if t.FFprobe, err = LookupTool(cfg.FFprobePath, "ffprobe"); err != nil {
		t.FFprobe = siblingTool(t.FFmpeg, "ffprobe")
	}
	if t.Soffice, err = LookupTool(cfg.SofficePath, "soffice", "libreoffice"); err != nil {
		log.Debug("libreoffice not resolved", "error", err)
	}
	return t
}

// Strategies builds every strategy keyed by its configuration name.
func Strategies(cfg *models.Config, tools Toolset, runner Runner) map[string]backend.Strategy {
	if runner == nil {
		runner = ExecRunner{}
	}
	ffOpts := FFmpegOptions{
		FFmpegPath: tools.FFmpeg,
		Prober:     NewProber(tools.FFprobe, runner),
		Runner:     runner,
		Settings:   cfg.FFmpeg,
		GPU:        NewVulkanDetector(cfg.Vulkan.PreferredDevice, cfg.Vulkan.EnableValidation),
	}

	all := []backend.Strategy{
		NewImageCodec(cfg.Image.JPEGQuality),
		NewFFmpeg(ffOpts),
		NewFFmpegVulkan(ffOpts),
		NewWAVPCM(),
		backend.NewByteCopy(),
		NewDocument(DocumentOptions{Settings: cfg.Document, JPEGQuality: cfg.Image.JPEGQuality}),
		NewOffice(tools.Soffice, runner, cfg.Document.Timeout),
	}
	byName := make(map[string]backend.Strategy, len(all))
	for _, s := range all {
		byName[s.Name()] = s
	}
	return byName
}

// NewRegistry builds the category chains from the configured order.
func NewRegistry(cfg *models.Config, tools Toolset, runner Runner) (*backend.Registry, error) {
	order, err := backend.MergeChains(cfg.Pipeline.Chains)
	if err != nil {
		return nil, err
	}
	return backend.Build(order, Strategies(cfg, tools, runner))
}
