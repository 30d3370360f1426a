package converter

import (
	"context"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/internal/backend"
	"github.com/Qwejay/Qconverto/utils"
)

const (
	wavFormatPCM  = 1
	wavOutputBits = 16
)

// WAVPCM re-encodes integer PCM WAV files as 16-bit PCM WAV without external tools.
type WAVPCM struct {
	validator *Validator
}

// NewWAVPCM creates the wav-pcm strategy.
func NewWAVPCM() *WAVPCM {
	return &WAVPCM{validator: NewValidator()}
}

// Name implements backend.Strategy.
func (w *WAVPCM) Name() string { return constants.StrategyWAV }

// Kind implements backend.Strategy.
func (w *WAVPCM) Kind() backend.Kind { return backend.KindLibrary }

// Attempt implements backend.Strategy.
func (w *WAVPCM) Attempt(ctx context.Context, req backend.Request, progress backend.ProgressFunc) (backend.Outcome, error) {
	if req.TargetExt != ".wav" {
		return backend.Outcome{}, backend.Unsupported(req.InputExt, req.TargetExt)
	}

	progress(0)
	buf, err := readPCM(req.InputPath)
	if err != nil {
		return backend.Outcome{}, err
	}
	if err := ctx.Err(); err != nil {
		return backend.Outcome{}, err
	}
	progress(50)

	tmp := scratchOutput(req.ScratchDir, req.TargetExt)
	if err := writePCM(tmp, buf); err != nil {
		_ = utils.RemoveIfExists(tmp)
		return backend.Outcome{}, err
	}
	if err := w.validator.ValidateFile(tmp); err != nil {
		return backend.Outcome{}, err
	}
	if err := utils.MoveFile(tmp, req.OutputPath); err != nil {
		return backend.Outcome{}, fmt.Errorf("failed to move output into place: %w", err)
	}
	progress(100)
	return backend.Outcome{}, nil
}

// readPCM decodes a PCM WAV file and rescales its samples to 16 bits.
func readPCM(path string) (*audio.IntBuffer, error) {
	// #nosec G304 - path is the job input
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a wav file")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("unsupported wav encoding %d, only integer PCM is handled", dec.WavAudioFormat)
	}

	src, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav: %w", err)
	}

	depth := int(dec.BitDepth)
	data := make([]int, len(src.Data))
	for i, v := range src.Data {
		data[i] = rescaleSample(v, depth)
	}

	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(dec.NumChans),
			SampleRate:  int(dec.SampleRate),
		},
		Data:           data,
		SourceBitDepth: wavOutputBits,
	}, nil
}

// rescaleSample maps a sample of the given bit depth onto the signed 16-bit range.
// 8-bit WAV samples are unsigned.
func rescaleSample(v, depth int) int {
	switch {
	case depth == 8:
		return (v - 128) << 8
	case depth > wavOutputBits:
		return v >> (depth - wavOutputBits)
	case depth < wavOutputBits:
		return v << (wavOutputBits - depth)
	default:
		return v
	}
}

func writePCM(path string, buf *audio.IntBuffer) error {
	// #nosec G304 - path is inside the job scratch directory
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	enc := wav.NewEncoder(out, buf.Format.SampleRate, wavOutputBits, buf.Format.NumChannels, wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to finalize wav: %w", err)
	}
	return out.Close()
}
