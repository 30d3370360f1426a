package converter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FFprobeOutput represents the JSON output from ffprobe
type FFprobeOutput struct {
	Format  FFprobeFormat   `json:"format"`
	Streams []FFprobeStream `json:"streams"`
}

// FFprobeFormat represents the format section of ffprobe output
type FFprobeFormat struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// FFprobeStream represents a stream in ffprobe output
type FFprobeStream struct {
	CodecType   string `json:"codec_type"` // "video" or "audio"
	CodecName   string `json:"codec_name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	SampleRate  string `json:"sample_rate"`
	Channels    int    `json:"channels"`
	Disposition struct {
		Default int `json:"default"`
	} `json:"disposition"`
}

// MediaInfo is the subset of probe data the strategies use.
type MediaInfo struct {
	Duration   float64 // seconds
	Bitrate    int64
	FileSize   int64
	FormatName string
	VideoCodec string
	AudioCodec string
	Width      int
	Height     int
	SampleRate int
	Channels   int
}

// HasVideo reports whether a video stream was found.
func (m *MediaInfo) HasVideo() bool { return m.VideoCodec != "" }

// HasAudio reports whether an audio stream was found.
func (m *MediaInfo) HasAudio() bool { return m.AudioCodec != "" }

// Prober reads media metadata with ffprobe.
type Prober struct {
	ffprobePath string
	runner      Runner
}

// NewProber creates a Prober. An empty path makes every Probe fail.
func NewProber(ffprobePath string, runner Runner) *Prober {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Prober{ffprobePath: ffprobePath, runner: runner}
}

// Available reports whether an ffprobe binary was resolved.
func (p *Prober) Available() bool {
	return p != nil && p.ffprobePath != ""
}

// Probe runs ffprobe on path.
func (p *Prober) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	if !p.Available() {
		return nil, fmt.Errorf("ffprobe: %w", ErrToolNotFound)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source file: %w", err)
	}

	var out strings.Builder
	err = p.runner.Run(ctx, p.ffprobePath, []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}, func(line string) {
		out.WriteString(line)
		out.WriteByte('\n')
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run ffprobe: %w", err)
	}

	meta, err := parseProbeOutput([]byte(out.String()))
	if err != nil {
		return nil, err
	}
	meta.FileSize = info.Size()
	return meta, nil
}

func parseProbeOutput(data []byte) (*MediaInfo, error) {
	var probe FFprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	meta := &MediaInfo{FormatName: probe.Format.FormatName}
	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		meta.Duration = d
	}
	if b, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		meta.Bitrate = b
	}

	if v := pickStream(probe.Streams, "video"); v != nil {
		meta.VideoCodec = v.CodecName
		meta.Width = v.Width
		meta.Height = v.Height
	}
	if a := pickStream(probe.Streams, "audio"); a != nil {
		meta.AudioCodec = a.CodecName
		meta.Channels = a.Channels
		if sr, err := strconv.Atoi(a.SampleRate); err == nil {
			meta.SampleRate = sr
		}
	}
	return meta, nil
}

// pickStream prefers the default stream of a type, else the first one.
func pickStream(streams []FFprobeStream, codecType string) *FFprobeStream {
	var first *FFprobeStream
	for i := range streams {
		s := &streams[i]
		if s.CodecType != codecType {
			continue
		}
		if s.Disposition.Default == 1 {
			return s
		}
		if first == nil {
			first = s
		}
	}
	return first
}
