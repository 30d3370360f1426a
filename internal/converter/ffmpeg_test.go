package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/internal/backend"
	"github.com/Qwejay/Qconverto/models"
)

// fakeRunner records invocations, replays stdout lines and writes the last argument as output.
type fakeRunner struct {
	calls  [][]string
	lines  []string
	output []byte
	err    error
	write  func(args []string) error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, onLine func(string)) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, l := range f.lines {
		if onLine != nil {
			onLine(l)
		}
	}
	if f.err != nil {
		return f.err
	}
	if f.write != nil {
		return f.write(args)
	}
	if f.output != nil {
		return os.WriteFile(args[len(args)-1], f.output, 0o600)
	}
	return nil
}

func TestVideoArgs(t *testing.T) {
	s := models.FFmpegSettings{Preset: constants.PresetFast, CRF: 20, AudioBitrate: "128k"}

	tests := []struct {
		ext    string
		vulkan bool
		codec  string
		err    bool
	}{
		{".mp4", false, constants.CodecH264, false},
		{".mkv", false, constants.CodecH264, false},
		{".mov", true, constants.CodecH264Vulkan, false},
		{".avi", false, constants.CodecMPEG4, false},
		{".wmv", false, constants.CodecWMV2, false},
		{".avi", true, "", true},
		{".flv", false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			args, err := videoArgs(tt.ext, s, tt.vulkan)
			if tt.err {
				if err == nil {
					t.Fatalf("Expected error for %s", tt.ext)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			i := slices.Index(args, "-c:v")
			if i < 0 || args[i+1] != tt.codec {
				t.Errorf("Expected codec %s, got %v", tt.codec, args)
			}
		})
	}
}

func TestAudioArgs(t *testing.T) {
	tests := []struct {
		ext   string
		codec string
	}{
		{".mp3", constants.AudioCodecMP3},
		{".wav", constants.AudioCodecPCM},
		{".flac", constants.AudioCodecFLAC},
		{".ogg", constants.AudioCodecVorbis},
		{".m4a", constants.AudioCodecAAC},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			args, err := audioArgs(tt.ext, "192k")
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if args[1] != tt.codec {
				t.Errorf("Expected codec %s, got %s", tt.codec, args[1])
			}
		})
	}

	if _, err := audioArgs(".aac", "192k"); err == nil {
		t.Error("Expected .aac output to be unsupported")
	}
}

func TestBuildFFmpegArgs(t *testing.T) {
	req := backend.Request{InputPath: "/in/song.flac", Category: models.CategoryAudio, TargetExt: ".mp3"}
	args, err := buildFFmpegArgs(req, "/tmp/out.mp3", models.FFmpegSettings{AudioBitrate: "192k"}, false)
	require.NoError(t, err)

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-i /in/song.flac")
	assert.Contains(t, joined, "-progress pipe:1")
	assert.Contains(t, joined, "-vn -c:a libmp3lame")
	assert.Equal(t, "/tmp/out.mp3", args[len(args)-1])

	req = backend.Request{InputPath: "/in/a.png", Category: models.CategoryImage, TargetExt: ".pdf"}
	_, err = buildFFmpegArgs(req, "/tmp/out.pdf", models.FFmpegSettings{}, false)
	assert.Error(t, err)

	req = backend.Request{InputPath: "/in/a.mkv", Category: models.CategoryVideo, TargetExt: ".mp4"}
	args, err = buildFFmpegArgs(req, "/tmp/out.mp4", models.FFmpegSettings{CRF: 23}, true)
	require.NoError(t, err)
	assert.Less(t, slices.Index(args, "-hwaccel"), slices.Index(args, "-i"))
}

func TestProgressParser(t *testing.T) {
	p := &progressParser{duration: 10}

	tests := []struct {
		line string
		want int
		ok   bool
	}{
		{"out_time_ms=2500000", 25, true},
		{"out_time_us=5000000", 50, true},
		{"out_time_ms=12000000", 99, true},
		{"out_time_ms=N/A", 0, false},
		{"frame=120", 0, false},
		{"progress=continue", 0, false},
		{"progress=end", 100, true},
		{"garbage", 0, false},
	}
	for _, tt := range tests {
		got, ok := p.parse(tt.line)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parse(%q) = %d, %v; want %d, %v", tt.line, got, ok, tt.want, tt.ok)
		}
	}

	unknown := &progressParser{}
	if _, ok := unknown.parse("out_time_ms=1000"); ok {
		t.Error("Expected no progress without a duration")
	}
}

func newRequest(t *testing.T, category models.Category, in, target string) backend.Request {
	t.Helper()
	dir := t.TempDir()
	inPath := filepath.Join(dir, in)
	require.NoError(t, os.WriteFile(inPath, []byte("input"), 0o600))
	scratch := filepath.Join(dir, "scratch")
	require.NoError(t, os.MkdirAll(scratch, 0o750))
	return backend.Request{
		JobID:      "job-1",
		InputPath:  inPath,
		OutputPath: filepath.Join(dir, "out", strings.TrimSuffix(in, filepath.Ext(in))+target),
		Category:   category,
		InputExt:   filepath.Ext(in),
		TargetExt:  target,
		ScratchDir: scratch,
	}
}

func TestFFmpegAttempt(t *testing.T) {
	runner := &fakeRunner{
		lines:  []string{"out_time_ms=1000000", "out_time_ms=3000000", "progress=end"},
		output: []byte("encoded"),
	}
	probeRunner := &fakeRunner{lines: []string{`{"format":{"duration":"4.0"},"streams":[]}`}}

	s := NewFFmpeg(FFmpegOptions{
		FFmpegPath: "/usr/bin/ffmpeg",
		Prober:     NewProber("/usr/bin/ffprobe", probeRunner),
		Runner:     runner,
	})
	req := newRequest(t, models.CategoryVideo, "clip.mkv", ".mp4")

	var seen []int
	_, err := s.Attempt(context.Background(), req, func(p int) { seen = append(seen, p) })
	require.NoError(t, err)
	assert.Equal(t, []int{0, 25, 75, 100, 100}, seen)

	data, err := os.ReadFile(req.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "encoded", string(data))
	assert.Contains(t, runner.calls[0], "-preset")
	assert.Contains(t, runner.calls[0], constants.PresetMedium)
}

func TestFFmpegAttemptFailures(t *testing.T) {
	req := newRequest(t, models.CategoryAudio, "song.ogg", ".mp3")

	_, err := NewFFmpeg(FFmpegOptions{}).Attempt(context.Background(), req, func(int) {})
	assert.ErrorIs(t, err, backend.ErrUnavailable)

	failing := &fakeRunner{err: errors.New("exit status 1")}
	_, err = NewFFmpeg(FFmpegOptions{FFmpegPath: "ffmpeg", Runner: failing}).Attempt(context.Background(), req, func(int) {})
	require.Error(t, err)
	assert.False(t, backend.IsFatal(err))
	assert.NoFileExists(t, req.OutputPath)

	empty := &fakeRunner{output: []byte{}}
	_, err = NewFFmpeg(FFmpegOptions{FFmpegPath: "ffmpeg", Runner: empty}).Attempt(context.Background(), req, func(int) {})
	assert.Error(t, err)
}

func TestFFmpegVulkanNeedsDevice(t *testing.T) {
	req := newRequest(t, models.CategoryVideo, "clip.avi", ".mp4")
	runner := &fakeRunner{output: []byte("gpu encoded")}

	disabled := NewFFmpegVulkan(FFmpegOptions{FFmpegPath: "ffmpeg", Runner: runner})
	_, err := disabled.Attempt(context.Background(), req, func(int) {})
	assert.ErrorIs(t, err, backend.ErrUnavailable)

	noGPU := NewFFmpegVulkan(FFmpegOptions{
		FFmpegPath: "ffmpeg",
		Runner:     runner,
		Settings:   models.FFmpegSettings{UseVulkan: true},
		GPU:        &countingDetector{caps: &VulkanCapabilities{}},
	})
	_, err = noGPU.Attempt(context.Background(), req, func(int) {})
	assert.ErrorIs(t, err, backend.ErrUnavailable)

	withGPU := NewFFmpegVulkan(FFmpegOptions{
		FFmpegPath: "ffmpeg",
		Runner:     runner,
		Settings:   models.FFmpegSettings{UseVulkan: true},
		GPU:        &countingDetector{caps: &VulkanCapabilities{Supported: true, CanEncode: true}},
	})
	_, err = withGPU.Attempt(context.Background(), req, func(int) {})
	require.NoError(t, err)
	assert.Contains(t, runner.calls[len(runner.calls)-1], constants.CodecH264Vulkan)

	audioReq := newRequest(t, models.CategoryAudio, "a.wav", ".mp3")
	_, err = withGPU.Attempt(context.Background(), audioReq, func(int) {})
	assert.Error(t, err)
}

func TestParseProbeOutput(t *testing.T) {
	out := `{"format":{"duration":"12.5","bit_rate":"128000","format_name":"mov,mp4"},
	"streams":[{"codec_type":"audio","codec_name":"aac","sample_rate":"44100","channels":2},
	{"codec_type":"video","codec_name":"h264","width":1920,"height":1080,"disposition":{"default":1}}]}`

	info, err := parseProbeOutput([]byte(out))
	require.NoError(t, err)
	assert.InDelta(t, 12.5, info.Duration, 0.001)
	assert.Equal(t, int64(128000), info.Bitrate)
	assert.Equal(t, "h264", info.VideoCodec)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 44100, info.SampleRate)
	assert.True(t, info.HasAudio())
	assert.True(t, info.HasVideo())

	_, err = parseProbeOutput([]byte("not json"))
	assert.Error(t, err)
}

func TestLookupTool(t *testing.T) {
	dir := t.TempDir()
	tool := filepath.Join(dir, "ffmpeg-custom")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\n"), 0o700))

	got, err := LookupTool(tool, "ffmpeg")
	require.NoError(t, err)
	assert.Equal(t, tool, got)

	_, err = LookupTool(filepath.Join(dir, "missing"), "ffmpeg")
	assert.ErrorIs(t, err, ErrToolNotFound)

	_, err = LookupTool("", "qconverto-no-such-tool")
	assert.ErrorIs(t, err, ErrToolNotFound)
}
