package converter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Qwejay/Qconverto/utils"
)

// Runner starts an external tool and feeds each stdout line to onLine.
type Runner interface {
	Run(ctx context.Context, name string, args []string, onLine func(string)) error
}

// ExecRunner runs tools with exec.CommandContext, so a cancelled ctx kills the process.
type ExecRunner struct{}

const stderrTail = 2048

// Run implements Runner. A failing tool's error includes the tail of its stderr.
func (ExecRunner) Run(ctx context.Context, name string, args []string, onLine func(string)) error {
	// #nosec G204 - name is a resolved tool path and args are built by the strategies
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout: %w", err)
	}
	stderr := &tailBuffer{limit: stderrTail}
	cmd.Stderr = stderr

	utils.NewComponentLogger("converter").Debug("Executing tool", "tool", filepath.Base(name), "args", args)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", filepath.Base(name), err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	// drain anything the scanner refused so Wait does not block
	_, _ = io.Copy(io.Discard, stdout)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			return fmt.Errorf("%s failed: %w: %s", filepath.Base(name), err, lastLine(tail))
		}
		return fmt.Errorf("%s failed: %w", filepath.Base(name), err)
	}
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if extra := t.buf.Len() - t.limit; extra > 0 {
		t.buf.Next(extra)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ErrToolNotFound is returned by LookupTool when no usable binary exists.
var ErrToolNotFound = errors.New("tool not found")

// LookupTool resolves configured first, then each name on PATH.
func LookupTool(configured string, names ...string) (string, error) {
	if configured != "" {
		if utils.FileExists(configured) {
			return configured, nil
		}
		if p, err := exec.LookPath(configured); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, configured)
	}
	for _, n := range names {
		if p, err := exec.LookPath(n); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrToolNotFound, strings.Join(names, ", "))
}

// siblingTool derives a tool path next to ffmpegPath, e.g. ffprobe from ffmpeg.
func siblingTool(ffmpegPath, name string) string {
	if ffmpegPath == "" {
		return ""
	}
	base := strings.Replace(filepath.Base(ffmpegPath), "ffmpeg", name, 1)
	p := filepath.Join(filepath.Dir(ffmpegPath), base)
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// scratchOutput returns a temporary output path inside the job's scratch directory.
func scratchOutput(scratchDir, ext string) string {
	return filepath.Join(scratchDir, "output"+ext)
}
