package converter

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/internal/backend"
	"github.com/Qwejay/Qconverto/models"
	"github.com/Qwejay/Qconverto/utils"
)

// Office converts documents with LibreOffice in headless mode.
type Office struct {
	sofficePath string
	runner      Runner
	timeout     time.Duration
	validator   *Validator
}

// NewOffice creates the office strategy. An empty sofficePath makes it unavailable.
func NewOffice(sofficePath string, runner Runner, timeout time.Duration) *Office {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Office{sofficePath: sofficePath, runner: runner, timeout: timeout, validator: NewValidator()}
}

// Name implements backend.Strategy.
func (o *Office) Name() string { return constants.StrategyOffice }

// Kind implements backend.Strategy.
func (o *Office) Kind() backend.Kind { return backend.KindExternalTool }

// Attempt implements backend.Strategy.
func (o *Office) Attempt(ctx context.Context, req backend.Request, progress backend.ProgressFunc) (backend.Outcome, error) {
	if o.sofficePath == "" {
		return backend.Outcome{}, backend.Unavailable("libreoffice not found")
	}
	if req.Category != models.CategoryDocument {
		return backend.Outcome{}, backend.Unsupported(req.InputExt, req.TargetExt)
	}

	outDir := filepath.Join(req.ScratchDir, "office")
	profileDir := filepath.Join(req.ScratchDir, "office-profile")
	if err := utils.EnsureDir(outDir); err != nil {
		return backend.Outcome{}, err
	}
	absProfile, err := filepath.Abs(profileDir)
	if err != nil {
		return backend.Outcome{}, fmt.Errorf("failed to resolve profile dir: %w", err)
	}

	runCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	progress(0)
	args := officeArgs(req, outDir, (&url.URL{Scheme: "file", Path: filepath.ToSlash(absProfile)}).String())
	if err := o.runner.Run(runCtx, o.sofficePath, args, nil); err != nil {
		if ctx.Err() != nil {
			return backend.Outcome{}, ctx.Err()
		}
		return backend.Outcome{}, fmt.Errorf("libreoffice conversion failed: %w", err)
	}
	progress(80)

	produced := filepath.Join(outDir, utils.Stem(req.InputPath)+req.TargetExt)
	if err := o.validator.ValidateFile(produced); err != nil {
		return backend.Outcome{}, fmt.Errorf("libreoffice produced no output: %w", err)
	}
	if err := utils.MoveFile(produced, req.OutputPath); err != nil {
		return backend.Outcome{}, fmt.Errorf("failed to move output into place: %w", err)
	}
	progress(100)
	return backend.Outcome{}, nil
}

func officeArgs(req backend.Request, outDir, profileURL string) []string {
	args := []string{
		"--headless",
		"--norestore",
		"-env:UserInstallation=" + profileURL,
	}
	if sourceFormat(req) == "pdf" {
		// pdfs open in Draw unless the Writer import filter is forced
		args = append(args, "--infilter=writer_pdf_import")
	}
	return append(args,
		"--convert-to", strings.TrimPrefix(req.TargetExt, "."),
		"--outdir", outDir,
		req.InputPath,
	)
}
