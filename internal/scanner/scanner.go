// Package scanner turns a directory tree into conversion requests.
package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Qwejay/Qconverto/internal/catalog"
	"github.com/Qwejay/Qconverto/internal/pipeline"
	"github.com/Qwejay/Qconverto/utils"
)

// Scanner discovers convertible files under RootPath.
type Scanner struct {
	RootPath string
	Catalog  *catalog.Catalog
	// OutputBase mirrors the source tree; empty writes next to each input.
	OutputBase string
	// TargetExt is copied into every request; empty selects the recommendation per file.
	TargetExt    string
	Recursive    bool
	SkipExisting bool
}

// New creates a scanner using the default catalog.
func New(rootPath, outputBase, targetExt string) *Scanner {
	return &Scanner{
		RootPath:   rootPath,
		Catalog:    catalog.Default(),
		OutputBase: outputBase,
		TargetExt:  catalog.NormalizeExtension(targetExt),
		Recursive:  true,
	}
}

// ScanDirectory walks the tree and returns one request per file whose extension the
// catalog accepts as input. Files are only pre-filtered here; the pipeline classifies
// each one from its content.
func (s *Scanner) ScanDirectory() ([]pipeline.Request, error) {
	var reqs []pipeline.Request

	absOut := ""
	if s.OutputBase != "" {
		if abs, err := filepath.Abs(s.OutputBase); err == nil {
			absOut = abs
		}
	}

	err := filepath.WalkDir(s.RootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("Error accessing path", "path", path, "error", err)
			return nil // Continue scanning despite errors
		}

		if d.IsDir() {
			if path == s.RootPath {
				return nil
			}
			if !s.Recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if abs, err := filepath.Abs(path); err == nil && abs == absOut {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if !s.Catalog.IsSupportedInput(ext) {
			return nil
		}

		req := pipeline.Request{InputPath: path, TargetExt: s.TargetExt}
		if s.OutputBase != "" {
			relPath, relErr := filepath.Rel(s.RootPath, path)
			if relErr != nil {
				slog.Warn("Failed to compute relative path", "root", s.RootPath, "path", path, "error", relErr)
				return nil
			}
			outDir, err := utils.ValidatePathWithinBase(s.OutputBase, filepath.Dir(relPath))
			if err != nil {
				slog.Warn("Skipping file with unsafe output path", "path", path, "error", err)
				return nil
			}
			req.OutputDir = outDir
		}

		if s.SkipExisting && s.TargetExt != "" && utils.FileExists(expectedOutput(req)) {
			slog.Debug("Output already exists, skipping", "path", path)
			return nil
		}

		reqs = append(reqs, req)
		slog.Debug("Found convertible file", "path", path)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	return reqs, nil
}

func expectedOutput(req pipeline.Request) string {
	dir := req.OutputDir
	if dir == "" {
		dir = filepath.Dir(req.InputPath)
	}
	out := filepath.Join(dir, utils.Stem(req.InputPath)+req.TargetExt)
	if filepath.Clean(out) == filepath.Clean(req.InputPath) {
		out = filepath.Join(dir, utils.Stem(req.InputPath)+"_converted"+req.TargetExt)
	}
	return out
}
