package utils

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileExists checks if a file exists and is not a directory
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	if !DirExists(path) {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return nil
}

// GetFileSize returns the size of a file in bytes
func GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to get file info: %w", err)
	}
	return info.Size(), nil
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReplaceExt returns path with its extension replaced by ext (which includes the dot).
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// CopyFile copies src to dst byte for byte, creating dst's directory if needed.
// A partially written dst is removed when the copy fails.
func CopyFile(src, dst string) (err error) {
	// #nosec G304 - src is a job input path validated by the pipeline
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			slog.Warn("Failed to close source file", "path", src, "error", cerr)
		}
	}()

	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}

	// #nosec G304 - dst is a job output path chosen by the pipeline
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	defer func() {
		cerr := out.Close()
		if err == nil && cerr != nil {
			err = fmt.Errorf("failed to close destination: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy data: %w", err)
	}
	return out.Sync()
}

// MoveFile renames src to dst, falling back to copy+remove across filesystems.
func MoveFile(src, dst string) error {
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		slog.Warn("Failed to remove moved source", "path", src, "error", err)
	}
	return nil
}

// RemoveIfExists deletes path and treats a missing file as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// ValidatePathWithinBase validates that targetPath is within basePath and prevents path traversal.
// It returns the cleaned absolute path, or an error if the path escapes basePath,
// contains ".." components or a null byte, or cannot be resolved.
func ValidatePathWithinBase(basePath, targetPath string) (string, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute base path: %w", err)
	}
	absBase = filepath.Clean(absBase)

	var absTarget string
	if filepath.IsAbs(targetPath) {
		absTarget = targetPath
	} else {
		absTarget = filepath.Join(absBase, targetPath)
	}
	absTarget = filepath.Clean(absTarget)

	for _, component := range strings.Split(filepath.ToSlash(targetPath), "/") {
		if component == ".." {
			return "", fmt.Errorf("path contains suspicious traversal pattern: %s", targetPath)
		}
	}

	relPath, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return "", fmt.Errorf("failed to compute relative path: %w", err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %s attempts to escape %s", targetPath, basePath)
	}

	if strings.Contains(absTarget, "\x00") {
		return "", fmt.Errorf("path contains null byte")
	}

	return absTarget, nil
}
