// Package utils provides logging, file, checksum and metrics helpers shared by Qconverto packages.
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CalculateFileSHA256 calculates the SHA256 checksum of a file
func CalculateFileSHA256(filePath string) (string, error) {
	// #nosec G304 - filePath is a conversion output produced by this process
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			slog.Warn("Failed to close file during checksum calculation", "error", cerr)
		}
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// VerifyFileSHA256 verifies that a file's SHA256 checksum matches the expected value
func VerifyFileSHA256(filePath, expectedChecksum string) (bool, error) {
	actualChecksum, err := CalculateFileSHA256(filePath)
	if err != nil {
		return false, err
	}

	return actualChecksum == expectedChecksum, nil
}
