package converter

import (
	"fmt"
	"os"
)

// Validator checks files produced by the strategies.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateFile checks that path is a non-empty regular file.
func (v *Validator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", path)
		}
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}

	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", path)
	}

	return nil
}

// ValidateOutputs checks every path and stops at the first problem.
func (v *Validator) ValidateOutputs(paths ...string) error {
	for _, p := range paths {
		if err := v.ValidateFile(p); err != nil {
			return fmt.Errorf("invalid output: %w", err)
		}
	}
	return nil
}
