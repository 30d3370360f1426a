// Package backend runs ordered conversion strategies with typed fallbacks.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/models"
)

// Kind describes how a strategy performs its work.
type Kind string

// Strategy kinds.
const (
	KindLibrary      Kind = constants.StrategyKindLibrary
	KindExternalTool Kind = constants.StrategyKindExternalTool
	KindByteCopy     Kind = constants.StrategyKindByteCopy
)

// Request is what a strategy needs to produce one output.
type Request struct {
	JobID          string
	InputPath      string
	OutputPath     string
	Category       models.Category
	DetectedFormat string
	InputExt       string
	TargetExt      string
	// ScratchDir is private to the job and removed when it ends.
	ScratchDir string
}

// Outcome describes a successful attempt.
type Outcome struct {
	// Degraded marks a success that did not really convert the content.
	Degraded bool
	Note     string
	// ExtraOutputs lists files written besides OutputPath.
	ExtraOutputs []string
}

// ProgressFunc receives a strategy's own progress in [0, 100].
type ProgressFunc func(percent int)

// Strategy is one way of converting a file.
type Strategy interface {
	Name() string
	Kind() Kind
	Attempt(ctx context.Context, req Request, progress ProgressFunc) (Outcome, error)
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err so the chain stops instead of trying the next strategy.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err was marked with Fatal.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

// ErrUnavailable is wrapped by errors from strategies whose tool or hardware is missing.
var ErrUnavailable = errors.New("backend unavailable")

// Unavailable returns a recoverable error stating why a strategy cannot run here.
func Unavailable(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, reason)
}

// Unsupported returns a recoverable error for a format pair a strategy does not handle.
func Unsupported(from, to string) error {
	return fmt.Errorf("conversion %s -> %s not supported", from, to)
}
