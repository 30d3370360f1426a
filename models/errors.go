package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a conversion error so callers can branch without string matching.
type ErrorKind string

// Error kinds.
const (
	ErrFileNotFound              ErrorKind = "file_not_found"
	ErrIO                        ErrorKind = "io_error"
	ErrUnsupportedFileType       ErrorKind = "unsupported_file_type"
	ErrUnsupportedConversion     ErrorKind = "unsupported_conversion"
	ErrBackendFailure            ErrorKind = "backend_failure"
	ErrOutputMissingAfterSuccess ErrorKind = "output_missing_after_success"
	ErrCancelled                 ErrorKind = "cancelled"
	ErrInvalidInput              ErrorKind = "invalid_input"
	ErrNoFormatsAvailable        ErrorKind = "no_formats_available"
)

// ConversionError is the structured error attached to a failed or cancelled job.
type ConversionError struct {
	Kind    ErrorKind
	Path    string
	Message string
	// Failures holds one message per attempted strategy for ErrBackendFailure.
	Failures []string
	Err      error
}

// NewError creates a ConversionError of the given kind.
func NewError(kind ErrorKind, path, message string, err error) *ConversionError {
	return &ConversionError{Kind: kind, Path: path, Message: message, Err: err}
}

func (e *ConversionError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Path != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", e.Path))
	}
	if len(e.Failures) > 0 {
		sb.WriteString(": ")
		sb.WriteString(strings.Join(e.Failures, "; "))
	} else if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first ConversionError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether err carries a ConversionError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
