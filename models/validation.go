package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Qwejay/Qconverto/constants"
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors: ", len(e)))
	for i, err := range e {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Validate validates the whole configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = appendPrefixed(errs, "logging", c.Logging.Validate())
	errs = appendPrefixed(errs, "pipeline", c.Pipeline.Validate())
	errs = appendPrefixed(errs, "ffmpeg", c.FFmpeg.Validate())
	errs = appendPrefixed(errs, "image", c.Image.Validate())
	errs = appendPrefixed(errs, "document", c.Document.Validate())

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, ValidationError{Field: "database.Path", Message: "cannot be empty when the history is enabled"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate validates the LoggingSettings fields and returns any validation errors.
func (l *LoggingSettings) Validate() error {
	var errs ValidationErrors

	if !isValidLogLevel(l.Level) && l.Level != "" {
		errs = append(errs, ValidationError{
			Field:   "Level",
			Message: fmt.Sprintf("invalid log level %q, must be one of: debug, info, warn, error", l.Level),
		})
	}
	if !isValidLogFormat(l.Format) && l.Format != "" {
		errs = append(errs, ValidationError{
			Field:   "Format",
			Message: fmt.Sprintf("invalid log format %q, must be one of: json, text", l.Format),
		})
	}
	for component, level := range l.Components {
		if !isValidLogLevel(level) {
			errs = append(errs, ValidationError{
				Field:   "Components." + component,
				Message: fmt.Sprintf("invalid log level %q", level),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate validates the PipelineSettings fields and returns any validation errors.
func (p *PipelineSettings) Validate() error {
	var errs ValidationErrors

	if p.HeaderSize != 0 && p.HeaderSize < constants.MinHeaderSize {
		errs = append(errs, ValidationError{
			Field:   "HeaderSize",
			Message: fmt.Sprintf("must be at least %d bytes", constants.MinHeaderSize),
		})
	}
	if p.Concurrency < 0 {
		errs = append(errs, ValidationError{Field: "Concurrency", Message: "cannot be negative"})
	}
	if p.JobTimeout < 0 {
		errs = append(errs, ValidationError{Field: "JobTimeout", Message: "cannot be negative"})
	}
	for name, chain := range p.Chains {
		if _, err := ParseCategory(name); err != nil {
			errs = append(errs, ValidationError{
				Field:   "Chains",
				Message: fmt.Sprintf("unknown category %q, must be one of: image, audio, video, document", name),
			})
			continue
		}
		if len(chain) == 0 {
			errs = append(errs, ValidationError{Field: "Chains." + name, Message: "cannot be empty"})
		}
		for _, strategy := range chain {
			if !isValidStrategy(strategy) {
				errs = append(errs, ValidationError{
					Field:   "Chains." + name,
					Message: fmt.Sprintf("unknown strategy %q", strategy),
				})
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate validates the FFmpegSettings fields and returns any validation errors.
func (f *FFmpegSettings) Validate() error {
	var errs ValidationErrors

	if !isValidPreset(f.Preset) && f.Preset != "" {
		errs = append(errs, ValidationError{
			Field:   "Preset",
			Message: fmt.Sprintf("invalid preset %q, must be one of: fast, medium, slow", f.Preset),
		})
	}
	if f.CRF < 0 || f.CRF > 51 {
		errs = append(errs, ValidationError{Field: "CRF", Message: "must be between 0 and 51"})
	}
	if f.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "Timeout", Message: "cannot be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate validates the ImageSettings fields and returns any validation errors.
func (i *ImageSettings) Validate() error {
	if i.JPEGQuality < 0 || i.JPEGQuality > 100 {
		return ValidationErrors{{Field: "JPEGQuality", Message: "must be between 1 and 100"}}
	}
	return nil
}

// Validate validates the DocumentSettings fields and returns any validation errors.
func (d *DocumentSettings) Validate() error {
	var errs ValidationErrors

	if d.RenderDPI < 0 {
		errs = append(errs, ValidationError{Field: "RenderDPI", Message: "cannot be negative"})
	}
	if d.WrapWidth < 0 {
		errs = append(errs, ValidationError{Field: "WrapWidth", Message: "cannot be negative"})
	}
	if d.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "Timeout", Message: "cannot be negative"})
	}
	if ext := strings.ToLower(filepath.Ext(d.FontPath)); d.FontPath != "" && ext != ".ttf" {
		errs = append(errs, ValidationError{Field: "FontPath", Message: "must be a .ttf file"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate validates the JobRecord fields and returns any validation errors.
func (r *JobRecord) Validate() error {
	var errs ValidationErrors

	if r.ID == "" {
		errs = append(errs, ValidationError{Field: "ID", Message: "cannot be empty"})
	}
	if r.InputPath == "" {
		errs = append(errs, ValidationError{Field: "InputPath", Message: "cannot be empty"})
	}
	if !isValidJobState(r.State) {
		errs = append(errs, ValidationError{
			Field:   "State",
			Message: fmt.Sprintf("invalid state %q, must be one of: pending, running, succeeded, failed, cancelled", r.State),
		})
	}
	if r.Progress < 0 || r.Progress > 100 {
		errs = append(errs, ValidationError{Field: "Progress", Message: "must be between 0 and 100"})
	}
	if r.RetryCount < 0 {
		errs = append(errs, ValidationError{Field: "RetryCount", Message: "cannot be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// appendPrefixed adds the errors of a nested section, qualifying the field names.
func appendPrefixed(errs ValidationErrors, section string, err error) ValidationErrors {
	if err == nil {
		return errs
	}
	var nested ValidationErrors
	if errors.As(err, &nested) {
		for _, e := range nested {
			errs = append(errs, ValidationError{Field: section + "." + e.Field, Message: e.Message})
		}
		return errs
	}
	return append(errs, ValidationError{Field: section, Message: err.Error()})
}

func isValidJobState(state string) bool {
	switch state {
	case constants.JobStatePending, constants.JobStateRunning, constants.JobStateSucceeded,
		constants.JobStateFailed, constants.JobStateCancelled:
		return true
	default:
		return false
	}
}

func isValidStrategy(name string) bool {
	switch name {
	case constants.StrategyImage, constants.StrategyFFmpeg, constants.StrategyFFmpegVulkan,
		constants.StrategyWAV, constants.StrategyByteCopy, constants.StrategyDocument, constants.StrategyOffice:
		return true
	default:
		return false
	}
}

func isValidPreset(preset string) bool {
	switch preset {
	case constants.PresetFast, constants.PresetMedium, constants.PresetSlow:
		return true
	default:
		return false
	}
}

func isValidLogLevel(level string) bool {
	switch level {
	case constants.LogLevelDebug, constants.LogLevelInfo,
		constants.LogLevelWarn, constants.LogLevelError:
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case constants.LogFormatJSON, constants.LogFormatText:
		return true
	default:
		return false
	}
}

// ToYAML serializes the Config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	return data, nil
}

// ConfigFromYAML deserializes a Config from YAML bytes.
func ConfigFromYAML(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config from YAML: %w", err)
	}
	return &config, nil
}

// IsValidationError checks if an error is a ValidationError or ValidationErrors.
func IsValidationError(err error) bool {
	var ve ValidationError
	var ves ValidationErrors
	return errors.As(err, &ve) || errors.As(err, &ves)
}
