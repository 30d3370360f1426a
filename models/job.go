package models

import (
	"time"

	"github.com/Qwejay/Qconverto/constants"
)

// JobState is the lifecycle state of a conversion job.
type JobState string

// Job states.
const (
	JobPending   JobState = constants.JobStatePending
	JobRunning   JobState = constants.JobStateRunning
	JobSucceeded JobState = constants.JobStateSucceeded
	JobFailed    JobState = constants.JobStateFailed
	JobCancelled JobState = constants.JobStateCancelled
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobState) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// Phase names the pipeline stage a progress event belongs to.
type Phase string

// Progress phases.
const (
	PhaseClassifying Phase = constants.PhaseClassifying
	PhaseDispatching Phase = constants.PhaseDispatching
	PhaseConverting  Phase = constants.PhaseConverting
	PhaseFinalizing  Phase = constants.PhaseFinalizing
)

// ProgressEvent is one progress update for a job.
type ProgressEvent struct {
	JobID    string    `json:"job_id"`
	Progress int       `json:"progress"`
	Phase    Phase     `json:"phase"`
	Time     time.Time `json:"time"`
}

// AttemptOutcome is the result of one strategy within a chain run.
type AttemptOutcome string

// Attempt outcomes.
const (
	OutcomeSuccess AttemptOutcome = constants.OutcomeSuccess
	OutcomeSkipped AttemptOutcome = constants.OutcomeSkipped
	OutcomeFailed  AttemptOutcome = constants.OutcomeFailed
)

// BackendAttempt is one entry of a chain's attempt log. Kept for diagnostics only.
type BackendAttempt struct {
	Backend  string         `json:"backend"`
	Kind     string         `json:"kind"`
	Outcome  AttemptOutcome `json:"outcome"`
	Reason   string         `json:"reason,omitempty"` // skip reason
	Error    string         `json:"error,omitempty"`
	Fatal    bool           `json:"fatal,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// JobResult is the terminal outcome handed to the caller.
type JobResult struct {
	JobID          string           `json:"job_id"`
	InputPath      string           `json:"input_path"`
	OutputPath     string           `json:"output_path,omitempty"`
	ExtraOutputs   []string         `json:"extra_outputs,omitempty"`
	Category       Category         `json:"category,omitempty"`
	DetectedFormat string           `json:"detected_format,omitempty"`
	Confidence     Confidence       `json:"confidence,omitempty"`
	TargetExt      string           `json:"target_ext,omitempty"`
	State          JobState         `json:"state"`
	Progress       int              `json:"progress"`
	Backend        string           `json:"backend,omitempty"`
	Degraded       bool             `json:"degraded"`
	Note           string           `json:"note,omitempty"`
	Err            *ConversionError `json:"-"`
	Attempts       []BackendAttempt `json:"attempts,omitempty"`
	OutputSize     int64            `json:"output_size,omitempty"`
	OutputChecksum string           `json:"output_checksum,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    time.Time        `json:"completed_at"`
}

// ErrorKind returns the kind of the job's error, or "" on success.
func (r *JobResult) ErrorKind() ErrorKind {
	if r.Err == nil {
		return ""
	}
	return r.Err.Kind
}

// ErrorMessage returns the job's error text, or "" on success.
func (r *JobResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Record flattens the result into the form kept in the conversion history.
func (r *JobResult) Record() *JobRecord {
	rec := &JobRecord{
		ID:             r.JobID,
		InputPath:      r.InputPath,
		OutputPath:     r.OutputPath,
		Category:       string(r.Category),
		DetectedFormat: r.DetectedFormat,
		Confidence:     string(r.Confidence),
		TargetExt:      r.TargetExt,
		State:          string(r.State),
		Progress:       r.Progress,
		Backend:        r.Backend,
		Degraded:       r.Degraded,
		Note:           r.Note,
		ErrorKind:      string(r.ErrorKind()),
		ErrorMessage:   r.ErrorMessage(),
		OutputSize:     r.OutputSize,
		OutputChecksum: r.OutputChecksum,
		CreatedAt:      r.StartedAt,
	}
	if !r.StartedAt.IsZero() {
		started := r.StartedAt
		rec.StartedAt = &started
	}
	if !r.CompletedAt.IsZero() {
		completed := r.CompletedAt
		rec.CompletedAt = &completed
	}
	return rec
}

// JobRecord is a conversion as stored in the history database.
type JobRecord struct {
	ID             string     `json:"id"              yaml:"id"`
	InputPath      string     `json:"input_path"      yaml:"input_path"`
	OutputPath     string     `json:"output_path"     yaml:"output_path"`
	Category       string     `json:"category"        yaml:"category"`
	DetectedFormat string     `json:"detected_format" yaml:"detected_format"`
	Confidence     string     `json:"confidence"      yaml:"confidence"`
	TargetExt      string     `json:"target_ext"      yaml:"target_ext"`
	State          string     `json:"state"           yaml:"state"` // see constants.JobState* constants
	Progress       int        `json:"progress"        yaml:"progress"`
	Backend        string     `json:"backend"         yaml:"backend"`
	Degraded       bool       `json:"degraded"        yaml:"degraded"`
	Note           string     `json:"note"            yaml:"note"`
	ErrorKind      string     `json:"error_kind"      yaml:"error_kind"`
	ErrorMessage   string     `json:"error_message"   yaml:"error_message"`
	OutputSize     int64      `json:"output_size"     yaml:"output_size"` // bytes
	OutputChecksum string     `json:"output_checksum" yaml:"output_checksum"`
	RetryCount     int        `json:"retry_count"     yaml:"retry_count"`
	CreatedAt      time.Time  `json:"created_at"      yaml:"created_at"`
	StartedAt      *time.Time `json:"started_at"      yaml:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"    yaml:"completed_at"`
}
