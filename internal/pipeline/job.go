package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Qwejay/Qconverto/models"
)

var (
	// ErrJobNotFinished is returned by Job.Result while the job is still pending or running.
	ErrJobNotFinished = errors.New("job has not finished")
	// ErrInvalidTransition is returned when a state change is not allowed.
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// Request describes one conversion.
type Request struct {
	// ID is generated when empty.
	ID        string
	InputPath string
	// DeclaredName is the name the file was supplied under. It only names the output.
	DeclaredName string
	// TargetExt is the wanted output extension; empty selects the category's recommendation.
	TargetExt string
	// OutputDir overrides the configured output directory.
	OutputDir string
	// OutputPath overrides OutputDir and the derived file name.
	OutputPath string
}

// Job is the handle of a submitted conversion.
type Job struct {
	ID  string
	req Request

	cancelled atomic.Bool
	cancelMu  sync.Mutex
	cancelFn  context.CancelFunc

	mu     sync.Mutex
	state  models.JobState
	result *models.JobResult

	progress *ProgressStream
	done     chan struct{}
}

func newJob(id string, req Request, bufSize int) *Job {
	return &Job{
		ID:       id,
		req:      req,
		state:    models.JobPending,
		result:   &models.JobResult{JobID: id, InputPath: req.InputPath, State: models.JobPending},
		progress: newProgressStream(id, bufSize),
		done:     make(chan struct{}),
	}
}

func isValidTransition(from, to models.JobState) bool {
	switch from {
	case models.JobPending:
		return to == models.JobRunning || to == models.JobFailed || to == models.JobCancelled
	case models.JobRunning:
		return to == models.JobSucceeded || to == models.JobFailed || to == models.JobCancelled
	default:
		return false
	}
}

// Request returns the request the job was submitted with.
func (j *Job) Request() Request {
	return j.req
}

// State returns the current state.
func (j *Job) State() models.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Progress returns the job's progress events. The channel is closed when the job ends.
func (j *Job) Progress() <-chan models.ProgressEvent {
	return j.progress.Events()
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Cancel requests cancellation. It is safe to call at any time and more than once.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
	j.cancelMu.Lock()
	fn := j.cancelFn
	j.cancelMu.Unlock()
	if fn != nil {
		fn()
	}
}

// Cancelled reports whether Cancel was called.
func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

func (j *Job) setCancelFunc(fn context.CancelFunc) {
	j.cancelMu.Lock()
	j.cancelFn = fn
	j.cancelMu.Unlock()
	if j.cancelled.Load() {
		fn()
	}
}

// Wait blocks until the job ends or ctx is done.
func (j *Job) Wait(ctx context.Context) (*models.JobResult, error) {
	select {
	case <-j.done:
		return j.Snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the terminal result, or ErrJobNotFinished.
func (j *Job) Result() (*models.JobResult, error) {
	select {
	case <-j.done:
		return j.Snapshot(), nil
	default:
		return nil, ErrJobNotFinished
	}
}

// Snapshot returns a copy of the job's current result.
func (j *Job) Snapshot() *models.JobResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	res := *j.result
	res.State = j.state
	res.Progress = j.progress.Last()
	res.ExtraOutputs = append([]string(nil), j.result.ExtraOutputs...)
	res.Attempts = append([]models.BackendAttempt(nil), j.result.Attempts...)
	return &res
}

func (j *Job) update(fn func(r *models.JobResult)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(j.result)
}

// transition moves the job to state. Entering a terminal state closes the progress stream
// and releases Wait.
func (j *Job) transition(to models.JobState) error {
	j.mu.Lock()
	from := j.state
	if !isValidTransition(from, to) {
		j.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	j.state = to
	j.result.State = to
	j.mu.Unlock()

	if to.IsTerminal() {
		j.progress.close()
		close(j.done)
	}
	return nil
}
