// Package pipeline drives conversion jobs from classification through the backend chain
// to a verified output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/internal/backend"
	"github.com/Qwejay/Qconverto/internal/catalog"
	"github.com/Qwejay/Qconverto/internal/classifier"
	"github.com/Qwejay/Qconverto/internal/signature"
	"github.com/Qwejay/Qconverto/internal/workspace"
	"github.com/Qwejay/Qconverto/models"
	"github.com/Qwejay/Qconverto/utils"
)

// Options wires a Pipeline. Registry and Workspace are required.
type Options struct {
	Config     *models.Config
	Classifier *classifier.Classifier
	Catalog    *catalog.Catalog
	Registry   *backend.Registry
	Workspace  *workspace.Manager
	Metrics    *utils.Metrics
}

// Pipeline accepts conversion requests and runs each on its own goroutine.
type Pipeline struct {
	cfg        *models.Config
	classifier *classifier.Classifier
	catalog    *catalog.Catalog
	registry   *backend.Registry
	workspace  *workspace.Manager
	metrics    *utils.Metrics
	log        *utils.ComponentLogger

	mu        sync.Mutex
	reserved  map[string]outputClaim // outputs of running jobs
	completed map[string]outputClaim // outputs of succeeded jobs
	wg        sync.WaitGroup
}

// outputClaim records which job owns an output path.
type outputClaim struct {
	jobID string
	input string
}

// New creates a Pipeline, filling unset collaborators with the built-in defaults.
func New(opts Options) (*Pipeline, error) {
	if opts.Registry == nil {
		return nil, errors.New("pipeline requires a backend registry")
	}
	if opts.Workspace == nil {
		return nil, errors.New("pipeline requires a workspace")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &models.Config{}
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	cls := opts.Classifier
	if cls == nil {
		cls = classifier.New(signature.Default(), cat, cfg.Pipeline.HeaderSize)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = utils.NewMetrics()
	}

	return &Pipeline{
		cfg:        cfg,
		classifier: cls,
		catalog:    cat,
		registry:   opts.Registry,
		workspace:  opts.Workspace,
		metrics:    metrics,
		log:        utils.NewComponentLogger("pipeline"),
		reserved:   make(map[string]outputClaim),
		completed:  make(map[string]outputClaim),
	}, nil
}

// Metrics returns the pipeline's metrics.
func (p *Pipeline) Metrics() *utils.Metrics {
	return p.metrics
}

// Run converts synchronously and returns the terminal result.
func (p *Pipeline) Run(ctx context.Context, req Request) *models.JobResult {
	job, _ := p.Submit(ctx, req)
	<-job.Done()
	return job.Snapshot()
}

// Submit admits req and starts it in the background. Admission failures (missing input,
// unclassifiable content, unsupported target, output conflicts) fail the job before any
// backend runs; the returned job is then already terminal and the error is its ConversionError.
func (p *Pipeline) Submit(ctx context.Context, req Request) (*Job, error) {
	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}
	job := newJob(id, req, constants.ProgressBufferSize)
	p.metrics.Inc("jobs.submitted")

	ctx = utils.ContextWithJobID(ctx, id)
	log := p.log.WithContext(ctx)

	plan, err := p.admit(job)
	if err != nil {
		ce := asConversionError(err, req.InputPath)
		log.Warn("Job rejected", "input", req.InputPath, "kind", ce.Kind, "error", ce)
		p.finish(job, models.JobFailed, ce)
		return job, ce
	}

	if err := job.transition(models.JobRunning); err != nil {
		p.settle(plan.output, false)
		return job, fmt.Errorf("failed to start job: %w", err)
	}
	job.update(func(r *models.JobResult) { r.StartedAt = time.Now() })
	job.progress.Emit(constants.ProgressClassified, models.PhaseClassifying)
	job.progress.Emit(constants.ProgressAccepted, models.PhaseDispatching)
	log.Info("Job started",
		"input", req.InputPath, "output", plan.output, "category", plan.class.Category, "target", plan.target)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.execute(ctx, job, plan)
	}()
	return job, nil
}

// Wait blocks until every submitted job has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

type plan struct {
	class  *models.ClassificationResult
	target string
	output string
	chain  *backend.Chain
	guard  outputGuard
}

func (p *Pipeline) admit(job *Job) (*plan, error) {
	req := job.req
	if req.InputPath == "" {
		return nil, models.NewError(models.ErrInvalidInput, "", "input path is empty", nil)
	}

	class, err := p.classifier.Classify(req.InputPath)
	if class != nil {
		job.update(func(r *models.JobResult) {
			r.Category = class.Category
			r.DetectedFormat = class.DetectedFormat
			r.Confidence = class.Confidence
		})
	}
	if err != nil {
		return nil, err
	}

	target := catalog.NormalizeExtension(req.TargetExt)
	if target == "" && req.OutputPath != "" {
		target = catalog.NormalizeExtension(filepath.Ext(req.OutputPath))
	}
	if target == "" {
		if target, err = p.catalog.Recommend(class.Category); err != nil {
			return nil, err
		}
	}
	job.update(func(r *models.JobResult) { r.TargetExt = target })
	if !p.catalog.IsValidConversion(class.Category, target) {
		return nil, models.NewError(models.ErrUnsupportedConversion, req.InputPath,
			fmt.Sprintf("%s cannot be converted to %s", class.Category, target), nil)
	}

	chain, ok := p.registry.Chain(class.Category)
	if !ok {
		return nil, models.NewError(models.ErrUnsupportedConversion, req.InputPath,
			fmt.Sprintf("no backend chain for %s", class.Category), nil)
	}

	output, err := p.resolveOutputPath(req, target)
	if err != nil {
		return nil, err
	}
	if output, err = p.claimOutput(req, output, job.ID); err != nil {
		return nil, err
	}
	job.update(func(r *models.JobResult) { r.OutputPath = output })

	return &plan{class: class, target: target, output: output, chain: chain, guard: guardOutput(output)}, nil
}

func (p *Pipeline) execute(ctx context.Context, job *Job, pl *plan) {
	log := p.log.WithContext(ctx)
	start := time.Now()

	var (
		jobCtx context.Context
		cancel context.CancelFunc
	)
	if p.cfg.Pipeline.JobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, p.cfg.Pipeline.JobTimeout)
	} else {
		jobCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	job.setCancelFunc(cancel)

	scratch, err := p.workspace.Acquire(job.ID)
	if err != nil {
		p.conclude(pl, job, models.JobFailed, models.NewError(models.ErrIO, pl.output, "failed to create scratch dir", err))
		return
	}
	defer p.workspace.Release(job.ID)

	breq := backend.Request{
		JobID:          job.ID,
		InputPath:      job.req.InputPath,
		OutputPath:     pl.output,
		Category:       pl.class.Category,
		DetectedFormat: pl.class.DetectedFormat,
		InputExt:       pl.class.MatchedExtension,
		TargetExt:      pl.target,
		ScratchDir:     scratch,
	}
	onProgress := func(percent int) {
		if job.Cancelled() {
			return
		}
		percent = min(max(percent, 0), 100)
		span := constants.ProgressConvertCeiling - constants.ProgressAccepted
		job.progress.Emit(constants.ProgressAccepted+percent*span/100, models.PhaseConverting)
	}

	res, runErr := pl.chain.Run(jobCtx, breq, onProgress, job.Cancelled)
	p.metrics.Timer("convert." + string(pl.class.Category)).Record(time.Since(start))
	job.update(func(r *models.JobResult) {
		r.Attempts = res.Attempts
		r.Backend = res.Strategy
		r.Degraded = res.Outcome.Degraded
		r.Note = res.Outcome.Note
	})
	for _, a := range res.Attempts {
		if a.Outcome == models.OutcomeFailed {
			p.metrics.Inc("strategy." + a.Backend + ".failures")
		}
	}

	discard := func() {
		p.cleanup(log, pl.guard, res.Outcome.ExtraOutputs)
	}

	if job.Cancelled() || (runErr != nil && ctx.Err() != nil) {
		discard()
		p.conclude(pl, job, models.JobCancelled, models.NewError(models.ErrCancelled, job.req.InputPath, "conversion cancelled", nil))
		return
	}
	if runErr != nil {
		discard()
		ce := asConversionError(runErr, job.req.InputPath)
		if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
			ce = &models.ConversionError{
				Kind:     models.ErrBackendFailure,
				Path:     job.req.InputPath,
				Message:  fmt.Sprintf("job timed out after %s", p.cfg.Pipeline.JobTimeout),
				Failures: ce.Failures,
				Err:      context.DeadlineExceeded,
			}
		}
		p.conclude(pl, job, models.JobFailed, ce)
		return
	}

	if !utils.FileExists(pl.output) {
		discard()
		p.conclude(pl, job, models.JobFailed, models.NewError(models.ErrOutputMissingAfterSuccess, pl.output,
			fmt.Sprintf("%s reported success without an output", res.Strategy), nil))
		return
	}
	job.progress.Emit(constants.ProgressConvertCeiling, models.PhaseFinalizing)

	size, err := utils.GetFileSize(pl.output)
	if err != nil {
		log.Warn("Failed to stat output", "path", pl.output, "error", err)
	}
	checksum, err := utils.CalculateFileSHA256(pl.output)
	if err != nil {
		log.Warn("Failed to checksum output", "path", pl.output, "error", err)
	}
	job.update(func(r *models.JobResult) {
		r.OutputSize = size
		r.OutputChecksum = checksum
		r.ExtraOutputs = append([]string(nil), res.Outcome.ExtraOutputs...)
	})

	if job.Cancelled() {
		discard()
		p.conclude(pl, job, models.JobCancelled, models.NewError(models.ErrCancelled, job.req.InputPath, "conversion cancelled", nil))
		return
	}
	job.progress.Emit(constants.ProgressComplete, models.PhaseFinalizing)
	if res.Outcome.Degraded {
		p.metrics.Inc("jobs.degraded")
	}
	p.conclude(pl, job, models.JobSucceeded, nil)
}

// conclude settles the plan's output claim and then finishes the job, so a job waiting
// on Done never sees a stale reservation.
func (p *Pipeline) conclude(pl *plan, job *Job, state models.JobState, ce *models.ConversionError) {
	p.settle(pl.output, state == models.JobSucceeded)
	p.finish(job, state, ce)
}

// finish records the terminal state. ce is nil on success.
func (p *Pipeline) finish(job *Job, state models.JobState, ce *models.ConversionError) {
	job.update(func(r *models.JobResult) {
		r.Err = ce
		r.CompletedAt = time.Now()
		if r.StartedAt.IsZero() {
			r.StartedAt = r.CompletedAt
		}
	})
	if err := job.transition(state); err != nil {
		p.log.Error("Failed to finish job", "job_id", job.ID, "error", err)
		return
	}
	p.metrics.Inc("jobs." + string(state))

	snap := job.Snapshot()
	switch state {
	case models.JobSucceeded:
		p.log.Info("Job succeeded", "job_id", job.ID, "output", snap.OutputPath,
			"backend", snap.Backend, "degraded", snap.Degraded, "size", snap.OutputSize)
	default:
		p.log.Info("Job ended", "job_id", job.ID, "state", state, "progress", snap.Progress, "error", ce)
	}
}

// resolveOutputPath derives the absolute output path for req.
func (p *Pipeline) resolveOutputPath(req Request, target string) (string, error) {
	input, err := filepath.Abs(req.InputPath)
	if err != nil {
		return "", models.NewError(models.ErrInvalidInput, req.InputPath, "failed to resolve input path", err)
	}

	if req.OutputPath != "" {
		out, err := filepath.Abs(req.OutputPath)
		if err != nil {
			return "", models.NewError(models.ErrInvalidInput, req.OutputPath, "failed to resolve output path", err)
		}
		if out == input {
			return "", models.NewError(models.ErrInvalidInput, req.OutputPath, "output path equals the input path", nil)
		}
		return out, nil
	}

	dir := req.OutputDir
	if dir == "" {
		dir = p.cfg.Output.DefaultDir
	}
	if dir == "" {
		dir = filepath.Dir(input)
	}
	stem := utils.Stem(input)
	if req.DeclaredName != "" {
		stem = utils.Stem(req.DeclaredName)
	}

	out, err := filepath.Abs(filepath.Join(dir, stem+target))
	if err != nil {
		return "", models.NewError(models.ErrInvalidInput, dir, "failed to resolve output dir", err)
	}
	if out == input {
		out = filepath.Join(filepath.Dir(out), stem+"_converted"+target)
	}
	return out, nil
}

// claimOutput reserves path for the job. A derived path already owned by a job converting
// a different input is renamed to {stem}_{srcext}{target}, then {stem}_{srcext}_N{target};
// an explicit path or a duplicate of the same input is rejected.
func (p *Pipeline) claimOutput(req Request, path, jobID string) (string, error) {
	input, err := filepath.Abs(req.InputPath)
	if err != nil {
		return "", models.NewError(models.ErrInvalidInput, req.InputPath, "failed to resolve input path", err)
	}
	claim := outputClaim{jobID: jobID, input: input}

	p.mu.Lock()
	defer p.mu.Unlock()

	owner, running, taken := p.ownerLocked(path)
	if !taken {
		p.reserved[path] = claim
		return path, nil
	}
	if req.OutputPath != "" || owner.input == input {
		if running {
			return "", models.NewError(models.ErrInvalidInput, path,
				fmt.Sprintf("output is already being written by job %s", owner.jobID), nil)
		}
		return "", models.NewError(models.ErrInvalidInput, path,
			fmt.Sprintf("output was already written by job %s", owner.jobID), nil)
	}

	name := req.DeclaredName
	if name == "" {
		name = input
	}
	srcExt := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if srcExt != "" {
		base += "_" + srcExt
	}
	target := filepath.Ext(path)
	for n := 1; ; n++ {
		candidate := base + target
		if n > 1 {
			candidate = fmt.Sprintf("%s_%d%s", base, n, target)
		}
		if candidate == input {
			continue
		}
		if _, _, taken := p.ownerLocked(candidate); !taken {
			p.log.Debug("Output renamed to avoid collision", "job_id", jobID, "wanted", path, "output", candidate, "owner", owner.jobID)
			p.reserved[candidate] = claim
			return candidate, nil
		}
	}
}

func (p *Pipeline) ownerLocked(path string) (outputClaim, bool, bool) {
	if c, ok := p.reserved[path]; ok {
		return c, true, true
	}
	if c, ok := p.completed[path]; ok {
		return c, false, true
	}
	return outputClaim{}, false, false
}

// settle drops the reservation on path, keeping it as a completed output when the job succeeded.
func (p *Pipeline) settle(path string, succeeded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	claim, ok := p.reserved[path]
	if !ok {
		return
	}
	delete(p.reserved, path)
	if succeeded {
		p.completed[path] = claim
	}
}

// cleanup removes a partial output and extra outputs. Errors are logged only.
func (p *Pipeline) cleanup(log *utils.ComponentLogger, guard outputGuard, extras []string) {
	if guard.touched() {
		if err := utils.RemoveIfExists(guard.path); err != nil {
			log.Warn("Failed to remove partial output", "path", guard.path, "error", err)
		}
	}
	for _, extra := range extras {
		if err := utils.RemoveIfExists(extra); err != nil {
			log.Warn("Failed to remove extra output", "path", extra, "error", err)
		}
	}
}

// outputGuard remembers what was at the output path before the job ran.
type outputGuard struct {
	path    string
	existed bool
	size    int64
	modTime time.Time
}

func guardOutput(path string) outputGuard {
	g := outputGuard{path: path}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		g.existed = true
		g.size = info.Size()
		g.modTime = info.ModTime()
	}
	return g
}

// touched reports whether the job left something at the path that was not there before.
func (g outputGuard) touched() bool {
	info, err := os.Stat(g.path)
	if err != nil || info.IsDir() {
		return false
	}
	if !g.existed {
		return true
	}
	return info.Size() != g.size || !info.ModTime().Equal(g.modTime)
}

func asConversionError(err error, path string) *models.ConversionError {
	var ce *models.ConversionError
	if errors.As(err, &ce) {
		return ce
	}
	return models.NewError(models.ErrIO, path, "conversion failed", err)
}
