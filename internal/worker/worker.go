// Package worker runs batches of conversions through the pipeline with bounded concurrency.
package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Qwejay/Qconverto/internal/pipeline"
	"github.com/Qwejay/Qconverto/models"
	"github.com/Qwejay/Qconverto/utils"
)

// Submitter starts conversion jobs.
type Submitter interface {
	Submit(ctx context.Context, req pipeline.Request) (*pipeline.Job, error)
}

// Recorder persists terminal job results.
type Recorder interface {
	RecordResult(rec *models.JobRecord) error
}

// Pool processes requests with bounded concurrency.
type Pool struct {
	submitter   Submitter
	recorder    Recorder
	metrics     *utils.Metrics
	concurrency int
	activeJobs  int32
	log         *utils.ComponentLogger
}

// DefaultConcurrency is half the CPUs, at least one.
func DefaultConcurrency() int {
	return max(runtime.NumCPU()/2, 1)
}

// New creates a Pool. recorder and metrics may be nil.
func New(submitter Submitter, recorder Recorder, concurrency int, metrics *utils.Metrics) *Pool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency()
	}
	if metrics == nil {
		metrics = utils.NewMetrics()
	}
	return &Pool{
		submitter:   submitter,
		recorder:    recorder,
		metrics:     metrics,
		concurrency: concurrency,
		log:         utils.NewComponentLogger("worker"),
	}
}

// Concurrency returns the maximum number of jobs RunBatch keeps in flight.
func (p *Pool) Concurrency() int {
	return p.concurrency
}

// ActiveJobs returns the number of jobs currently running.
func (p *Pool) ActiveJobs() int {
	return int(atomic.LoadInt32(&p.activeJobs))
}

// RunBatch converts every request and returns the results in request order.
// Jobs are submitted one at a time in request order, at most Concurrency of them in flight,
// so output names chosen at admission do not depend on scheduling.
// onStart, if set, is called with each job as soon as it is submitted.
func (p *Pool) RunBatch(ctx context.Context, reqs []pipeline.Request, onStart func(*pipeline.Job)) []*models.JobResult {
	results := make([]*models.JobResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}
	ctx = utils.ContextWithBatchID(ctx, uuid.NewString())
	log := p.log.WithContext(ctx)
	workers := min(p.concurrency, len(reqs))
	log.Info("Batch started", "jobs", len(reqs), "concurrency", workers)

	slots := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, req := range reqs {
		slots <- struct{}{}
		job, res := p.submit(ctx, i, req, onStart)
		if job == nil {
			results[i] = res
			<-slots
			continue
		}
		wg.Add(1)
		go func(i int, job *pipeline.Job) {
			defer wg.Done()
			defer func() { <-slots }()
			results[i] = p.await(job)
		}(i, job)
	}
	wg.Wait()

	sum := Summarize(results)
	log.Info("Batch finished", "succeeded", sum.Succeeded, "failed", sum.Failed, "cancelled", sum.Cancelled)
	log.Debug("Batch metrics", p.metrics.Snapshot().LogAttrs()...)
	return results
}

// Run converts a single request and records its result.
func (p *Pool) Run(ctx context.Context, req pipeline.Request, onStart func(*pipeline.Job)) *models.JobResult {
	job, res := p.submit(ctx, 0, req, onStart)
	if job == nil {
		return res
	}
	return p.await(job)
}

// submit hands req to the pipeline. When no job could be created it returns the failed result instead.
func (p *Pool) submit(ctx context.Context, index int, req pipeline.Request, onStart func(*pipeline.Job)) (*pipeline.Job, *models.JobResult) {
	p.log.WithContext(ctx).Debug("Submitting request", "index", index, "input", req.InputPath)

	job, err := p.submitter.Submit(ctx, req)
	if job == nil {
		ce := models.NewError(models.ErrInvalidInput, req.InputPath, "job was not created", err)
		return nil, &models.JobResult{JobID: req.ID, InputPath: req.InputPath, State: models.JobFailed, Err: ce}
	}
	p.track(1)
	if onStart != nil {
		onStart(job)
	}
	return job, nil
}

func (p *Pool) await(job *pipeline.Job) *models.JobResult {
	defer p.track(-1)
	<-job.Done()
	res := job.Snapshot()
	p.record(res)
	return res
}

func (p *Pool) track(delta int32) {
	active := atomic.AddInt32(&p.activeJobs, delta)
	p.metrics.SetGauge("jobs.active", float64(active))
}

func (p *Pool) record(res *models.JobResult) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.RecordResult(res.Record()); err != nil {
		p.log.Error("Failed to record job result", "job_id", res.JobID, "error", err)
	}
}

// Summary counts batch results by outcome.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Degraded  int `json:"degraded"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Summarize counts results by terminal state.
func Summarize(results []*models.JobResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r == nil {
			continue
		}
		switch r.State {
		case models.JobSucceeded:
			s.Succeeded++
			if r.Degraded {
				s.Degraded++
			}
		case models.JobFailed:
			s.Failed++
		case models.JobCancelled:
			s.Cancelled++
		}
	}
	return s
}
