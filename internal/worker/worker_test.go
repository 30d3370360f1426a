package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Qwejay/Qconverto/internal/backend"
	"github.com/Qwejay/Qconverto/internal/pipeline"
	"github.com/Qwejay/Qconverto/internal/workspace"
	"github.com/Qwejay/Qconverto/models"
	"github.com/Qwejay/Qconverto/utils"
)

const wavHeader = "RIFF\x24\x08\x00\x00WAVEfmt \x10\x00\x00\x00"

// trackingStrategy copies the input and records the highest number of concurrent attempts.
type trackingStrategy struct {
	current int32
	peak    int32
}

func (s *trackingStrategy) Name() string       { return "tracking" }
func (s *trackingStrategy) Kind() backend.Kind { return backend.KindLibrary }

func (s *trackingStrategy) Attempt(_ context.Context, req backend.Request, progress backend.ProgressFunc) (backend.Outcome, error) {
	n := atomic.AddInt32(&s.current, 1)
	defer atomic.AddInt32(&s.current, -1)
	for {
		peak := atomic.LoadInt32(&s.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&s.peak, peak, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	progress(100)
	return backend.Outcome{}, utils.CopyFile(req.InputPath, req.OutputPath)
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []*models.JobRecord
	err     error
}

func (r *memoryRecorder) RecordResult(rec *models.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

func newTestPipeline(t *testing.T, s backend.Strategy) *pipeline.Pipeline {
	t.Helper()
	reg, err := backend.Build(
		map[models.Category][]string{models.CategoryAudio: {s.Name()}},
		map[string]backend.Strategy{s.Name(): s},
	)
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	ws, err := workspace.New(filepath.Join(t.TempDir(), "work"), 0)
	if err != nil {
		t.Fatalf("Failed to create workspace: %v", err)
	}
	p, err := pipeline.New(pipeline.Options{Registry: reg, Workspace: ws})
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}
	return p
}

func writeInputs(t *testing.T, n int) []pipeline.Request {
	t.Helper()
	dir := t.TempDir()
	reqs := make([]pipeline.Request, 0, n)
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, "track"+string(rune('a'+i))+".wav")
		if err := os.WriteFile(path, []byte(wavHeader), 0o600); err != nil {
			t.Fatalf("Failed to write input: %v", err)
		}
		reqs = append(reqs, pipeline.Request{InputPath: path, TargetExt: ".mp3"})
	}
	return reqs
}

func TestRunBatchBoundsConcurrency(t *testing.T) {
	strategy := &trackingStrategy{}
	p := newTestPipeline(t, strategy)
	rec := &memoryRecorder{}
	metrics := utils.NewMetrics()
	pool := New(p, rec, 2, metrics)

	reqs := writeInputs(t, 6)
	var started int32
	results := pool.RunBatch(context.Background(), reqs, func(*pipeline.Job) {
		atomic.AddInt32(&started, 1)
	})

	if len(results) != len(reqs) {
		t.Fatalf("Expected %d results, got %d", len(reqs), len(results))
	}
	for i, res := range results {
		if res.InputPath != reqs[i].InputPath {
			t.Errorf("result %d out of order: %s", i, res.InputPath)
		}
		if res.State != models.JobSucceeded {
			t.Errorf("result %d: expected succeeded, got %s (%v)", i, res.State, res.Err)
		}
	}
	if peak := atomic.LoadInt32(&strategy.peak); peak > 2 {
		t.Errorf("Expected at most 2 concurrent jobs, saw %d", peak)
	}
	if started != 6 {
		t.Errorf("Expected onStart for every job, got %d", started)
	}
	if len(rec.records) != 6 {
		t.Errorf("Expected 6 recorded results, got %d", len(rec.records))
	}
	if pool.ActiveJobs() != 0 || metrics.GetGauge("jobs.active") != 0 {
		t.Errorf("Expected no active jobs after the batch")
	}
}

func TestRunBatchSameStemOutputsAreDeterministic(t *testing.T) {
	for round := 0; round < 5; round++ {
		dir := t.TempDir()
		wav := filepath.Join(dir, "take.wav")
		flac := filepath.Join(dir, "take.flac")
		if err := os.WriteFile(wav, []byte(wavHeader), 0o600); err != nil {
			t.Fatalf("Failed to write input: %v", err)
		}
		if err := os.WriteFile(flac, []byte("fLaC\x00\x00\x00\x22"), 0o600); err != nil {
			t.Fatalf("Failed to write input: %v", err)
		}

		pool := New(newTestPipeline(t, &trackingStrategy{}), nil, 2, nil)
		results := pool.RunBatch(context.Background(), []pipeline.Request{
			{InputPath: wav, TargetExt: ".mp3"},
			{InputPath: flac, TargetExt: ".mp3"},
		}, nil)

		want := []string{filepath.Join(dir, "take.mp3"), filepath.Join(dir, "take_flac.mp3")}
		for i, res := range results {
			if res.State != models.JobSucceeded {
				t.Fatalf("round %d result %d: expected succeeded, got %s (%v)", round, i, res.State, res.Err)
			}
			if res.OutputPath != want[i] {
				t.Errorf("round %d result %d: output = %s, want %s", round, i, res.OutputPath, want[i])
			}
		}
		data, err := os.ReadFile(want[0])
		if err != nil || string(data) != wavHeader {
			t.Errorf("round %d: take.mp3 should hold the wav input, got %q (%v)", round, data, err)
		}
	}
}

func TestRunBatchEmpty(t *testing.T) {
	pool := New(newTestPipeline(t, &trackingStrategy{}), nil, 0, nil)
	if pool.Concurrency() < 1 {
		t.Errorf("Expected default concurrency >= 1, got %d", pool.Concurrency())
	}
	if results := pool.RunBatch(context.Background(), nil, nil); len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}

func TestRunRecordsFailures(t *testing.T) {
	rec := &memoryRecorder{err: errors.New("disk full")}
	pool := New(newTestPipeline(t, &trackingStrategy{}), rec, 1, nil)

	res := pool.Run(context.Background(), pipeline.Request{InputPath: filepath.Join(t.TempDir(), "missing.wav")}, nil)
	if res.State != models.JobFailed || res.ErrorKind() != models.ErrFileNotFound {
		t.Errorf("Expected file-not-found failure, got %s %s", res.State, res.ErrorKind())
	}
	if len(rec.records) != 1 || rec.records[0].ErrorKind != string(models.ErrFileNotFound) {
		t.Errorf("Expected the failure to be recorded, got %+v", rec.records)
	}
}

func TestSummarize(t *testing.T) {
	results := []*models.JobResult{
		{State: models.JobSucceeded},
		{State: models.JobSucceeded, Degraded: true},
		{State: models.JobFailed},
		{State: models.JobCancelled},
		nil,
	}
	got := Summarize(results)
	want := Summary{Total: 5, Succeeded: 2, Degraded: 1, Failed: 1, Cancelled: 1}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
}
