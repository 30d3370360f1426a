package db

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/models"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tracker, err := New(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Failed to create tracker: %v", err)
	}
	t.Cleanup(func() {
		if err := tracker.Close(); err != nil {
			t.Logf("Failed to close tracker: %v", err)
		}
	})
	return tracker
}

func record(id, state string, created time.Time) *models.JobRecord {
	started := created.Add(time.Second)
	return &models.JobRecord{
		ID:             id,
		InputPath:      "/in/" + id + ".wav",
		OutputPath:     "/out/" + id + ".mp3",
		Category:       constants.CategoryAudio,
		DetectedFormat: "wav",
		Confidence:     constants.ConfidenceSignatureConfirmed,
		TargetExt:      ".mp3",
		State:          state,
		CreatedAt:      created,
		StartedAt:      &started,
	}
}

func TestRecordAndGetJob(t *testing.T) {
	tracker := newTestTracker(t)
	created := time.Now().Add(-time.Minute).Truncate(time.Second)

	rec := record("job-1", constants.JobStateSucceeded, created)
	rec.Progress = 100
	rec.Backend = constants.StrategyWAV
	rec.OutputSize = 2048
	rec.OutputChecksum = "abc123"
	completed := created.Add(5 * time.Second)
	rec.CompletedAt = &completed

	if err := tracker.RecordResult(rec); err != nil {
		t.Fatalf("Failed to record result: %v", err)
	}

	got, err := tracker.GetJobByID("job-1")
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if got.InputPath != rec.InputPath || got.State != rec.State || got.Backend != rec.Backend {
		t.Errorf("Unexpected job row: %+v", got)
	}
	if got.OutputSize != 2048 || got.OutputChecksum != "abc123" || got.Progress != 100 {
		t.Errorf("Output fields not stored: %+v", got)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Fatal("Expected timestamps to be stored")
	}
	if !got.CompletedAt.Equal(completed) {
		t.Errorf("Expected completed_at %v, got %v", completed, *got.CompletedAt)
	}
}

func TestGetJobByIDMissing(t *testing.T) {
	tracker := newTestTracker(t)
	if _, err := tracker.GetJobByID("nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestRecordResultUpsertKeepsRetryCount(t *testing.T) {
	tracker := newTestTracker(t)
	created := time.Now().Add(-time.Hour)

	failed := record("job-2", constants.JobStateFailed, created)
	failed.ErrorKind = string(models.ErrBackendFailure)
	failed.ErrorMessage = "all strategies failed"
	if err := tracker.RecordResult(failed); err != nil {
		t.Fatalf("Failed to record result: %v", err)
	}
	if err := tracker.IncrementRetry("job-2"); err != nil {
		t.Fatalf("Failed to increment retry: %v", err)
	}

	succeeded := record("job-2", constants.JobStateSucceeded, time.Now())
	succeeded.Backend = constants.StrategyWAV
	if err := tracker.RecordResult(succeeded); err != nil {
		t.Fatalf("Failed to update result: %v", err)
	}

	got, err := tracker.GetJobByID("job-2")
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if got.State != constants.JobStateSucceeded {
		t.Errorf("Expected state to be updated, got %s", got.State)
	}
	if got.ErrorKind != "" || got.ErrorMessage != "" {
		t.Errorf("Expected error fields to be cleared, got %q %q", got.ErrorKind, got.ErrorMessage)
	}
	if got.RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", got.RetryCount)
	}
	if got.Backend != constants.StrategyWAV {
		t.Errorf("Expected backend to be updated, got %q", got.Backend)
	}
	if got.CreatedAt.Sub(created).Abs() > time.Second {
		t.Errorf("Expected created_at to be preserved, got %v", got.CreatedAt)
	}
}

func TestRecordResultRequiresID(t *testing.T) {
	tracker := newTestTracker(t)
	if err := tracker.RecordResult(&models.JobRecord{InputPath: "/in/a.wav"}); err == nil {
		t.Error("Expected an error for a record without id")
	}
}

func TestIncrementRetryMissing(t *testing.T) {
	tracker := newTestTracker(t)
	if err := tracker.IncrementRetry("ghost"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
}

func TestListJobs(t *testing.T) {
	tracker := newTestTracker(t)
	base := time.Now().Add(-time.Hour)

	states := []string{
		constants.JobStateSucceeded,
		constants.JobStateFailed,
		constants.JobStateSucceeded,
		constants.JobStateCancelled,
	}
	for i, state := range states {
		id := "job-" + string(rune('a'+i))
		if err := tracker.RecordResult(record(id, state, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Failed to record %s: %v", id, err)
		}
	}

	tests := []struct {
		name    string
		state   string
		limit   int
		wantIDs []string
	}{
		{"all newest first", "", 0, []string{"job-d", "job-c", "job-b", "job-a"}},
		{"limited", "", 2, []string{"job-d", "job-c"}},
		{"by state", constants.JobStateSucceeded, 10, []string{"job-c", "job-a"}},
		{"no match", constants.JobStateRunning, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := tracker.ListJobs(tt.state, tt.limit)
			if err != nil {
				t.Fatalf("ListJobs failed: %v", err)
			}
			if len(jobs) != len(tt.wantIDs) {
				t.Fatalf("Expected %d jobs, got %d", len(tt.wantIDs), len(jobs))
			}
			for i, id := range tt.wantIDs {
				if jobs[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, jobs[i].ID)
				}
			}
		})
	}

	retryable, err := tracker.GetRetryable(0)
	if err != nil {
		t.Fatalf("GetRetryable failed: %v", err)
	}
	if len(retryable) != 2 || retryable[0].ID != "job-b" || retryable[1].ID != "job-d" {
		t.Errorf("Expected failed and cancelled jobs oldest first, got %v", retryable)
	}
}

func TestGetJobStats(t *testing.T) {
	tracker := newTestTracker(t)
	now := time.Now()

	degraded := record("job-1", constants.JobStateSucceeded, now)
	degraded.Degraded = true
	degraded.Backend = constants.StrategyByteCopy
	failed := record("job-2", constants.JobStateFailed, now)
	clean := record("job-3", constants.JobStateSucceeded, now)
	clean.Backend = constants.StrategyFFmpeg
	again := record("job-4", constants.JobStateSucceeded, now)
	again.Backend = constants.StrategyFFmpeg

	for _, rec := range []*models.JobRecord{degraded, failed, clean, again} {
		if err := tracker.RecordResult(rec); err != nil {
			t.Fatalf("Failed to record %s: %v", rec.ID, err)
		}
	}

	stats, err := tracker.GetJobStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	expected := map[string]int{
		constants.JobStateSucceeded: 3,
		constants.JobStateFailed:    1,
		"degraded":                  1,
		"total":                     4,
	}
	for key, want := range expected {
		if stats[key] != want {
			t.Errorf("stats[%s] = %d, want %d", key, stats[key], want)
		}
	}

	backends, err := tracker.BackendStats()
	if err != nil {
		t.Fatalf("Failed to get backend stats: %v", err)
	}
	if len(backends) != 2 {
		t.Fatalf("Expected 2 backends, got %v", backends)
	}
	if backends[constants.StrategyFFmpeg]["served"] != 2 || backends[constants.StrategyFFmpeg]["degraded"] != 0 {
		t.Errorf("Unexpected ffmpeg stats: %v", backends[constants.StrategyFFmpeg])
	}
	if backends[constants.StrategyByteCopy]["degraded"] != 1 {
		t.Errorf("Expected 1 degraded byte-copy job, got %v", backends[constants.StrategyByteCopy])
	}
}

func TestInMemoryDatabase(t *testing.T) {
	tracker, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	defer func() {
		if err := tracker.Close(); err != nil {
			t.Logf("Failed to close tracker: %v", err)
		}
	}()

	if err := tracker.RecordResult(record("mem", constants.JobStatePending, time.Now())); err != nil {
		t.Fatalf("Failed to record: %v", err)
	}
}
