package commands

import (
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/Qwejay/Qconverto/internal/pipeline"
	"github.com/Qwejay/Qconverto/models"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
	dimText  = color.New(color.Faint).SprintFunc()
	boldText = color.New(color.Bold).SprintFunc()
)

// stateLabel colors a job state for tables.
func stateLabel(state string, degraded bool) string {
	switch models.JobState(state) {
	case models.JobSucceeded:
		if degraded {
			return warnMark(state + " (degraded)")
		}
		return okMark(state)
	case models.JobFailed:
		return failMark(state)
	case models.JobCancelled:
		return warnMark(state)
	default:
		return dimText(state)
	}
}

func availability(ok bool, detail string) string {
	if ok {
		return okMark("✓ ") + detail
	}
	return failMark("✗ ") + detail
}

// batchProgress renders one bar for a whole batch; every job contributes 100 units.
type batchProgress struct {
	bar *progressbar.ProgressBar
	mu  sync.Mutex
	wg  sync.WaitGroup
}

func newBatchProgress(w io.Writer, jobs int, quiet bool) *batchProgress {
	if quiet || jobs == 0 {
		return &batchProgress{}
	}
	desc := "converting"
	if jobs > 1 {
		desc = "converting " + strconv.Itoa(jobs) + " files"
	}
	bar := progressbar.NewOptions(jobs*100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(!color.NoColor),
	)
	return &batchProgress{bar: bar}
}

// track follows job until its progress stream closes. Jobs that end early still
// count as fully done for the bar.
func (b *batchProgress) track(job *pipeline.Job) {
	if b.bar == nil {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		last := 0
		for ev := range job.Progress() {
			b.add(ev.Progress - last)
			last = ev.Progress
		}
		b.add(100 - last)
	}()
}

func (b *batchProgress) add(n int) {
	if n <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Add(n)
}

func (b *batchProgress) finish() {
	if b.bar == nil {
		return
	}
	b.wg.Wait()
	_ = b.bar.Finish()
}
