package pipeline

import (
	"sync"
	"time"

	"github.com/Qwejay/Qconverto/constants"
	"github.com/Qwejay/Qconverto/models"
)

// ProgressStream delivers a job's progress events in order.
// Emit never blocks: when the buffer is full the oldest pending event is dropped.
type ProgressStream struct {
	jobID string
	ch    chan models.ProgressEvent

	mu        sync.Mutex
	last      int
	lastPhase models.Phase
	closed    bool
}

func newProgressStream(jobID string, size int) *ProgressStream {
	if size <= 0 {
		size = constants.ProgressBufferSize
	}
	return &ProgressStream{
		jobID: jobID,
		ch:    make(chan models.ProgressEvent, size),
		last:  -1,
	}
}

// Events returns the receive side. It is closed when the job ends.
func (s *ProgressStream) Events() <-chan models.ProgressEvent {
	return s.ch
}

// Last returns the last delivered value, or 0 before the first event.
func (s *ProgressStream) Last() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last < 0 {
		return 0
	}
	return s.last
}

// Emit sends percent if it moves progress forward or changes phase at the same value.
// It reports whether the event was accepted.
func (s *ProgressStream) Emit(percent int, phase models.Phase) bool {
	percent = min(max(percent, 0), constants.ProgressComplete)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if percent < s.last || (percent == s.last && phase == s.lastPhase) {
		return false
	}
	s.last = percent
	s.lastPhase = phase

	ev := models.ProgressEvent{JobID: s.jobID, Progress: percent, Phase: phase, Time: time.Now()}
	for {
		select {
		case s.ch <- ev:
			return true
		default:
		}
		// full: drop the oldest pending event
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *ProgressStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
