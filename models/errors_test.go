package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversionErrorKind(t *testing.T) {
	cause := errors.New("permission denied")
	err := NewError(ErrIO, "/data/in.png", "failed to read header", cause)
	wrapped := fmt.Errorf("classify: %w", err)

	assert.Equal(t, ErrIO, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, ErrIO))
	assert.False(t, IsKind(wrapped, ErrFileNotFound))
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, err.Error(), "/data/in.png")
}

func TestConversionErrorFailures(t *testing.T) {
	err := &ConversionError{
		Kind:     ErrBackendFailure,
		Message:  "all strategies failed",
		Failures: []string{"ffmpeg: not found", "wav-pcm: not a wav file"},
	}

	assert.Equal(t, "backend_failure: all strategies failed: ffmpeg: not found; wav-pcm: not a wav file", err.Error())
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, ErrBackendFailure))
}

func TestJobResultRecord(t *testing.T) {
	res := &JobResult{
		JobID:     "job-1",
		InputPath: "/in/a.wav",
		Category:  CategoryAudio,
		State:     JobFailed,
		Progress:  42,
		Err:       NewError(ErrCancelled, "", "cancelled by caller", nil),
	}

	rec := res.Record()
	assert.Equal(t, "job-1", rec.ID)
	assert.Equal(t, "audio", rec.Category)
	assert.Equal(t, string(ErrCancelled), rec.ErrorKind)
	assert.Nil(t, rec.StartedAt)
	assert.Nil(t, rec.CompletedAt)
}
