package dispatch

import (
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dispatcher closed")

// GenerationFailedError wraps a worker-side failure.
type GenerationFailedError struct {
	JobID string
	Cause error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generation failed (job %s): %v", e.JobID, e.Cause)
}

func (e *GenerationFailedError) Unwrap() error { return e.Cause }

// IsGenerationFailed reports whether err is (or wraps) a worker failure.
func IsGenerationFailed(err error) bool {
	var e *GenerationFailedError
	return errors.As(err, &e)
}

// TimeoutError signals a synchronous job that exceeded the configured bound.
type TimeoutError struct {
	JobID string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("dispatch timeout (job %s) after %s", e.JobID, e.After)
}

// IsDispatchTimeout reports whether err is (or wraps) a TimeoutError.
func IsDispatchTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// tooBusyError signals admission overflow or wait timeout for 429 mapping.
type tooBusyError struct{ reason string }

func (e tooBusyError) Error() string { return "too busy: " + e.reason }

// IsTooBusy reports whether err indicates backpressure.
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// jobNotFoundError signals an unknown or expired job handle.
type jobNotFoundError struct{ id string }

func (e jobNotFoundError) Error() string { return "job not found: " + e.id }

// ErrJobNotFound returns the error reported for an unknown job id.
func ErrJobNotFound(id string) error { return jobNotFoundError{id: id} }

// IsJobNotFound reports whether err indicates an unknown job id.
func IsJobNotFound(err error) bool {
	var e jobNotFoundError
	return errors.As(err, &e)
}
