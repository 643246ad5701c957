package dispatch

import "imaged/internal/job"

// Mode is the delivery mode selected for a submission.
type Mode int

const (
	// ModeSync blocks the caller until the worker finishes.
	ModeSync Mode = iota
	// ModeAsync returns a handle immediately; the result is delivered by
	// webhook or polling.
	ModeAsync
	// ModeStream returns a live sequence of progress events.
	ModeStream
)

func (m Mode) String() string {
	switch m {
	case ModeSync:
		return "sync"
	case ModeAsync:
		return "async"
	case ModeStream:
		return "stream"
	default:
		return "unknown"
	}
}

// ResolveMode selects exactly one mode from the job's delivery flags.
// stream_output wins over async_process; with neither set the job runs
// synchronously.
func ResolveMode(j job.GenerationJob) Mode {
	switch {
	case j.StreamOutput:
		return ModeStream
	case j.AsyncProcess:
		return ModeAsync
	default:
		return ModeSync
	}
}
