package types

import "time"

// JobStatus is the lifecycle state of a submitted job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

// JobResult is the outcome of a generation job. It is returned inline for
// synchronous requests, by the job polling endpoint and as webhook payload.
type JobResult struct {
	// example: 4f0c2a8e-6a55-4d8b-9a55-2c5a1f1f3c11
	JobID string `json:"job_id" example:"4f0c2a8e-6a55-4d8b-9a55-2c5a1f1f3c11"`
	// example: completed
	Status JobStatus `json:"job_status" example:"completed"`
	// Artifact references (URLs) produced by the worker.
	// example: ["http://worker:8888/files/2024-01-01/a.png"]
	Result []string `json:"result"`
	// Failure reason when job_status is failed.
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Progress is an intermediate update reported by the worker.
type Progress struct {
	// Completion percentage in [0,100].
	Percentage int    `json:"percentage"`
	Message    string `json:"message,omitempty"`
	// Optional base64-encoded preview image chunk.
	Preview string `json:"preview,omitempty"`
}

// StreamEventType discriminates NDJSON stream lines.
type StreamEventType string

const (
	EventProgress StreamEventType = "progress"
	EventDone     StreamEventType = "done"
	EventError    StreamEventType = "error"
)

// StreamEvent is one line of a streaming response. A stream carries any number
// of progress events followed by exactly one done or error event.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	JobID    string          `json:"job_id"`
	Progress *Progress       `json:"progress,omitempty"`
	Result   *JobResult      `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}
