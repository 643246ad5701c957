package dispatch

import (
	"sync"

	"github.com/rs/zerolog"
)

// Event names published by the dispatcher.
const (
	EventSubmitted        = "job_submitted"
	EventStarted          = "job_started"
	EventCompleted        = "job_completed"
	EventFailed           = "job_failed"
	EventWebhookDelivered = "webhook_delivered"
	EventWebhookFailed    = "webhook_failed"
	EventStreamDropped    = "stream_dropped"
)

// Event is a job lifecycle event: name, job id, mode and optional fields.
type Event struct {
	Name   string
	JobID  string
	Mode   Mode
	Fields map[string]any
}

// EventPublisher receives events from the dispatcher. Implementations must
// be non-blocking and must not panic.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// LogPublisher writes events to a zerolog logger.
type LogPublisher struct{ log zerolog.Logger }

func NewLogPublisher(l zerolog.Logger) LogPublisher { return LogPublisher{log: l} }

func (p LogPublisher) Publish(e Event) {
	lvl := zerolog.InfoLevel
	switch e.Name {
	case EventFailed, EventWebhookFailed:
		lvl = zerolog.WarnLevel
	case EventStreamDropped:
		lvl = zerolog.DebugLevel
	}
	ev := p.log.WithLevel(lvl).Str("event", e.Name).Str("job_id", e.JobID).Str("mode", e.Mode.String())
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("dispatch")
}

// MemoryPublisher stores events in memory, for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the event names for jobID, in publish order.
func (p *MemoryPublisher) Names(jobID string) []string {
	var out []string
	for _, e := range p.Events() {
		if e.JobID == jobID {
			out = append(out, e.Name)
		}
	}
	return out
}
