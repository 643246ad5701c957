package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"imaged/pkg/types"
)

// DropPolicy decides which progress event is discarded when a stream
// consumer falls behind. Terminal events are never dropped.
type DropPolicy int

const (
	// DropNewest discards the incoming event.
	DropNewest DropPolicy = iota
	// DropOldest discards the oldest buffered event to make room.
	DropOldest
)

func (p DropPolicy) String() string {
	if p == DropOldest {
		return "drop_oldest"
	}
	return "drop_newest"
}

// ParseDropPolicy maps a config value to a DropPolicy.
func ParseDropPolicy(s string) (DropPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop_newest":
		return DropNewest, nil
	case "drop_oldest":
		return DropOldest, nil
	default:
		return DropNewest, fmt.Errorf("unknown stream drop policy %q", s)
	}
}

// Stream is the live event sequence of a streaming job. It yields progress
// events followed by exactly one done or error event, then the channel is
// closed. A Stream cannot be restarted.
type Stream struct {
	jobID   string
	events  chan types.StreamEvent
	cancel  context.CancelFunc
	policy  DropPolicy
	dropped atomic.Int64
	once    sync.Once
	onDrop  func()
}

func newStream(jobID string, buffer int, policy DropPolicy, cancel context.CancelFunc) *Stream {
	if buffer <= 0 {
		buffer = 1
	}
	return &Stream{
		jobID:  jobID,
		events: make(chan types.StreamEvent, buffer),
		cancel: cancel,
		policy: policy,
	}
}

// JobID identifies the job behind the stream.
func (s *Stream) JobID() string { return s.jobID }

// Events returns the event channel. It is closed after the terminal event.
func (s *Stream) Events() <-chan types.StreamEvent { return s.events }

// Close abandons the stream and cancels the job if it is still running.
// It is safe to call more than once.
func (s *Stream) Close() { s.once.Do(s.cancel) }

// Dropped returns how many progress events were discarded.
func (s *Stream) Dropped() int64 { return s.dropped.Load() }

// offer enqueues a progress event without ever blocking the producer.
func (s *Stream) offer(ev types.StreamEvent) {
	select {
	case s.events <- ev:
		return
	default:
	}
	if s.policy == DropOldest {
		select {
		case <-s.events:
			s.markDropped()
		default:
		}
		select {
		case s.events <- ev:
			return
		default:
		}
	}
	s.markDropped()
}

func (s *Stream) markDropped() {
	s.dropped.Add(1)
	if s.onDrop != nil {
		s.onDrop()
	}
}

// finish delivers the terminal event and closes the channel. It waits for
// buffer space until ctx is done; after that it evicts buffered progress
// events so the terminal event is always the last one queued.
func (s *Stream) finish(ctx context.Context, ev types.StreamEvent) {
	defer close(s.events)
	select {
	case s.events <- ev:
		return
	default:
	}
	select {
	case s.events <- ev:
		return
	case <-ctx.Done():
	}
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case <-s.events:
			s.markDropped()
		default:
		}
	}
}
