package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// admission bounds admitted jobs (queued or running) with queue slots and
// running jobs with a weighted semaphore.
type admission struct {
	queue    chan struct{}
	running  *semaphore.Weighted
	inflight chan struct{} // mirrors running for Stats
	maxWait  time.Duration
}

func newAdmission(maxInflight, maxQueue int, maxWait time.Duration) *admission {
	if maxQueue < maxInflight {
		maxQueue = maxInflight
	}
	return &admission{
		queue:    make(chan struct{}, maxQueue),
		running:  semaphore.NewWeighted(int64(maxInflight)),
		inflight: make(chan struct{}, maxInflight),
		maxWait:  maxWait,
	}
}

// slot is a reserved queue position. release must be called exactly once
// on every path; extra calls are no-ops.
type slot struct {
	a       *admission
	started bool
	once    sync.Once
}

// reserve takes a queue slot. With wait it blocks up to maxWait; without
// it fails immediately when the queue is full.
func (a *admission) reserve(ctx context.Context, wait bool) (*slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !wait {
		select {
		case a.queue <- struct{}{}:
			return &slot{a: a}, nil
		default:
			return nil, tooBusyError{reason: "queue full"}
		}
	}
	timer := time.NewTimer(a.maxWait)
	defer timer.Stop()
	select {
	case a.queue <- struct{}{}:
		return &slot{a: a}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, tooBusyError{reason: "queue wait exceeded"}
	}
}

// start blocks until the job may run. A positive maxWait bounds the wait
// and reports tooBusy when exceeded.
func (s *slot) start(ctx context.Context, maxWait time.Duration) error {
	wctx := ctx
	if maxWait > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, maxWait)
		defer cancel()
	}
	if err := s.a.running.Acquire(wctx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return tooBusyError{reason: "run wait exceeded"}
	}
	s.started = true
	s.a.inflight <- struct{}{}
	return nil
}

func (s *slot) release() {
	s.once.Do(func() {
		if s.started {
			<-s.a.inflight
			s.a.running.Release(1)
		}
		<-s.a.queue
	})
}

func (a *admission) counts() (inflight, queued int) {
	return len(a.inflight), len(a.queue)
}
