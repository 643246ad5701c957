package dispatch

import (
	"context"
	"testing"
	"time"
)

func TestReserve_QueueTimeout(t *testing.T) {
	a := newAdmission(1, 1, 20*time.Millisecond)
	// First reservation occupies the only queue slot
	s, err := a.reserve(context.Background(), true)
	if err != nil {
		t.Fatalf("reserve first: %v", err)
	}
	defer s.release()
	_, err = a.reserve(context.Background(), true)
	if err == nil || !IsTooBusy(err) {
		t.Fatalf("expected tooBusyError, got %v", err)
	}
}

func TestReserve_NoWaitFailsFast(t *testing.T) {
	a := newAdmission(1, 1, time.Hour)
	s, err := a.reserve(context.Background(), false)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	defer s.release()
	start := time.Now()
	if _, err := a.reserve(context.Background(), false); !IsTooBusy(err) {
		t.Fatalf("expected tooBusyError, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatalf("non-waiting reserve blocked")
	}
}

func TestStart_RunTimeout(t *testing.T) {
	a := newAdmission(1, 2, 20*time.Millisecond)
	first, _ := a.reserve(context.Background(), true)
	if err := first.start(context.Background(), 0); err != nil {
		t.Fatalf("start first: %v", err)
	}
	defer first.release()

	second, err := a.reserve(context.Background(), true)
	if err != nil {
		t.Fatalf("reserve second: %v", err)
	}
	defer second.release()
	if err := second.start(context.Background(), 20*time.Millisecond); !IsTooBusy(err) {
		t.Fatalf("expected tooBusyError on run wait, got %v", err)
	}
}

func TestStart_CanceledContext(t *testing.T) {
	a := newAdmission(1, 2, time.Second)
	first, _ := a.reserve(context.Background(), true)
	_ = first.start(context.Background(), 0)
	defer first.release()

	ctx, cancel := context.WithCancel(context.Background())
	second, _ := a.reserve(ctx, true)
	defer second.release()
	cancel()
	if err := second.start(ctx, time.Second); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRelease_Idempotent(t *testing.T) {
	a := newAdmission(2, 4, time.Second)
	s, _ := a.reserve(context.Background(), true)
	if err := s.start(context.Background(), 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	if in, q := a.counts(); in != 1 || q != 1 {
		t.Fatalf("counts = %d,%d; want 1,1", in, q)
	}
	s.release()
	s.release()
	if in, q := a.counts(); in != 0 || q != 0 {
		t.Fatalf("counts after release = %d,%d; want 0,0", in, q)
	}
}

func TestNewAdmission_QueueNotSmallerThanInflight(t *testing.T) {
	a := newAdmission(3, 1, time.Second)
	if cap(a.queue) != 3 {
		t.Fatalf("queue cap = %d; want 3", cap(a.queue))
	}
}
