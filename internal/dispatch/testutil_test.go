package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"imaged/internal/conditioning"
	"imaged/internal/job"
	"imaged/internal/params"
	"imaged/pkg/types"
)

// fakeWorker is an in-memory Worker used by tests.
type fakeWorker struct {
	mu       sync.Mutex
	urls     []string
	err      error
	progress []types.Progress
	block    chan struct{} // when set, Generate waits for close or ctx
	started  chan struct{}
	calls    int
	lastJob  job.GenerationJob
	ctxErr   error
}

func newFakeWorker(urls ...string) *fakeWorker {
	return &fakeWorker{urls: urls, started: make(chan struct{}, 16)}
}

func (f *fakeWorker) Generate(ctx context.Context, j job.GenerationJob, onProgress func(types.Progress) error) ([]string, error) {
	f.mu.Lock()
	f.calls++
	f.lastJob = j
	block := f.block
	f.mu.Unlock()
	select {
	case f.started <- struct{}{}:
	default:
	}
	for _, p := range f.progress {
		if onProgress == nil {
			break
		}
		if err := onProgress(p); err != nil {
			return nil, err
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			f.mu.Lock()
			f.ctxErr = ctx.Err()
			f.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.urls, nil
}

func (f *fakeWorker) snapshot() (int, job.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.lastJob, f.ctxErr
}

func (f *fakeWorker) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never started")
	}
}

// fakeWebhook records deliveries.
type fakeWebhook struct {
	mu    sync.Mutex
	calls []delivery
	err   error
	got   chan delivery
}

type delivery struct {
	url string
	res types.JobResult
}

func newFakeWebhook() *fakeWebhook { return &fakeWebhook{got: make(chan delivery, 8)} }

func (w *fakeWebhook) Deliver(_ context.Context, url string, res types.JobResult) error {
	w.mu.Lock()
	w.calls = append(w.calls, delivery{url, res})
	w.mu.Unlock()
	w.got <- delivery{url, res}
	return w.err
}

func (w *fakeWebhook) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

func buildJob(t *testing.T, overrides map[string]any) job.GenerationJob {
	t.Helper()
	j, err := job.Build(params.Default(), overrides)
	require.NoError(t, err)
	return j
}

func conditioned(t *testing.T, imgs ...string) map[string]any {
	t.Helper()
	raw := make([]types.ControlInput, len(imgs))
	for i, img := range imgs {
		raw[i] = types.ControlInput{CnImg: img}
	}
	s, err := conditioning.Validate(raw)
	require.NoError(t, err)
	return map[string]any{job.ConditioningField: s}
}

// lastEvent drains st and returns the final event it delivered.
func lastEvent(t *testing.T, st *Stream) types.StreamEvent {
	t.Helper()
	var last types.StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-st.Events():
			if !ok {
				require.NotEmpty(t, last.Type, "stream closed without events")
				return last
			}
			last = ev
		case <-timeout:
			t.Fatal("stream never closed")
		}
	}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func newTestDispatcher(t *testing.T, w Worker, cfg Config) (*Dispatcher, *MemoryPublisher) {
	t.Helper()
	pub := NewMemoryPublisher()
	cfg.Events = pub
	if cfg.Webhook == nil {
		cfg.Webhook = newFakeWebhook()
	}
	d := New(w, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.Close(ctx)
	})
	return d, pub
}
