// Package dispatch submits generation jobs to the worker under exactly one
// delivery mode (sync, async, stream) and returns the mode's result shape.
//
// State machine per submission:
//
//	Pending -> {SyncWaiting, AsyncQueued, Streaming} -> {Completed, Failed}
//
// Worker errors are never retried here and never swallowed: sync callers get
// them as the returned error, async callers through the job record and
// webhook, stream consumers as the terminal error event.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"imaged/internal/job"
	"imaged/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxInflight    = 1
	defaultMaxQueueDepth  = 32
	defaultMaxWait        = 30 * time.Second
	defaultStreamBuffer   = 16
	defaultWebhookTimeout = 10 * time.Second
)

var tracer = otel.Tracer("imaged/dispatch")

// Config holds the dispatcher tunables.
type Config struct {
	// SyncTimeout bounds a synchronous job; 0 disables the bound.
	SyncTimeout time.Duration
	// MaxInflight is the number of jobs the worker runs at once.
	MaxInflight int
	// MaxQueueDepth bounds admitted jobs, running ones included.
	MaxQueueDepth int
	// MaxWait bounds how long a synchronous caller waits for admission.
	MaxWait time.Duration
	// StreamBuffer is the per-stream event buffer.
	StreamBuffer int
	DropPolicy   DropPolicy
	// WebhookTimeout bounds a single webhook delivery.
	WebhookTimeout time.Duration

	Store   HandleStore
	Webhook WebhookSender
	Events  EventPublisher
}

// Outcome is the mode-specific result of Submit. Exactly one of Result,
// Handle and Stream is set, matching Mode.
type Outcome struct {
	Mode   Mode
	Result *types.JobResult
	Handle *types.JobHandle
	Stream *Stream
}

// Dispatcher submits jobs to a Worker.
type Dispatcher struct {
	worker Worker
	cfg    Config
	adm    *admission
	store  HandleStore
	hook   WebhookSender
	events EventPublisher

	// base is canceled by Close; async jobs run under it.
	base       context.Context
	cancelBase context.CancelFunc

	mu        sync.Mutex
	closed    bool
	cancels   map[string]context.CancelFunc
	async     int // running async jobs, a subset of cancels
	submitted map[Mode]uint64
	wg        sync.WaitGroup
	startTime time.Time
	now       func() time.Time
}

// New constructs a Dispatcher, applying defaults to unset Config fields.
func New(w Worker, cfg Config) *Dispatcher {
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = defaultMaxInflight
	}
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = defaultMaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.StreamBuffer <= 0 {
		cfg.StreamBuffer = defaultStreamBuffer
	}
	if cfg.WebhookTimeout <= 0 {
		cfg.WebhookTimeout = defaultWebhookTimeout
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore(0)
	}
	if cfg.Webhook == nil {
		cfg.Webhook = NewWebhookClient(cfg.WebhookTimeout)
	}
	if cfg.Events == nil {
		cfg.Events = noopPublisher{}
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		worker:     w,
		cfg:        cfg,
		adm:        newAdmission(cfg.MaxInflight, cfg.MaxQueueDepth, cfg.MaxWait),
		store:      cfg.Store,
		hook:       cfg.Webhook,
		events:     cfg.Events,
		base:       base,
		cancelBase: cancel,
		cancels:    make(map[string]context.CancelFunc),
		submitted:  make(map[Mode]uint64),
		startTime:  time.Now(),
		now:        time.Now,
	}
}

// Submit dispatches j under the mode selected by ResolveMode. The
// dispatcher takes a private copy of j and keeps nothing after the job
// finishes.
func (d *Dispatcher) Submit(ctx context.Context, j job.GenerationJob) (Outcome, error) {
	mode := ResolveMode(j)
	id := uuid.NewString()
	ctx, span := tracer.Start(ctx, "dispatch.Submit", trace.WithAttributes(
		attribute.String("job.id", id),
		attribute.String("job.mode", mode.String()),
		attribute.Int("job.conditioning", j.ControlNetImage.Len()),
	))
	defer span.End()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Outcome{}, ErrClosed
	}
	d.submitted[mode]++
	d.mu.Unlock()

	j = j.Clone()
	d.publish(EventSubmitted, id, mode, nil)

	var (
		out Outcome
		err error
	)
	switch mode {
	case ModeStream:
		out, err = d.submitStream(ctx, id, j)
	case ModeAsync:
		out, err = d.submitAsync(ctx, id, j)
	default:
		out, err = d.submitSync(ctx, id, j)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (d *Dispatcher) submitSync(ctx context.Context, id string, j job.GenerationJob) (Outcome, error) {
	s, err := d.adm.reserve(ctx, true)
	if err != nil {
		return Outcome{}, err
	}
	defer s.release()
	if err := s.start(ctx, d.cfg.MaxWait); err != nil {
		return Outcome{}, err
	}

	wctx := ctx
	if d.cfg.SyncTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, d.cfg.SyncTimeout)
		defer cancel()
	}
	created := d.now()
	urls, err := d.run(wctx, id, ModeSync, j, nil)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			// caller went away; report its cancellation, not a worker failure
			err = ctx.Err()
		case errors.Is(wctx.Err(), context.DeadlineExceeded):
			err = &TimeoutError{JobID: id, After: d.cfg.SyncTimeout}
		}
		d.record(ModeSync, "failed")
		d.publish(EventFailed, id, ModeSync, map[string]any{"error": err.Error()})
		return Outcome{}, err
	}
	d.record(ModeSync, "completed")
	d.publish(EventCompleted, id, ModeSync, map[string]any{"artifacts": len(urls)})
	res := d.result(id, created, urls, nil)
	return Outcome{Mode: ModeSync, Result: &res}, nil
}

func (d *Dispatcher) submitAsync(ctx context.Context, id string, j job.GenerationJob) (Outcome, error) {
	s, err := d.adm.reserve(ctx, false)
	if err != nil {
		return Outcome{}, err
	}
	created := d.now()
	queued := types.JobResult{JobID: id, Status: types.JobQueued, Result: []string{}, CreatedAt: created, UpdatedAt: created}
	if err := d.store.Put(ctx, queued); err != nil {
		s.release()
		return Outcome{}, err
	}

	jctx, cancel := context.WithCancel(d.base)
	if !d.register(id, ModeAsync, cancel) {
		cancel()
		s.release()
		_ = d.store.Delete(context.Background(), id)
		return Outcome{}, ErrClosed
	}
	asyncPending.Inc()
	link := trace.LinkFromContext(ctx)
	webhook := j.WebhookURL

	go func() {
		defer d.wg.Done()
		defer asyncPending.Dec()
		defer d.unregister(id, ModeAsync)
		defer cancel()
		defer s.release()

		jctx, span := tracer.Start(jctx, "dispatch.async", trace.WithLinks(link),
			trace.WithAttributes(attribute.String("job.id", id)))
		defer span.End()

		var (
			urls []string
			err  error
		)
		if err = s.start(jctx, 0); err == nil {
			d.update(id, created, types.JobRunning, nil, nil)
			urls, err = d.run(jctx, id, ModeAsync, j, nil)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			d.record(ModeAsync, "failed")
			d.publish(EventFailed, id, ModeAsync, map[string]any{"error": err.Error()})
		} else {
			d.record(ModeAsync, "completed")
			d.publish(EventCompleted, id, ModeAsync, map[string]any{"artifacts": len(urls)})
		}
		res := d.result(id, created, urls, err)
		d.update(id, created, res.Status, urls, err)
		if webhook != "" {
			d.deliver(webhook, res)
		}
	}()

	return Outcome{Mode: ModeAsync, Handle: &types.JobHandle{
		JobID:      id,
		Status:     types.JobQueued,
		StatusURL:  "/v1/jobs/" + id,
		WebhookURL: webhook,
	}}, nil
}

func (d *Dispatcher) submitStream(ctx context.Context, id string, j job.GenerationJob) (Outcome, error) {
	s, err := d.adm.reserve(ctx, false)
	if err != nil {
		return Outcome{}, err
	}
	// The stream lives as long as its consumer: derived from ctx, and also
	// ended by Close.
	sctx, cancel := context.WithCancel(ctx)
	if !d.register(id, ModeStream, cancel) {
		cancel()
		s.release()
		return Outcome{}, ErrClosed
	}
	st := newStream(id, d.cfg.StreamBuffer, d.cfg.DropPolicy, cancel)
	st.onDrop = func() { streamDropped.Inc() }
	created := d.now()

	go func() {
		defer d.wg.Done()
		defer d.unregister(id, ModeStream)
		defer cancel()

		var (
			urls []string
			err  error
		)
		if err = s.start(sctx, 0); err == nil {
			onProgress := func(p types.Progress) error {
				pp := p
				st.offer(types.StreamEvent{Type: types.EventProgress, JobID: id, Progress: &pp})
				return nil
			}
			urls, err = d.run(sctx, id, ModeStream, j, onProgress)
		}
		// Free capacity before waiting on the consumer for the terminal event.
		s.release()

		if n := st.Dropped(); n > 0 {
			d.publish(EventStreamDropped, id, ModeStream, map[string]any{"dropped": n})
		}
		res := d.result(id, created, urls, err)
		if err != nil {
			d.record(ModeStream, "failed")
			d.publish(EventFailed, id, ModeStream, map[string]any{"error": err.Error()})
			st.finish(sctx, types.StreamEvent{Type: types.EventError, JobID: id, Result: &res, Error: res.Error})
			return
		}
		d.record(ModeStream, "completed")
		d.publish(EventCompleted, id, ModeStream, map[string]any{"artifacts": len(urls)})
		st.finish(sctx, types.StreamEvent{Type: types.EventDone, JobID: id, Result: &res})
	}()

	return Outcome{Mode: ModeStream, Stream: st}, nil
}

// run calls the worker and normalizes its outcome. Success requires at
// least one artifact; anything else is a GenerationFailedError, except
// cancellation, which is returned as is.
func (d *Dispatcher) run(ctx context.Context, id string, mode Mode, j job.GenerationJob, onProgress func(types.Progress) error) ([]string, error) {
	ctx, span := tracer.Start(ctx, "worker.Generate", trace.WithAttributes(attribute.String("job.id", id)))
	defer span.End()
	d.publish(EventStarted, id, mode, nil)
	start := time.Now()
	urls, err := d.worker.Generate(ctx, j, onProgress)
	jobDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
	if err == nil && len(urls) == 0 {
		err = errors.New("worker returned no artifacts")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &GenerationFailedError{JobID: id, Cause: err}
	}
	return urls, nil
}

func (d *Dispatcher) result(id string, created time.Time, urls []string, err error) types.JobResult {
	res := types.JobResult{
		JobID:     id,
		Status:    types.JobCompleted,
		Result:    append([]string{}, urls...),
		CreatedAt: created,
		UpdatedAt: d.now(),
	}
	if err != nil {
		res.Status = types.JobFailed
		res.Result = []string{}
		res.Error = err.Error()
	}
	return res
}

func (d *Dispatcher) update(id string, created time.Time, status types.JobStatus, urls []string, err error) {
	rec := d.result(id, created, urls, err)
	rec.Status = status
	// Store writes must outlive job cancellation.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if perr := d.store.Put(ctx, rec); perr != nil {
		d.publish(EventFailed, id, ModeAsync, map[string]any{"store_error": perr.Error()})
	}
}

func (d *Dispatcher) deliver(url string, res types.JobResult) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WebhookTimeout)
	defer cancel()
	if err := d.hook.Deliver(ctx, url, res); err != nil {
		webhookTotal.WithLabelValues("failed").Inc()
		d.publish(EventWebhookFailed, res.JobID, ModeAsync, map[string]any{"url": url, "error": err.Error()})
		return
	}
	webhookTotal.WithLabelValues("delivered").Inc()
	d.publish(EventWebhookDelivered, res.JobID, ModeAsync, map[string]any{"url": url})
}

// Lookup returns the current record of an asynchronous job.
func (d *Dispatcher) Lookup(ctx context.Context, id string) (types.JobResult, error) {
	return d.store.Get(ctx, id)
}

// Cancel stops a running asynchronous or streaming job. The job finishes as
// failed with a cancellation error. Canceling a finished job is a no-op.
func (d *Dispatcher) Cancel(ctx context.Context, id string) error {
	d.mu.Lock()
	cancel, ok := d.cancels[id]
	d.mu.Unlock()
	if ok {
		cancel()
		return nil
	}
	_, err := d.store.Get(ctx, id)
	return err
}

// Close stops accepting jobs, cancels running background jobs and waits for
// them to release their resources or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	// Streams derive from their caller's context, not base.
	for _, cancel := range d.cancels {
		cancel()
	}
	d.mu.Unlock()
	d.cancelBase()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// register records a cancel func for a background job and counts it in the
// wait group. It fails once the dispatcher is closed.
func (d *Dispatcher) register(id string, mode Mode, cancel context.CancelFunc) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.cancels[id] = cancel
	if mode == ModeAsync {
		d.async++
	}
	d.wg.Add(1)
	return true
}

func (d *Dispatcher) unregister(id string, mode Mode) {
	d.mu.Lock()
	delete(d.cancels, id)
	if mode == ModeAsync {
		d.async--
	}
	d.mu.Unlock()
}

func (d *Dispatcher) record(mode Mode, outcome string) {
	jobsTotal.WithLabelValues(mode.String(), outcome).Inc()
}

func (d *Dispatcher) publish(name, id string, mode Mode, fields map[string]any) {
	d.events.Publish(Event{Name: name, JobID: id, Mode: mode, Fields: fields})
}

// Stats summarizes dispatcher load for status reporting.
type Stats struct {
	Inflight      int
	MaxInflight   int
	Queued        int
	MaxQueueDepth int
	// Background counts unfinished async and stream jobs.
	Background int
	// Async counts unfinished async jobs only.
	Async           int
	SubmittedByMode map[string]uint64
	Uptime          time.Duration
}

// Stats returns a point-in-time view of the dispatcher.
func (d *Dispatcher) Stats() Stats {
	inflight, queued := d.adm.counts()
	d.mu.Lock()
	defer d.mu.Unlock()
	byMode := make(map[string]uint64, len(d.submitted))
	for m, n := range d.submitted {
		byMode[m.String()] = n
	}
	return Stats{
		Inflight:        inflight,
		MaxInflight:     d.cfg.MaxInflight,
		Queued:          queued,
		MaxQueueDepth:   cap(d.adm.queue),
		Background:      len(d.cancels),
		Async:           d.async,
		SubmittedByMode: byMode,
		Uptime:          time.Since(d.startTime),
	}
}
