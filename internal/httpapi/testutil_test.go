package httpapi

import (
	"context"
	"testing"

	"imaged/internal/dispatch"
	"imaged/internal/gateway"
	"imaged/internal/job"
	"imaged/internal/params"
	"imaged/pkg/types"
)

// mockService returns canned answers and records the last request.
type mockService struct {
	out      dispatch.Outcome
	err      error
	job      types.JobResult
	jobErr   error
	readyErr error
	status   types.StatusResponse
	got      gateway.Request
	canceled string
}

func (m *mockService) Generate(_ context.Context, req gateway.Request) (dispatch.Outcome, error) {
	m.got = req
	return m.out, m.err
}

func (m *mockService) Job(_ context.Context, id string) (types.JobResult, error) {
	if m.jobErr != nil {
		return types.JobResult{}, m.jobErr
	}
	r := m.job
	r.JobID = id
	return r, nil
}

func (m *mockService) CancelJob(_ context.Context, id string) error {
	m.canceled = id
	return m.jobErr
}

func (m *mockService) Defaults() params.Template { return params.Default() }

func (m *mockService) Status(ready bool) types.StatusResponse {
	s := m.status
	s.State = "ready"
	if !ready {
		s.State = "degraded"
	}
	return s
}

func (m *mockService) Ready(context.Context) error { return m.readyErr }

// progressWorker emits fixed progress steps then returns urls.
type progressWorker struct {
	steps []int
	urls  []string
	err   error
}

func (w progressWorker) Generate(_ context.Context, _ job.GenerationJob, onProgress func(types.Progress) error) ([]string, error) {
	for _, s := range w.steps {
		if onProgress != nil {
			if err := onProgress(types.Progress{Percentage: s}); err != nil {
				return nil, err
			}
		}
	}
	return w.urls, w.err
}

// newGateway wires a real gateway over an in-memory dispatcher.
func newGateway(t *testing.T, w dispatch.Worker) *gateway.Gateway {
	t.Helper()
	d := dispatch.New(w, dispatch.Config{StreamBuffer: 64})
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	g, err := gateway.New(gateway.Options{Template: params.Default(), Dispatcher: d})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	return g
}

type blockingWorker struct{ block chan struct{} }

func (w blockingWorker) Generate(ctx context.Context, _ job.GenerationJob, _ func(types.Progress) error) ([]string, error) {
	select {
	case <-w.block:
		return []string{"u"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func mustJob(t *testing.T, overrides map[string]any) job.GenerationJob {
	t.Helper()
	j, err := job.Build(params.Default(), overrides)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return j
}
