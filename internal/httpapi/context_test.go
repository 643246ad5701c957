package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"imaged/pkg/types"
)

func TestSetBaseContext_NilResetsToBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	SetBaseContext(ctx)
	cancel()
	// nolint:staticcheck // SA1012: nil selects the Background fallback
	SetBaseContext(nil)
	if serverBaseCtx.Err() != nil {
		t.Fatalf("base context should be live after reset")
	}
}

func TestJoinContexts_CancelsWhenEitherDone(t *testing.T) {
	for _, first := range []bool{true, false} {
		a, ac := context.WithCancel(context.Background())
		b, bc := context.WithCancel(context.Background())
		j, cancelJ := joinContexts(a, b)
		if first {
			ac()
		} else {
			bc()
		}
		select {
		case <-j.Done():
		case <-time.After(500 * time.Millisecond):
			t.Fatal("joined context did not cancel after a parent canceled")
		}
		cancelJ()
		ac()
		bc()
	}
}

type ctxKey struct{}

func TestJoinContexts_KeepsRequestValuesAndCause(t *testing.T) {
	base, stop := context.WithCancel(context.Background())
	req := context.WithValue(context.Background(), ctxKey{}, "rid-1")
	j, cancel := joinContexts(base, req)
	defer cancel()
	if j.Value(ctxKey{}) != "rid-1" {
		t.Fatalf("request value lost")
	}
	stop()
	<-j.Done()
	if !errors.Is(context.Cause(j), errShuttingDown) {
		t.Fatalf("cause = %v", context.Cause(j))
	}
}

func TestGenerate_ShutdownCancelsSyncJob(t *testing.T) {
	base, stop := context.WithCancel(context.Background())
	SetBaseContext(base)
	defer SetBaseContext(nil)

	block := make(chan struct{})
	defer close(block)
	h := NewMux(newGateway(t, blockingWorker{block}))
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- postJSON(t, h, "/v1/generation/generate", `{"prompt":"x"}`)
	}()
	time.Sleep(20 * time.Millisecond)
	stop()
	var rec *httptest.ResponseRecorder
	select {
	case rec = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after shutdown")
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%s, want 503", rec.Code, rec.Body.String())
	}
	var resp types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Code != http.StatusServiceUnavailable || resp.Error == "" {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}
