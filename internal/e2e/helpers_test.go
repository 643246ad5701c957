package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"imaged/internal/dispatch"
	"imaged/internal/gateway"
	"imaged/internal/httpapi"
	"imaged/internal/params"
	"imaged/internal/presets"
	"imaged/internal/worker"
)

// fakeWorker speaks the worker's NDJSON protocol. Each generation reports
// two progress steps and returns one artifact per control input (at least one).
type fakeWorker struct {
	mu       sync.Mutex
	payloads []map[string]any
	// gate, when set, holds every generation until it is closed.
	gate chan struct{}
	fail string
}

func (f *fakeWorker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping":
		w.WriteHeader(http.StatusOK)
		return
	case "/v1/generation":
	default:
		http.NotFound(w, r)
		return
	}
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	gate, fail := f.gate, f.fail
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	flush := func() {
		if fl, ok := w.(http.Flusher); ok {
			fl.Flush()
		}
	}
	for _, pct := range []int{50, 100} {
		_ = enc.Encode(map[string]any{"type": "progress", "progress": map[string]any{"percentage": pct}})
		flush()
	}
	if fail != "" {
		_ = enc.Encode(map[string]any{"type": "error", "error": fail})
		return
	}
	n := 1
	if cn, ok := payload["controlnet_image"].([]any); ok && len(cn) > 0 {
		n = len(cn)
	}
	urls := make([]string, n)
	for i := range urls {
		urls[i] = "http://worker/files/" + string(rune('a'+i)) + ".png"
	}
	_ = enc.Encode(map[string]any{"type": "done", "result": urls})
}

func (f *fakeWorker) lastPayload(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		t.Fatalf("worker received no generation request")
	}
	return f.payloads[len(f.payloads)-1]
}

type stack struct {
	srv    *httptest.Server
	worker *fakeWorker
	disp   *dispatch.Dispatcher
}

// newStack wires a fake worker behind the real client, dispatcher, gateway
// and HTTP mux.
func newStack(t *testing.T, fw *fakeWorker, cfg dispatch.Config, set presets.Set) *stack {
	t.Helper()
	ws := httptest.NewServer(fw)
	t.Cleanup(ws.Close)

	wc := worker.New(ws.URL, "", 5*time.Second, time.Second)
	disp := dispatch.New(wc, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = disp.Close(ctx)
	})
	gw, err := gateway.New(gateway.Options{
		Template:   params.Default(),
		Presets:    set,
		Dispatcher: disp,
		Pinger:     wc,
	})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(gw))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, worker: fw, disp: disp}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}
