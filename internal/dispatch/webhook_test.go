package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"imaged/pkg/types"
)

func TestWebhookClient_PostsResult(t *testing.T) {
	var got types.JobResult
	var ctype string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctype = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	res := types.JobResult{JobID: "j1", Status: types.JobCompleted, Result: []string{"http://files/a.png"}}
	err := NewWebhookClient(time.Second).Deliver(context.Background(), srv.URL, res)
	require.NoError(t, err)
	require.Equal(t, "application/json", ctype)
	require.Equal(t, "j1", got.JobID)
	require.Equal(t, types.JobCompleted, got.Status)
	require.Equal(t, []string{"http://files/a.png"}, got.Result)
}

func TestWebhookClient_ErrorStatusIsSingleAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhookClient(time.Second).Deliver(context.Background(), srv.URL, types.JobResult{JobID: "j2"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "500")
	require.Equal(t, int32(1), hits.Load())
}

func TestWebhookClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	err := NewWebhookClient(200*time.Millisecond).Deliver(context.Background(), url, types.JobResult{JobID: "j3"})
	require.Error(t, err)
}

func TestDispatcher_DeliversThroughHTTPWebhook(t *testing.T) {
	got := make(chan types.JobResult, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var res types.JobResult
		_ = json.NewDecoder(r.Body).Decode(&res)
		got <- res
	}))
	defer srv.Close()

	d, _ := newTestDispatcher(t, newFakeWorker("u"), Config{Webhook: NewWebhookClient(time.Second)})
	out, err := d.Submit(testCtx(t), buildJob(t, map[string]any{"async_process": true, "webhook_url": srv.URL}))
	require.NoError(t, err)
	select {
	case res := <-got:
		require.Equal(t, out.Handle.JobID, res.JobID)
		require.Equal(t, types.JobCompleted, res.Status)
	case <-time.After(3 * time.Second):
		t.Fatal("webhook not received")
	}
}
