package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"imaged/internal/conditioning"
	"imaged/internal/dispatch"
	"imaged/internal/gateway"
	"imaged/internal/params"
)

type teapotError struct{}

func (teapotError) Error() string   { return "short and stout" }
func (teapotError) StatusCode() int { return http.StatusTeapot }

func TestErrorResponse_Mapping(t *testing.T) {
	cases := []struct {
		err   error
		code  int
		field string
	}{
		{&conditioning.CountError{Count: 5}, http.StatusUnprocessableEntity, "control_inputs"},
		{&conditioning.FieldError{Index: 2, Field: "cn_weight", Reason: "must be <= 2"}, http.StatusUnprocessableEntity, "cn_weight"},
		{&params.UnknownFieldError{Field: "steps"}, http.StatusUnprocessableEntity, "steps"},
		{fmt.Errorf("build: %w", &params.FieldTypeError{Field: "image_number", Err: errors.New("bad")}), http.StatusUnprocessableEntity, "image_number"},
		{&gateway.UnknownPresetError{Name: "x"}, http.StatusUnprocessableEntity, "preset"},
		{&dispatch.GenerationFailedError{JobID: "j", Cause: errors.New("boom")}, http.StatusBadGateway, ""},
		{&dispatch.TimeoutError{JobID: "j", After: time.Second}, http.StatusGatewayTimeout, ""},
		{dispatch.ErrJobNotFound("j"), http.StatusNotFound, ""},
		{dispatch.ErrClosed, http.StatusServiceUnavailable, ""},
		{teapotError{}, http.StatusTeapot, ""},
		{context.Canceled, http.StatusInternalServerError, ""},
	}
	for _, c := range cases {
		resp := errorResponse(c.err)
		if resp.Code != c.code || resp.Field != c.field {
			t.Fatalf("%v: got code=%d field=%q, want %d %q", c.err, resp.Code, resp.Field, c.code, c.field)
		}
	}
	resp := errorResponse(&conditioning.FieldError{Index: 2, Field: "cn_weight"})
	if resp.Index == nil || *resp.Index != 2 {
		t.Fatalf("index not reported: %+v", resp)
	}
}

func TestWriteError_TooBusyCountsBackpressure(t *testing.T) {
	// TooBusy errors only come out of the dispatcher, so provoke one.
	block := make(chan struct{})
	defer close(block)
	d := dispatch.New(blockingWorker{block}, dispatch.Config{MaxInflight: 1, MaxQueueDepth: 1})
	defer d.Close(context.Background())
	j := mustJob(t, map[string]any{"async_process": true})
	if _, err := d.Submit(context.Background(), j); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := d.Submit(context.Background(), j)
	if !dispatch.IsTooBusy(err) {
		t.Fatalf("expected too busy, got %v", err)
	}

	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("admission"))
	rec := httptest.NewRecorder()
	if code := writeError(rec, err); code != http.StatusTooManyRequests || rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d/%d", code, rec.Code)
	}
	if after := testutil.ToFloat64(backpressureTotal.WithLabelValues("admission")); after < before+1 {
		t.Fatalf("backpressure counter not incremented: before=%v after=%v", before, after)
	}
}
