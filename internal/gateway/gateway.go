// Package gateway turns inbound generation requests into dispatched jobs:
// conditioning validation, preset and override layering on top of the
// parameter template, then submission to the dispatcher.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"imaged/internal/conditioning"
	"imaged/internal/dispatch"
	"imaged/internal/job"
	"imaged/internal/params"
	"imaged/internal/presets"
	"imaged/pkg/types"
)

// Pinger checks that the worker is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Gateway.
type Options struct {
	// Template is the process-wide parameter template.
	Template   params.Template
	Presets    presets.Set
	Dispatcher *dispatch.Dispatcher
	// Pinger backs Ready; nil makes Ready fail.
	Pinger Pinger
	Logger *zerolog.Logger
}

// Gateway is safe for concurrent use.
type Gateway struct {
	tmpl    params.Template
	presets presets.Set
	disp    *dispatch.Dispatcher
	pinger  Pinger
	log     zerolog.Logger
}

// Request is a generation request after transport decoding.
type Request struct {
	// ControlInputs are conditioning images in application order.
	ControlInputs []types.ControlInput
	// RequireConditioning rejects requests without control inputs.
	RequireConditioning bool
	// HasConditioning records that the caller sent a conditioning list, even
	// an empty one; it is then validated like any other.
	HasConditioning bool
	// Overrides are template fields set by the caller, by wire name.
	Overrides map[string]any
}

// New builds a Gateway. Every preset must apply cleanly to the template.
func New(opts Options) (*Gateway, error) {
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("gateway: dispatcher is required")
	}
	if err := opts.Template.Validate(); err != nil {
		return nil, fmt.Errorf("gateway: template: %w", err)
	}
	for _, name := range opts.Presets.Names() {
		p := opts.Presets[name]
		if _, err := opts.Template.Overlay(p.Overrides); err != nil {
			return nil, fmt.Errorf("preset %s (%s): %w", name, p.Path, err)
		}
	}
	lg := log.Logger
	if opts.Logger != nil {
		lg = *opts.Logger
	}
	return &Gateway{
		tmpl:    opts.Template.Clone(),
		presets: opts.Presets,
		disp:    opts.Dispatcher,
		pinger:  opts.Pinger,
		log:     lg,
	}, nil
}

// Build validates req and produces the job it describes without submitting it.
func (g *Gateway) Build(req Request) (job.GenerationJob, error) {
	var set conditioning.Set
	if req.RequireConditioning || req.HasConditioning || len(req.ControlInputs) > 0 {
		s, err := conditioning.Validate(req.ControlInputs)
		if err != nil {
			return job.GenerationJob{}, err
		}
		set = s
	}
	b := job.NewBuilder(g.tmpl)
	p, err := g.preset(req.Overrides)
	if err != nil {
		return job.GenerationJob{}, err
	}
	if p != nil {
		b.Apply(p.Overrides)
	}
	return b.Apply(req.Overrides).WithConditioning(set).Build()
}

// preset resolves the preset named by the request, or by the template when
// the request names none. The template's own default needs no file.
func (g *Gateway) preset(overrides map[string]any) (*presets.Preset, error) {
	name := g.tmpl.Preset
	if v, ok := overrides["preset"]; ok {
		s, err := presetName(v)
		if err != nil {
			return nil, &params.FieldTypeError{Field: "preset", Err: err}
		}
		name = s
	}
	if name == "" {
		return nil, nil
	}
	if p, ok := g.presets.Lookup(name); ok {
		return &p, nil
	}
	if name == g.tmpl.Preset {
		return nil, nil
	}
	return nil, &UnknownPresetError{Name: name}
}

// presetName accepts a Go string or a raw JSON string.
func presetName(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case json.RawMessage:
		var name string
		if err := json.Unmarshal(s, &name); err != nil {
			return "", err
		}
		return name, nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

// Generate builds and submits a job.
func (g *Gateway) Generate(ctx context.Context, req Request) (dispatch.Outcome, error) {
	j, err := g.Build(req)
	if err != nil {
		return dispatch.Outcome{}, err
	}
	g.log.Debug().
		Str("mode", dispatch.ResolveMode(j).String()).
		Int("conditioning", j.ControlNetImage.Len()).
		Str("preset", j.Preset).
		Msg("gateway_submit")
	return g.disp.Submit(ctx, j)
}

// Job returns the record of an asynchronous job.
func (g *Gateway) Job(ctx context.Context, id string) (types.JobResult, error) {
	return g.disp.Lookup(ctx, id)
}

// CancelJob cancels a running job by id.
func (g *Gateway) CancelJob(ctx context.Context, id string) error {
	return g.disp.Cancel(ctx, id)
}

// Defaults returns a copy of the parameter template.
func (g *Gateway) Defaults() params.Template { return g.tmpl.Clone() }

// PresetNames lists loaded presets.
func (g *Gateway) PresetNames() []string { return g.presets.Names() }

// Ready reports whether the worker answers its health check.
func (g *Gateway) Ready(ctx context.Context) error {
	if g.pinger == nil {
		return ErrWorkerNotConfigured
	}
	return g.pinger.Ping(ctx)
}

// Status summarizes load. ready reflects the latest Ready result.
func (g *Gateway) Status(ready bool) types.StatusResponse {
	st := g.disp.Stats()
	state := "ready"
	if !ready {
		state = "degraded"
	}
	return types.StatusResponse{
		State:           state,
		Inflight:        st.Inflight,
		MaxInflight:     st.MaxInflight,
		Queued:          st.Queued,
		MaxQueueDepth:   st.MaxQueueDepth,
		AsyncPending:    st.Async,
		SubmittedByMode: st.SubmittedByMode,
		Presets:         len(g.presets),
		UptimeSeconds:   int64(st.Uptime / time.Second),
		ServerTimeUnix:  time.Now().Unix(),
	}
}
