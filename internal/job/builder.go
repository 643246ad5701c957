package job

import (
	"fmt"

	"imaged/internal/conditioning"
	"imaged/internal/params"
)

// Build overlays overrides onto a private copy of tmpl. Keys are template
// wire names plus ConditioningField. Unknown keys are rejected with a
// params.UnknownFieldError; known fields are replaced wholesale.
func Build(tmpl params.Template, overrides map[string]any) (GenerationJob, error) {
	var set conditioning.Set
	rest := make(map[string]any, len(overrides))
	for k, v := range overrides {
		if k != ConditioningField {
			rest[k] = v
			continue
		}
		s, err := asSet(v)
		if err != nil {
			return GenerationJob{}, &params.FieldTypeError{Field: ConditioningField, Err: err}
		}
		set = s
	}
	p, err := tmpl.Overlay(rest)
	if err != nil {
		return GenerationJob{}, err
	}
	return GenerationJob{Template: p, ControlNetImage: set}, nil
}

func asSet(v any) (conditioning.Set, error) {
	switch s := v.(type) {
	case conditioning.Set:
		return s, nil
	case []conditioning.Input:
		return conditioning.NewSet(s)
	default:
		return conditioning.Set{}, fmt.Errorf("expected conditioning set, got %T", v)
	}
}

// Builder accumulates overrides for Build. Layers are applied in call order;
// a later layer replaces fields set by an earlier one.
type Builder struct {
	tmpl      params.Template
	overrides map[string]any
}

// NewBuilder starts a job from tmpl.
func NewBuilder(tmpl params.Template) *Builder {
	return &Builder{tmpl: tmpl, overrides: map[string]any{}}
}

// Set overrides a single field.
func (b *Builder) Set(name string, v any) *Builder {
	b.overrides[name] = v
	return b
}

// Apply merges a layer of overrides, such as a preset or request body.
func (b *Builder) Apply(layer map[string]any) *Builder {
	for k, v := range layer {
		b.overrides[k] = v
	}
	return b
}

// WithConditioning attaches a validated conditioning set.
func (b *Builder) WithConditioning(s conditioning.Set) *Builder {
	if s.IsZero() {
		delete(b.overrides, ConditioningField)
		return b
	}
	b.overrides[ConditioningField] = s
	return b
}

// Build produces the job. The builder can be reused; each call returns an
// independent job.
func (b *Builder) Build() (GenerationJob, error) {
	return Build(b.tmpl, b.overrides)
}
