// Package job builds GenerationJobs: a private copy of the parameter
// template with request overrides and an optional conditioning set applied.
package job

import (
	"imaged/internal/conditioning"
	"imaged/internal/params"
)

// ConditioningField is the override key that carries a conditioning.Set.
const ConditioningField = "controlnet_image"

// GenerationJob is a complete, validated generation request. Its JSON form
// is the flat template fields plus controlnet_image, which is what the
// worker receives.
type GenerationJob struct {
	params.Template
	ControlNetImage conditioning.Set `json:"controlnet_image"`
}

// Clone returns a copy that shares no mutable state with j.
func (j GenerationJob) Clone() GenerationJob {
	return GenerationJob{Template: j.Template.Clone(), ControlNetImage: j.ControlNetImage}
}

// Conditioned reports whether the job carries conditioning images.
func (j GenerationJob) Conditioned() bool { return !j.ControlNetImage.IsZero() }
