package dispatch

import (
	"context"

	"imaged/internal/job"
	"imaged/pkg/types"
)

// Worker executes generation jobs. It is the boundary to the external image
// generation backend.
type Worker interface {
	// Generate runs j to completion and returns artifact references. When
	// onProgress is non-nil it is called for intermediate updates; a non-nil
	// error from onProgress aborts generation. Implementations must return
	// promptly once ctx is done.
	Generate(ctx context.Context, j job.GenerationJob, onProgress func(types.Progress) error) ([]string, error)
}
