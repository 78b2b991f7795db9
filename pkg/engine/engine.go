// Package engine defines the contract between the analysis pipeline and
// the object detection backends.
package engine

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/cat-analyzer/pkg/types"
)

// Object is one detection produced by an engine: a labeled, scored region
// of the input image. Confidence is reported at full precision; rounding
// for display is the caller's concern.
type Object struct {
	Label      string            `json:"label"`
	ClassID    int               `json:"class_id"`
	Confidence float64           `json:"confidence"`
	Box        types.BoundingBox `json:"box"`
}

// Engine runs object detection over a decoded image and returns every
// object it recognizes, regardless of class or score. Filtering,
// thresholding and best-box selection belong to the caller.
//
// Implementations must be safe for concurrent use. Backends whose runtime
// cannot run inferences in parallel serialize calls internally.
type Engine interface {
	// Detect runs one inference pass. It honors context cancellation and
	// returns an error only for genuine engine faults, never for an image
	// that simply contains nothing of interest.
	Detect(ctx context.Context, img image.Image) ([]Object, error)

	// Name identifies the backend in errors and log events.
	Name() string

	// Close releases resources held by the engine. The engine must not be
	// used afterwards.
	Close() error
}

// InferenceError marks a fault raised by a detection backend, so callers
// can tell "the model found nothing" apart from "the model broke".
type InferenceError struct {
	Backend string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s inference failed: %v", e.Backend, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}
