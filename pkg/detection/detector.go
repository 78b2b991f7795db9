// Package detection resolves a single best cat bounding box from the raw
// objects an inference engine reports.
package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/menta2k/cat-analyzer/pkg/engine"
	"github.com/menta2k/cat-analyzer/pkg/types"
)

// Config tunes the detector.
type Config struct {
	// Threshold is the confidence a box must exceed to count as a
	// candidate.
	Threshold float64 `json:"threshold"`
	// Timeout bounds a single inference pass so one pathological input
	// cannot stall the pipeline.
	Timeout time.Duration `json:"timeout"`
	// TargetLabel is the object class the detector resolves.
	TargetLabel string `json:"target_label"`
}

// DefaultConfig returns the stock detector settings.
func DefaultConfig() Config {
	return Config{
		Threshold:   0.5,
		Timeout:     30 * time.Second,
		TargetLabel: "cat",
	}
}

// Detector reduces an engine's raw detections to a single DetectionResult
// for the target class. It is safe for concurrent use as long as the
// underlying engine is.
type Detector struct {
	engine engine.Engine
	config Config
}

// New creates a detector around an engine with default settings.
func New(eng engine.Engine) *Detector {
	return NewWithConfig(eng, DefaultConfig())
}

// NewWithConfig creates a detector with custom settings. Zero config values
// fall back to their defaults.
func NewWithConfig(eng engine.Engine, config Config) *Detector {
	defaults := DefaultConfig()
	if config.Threshold <= 0 {
		config.Threshold = defaults.Threshold
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.TargetLabel == "" {
		config.TargetLabel = defaults.TargetLabel
	}
	return &Detector{engine: eng, config: config}
}

// Detect runs one inference pass and resolves the best box for the target
// label. An image with no qualifying box is a negative result, not an
// error; engine faults come back as *engine.InferenceError.
func (d *Detector) Detect(ctx context.Context, img image.Image) (types.DetectionResult, error) {
	if img == nil {
		return types.DetectionResult{}, errors.New("detect: nil image")
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	objects, err := d.engine.Detect(ctx, img)
	if err != nil {
		var infErr *engine.InferenceError
		if errors.As(err, &infErr) {
			return types.DetectionResult{}, err
		}
		return types.DetectionResult{}, &engine.InferenceError{Backend: d.engine.Name(), Err: err}
	}

	// Selection runs at full precision; only the reported confidence is
	// rounded. Strictly-greater keeps the first of exact ties.
	var (
		best  engine.Object
		found bool
		count int
	)
	for _, obj := range objects {
		if obj.Label != d.config.TargetLabel || obj.Confidence <= d.config.Threshold {
			continue
		}
		count++
		if !found || obj.Confidence > best.Confidence {
			best = obj
			found = true
		}
	}

	if !found {
		return types.DetectionResult{}, nil
	}

	bounds := img.Bounds()
	box := best.Box.Clip(bounds.Dx(), bounds.Dy())
	if !box.Valid() {
		return types.DetectionResult{}, fmt.Errorf("detect: %s returned malformed box %+v",
			d.engine.Name(), best.Box)
	}

	return types.DetectionResult{
		IsCat:          true,
		Confidence:     round2(best.Confidence),
		BoundingBox:    &box,
		CandidateCount: count,
	}, nil
}

// Close releases the underlying engine.
func (d *Detector) Close() error {
	return d.engine.Close()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
