// Package posture infers a cat's body pose from bounding box geometry.
//
// A cat lying flat produces a detection box much wider than tall, while a
// cat sitting upright produces one taller than wide. Classification is a
// pure function of the width/height ratio.
package posture

import "github.com/menta2k/cat-analyzer/pkg/types"

// Config holds the aspect ratio thresholds separating the postures and the
// chest correction factor each posture carries. The defaults are empirical
// anchors, not physical constants, and can be tuned per deployment.
type Config struct {
	// LyingRatio is the width/height ratio above which the cat counts as
	// lying.
	LyingRatio float64 `json:"lying_ratio"`
	// SittingRatio is the width/height ratio below which the cat counts
	// as sitting.
	SittingRatio float64 `json:"sitting_ratio"`

	// Per-posture chest circumference correction factors.
	LyingFactor    float64 `json:"lying_factor"`
	SittingFactor  float64 `json:"sitting_factor"`
	StandingFactor float64 `json:"standing_factor"`
}

// DefaultConfig returns the stock classifier settings.
func DefaultConfig() Config {
	return Config{
		LyingRatio:     1.4,
		SittingRatio:   0.9,
		LyingFactor:    0.85,
		SittingFactor:  0.92,
		StandingFactor: 1.0,
	}
}

// Classifier maps bounding box dimensions to a posture.
type Classifier struct {
	config Config
}

// New creates a classifier with default settings.
func New() *Classifier {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a classifier with custom settings.
func NewWithConfig(config Config) *Classifier {
	return &Classifier{config: config}
}

// Classify returns the posture for a box of the given dimensions together
// with the chest correction factor for that pose. Dimensions below one pixel
// are clamped so the ratio stays finite.
func (c *Classifier) Classify(width, height int) (types.Posture, float64) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	ratio := float64(width) / float64(height)
	switch {
	case ratio > c.config.LyingRatio:
		return types.PostureLying, c.config.LyingFactor
	case ratio < c.config.SittingRatio:
		return types.PostureSitting, c.config.SittingFactor
	default:
		return types.PostureStanding, c.config.StandingFactor
	}
}
