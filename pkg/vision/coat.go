// Package vision derives appearance attributes from a detection crop.
//
// Today that means naming the dominant coat color, which rides along with
// the body measurements so callers can label a cat without a second model
// pass. The estimator samples pixels inside the detection box, buckets them
// into common coat colors by hue, saturation, and value, and reports the
// winning bucket with its share of the vote.
package vision

import (
	"image"
	"math"

	"github.com/menta2k/cat-analyzer/pkg/types"
)

// Coat color names reported by Estimate.
const (
	CoatBlack   = "black"
	CoatWhite   = "white"
	CoatGray    = "gray"
	CoatOrange  = "orange"
	CoatCream   = "cream"
	CoatBrown   = "brown"
	CoatMixed   = "mixed"
	CoatUnknown = "unknown"
)

// Config holds the sampling parameters of the estimator.
type Config struct {
	// SampleStride is the pixel step used when walking the crop.
	SampleStride int `json:"sample_stride"`
	// InsetRatio shrinks the box on every side before sampling, so edge
	// pixels, which are mostly background, do not vote.
	InsetRatio float64 `json:"inset_ratio"`
	// MinShare is the vote share the leading color needs to win outright;
	// anything below reports as mixed.
	MinShare float64 `json:"min_share"`
}

// DefaultConfig returns the stock sampling parameters.
func DefaultConfig() Config {
	return Config{
		SampleStride: 2,
		InsetRatio:   0.12,
		MinShare:     0.4,
	}
}

// Estimator names the dominant coat color inside a detection box.
type Estimator struct {
	config Config
}

// New creates an Estimator with the default parameters.
func New() *Estimator {
	return &Estimator{config: DefaultConfig()}
}

// NewWithConfig creates an Estimator with custom parameters.
func NewWithConfig(config Config) *Estimator {
	return &Estimator{config: config}
}

// CoatColor is a named coat color and the share of sampled pixels behind it.
type CoatColor struct {
	Name  string  `json:"name"`
	Share float64 `json:"share"`
}

// Estimate samples the box and returns the dominant coat color. Saturated
// cool hues (grass, sky, furniture) classify as background and do not vote;
// when background is all there is, or the box is degenerate, the result is
// CoatUnknown. A leading color below MinShare reports as CoatMixed with the
// leader's share. Share is rounded to two decimals.
func (e *Estimator) Estimate(img image.Image, box types.BoundingBox) CoatColor {
	if img == nil || !box.Valid() {
		return CoatColor{Name: CoatUnknown}
	}
	bounds := img.Bounds()
	box = box.Clip(bounds.Dx(), bounds.Dy())
	if !box.Valid() {
		return CoatColor{Name: CoatUnknown}
	}

	sample := insetBox(box, e.config.InsetRatio)
	stride := e.config.SampleStride
	if stride < 1 {
		stride = 1
	}

	counts := make(map[string]int)
	total := 0
	for y := sample.Y1; y < sample.Y2; y += stride {
		for x := sample.X1; x < sample.X2; x += stride {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			name := classifyCoat(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			if name == "" {
				continue
			}
			counts[name]++
			total++
		}
	}
	if total == 0 {
		return CoatColor{Name: CoatUnknown}
	}

	// Ties break alphabetically so repeated runs agree.
	leader, votes := "", 0
	for name, n := range counts {
		if n > votes || (n == votes && name < leader) {
			leader, votes = name, n
		}
	}

	share := float64(votes) / float64(total)
	rounded := math.Round(share*100) / 100
	if share < e.config.MinShare {
		return CoatColor{Name: CoatMixed, Share: rounded}
	}
	return CoatColor{Name: leader, Share: rounded}
}

// insetBox shrinks the box on every side by the given ratio. A box too small
// to survive the inset is sampled as-is.
func insetBox(box types.BoundingBox, ratio float64) types.BoundingBox {
	dx := int(float64(box.Width()) * ratio)
	dy := int(float64(box.Height()) * ratio)
	inset := types.BoundingBox{
		X1: box.X1 + dx,
		Y1: box.Y1 + dy,
		X2: box.X2 - dx,
		Y2: box.Y2 - dy,
	}
	if !inset.Valid() {
		return box
	}
	return inset
}

// classifyCoat buckets one sample into a named coat color. The thresholds
// are tuned for common cat coats: darkness beats hue, desaturated pixels
// split into white and gray, and warm hues split into brown, cream, and
// orange. Anything else reads as background and returns the empty string.
func classifyCoat(r, g, b uint8) string {
	h, s, v := rgbToHSV(r, g, b)

	if v < 0.20 {
		return CoatBlack
	}
	if s < 0.16 {
		if v > 0.85 {
			return CoatWhite
		}
		return CoatGray
	}
	if h <= 60 {
		switch {
		case v < 0.55:
			return CoatBrown
		case s < 0.35:
			return CoatCream
		default:
			return CoatOrange
		}
	}
	return ""
}

// rgbToHSV converts 8-bit RGB to HSV with h in degrees [0,360) and s, v in
// [0,1].
func rgbToHSV(r, g, b uint8) (h, s, v float64) {
	rf := float64(r) / 255
	gf := float64(g) / 255
	bf := float64(b) / 255

	max := math.Max(rf, math.Max(gf, bf))
	min := math.Min(rf, math.Min(gf, bf))
	delta := max - min

	v = max
	if max > 0 {
		s = delta / max
	}
	if delta == 0 {
		return 0, s, v
	}

	switch max {
	case rf:
		h = 60 * math.Mod((gf-bf)/delta, 6)
	case gf:
		h = 60 * ((bf-rf)/delta + 2)
	default:
		h = 60 * ((rf-gf)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}
