// Package quality implements the pre-detection image quality gate.
//
// The gate rejects images that would waste detector time: too small to carry
// a usable silhouette, too blurry to localize edges, or too dark/blown out
// for stable pixel statistics. Rejection is a normal negative outcome
// returned as data, never an error.
package quality

import (
	"image"
	"image/draw"
	"math"

	"github.com/menta2k/cat-analyzer/pkg/types"
)

// Rejection reasons surfaced verbatim to callers. The serving layer relays
// them without rewording.
const (
	ReasonTooSmall      = "image too small"
	ReasonTooBlurry     = "image too blurry"
	ReasonBadBrightness = "unsuitable brightness"
)

// Config holds the gate thresholds.
type Config struct {
	MinWidth      int     `json:"min_width"`
	MinHeight     int     `json:"min_height"`
	MinSharpness  float64 `json:"min_sharpness"`  // minimum grayscale Laplacian variance
	MinBrightness float64 `json:"min_brightness"` // mean grayscale intensity, 8-bit scale
	MaxBrightness float64 `json:"max_brightness"`
}

// DefaultConfig returns the stock thresholds: at least 100x100 pixels,
// Laplacian variance of 50 or more, mean brightness within [30,225].
func DefaultConfig() Config {
	return Config{
		MinWidth:      100,
		MinHeight:     100,
		MinSharpness:  50,
		MinBrightness: 30,
		MaxBrightness: 225,
	}
}

// Gate checks decoded images against the configured thresholds.
type Gate struct {
	config Config
}

// New creates a Gate with the default thresholds.
func New() *Gate {
	return &Gate{config: DefaultConfig()}
}

// NewWithConfig creates a Gate with custom thresholds.
func NewWithConfig(config Config) *Gate {
	return &Gate{config: config}
}

// Check runs the quality checks in order, short-circuiting on the first
// failure: resolution, then sharpness, then brightness. It is a pure function
// of the pixel data; running it twice on the same image yields an identical
// report. Statistics are filled in as far as the checks progressed and
// rounded to two decimals.
func (g *Gate) Check(img image.Image) types.QualityReport {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width < g.config.MinWidth || height < g.config.MinHeight {
		return types.QualityReport{IsValid: false, Reason: ReasonTooSmall}
	}

	gray := Grayscale(img)

	sharpness := round2(LaplacianVariance(gray))
	if sharpness < g.config.MinSharpness {
		return types.QualityReport{
			IsValid:   false,
			Reason:    ReasonTooBlurry,
			Sharpness: sharpness,
		}
	}

	brightness := round2(MeanBrightness(gray))
	if brightness < g.config.MinBrightness || brightness > g.config.MaxBrightness {
		return types.QualityReport{
			IsValid:    false,
			Reason:     ReasonBadBrightness,
			Sharpness:  sharpness,
			Brightness: brightness,
		}
	}

	return types.QualityReport{
		IsValid:    true,
		Sharpness:  sharpness,
		Brightness: brightness,
	}
}

// Grayscale converts an image to 8-bit grayscale using the standard library
// luma conversion (ITU-R BT.601 weights, matching OpenCV's BGR2GRAY). Images
// that are already grayscale are returned as-is.
func Grayscale(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}

// LaplacianVariance measures high-frequency edge energy: the variance of the
// 4-neighbour Laplacian response over interior pixels. Out-of-focus or flat
// images score near zero. Images smaller than 3x3 have no interior and score
// zero.
func LaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	var sum, sumSq float64
	count := 0
	for y := 1; y < height-1; y++ {
		row := y * gray.Stride
		for x := 1; x < width-1; x++ {
			center := float64(gray.Pix[row+x])
			up := float64(gray.Pix[row-gray.Stride+x])
			down := float64(gray.Pix[row+gray.Stride+x])
			left := float64(gray.Pix[row+x-1])
			right := float64(gray.Pix[row+x+1])

			v := up + down + left + right - 4*center
			sum += v
			sumSq += v * v
			count++
		}
	}

	mean := sum / float64(count)
	return sumSq/float64(count) - mean*mean
}

// MeanBrightness returns the average grayscale intensity on the 8-bit scale.
func MeanBrightness(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return 0
	}

	var sum float64
	for y := 0; y < height; y++ {
		row := y * gray.Stride
		for x := 0; x < width; x++ {
			sum += float64(gray.Pix[row+x])
		}
	}
	return sum / float64(width*height)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
