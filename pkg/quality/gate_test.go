package quality

import (
	"image"
	"image/color"
	"testing"
)

// uniformImage creates an image filled with a single gray level.
func uniformImage(width, height int, level uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{level, level, level, 255})
		}
	}
	return img
}

// checkerImage creates a per-pixel checkerboard of two gray levels, which has
// very high Laplacian variance and a mean brightness of (a+b)/2.
func checkerImage(width, height int, a, b uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			level := a
			if (x+y)%2 == 1 {
				level = b
			}
			img.Set(x, y, color.RGBA{level, level, level, 255})
		}
	}
	return img
}

func TestCheckTooSmall(t *testing.T) {
	gate := New()

	report := gate.Check(uniformImage(50, 200, 128))
	if report.IsValid {
		t.Error("undersized image should fail the gate")
	}
	if report.Reason != ReasonTooSmall {
		t.Errorf("expected reason %q, got %q", ReasonTooSmall, report.Reason)
	}

	// The resolution check short-circuits before any pixel statistics run.
	if report.Sharpness != 0 || report.Brightness != 0 {
		t.Errorf("expected zero statistics on size rejection, got sharpness=%f brightness=%f",
			report.Sharpness, report.Brightness)
	}
}

func TestCheckTooBlurry(t *testing.T) {
	gate := New()

	report := gate.Check(uniformImage(200, 200, 128))
	if report.IsValid {
		t.Error("flat image should fail the sharpness check")
	}
	if report.Reason != ReasonTooBlurry {
		t.Errorf("expected reason %q, got %q", ReasonTooBlurry, report.Reason)
	}
	if report.Sharpness != 0 {
		t.Errorf("uniform image should have zero Laplacian variance, got %f", report.Sharpness)
	}
}

func TestCheckBlurPrecedesBrightness(t *testing.T) {
	gate := New()

	// Pitch black and perfectly flat: both checks would fail, but the
	// sharpness check runs first.
	report := gate.Check(uniformImage(200, 200, 0))
	if report.Reason != ReasonTooBlurry {
		t.Errorf("expected blur rejection to win over brightness, got %q", report.Reason)
	}
}

func TestCheckTooDark(t *testing.T) {
	gate := New()

	// Sharp but dark: checkerboard of 0 and 50 averages to 25 (< 30).
	report := gate.Check(checkerImage(200, 200, 0, 50))
	if report.IsValid {
		t.Error("dark image should fail the gate")
	}
	if report.Reason != ReasonBadBrightness {
		t.Errorf("expected reason %q, got %q", ReasonBadBrightness, report.Reason)
	}
	if report.Brightness != 25 {
		t.Errorf("expected brightness 25, got %f", report.Brightness)
	}
}

func TestCheckTooBright(t *testing.T) {
	gate := New()

	// Sharp but blown out: checkerboard of 200 and 255 averages to 227.5.
	report := gate.Check(checkerImage(200, 200, 200, 255))
	if report.IsValid {
		t.Error("blown-out image should fail the gate")
	}
	if report.Reason != ReasonBadBrightness {
		t.Errorf("expected reason %q, got %q", ReasonBadBrightness, report.Reason)
	}
}

func TestCheckValid(t *testing.T) {
	gate := New()

	report := gate.Check(checkerImage(200, 200, 0, 255))
	if !report.IsValid {
		t.Fatalf("high-contrast image should pass the gate, got reason %q", report.Reason)
	}
	if report.Reason != "" {
		t.Errorf("valid report should carry no reason, got %q", report.Reason)
	}
	if report.Sharpness < 50 {
		t.Errorf("expected sharpness >= 50, got %f", report.Sharpness)
	}
	if report.Brightness != 127.5 {
		t.Errorf("expected brightness 127.5, got %f", report.Brightness)
	}
}

func TestCheckIdempotent(t *testing.T) {
	gate := New()
	img := checkerImage(200, 200, 0, 255)

	first := gate.Check(img)
	second := gate.Check(img)
	if first != second {
		t.Errorf("gate is not idempotent: %+v vs %+v", first, second)
	}
}

func TestCheckCustomThresholds(t *testing.T) {
	gate := NewWithConfig(Config{
		MinWidth:      10,
		MinHeight:     10,
		MinSharpness:  0,
		MinBrightness: 0,
		MaxBrightness: 255,
	})

	// A flat 32x32 image passes once every threshold is relaxed.
	report := gate.Check(uniformImage(32, 32, 128))
	if !report.IsValid {
		t.Errorf("relaxed gate should accept the image, got reason %q", report.Reason)
	}
}

func TestLaplacianVarianceGradient(t *testing.T) {
	// A linear gradient has a constant (near-zero) Laplacian response, so its
	// variance must be tiny even though the image is not uniform.
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x*2 + y/2)})
		}
	}

	if v := LaplacianVariance(img); v >= 50 {
		t.Errorf("gradient image should look flat to the Laplacian, got variance %f", v)
	}
}

func TestLaplacianVarianceTinyImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	if v := LaplacianVariance(img); v != 0 {
		t.Errorf("image with no interior pixels should score 0, got %f", v)
	}
}

func TestMeanBrightness(t *testing.T) {
	gray := Grayscale(uniformImage(64, 64, 200))
	if got := MeanBrightness(gray); got != 200 {
		t.Errorf("expected brightness 200, got %f", got)
	}
}

func TestGrayscalePassthrough(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	if Grayscale(gray) != gray {
		t.Error("grayscale input should be returned unchanged")
	}
}

func BenchmarkCheck(b *testing.B) {
	gate := New()
	img := checkerImage(640, 480, 0, 255)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		gate.Check(img)
	}
}
