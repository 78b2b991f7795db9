package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/menta2k/cat-analyzer/pkg/types"
)

func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeBytes(t *testing.T) {
	processor := NewProcessor()

	img, err := processor.DecodeBytes(pngBytes(t, createTestImage(120, 80)))
	if err != nil {
		t.Fatalf("DecodeBytes() error = %v", err)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 80 {
		t.Errorf("decoded size = %dx%d, want 120x80", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestDecodeBytesGarbage(t *testing.T) {
	processor := NewProcessor()

	_, err := processor.DecodeBytes([]byte("definitely not an image"))
	if !errors.Is(err, ErrUndecodable) {
		t.Errorf("error = %v, want ErrUndecodable", err)
	}

	_, err = processor.DecodeBytes(nil)
	if !errors.Is(err, ErrUndecodable) {
		t.Errorf("error for empty input = %v, want ErrUndecodable", err)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	processor := NewProcessor()
	img := createTestImage(100, 60)
	dir := t.TempDir()

	formats := []struct {
		name string
		ext  string
	}{
		{"jpg", "jpg"},
		{"png", "png"},
		{"webp", "webp"},
	}

	for _, format := range formats {
		t.Run(format.name, func(t *testing.T) {
			path := filepath.Join(dir, "cat."+format.ext)
			if err := processor.SaveImage(img, path, format.name, 90, false); err != nil {
				t.Fatalf("SaveImage() error = %v", err)
			}

			loaded, err := processor.Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if loaded.Bounds().Dx() != 100 || loaded.Bounds().Dy() != 60 {
				t.Errorf("loaded size = %dx%d, want 100x60",
					loaded.Bounds().Dx(), loaded.Bounds().Dy())
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	processor := NewProcessor()

	_, err := processor.Load(filepath.Join(t.TempDir(), "nope.png"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if errors.Is(err, ErrUndecodable) {
		t.Error("a missing file is not an undecodable image")
	}
}

func TestLoadFromURL(t *testing.T) {
	data := pngBytes(t, createTestImage(64, 64))
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer ts.Close()

	processor := NewProcessor()
	img, err := processor.LoadFromURL(context.Background(), ts.URL+"/cat.png")
	if err != nil {
		t.Fatalf("LoadFromURL() error = %v", err)
	}
	if img.Bounds().Dx() != 64 {
		t.Errorf("width = %d, want 64", img.Bounds().Dx())
	}
}

func TestLoadFromURLRejectsNonImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not a cat</html>"))
	}))
	defer ts.Close()

	processor := NewProcessor()
	if _, err := processor.LoadFromURL(context.Background(), ts.URL); err == nil {
		t.Error("expected an error for a non-image content type")
	}
}

func TestLoadFromURLRejectsErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	processor := NewProcessor()
	if _, err := processor.LoadFromURL(context.Background(), ts.URL); err == nil {
		t.Error("expected an error for HTTP 404")
	}
}

func TestLoadFromURLRejectsScheme(t *testing.T) {
	processor := NewProcessor()

	if _, err := processor.LoadFromURL(context.Background(), "ftp://example.com/cat.png"); err == nil {
		t.Error("expected an error for a non-http scheme")
	}
}

func TestLoadSmart(t *testing.T) {
	processor := NewProcessor()

	data := pngBytes(t, createTestImage(32, 32))
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer ts.Close()

	if _, err := processor.LoadSmart(context.Background(), ts.URL); err != nil {
		t.Errorf("LoadSmart(url) error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "local.png")
	if err := processor.SaveImage(createTestImage(32, 32), path, "png", 90, false); err != nil {
		t.Fatalf("SaveImage() error = %v", err)
	}
	if _, err := processor.LoadSmart(context.Background(), path); err != nil {
		t.Errorf("LoadSmart(path) error = %v", err)
	}
}

func TestPrepareForModelResizes(t *testing.T) {
	processor := NewProcessor()

	payload, err := processor.PrepareForModel(createTestImage(2000, 1000), "jpeg", 1536, 85)
	if err != nil {
		t.Fatalf("PrepareForModel() error = %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("payload is not valid base64: %v", err)
	}
	config, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("payload is not a valid image: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if config.Width != 1536 || config.Height != 768 {
		t.Errorf("prepared size = %dx%d, want 1536x768", config.Width, config.Height)
	}
}

func TestPrepareForModelKeepsSmallImages(t *testing.T) {
	processor := NewProcessor()

	payload, err := processor.PrepareForModel(createTestImage(300, 200), "png", 1536, 85)
	if err != nil {
		t.Fatalf("PrepareForModel() error = %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(payload)
	config, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("payload is not a valid image: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	if config.Width != 300 || config.Height != 200 {
		t.Errorf("prepared size = %dx%d, want 300x200 untouched", config.Width, config.Height)
	}
}

func TestCropToBox(t *testing.T) {
	processor := NewProcessor()
	img := createTestImage(640, 480)

	cropped, err := processor.CropToBox(img, types.BoundingBox{X1: 100, Y1: 100, X2: 300, Y2: 250})
	if err != nil {
		t.Fatalf("CropToBox() error = %v", err)
	}
	if cropped.Bounds().Dx() != 200 || cropped.Bounds().Dy() != 150 {
		t.Errorf("crop size = %dx%d, want 200x150", cropped.Bounds().Dx(), cropped.Bounds().Dy())
	}
}

func TestCropToBoxClipsOverhang(t *testing.T) {
	processor := NewProcessor()
	img := createTestImage(640, 480)

	cropped, err := processor.CropToBox(img, types.BoundingBox{X1: 600, Y1: 400, X2: 700, Y2: 500})
	if err != nil {
		t.Fatalf("CropToBox() error = %v", err)
	}
	if cropped.Bounds().Dx() != 40 || cropped.Bounds().Dy() != 80 {
		t.Errorf("crop size = %dx%d, want 40x80", cropped.Bounds().Dx(), cropped.Bounds().Dy())
	}
}

func TestCropToBoxOutsideImage(t *testing.T) {
	processor := NewProcessor()
	img := createTestImage(640, 480)

	if _, err := processor.CropToBox(img, types.BoundingBox{X1: 700, Y1: 500, X2: 900, Y2: 600}); err == nil {
		t.Error("expected an error for a box outside the image")
	}
}

func TestAnnotateDetection(t *testing.T) {
	processor := NewProcessor()
	img := createTestImage(200, 200)
	box := types.BoundingBox{X1: 50, Y1: 50, X2: 150, Y2: 150}

	annotated := processor.AnnotateDetection(img, box)

	r, g, b, _ := annotated.At(100, 50).RGBA()
	if r>>8 != 0 || g>>8 != 255 || b>>8 != 0 {
		t.Errorf("top edge pixel = (%d,%d,%d), want green", r>>8, g>>8, b>>8)
	}

	// The source image is cloned, never drawn on.
	r, g, b, _ = img.At(100, 50).RGBA()
	if g>>8 == 255 && r>>8 == 0 {
		t.Error("source image was mutated")
	}
}

func TestAnnotateDetectionOutsideBox(t *testing.T) {
	processor := NewProcessor()
	img := createTestImage(100, 100)

	annotated := processor.AnnotateDetection(img, types.BoundingBox{X1: 300, Y1: 300, X2: 400, Y2: 400})
	if annotated == nil {
		t.Fatal("expected an unmarked copy, got nil")
	}
}
