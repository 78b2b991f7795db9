// Package processing covers image ingress and egress for the analysis
// pipeline: loading from files, URLs or raw bytes, preparing payloads for
// vision models, and cutting or annotating detected regions.
package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/cat-analyzer/pkg/types"
)

// ErrUndecodable marks input bytes that cannot be decoded as an image. It
// is a fault of the request, not of the pipeline, and callers map it to
// their own bad-input handling.
var ErrUndecodable = errors.New("undecodable image data")

const fetchTimeout = 30 * time.Second

// Processor handles image loading and conversion.
type Processor struct {
	client    *http.Client
	userAgent string
}

// NewProcessor creates a processor with a 30 second fetch timeout.
func NewProcessor() *Processor {
	return &Processor{
		client:    &http.Client{Timeout: fetchTimeout},
		userAgent: "Cat-Analyzer/1.0 (+https://github.com/menta2k/cat-analyzer)",
	}
}

// DecodeBytes decodes raw image bytes, falling back to an explicit WebP
// decode for encoders the standard registry misses. Undecodable input
// returns ErrUndecodable.
func (p *Processor) DecodeBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("%w: unknown or unsupported format", ErrUndecodable)
}

// Load reads an image from a file path with WebP support.
func (p *Processor) Load(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	img, err := p.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return img, nil
}

// LoadFromURL downloads and decodes an image. Only http and https sources
// are accepted and the response must declare an image content type.
func (p *Processor) LoadFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return p.DecodeBytes(data)
}

// LoadSmart loads an image from either a file path or a URL.
func (p *Processor) LoadSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadFromURL(ctx, source)
	}
	return p.Load(source)
}

// PrepareForModel converts an image to base64 for sending to vision models,
// downscaling so the long side stays within maxDim.
func (p *Processor) PrepareForModel(img image.Image, format string, maxDim, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// CropToBox cuts the detected region out of the image, e.g. for a thumbnail
// of the analyzed cat. The box is clipped to the image first.
func (p *Processor) CropToBox(img image.Image, box types.BoundingBox) (image.Image, error) {
	bounds := img.Bounds()
	clipped := box.Clip(bounds.Dx(), bounds.Dy())
	if !clipped.Valid() {
		return nil, fmt.Errorf("empty crop rectangle for box %+v", box)
	}

	return imaging.Crop(img, image.Rect(clipped.X1, clipped.Y1, clipped.X2, clipped.Y2)), nil
}

// AnnotateDetection returns a copy of the image with the detection box
// drawn on it. The stroke width scales with image size. Boxes that clip to
// nothing leave the copy unmarked.
func (p *Processor) AnnotateDetection(img image.Image, box types.BoundingBox) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	clipped := box.Clip(w, h)
	if !clipped.Valid() {
		return nrgba
	}

	green := color.NRGBA{0, 255, 0, 255}
	stroke := int(math.Max(2, 0.004*float64(min(w, h)))) // ~0.4% of min side

	for s := 0; s < stroke; s++ {
		drawHLine(nrgba, clipped.Y1+s, clipped.X1, clipped.X2, green)
		drawHLine(nrgba, clipped.Y2-1-s, clipped.X1, clipped.X2, green)
		drawVLine(nrgba, clipped.X1+s, clipped.Y1, clipped.Y2, green)
		drawVLine(nrgba, clipped.X2-1-s, clipped.Y1, clipped.Y2, green)
	}

	return nrgba
}

// SaveImage saves an image to a file with the specified format and quality.
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
