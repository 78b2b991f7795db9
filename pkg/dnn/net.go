// Package dnn implements the detection engine on OpenCV's DNN module with
// an SSD MobileNet network trained on COCO.
package dnn

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/menta2k/cat-analyzer/pkg/engine"
	"github.com/menta2k/cat-analyzer/pkg/types"
)

// SSD MobileNet preprocessing: pixels are scaled into [-1,1] around the
// 127.5 mean and the blob is square.
const (
	inputScale = 1.0 / 127.5
	inputMean  = 127.5
)

// Config locates the frozen network and sets the blob geometry.
type Config struct {
	// ModelPath points at the frozen TensorFlow graph (.pb).
	ModelPath string `json:"model_path"`
	// ConfigPath points at the graph description (.pbtxt).
	ConfigPath string `json:"config_path"`
	// InputSize is the side length of the square input blob.
	InputSize int `json:"input_size"`
}

// DefaultConfig returns the stock SSD MobileNet settings.
func DefaultConfig() Config {
	return Config{
		ModelPath:  "models/frozen_inference_graph.pb",
		ConfigPath: "models/ssd_mobilenet_v1_coco_2017_11_17.pbtxt",
		InputSize:  300,
	}
}

// Net is an engine.Engine backed by a gocv network handle. The weights load
// lazily on the first detection and are reused for the life of the handle.
//
// gocv networks are not safe for concurrent forward passes, so Net
// serializes inference internally; callers may share one handle across
// goroutines.
type Net struct {
	config Config

	mu      sync.Mutex
	net     gocv.Net
	loaded  bool
	closed  bool
	loadErr error
}

// New creates an unloaded network handle. Zero config values fall back to
// their defaults; the model file is not touched until the first Detect.
func New(config Config) *Net {
	defaults := DefaultConfig()
	if config.ModelPath == "" {
		config.ModelPath = defaults.ModelPath
	}
	if config.ConfigPath == "" {
		config.ConfigPath = defaults.ConfigPath
	}
	if config.InputSize <= 0 {
		config.InputSize = defaults.InputSize
	}
	return &Net{config: config}
}

// Name implements engine.Engine.
func (n *Net) Name() string { return "dnn" }

// Detect implements engine.Engine. It runs one forward pass and returns
// every recognized object with pixel-space boxes at full precision.
func (n *Net) Detect(ctx context.Context, img image.Image) ([]engine.Object, error) {
	if img == nil {
		return nil, errors.New("dnn: nil image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("dnn: convert image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.New("dnn: empty image matrix")
	}

	blob := gocv.BlobFromImage(mat, inputScale,
		image.Pt(n.config.InputSize, n.config.InputSize),
		gocv.NewScalar(inputMean, inputMean, inputMean, 0), true, false)
	defer blob.Close()

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, errors.New("dnn: engine closed")
	}
	if err := n.loadLocked(); err != nil {
		n.mu.Unlock()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		n.mu.Unlock()
		return nil, err
	}
	n.net.SetInput(blob, "")
	output := n.net.Forward("")
	n.mu.Unlock()
	defer output.Close()

	data := make([]float32, output.Total())
	for i := range data {
		data[i] = output.GetFloatAt(0, i)
	}

	bounds := img.Bounds()
	return parseDetections(data, bounds.Dx(), bounds.Dy()), nil
}

// loadLocked reads the network from disk once. A failed load is not
// retried; the first error sticks for the life of the handle.
func (n *Net) loadLocked() error {
	if n.loaded {
		return nil
	}
	if n.loadErr != nil {
		return n.loadErr
	}

	net := gocv.ReadNet(n.config.ModelPath, n.config.ConfigPath)
	if net.Empty() {
		n.loadErr = fmt.Errorf("dnn: unable to load network from %s and %s",
			n.config.ModelPath, n.config.ConfigPath)
		return n.loadErr
	}

	n.net = net
	n.loaded = true
	return nil
}

// Close implements engine.Engine and releases the native network.
func (n *Net) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	if !n.loaded {
		return nil
	}
	n.loaded = false
	return n.net.Close()
}

// parseDetections converts the raw SSD output tensor, rows of seven floats
// [batchID, classID, confidence, left, top, right, bottom] with coordinates
// normalized to [0,1], into labeled pixel-space objects. Rows with unknown
// class ids or no confidence are dropped; a trailing partial row is
// ignored.
func parseDetections(data []float32, width, height int) []engine.Object {
	var objects []engine.Object
	for i := 0; i+6 < len(data); i += 7 {
		confidence := float64(data[i+2])
		if confidence <= 0 {
			continue
		}
		classID := int(data[i+1])
		label, ok := cocoLabels[classID]
		if !ok {
			continue
		}

		objects = append(objects, engine.Object{
			Label:      label,
			ClassID:    classID,
			Confidence: confidence,
			Box: types.BoundingBox{
				X1: int(float64(data[i+3]) * float64(width)),
				Y1: int(float64(data[i+4]) * float64(height)),
				X2: int(float64(data[i+5]) * float64(width)),
				Y2: int(float64(data[i+6]) * float64(height)),
			},
		})
	}
	return objects
}
