// Package catanalyzer estimates a cat's physical measurements from a photo.
//
// This package chains an image quality gate, object detection through a
// pluggable inference engine, and a geometric body model into a single
// pipeline that turns one decoded image into chest, neck, and body length
// measurements, an estimated weight, and a clothing size category.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		catanalyzer "github.com/menta2k/cat-analyzer"
//		"github.com/menta2k/cat-analyzer/pkg/dnn"
//		"github.com/menta2k/cat-analyzer/pkg/processing"
//	)
//
//	func main() {
//		// Initialize the pipeline around an OpenCV DNN engine
//		analyzer := catanalyzer.New(dnn.New(dnn.DefaultConfig()))
//		defer analyzer.Close()
//
//		// Load and analyze a photo
//		img, err := processing.NewProcessor().Load("cat.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		result, err := analyzer.Analyze(context.Background(), img,
//			catanalyzer.Options{Breed: "siamese"})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		if !result.IsCat {
//			fmt.Println("rejected:", result.Reason)
//			return
//		}
//		fmt.Printf("chest %.1f cm, weight %.1f kg, size %s\n",
//			result.Metrics.ChestCM, result.WeightKg, result.SizeCategory)
//	}
//
// The pipeline consists of three main stages:
//
// 1. Quality (pkg/quality): resolution, sharpness, and brightness gate
// 2. Detection (pkg/detection): best cat box over an engine (pkg/dnn,
// pkg/ollama, pkg/llamacpp)
// 3. Measure (pkg/measure): posture-aware measurements, weight, and size
//
// Positive results also carry the dominant coat color (pkg/vision), sampled
// from the detection box.
//
// Negative outcomes are data, not errors: an image the gate rejects or one
// without a confident cat box yields a result with is_cat=false and a
// human-readable reason. Errors are reserved for undecodable input and
// engine faults, so callers can tell "the model said no cat" apart from
// "the model crashed".
package catanalyzer

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"strings"

	"github.com/menta2k/cat-analyzer/pkg/detection"
	"github.com/menta2k/cat-analyzer/pkg/engine"
	"github.com/menta2k/cat-analyzer/pkg/measure"
	"github.com/menta2k/cat-analyzer/pkg/posture"
	"github.com/menta2k/cat-analyzer/pkg/processing"
	"github.com/menta2k/cat-analyzer/pkg/quality"
	"github.com/menta2k/cat-analyzer/pkg/types"
	"github.com/menta2k/cat-analyzer/pkg/vision"
)

// Version of the cat analyzer library
const Version = "1.0.0"

// Method identifies the measurement heuristic revision stamped on every
// positive result. Bump it when the geometry or weight model changes.
const Method = "cv_heuristic_v4"

// ReasonNoCat is the rejection reason when no box clears the threshold.
const ReasonNoCat = "no cat detected"

// DefaultBreed is assumed when the caller does not name one.
const DefaultBreed = "unknown"

// Options are the per-request knobs of a single analysis.
type Options struct {
	// Breed selects the weight modifier; empty means DefaultBreed.
	Breed string `json:"breed"`
	// Threshold overrides the configured detection threshold when >0.
	Threshold float64 `json:"threshold"`
}

// Config bundles the per-stage settings of the pipeline.
type Config struct {
	Quality   quality.Config     `json:"quality"`
	Detection detection.Config   `json:"detection"`
	Posture   posture.Config     `json:"posture"`
	Measure   measure.Config     `json:"measure"`
	Coat      vision.Config      `json:"coat"`
	Breeds    measure.BreedTable `json:"breeds"`
	SizeBands []measure.SizeBand `json:"size_bands"`
}

// DefaultConfig returns the stock settings for every stage.
func DefaultConfig() Config {
	return Config{
		Quality:   quality.DefaultConfig(),
		Detection: detection.DefaultConfig(),
		Posture:   posture.DefaultConfig(),
		Measure:   measure.DefaultConfig(),
		Coat:      vision.DefaultConfig(),
		Breeds:    measure.DefaultBreedTable(),
		SizeBands: measure.DefaultSizeBands(),
	}
}

// Analyzer runs the full measurement pipeline over a detection engine.
type Analyzer struct {
	engine    engine.Engine
	config    Config
	gate      *quality.Gate
	detector  *detection.Detector
	estimator *measure.Estimator
	weights   *measure.WeightEstimator
	sizes     *measure.SizeClassifier
	coat      *vision.Estimator
	processor *processing.Processor
	logger    *slog.Logger
}

// New creates an Analyzer with default configuration around an engine.
func New(eng engine.Engine) *Analyzer {
	return NewWithConfig(eng, DefaultConfig())
}

// NewWithConfig creates an Analyzer with custom configuration. Zero-valued
// stage configs fall back to their defaults.
func NewWithConfig(eng engine.Engine, config Config) *Analyzer {
	if config.Quality == (quality.Config{}) {
		config.Quality = quality.DefaultConfig()
	}
	if config.Posture == (posture.Config{}) {
		config.Posture = posture.DefaultConfig()
	}
	if config.Coat == (vision.Config{}) {
		config.Coat = vision.DefaultConfig()
	}

	classifier := posture.NewWithConfig(config.Posture)

	return &Analyzer{
		engine:    eng,
		config:    config,
		gate:      quality.NewWithConfig(config.Quality),
		detector:  detection.NewWithConfig(eng, config.Detection),
		estimator: measure.NewWithConfig(config.Measure, classifier),
		weights:   measure.NewWeightEstimatorWithTable(config.Breeds),
		sizes:     measure.NewSizeClassifierWithBands(config.SizeBands),
		coat:      vision.NewWithConfig(config.Coat),
		processor: processing.NewProcessor(),
		logger:    slog.Default(),
	}
}

// SetLogger replaces the logger used for pipeline stage events.
func (a *Analyzer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// Analyze runs the pipeline on a decoded image.
//
// The stages run in a fixed order and short-circuit on the first negative
// outcome: an image that fails the quality gate never reaches the detector,
// and an image without a cat never reaches the body model. Both cases
// return a result with IsCat=false, not an error.
func (a *Analyzer) Analyze(ctx context.Context, img image.Image, opts Options) (types.AnalysisResult, error) {
	if img == nil {
		return types.AnalysisResult{}, errors.New("analyze: nil image")
	}

	breed := strings.TrimSpace(opts.Breed)
	if breed == "" {
		breed = DefaultBreed
	}

	report := a.gate.Check(img)
	if !report.IsValid {
		a.logger.Info("Image rejected by quality gate",
			"reason", report.Reason,
			"sharpness", report.Sharpness,
			"brightness", report.Brightness)
		return types.AnalysisResult{
			Reason:  report.Reason,
			Quality: report,
		}, nil
	}

	detected, err := a.detectorFor(opts).Detect(ctx, img)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	if !detected.IsCat {
		a.logger.Info("No cat detected", "candidates", detected.CandidateCount)
		return types.AnalysisResult{
			Reason:    ReasonNoCat,
			Quality:   report,
			Detection: detected,
		}, nil
	}

	metrics := a.estimator.EstimateBody(*detected.BoundingBox)
	weight := a.weights.Estimate(metrics.ChestCM, metrics.BodyLengthCM, breed)
	size := a.sizes.Classify(weight, metrics.ChestCM)
	coat := a.coat.Estimate(img, *detected.BoundingBox)

	a.logger.Info("Analysis complete",
		"posture", metrics.Posture,
		"chest_cm", metrics.ChestCM,
		"body_length_cm", metrics.BodyLengthCM,
		"weight_kg", weight,
		"size", size,
		"coat_color", coat.Name,
		"detection_confidence", detected.Confidence,
		"quality_flag", metrics.QualityFlag)

	return types.AnalysisResult{
		IsCat:        true,
		Quality:      report,
		Detection:    detected,
		Metrics:      &metrics,
		WeightKg:     weight,
		SizeCategory: size,
		Breed:        breed,
		CoatColor:    coat.Name,
		Method:       Method,
	}, nil
}

// AnalyzeBytes decodes raw image bytes and runs the pipeline on the result.
// Bytes that decode to no supported format report processing.ErrUndecodable.
func (a *Analyzer) AnalyzeBytes(ctx context.Context, data []byte, opts Options) (types.AnalysisResult, error) {
	img, err := a.processor.DecodeBytes(data)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	return a.Analyze(ctx, img, opts)
}

// AnalyzeFile loads an image from disk and runs the pipeline on it.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string, opts Options) (types.AnalysisResult, error) {
	img, err := a.processor.Load(path)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	return a.Analyze(ctx, img, opts)
}

// AnalyzeURL fetches an image over HTTP and runs the pipeline on it.
func (a *Analyzer) AnalyzeURL(ctx context.Context, imageURL string, opts Options) (types.AnalysisResult, error) {
	img, err := a.processor.LoadFromURL(ctx, imageURL)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	return a.Analyze(ctx, img, opts)
}

// CheckQuality runs only the quality gate, without touching the engine.
func (a *Analyzer) CheckQuality(img image.Image) types.QualityReport {
	return a.gate.Check(img)
}

// Close releases the underlying engine.
func (a *Analyzer) Close() error {
	return a.detector.Close()
}

// detectorFor returns the configured detector, or a transient one when the
// request overrides the threshold.
func (a *Analyzer) detectorFor(opts Options) *detection.Detector {
	if opts.Threshold <= 0 {
		return a.detector
	}
	config := a.config.Detection
	config.Threshold = opts.Threshold
	return detection.NewWithConfig(a.engine, config)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
