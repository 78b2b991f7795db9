// Package measure derives physical measurements from a cat detection box.
//
// The pixel-to-centimeter conversion hangs on a single anatomical
// assumption, the real-world height of an adult cat's torso, because no
// physical reference object is available in the frame. Every downstream
// number inherits that approximation, so measurements carry a confidence
// score and a quality flag.
package measure

import (
	"math"

	"github.com/menta2k/cat-analyzer/pkg/posture"
	"github.com/menta2k/cat-analyzer/pkg/types"
)

// DefaultTorsoHeightCM is the assumed real-world height of an adult cat's
// torso, the calibration constant behind the pixel-to-centimeter scale.
const DefaultTorsoHeightCM = 25.0

const (
	chestDepthRatio  = 0.6  // chest ellipse depth relative to body width
	neckToChestRatio = 0.62 // fixed neck-to-chest circumference ratio

	// Confidence model: boxes covering referenceArea pixels or more get
	// full size credit, and aspect ratios outside the trusted window are
	// penalized as likely spurious detections.
	referenceArea       = 300.0 * 300.0
	minTrustedAspect    = 0.6
	maxTrustedAspect    = 1.8
	spuriousAspectScore = 0.6
)

// Config tunes the geometric body model.
type Config struct {
	// TorsoHeightCM overrides the assumed torso height in centimeters.
	TorsoHeightCM float64 `json:"torso_height_cm"`
	// TorsoRatios give, per posture, the fraction of the bounding box
	// height assumed to span the torso.
	TorsoRatios map[types.Posture]float64 `json:"torso_ratios"`
}

// DefaultConfig returns the stock model parameters.
func DefaultConfig() Config {
	return Config{
		TorsoHeightCM: DefaultTorsoHeightCM,
		TorsoRatios: map[types.Posture]float64{
			types.PostureLying:    0.55,
			types.PostureSitting:  0.60,
			types.PostureStanding: 0.65,
		},
	}
}

// Estimator computes body measurements from a detection bounding box.
type Estimator struct {
	config     Config
	classifier *posture.Classifier
}

// New creates an estimator with default parameters.
func New() *Estimator {
	return NewWithConfig(DefaultConfig(), posture.New())
}

// NewWithConfig creates an estimator with custom parameters. Missing config
// values and a nil classifier fall back to their defaults.
func NewWithConfig(config Config, classifier *posture.Classifier) *Estimator {
	defaults := DefaultConfig()
	if config.TorsoHeightCM <= 0 {
		config.TorsoHeightCM = defaults.TorsoHeightCM
	}

	ratios := make(map[types.Posture]float64, len(defaults.TorsoRatios))
	for pose, ratio := range defaults.TorsoRatios {
		ratios[pose] = ratio
	}
	for pose, ratio := range config.TorsoRatios {
		if ratio > 0 {
			ratios[pose] = ratio
		}
	}
	config.TorsoRatios = ratios

	if classifier == nil {
		classifier = posture.New()
	}

	return &Estimator{config: config, classifier: classifier}
}

// EstimateBody converts bounding box geometry into centimeter measurements.
//
// The box height scaled by the posture's torso ratio is assumed to span
// TorsoHeightCM in the real world; that one scale converts every other
// dimension. Lengths are rounded to one decimal and the confidence score to
// two, the precision results are reported at.
func (e *Estimator) EstimateBody(box types.BoundingBox) types.BodyMetrics {
	width := float64(box.Width())
	height := float64(box.Height())

	pose, factor := e.classifier.Classify(box.Width(), box.Height())

	effectiveHeight := height * e.config.TorsoRatios[pose]
	if effectiveHeight < 1 {
		effectiveHeight = 1
	}
	pixelToCM := e.config.TorsoHeightCM / effectiveHeight

	// Lying poses show the full body length; the others foreshorten it.
	lengthFactor := 0.9
	if pose == types.PostureLying {
		lengthFactor = 1.0
	}

	chest := round1(math.Pi * width * pixelToCM * chestDepthRatio * factor)

	sizeScore := math.Min(1.0, width*height/referenceArea)
	aspectScore := spuriousAspectScore
	if ratio := width / height; ratio > minTrustedAspect && ratio < maxTrustedAspect {
		aspectScore = 1.0
	}
	confidence := round2(sizeScore*0.6 + aspectScore*0.4)

	return types.BodyMetrics{
		Posture:      pose,
		ChestCM:      chest,
		NeckCM:       round1(chest * neckToChestRatio),
		BodyLengthCM: round1(width * pixelToCM * lengthFactor),
		Confidence:   confidence,
		QualityFlag:  flagFor(confidence),
	}
}

// flagFor grades a confidence score into the fixed good/medium/poor bands.
func flagFor(confidence float64) types.QualityFlag {
	switch {
	case confidence > 0.75:
		return types.QualityGood
	case confidence > 0.5:
		return types.QualityMedium
	default:
		return types.QualityPoor
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
