package types

// BoundingBox is an axis-aligned pixel rectangle with exclusive bottom-right
// corner. A well-formed box satisfies X1 < X2 and Y1 < Y2 with both corners
// inside the source image. It always marshals as a named-field object, never
// as a bare 4-element array.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the box width in pixels, clamped to at least 1 so that
// downstream ratio math never divides by zero.
func (b BoundingBox) Width() int {
	if w := b.X2 - b.X1; w > 1 {
		return w
	}
	return 1
}

// Height returns the box height in pixels, clamped to at least 1.
func (b BoundingBox) Height() int {
	if h := b.Y2 - b.Y1; h > 1 {
		return h
	}
	return 1
}

// Area returns the box area in pixels.
func (b BoundingBox) Area() int {
	return b.Width() * b.Height()
}

// AspectRatio returns width divided by height.
func (b BoundingBox) AspectRatio() float64 {
	return float64(b.Width()) / float64(b.Height())
}

// Valid reports whether the box has positive extent in both dimensions.
func (b BoundingBox) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// Clip constrains the box to an image of the given dimensions.
func (b BoundingBox) Clip(width, height int) BoundingBox {
	c := b
	if c.X1 < 0 {
		c.X1 = 0
	}
	if c.Y1 < 0 {
		c.Y1 = 0
	}
	if c.X2 > width {
		c.X2 = width
	}
	if c.Y2 > height {
		c.Y2 = height
	}
	return c
}

// Posture is the inferred body posture of the detected cat.
type Posture string

const (
	PostureLying    Posture = "lying"
	PostureSitting  Posture = "sitting"
	PostureStanding Posture = "standing"
)

// QualityReport is the outcome of the pre-detection quality gate. A failed
// gate is a normal negative outcome, not an error: IsValid is false and
// Reason carries a human-readable explanation.
type QualityReport struct {
	IsValid    bool    `json:"is_valid"`
	Reason     string  `json:"reason,omitempty"`
	Sharpness  float64 `json:"sharpness"`
	Brightness float64 `json:"brightness"`
}

// DetectionResult is the resolved outcome of running the object detector on
// one image. BoundingBox is non-nil exactly when IsCat is true. Confidence is
// rounded to two decimals for display stability; selection between candidate
// boxes always happens at full precision before rounding.
type DetectionResult struct {
	IsCat          bool         `json:"is_cat"`
	Confidence     float64      `json:"confidence"`
	BoundingBox    *BoundingBox `json:"bounding_box,omitempty"`
	CandidateCount int          `json:"candidate_count"`
}

// QualityFlag grades how trustworthy a set of body measurements is.
type QualityFlag string

const (
	QualityGood   QualityFlag = "good"
	QualityMedium QualityFlag = "medium"
	QualityPoor   QualityFlag = "poor"
)

// BodyMetrics holds the estimated physical measurements derived from a
// bounding box. Lengths are centimeters rounded to one decimal; Confidence is
// rounded to two decimals.
type BodyMetrics struct {
	Posture      Posture     `json:"posture"`
	ChestCM      float64     `json:"chest_cm"`
	NeckCM       float64     `json:"neck_cm"`
	BodyLengthCM float64     `json:"body_length_cm"`
	Confidence   float64     `json:"confidence"`
	QualityFlag  QualityFlag `json:"quality_flag"`
}

// SizeCategory is a discrete clothing-size band.
type SizeCategory string

const (
	SizeXS SizeCategory = "XS"
	SizeS  SizeCategory = "S"
	SizeM  SizeCategory = "M"
	SizeL  SizeCategory = "L"
	SizeXL SizeCategory = "XL"
)

// AnalysisResult aggregates the full pipeline outcome for one image. Negative
// outcomes (quality rejection, no cat found) reuse the same shape with IsCat
// false and Reason set; measurement fields are only populated when IsCat is
// true.
type AnalysisResult struct {
	IsCat        bool            `json:"is_cat"`
	Reason       string          `json:"reason,omitempty"`
	Quality      QualityReport   `json:"quality"`
	Detection    DetectionResult `json:"detection"`
	Metrics      *BodyMetrics    `json:"metrics,omitempty"`
	WeightKg     float64         `json:"weight_kg,omitempty"`
	SizeCategory SizeCategory    `json:"size_category,omitempty"`
	Breed        string          `json:"breed,omitempty"`
	CoatColor    string          `json:"coat_color,omitempty"`
	Method       string          `json:"method,omitempty"`
}
