package measure

import "github.com/menta2k/cat-analyzer/pkg/types"

// SizeBand is one row of the clothing size table. A cat falls into a band
// when either its weight or its chest measurement is below the band's
// limit.
type SizeBand struct {
	MaxWeightKg float64            `json:"max_weight_kg"`
	MaxChestCM  float64            `json:"max_chest_cm"`
	Category    types.SizeCategory `json:"category"`
}

// DefaultSizeBands returns the stock size table, ordered smallest first.
func DefaultSizeBands() []SizeBand {
	return []SizeBand{
		{MaxWeightKg: 2.5, MaxChestCM: 24, Category: types.SizeXS},
		{MaxWeightKg: 4.0, MaxChestCM: 32, Category: types.SizeS},
		{MaxWeightKg: 6.0, MaxChestCM: 38, Category: types.SizeM},
		{MaxWeightKg: 8.5, MaxChestCM: 45, Category: types.SizeL},
	}
}

// SizeClassifier assigns a clothing size from weight and chest girth.
type SizeClassifier struct {
	bands []SizeBand
}

// NewSizeClassifier creates a classifier with the stock bands.
func NewSizeClassifier() *SizeClassifier {
	return NewSizeClassifierWithBands(DefaultSizeBands())
}

// NewSizeClassifierWithBands creates a classifier with custom bands,
// evaluated in the order given. Empty input falls back to the stock table.
func NewSizeClassifierWithBands(bands []SizeBand) *SizeClassifier {
	if len(bands) == 0 {
		bands = DefaultSizeBands()
	}
	return &SizeClassifier{bands: bands}
}

// Classify returns the first band whose weight or chest limit the cat is
// under, checked smallest to largest. Anything past the last band is XL.
func (s *SizeClassifier) Classify(weightKg, chestCM float64) types.SizeCategory {
	for _, band := range s.bands {
		if weightKg < band.MaxWeightKg || chestCM < band.MaxChestCM {
			return band.Category
		}
	}
	return types.SizeXL
}
