package measure

import "strings"

// weightDivisor is the fitted divisor of the cylinder volume model.
const weightDivisor = 3000.0

// BreedTable is a versioned table of breed-specific weight modifiers. It is
// plain data so deployments can load a tuned table from configuration
// without touching estimator code.
type BreedTable struct {
	Version   string             `json:"version"`
	Modifiers map[string]float64 `json:"modifiers"`
}

// DefaultBreedTable returns the built-in modifier table.
func DefaultBreedTable() BreedTable {
	return BreedTable{
		Version: "v1",
		Modifiers: map[string]float64{
			"maine_coon":        1.15,
			"ragdoll":           1.10,
			"british_shorthair": 1.05,
			"siamese":           0.95,
			"unknown":           1.00,
		},
	}
}

// Modifier returns the weight modifier for a breed key. Keys are matched
// case-insensitively; unknown breeds fall back to 1.0 rather than erroring.
func (t BreedTable) Modifier(breed string) float64 {
	key := strings.ToLower(strings.TrimSpace(breed))
	if modifier, ok := t.Modifiers[key]; ok && modifier > 0 {
		return modifier
	}
	return 1.0
}

// WeightEstimator maps chest and body length measurements to an estimated
// weight. The body is modeled as a cylinder whose volume tracks chest
// circumference squared times body length, scaled by a per-breed modifier.
type WeightEstimator struct {
	table BreedTable
}

// NewWeightEstimator creates a weight estimator with the built-in breed
// table.
func NewWeightEstimator() *WeightEstimator {
	return NewWeightEstimatorWithTable(DefaultBreedTable())
}

// NewWeightEstimatorWithTable creates a weight estimator with a custom
// breed table. An empty table falls back to the built-in one.
func NewWeightEstimatorWithTable(table BreedTable) *WeightEstimator {
	if len(table.Modifiers) == 0 {
		table = DefaultBreedTable()
	}
	return &WeightEstimator{table: table}
}

// Estimate returns the estimated weight in kilograms, rounded to one
// decimal.
func (w *WeightEstimator) Estimate(chestCM, bodyLengthCM float64, breed string) float64 {
	base := chestCM * chestCM * bodyLengthCM / weightDivisor
	return round1(base * w.table.Modifier(breed))
}
