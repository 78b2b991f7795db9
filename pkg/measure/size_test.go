package measure

import (
	"testing"

	"github.com/menta2k/cat-analyzer/pkg/types"
)

func TestClassifySize(t *testing.T) {
	classifier := NewSizeClassifier()

	tests := []struct {
		name     string
		weightKg float64
		chestCM  float64
		want     types.SizeCategory
	}{
		{"light kitten", 2.0, 30, types.SizeXS},
		{"narrow chest wins XS", 3.0, 20, types.SizeXS},
		{"weight band wins over chest", 3.9, 40, types.SizeS},
		{"tiny weight beats huge chest", 1.0, 50, types.SizeXS},
		{"average cat", 5.0, 35, types.SizeM},
		{"band limits are exclusive", 4.0, 32, types.SizeM},
		{"heavy cat", 7.0, 40, types.SizeL},
		{"past the last band", 9.0, 50, types.SizeXL},
		{"exactly on the last limits", 8.5, 45, types.SizeXL},
		{"chest alone keeps it small", 10.0, 20, types.SizeXS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifier.Classify(tt.weightKg, tt.chestCM); got != tt.want {
				t.Errorf("Classify(%.1f, %.1f) = %q, want %q",
					tt.weightKg, tt.chestCM, got, tt.want)
			}
		})
	}
}

func TestClassifySizeCustomBands(t *testing.T) {
	classifier := NewSizeClassifierWithBands([]SizeBand{
		{MaxWeightKg: 1.0, MaxChestCM: 10, Category: types.SizeS},
	})

	if got := classifier.Classify(0.5, 99); got != types.SizeS {
		t.Errorf("Classify(0.5, 99) = %q, want %q", got, types.SizeS)
	}
	if got := classifier.Classify(2.0, 99); got != types.SizeXL {
		t.Errorf("Classify(2.0, 99) = %q, want %q", got, types.SizeXL)
	}
}

func TestClassifySizeEmptyBandsFallBack(t *testing.T) {
	classifier := NewSizeClassifierWithBands(nil)

	if got := classifier.Classify(3.9, 40); got != types.SizeS {
		t.Errorf("Classify(3.9, 40) = %q, want %q with stock bands", got, types.SizeS)
	}
}
