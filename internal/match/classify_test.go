package match

import (
	"testing"

	"github.com/hyperjump/kurabe/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  models.Tier
	}{
		{1.0, models.TierExact},
		{0.95, models.TierExact},
		{0.9499, models.TierHigh},
		{0.83, models.TierHigh},
		{0.70, models.TierHigh},
		{0.69, models.TierMedium},
		{0.50, models.TierMedium},
		{0.4999, models.TierLow},
		{0.0, models.TierLow},
	}
	for _, tt := range tests {
		if got := Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestIsMatch(t *testing.T) {
	if !IsMatch(0.5, DefaultThreshold) {
		t.Error("score equal to threshold is a match")
	}
	if IsMatch(0.4, DefaultThreshold) {
		t.Error("score below threshold is not a match")
	}
	if !IsMatch(0.0, 0.0) {
		t.Error("zero threshold accepts everything")
	}
}
