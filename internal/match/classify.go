// Package match classifies similarity scores into tiers.
package match

import "github.com/hyperjump/kurabe/internal/models"

// Tier lower bounds, inclusive.
const (
	ExactThreshold  = 0.95
	HighThreshold   = 0.70
	MediumThreshold = 0.50
)

// DefaultThreshold is the minimum score reported as a match.
const DefaultThreshold = MediumThreshold

// Classify maps a score to its tier.
func Classify(score float64) models.Tier {
	switch {
	case score >= ExactThreshold:
		return models.TierExact
	case score >= HighThreshold:
		return models.TierHigh
	case score >= MediumThreshold:
		return models.TierMedium
	default:
		return models.TierLow
	}
}

// IsMatch reports whether score reaches threshold.
func IsMatch(score, threshold float64) bool {
	return score >= threshold
}
