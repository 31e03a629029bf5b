package instability

import (
	"math"

	"riskquant/internal/stats"
)

// FragilityBand classifies structural fragility.
type FragilityBand string

const (
	FragilityStable     FragilityBand = "Stable"
	FragilityWatch      FragilityBand = "Watch"
	FragilityStructural FragilityBand = "Structurally Fragile"
)

const (
	fragilityWeightIndex      = 0.5
	fragilityWeightDelta      = 0.3
	fragilityWeightConfidence = 0.2
	fragilityDeltaRange       = 20.0
)

// Fragility separates a transient EII spike from persistent degradation.
type Fragility struct {
	Score int           `json:"score"`
	Band  FragilityBand `json:"band"`
	// Delta is the change against the previous index, 0 when there is none.
	Delta int `json:"delta"`
}

// FragilityBandFor maps a fragility score onto its band.
func FragilityBandFor(score int) FragilityBand {
	switch {
	case score <= 39:
		return FragilityStable
	case score <= 69:
		return FragilityWatch
	default:
		return FragilityStructural
	}
}

// CalculateFragility blends the current index, its change since the previous
// run (normalised over [-20, 20]) and the confidence penalty.
func CalculateFragility(index int, previous *int, confidence float64) Fragility {
	index = min(max(index, 0), 100)
	delta := 0
	deltaNorm := 0.5
	if previous != nil {
		delta = index - min(max(*previous, 0), 100)
		deltaNorm = stats.Normalize(float64(delta), -fragilityDeltaRange, fragilityDeltaRange)
	}

	blend := fragilityWeightIndex*float64(index)/100 +
		fragilityWeightDelta*deltaNorm +
		fragilityWeightConfidence*(1-stats.Clamp01(confidence))
	score := int(math.Round(100 * stats.Clamp01(blend)))

	return Fragility{Score: score, Band: FragilityBandFor(score), Delta: delta}
}
