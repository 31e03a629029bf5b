package simulation

import (
	"math"

	"riskquant/internal/stats"
)

// TailReport describes how heavy the upper tail of a run is.
type TailReport struct {
	TailRatio   float64 `json:"tailRatio"`
	Correlation float64 `json:"costTimeCorrelation"`
	FatTail     bool    `json:"fatTail"`
}

// fatTailThreshold is the P98/P50 ratio above which a distribution is
// reported as fat tailed.
const fatTailThreshold = 5.6

// analyzeTail builds the tail report. corr must be computed on the paired
// samples before they are sorted.
func analyzeTail(sortedCost []float64, corr float64) TailReport {
	ratio := CalculateFatTail(sortedCost)
	return TailReport{
		TailRatio:   ratio,
		Correlation: corr,
		FatTail:     ratio >= fatTailThreshold,
	}
}

// CalculateCorrelation returns the Pearson correlation of two equal-length series.
func CalculateCorrelation(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	n := float64(len(a))
	sumA, sumB := 0.0, 0.0
	sumA2, sumB2 := 0.0, 0.0
	sumAB := 0.0

	for i := range a {
		sumA += a[i]
		sumB += b[i]
		sumA2 += a[i] * a[i]
		sumB2 += b[i] * b[i]
		sumAB += a[i] * b[i]
	}

	num := (n * sumAB) - (sumA * sumB)
	den := math.Sqrt((n*sumA2 - sumA*sumA) * (n*sumB2 - sumB*sumB))

	if den == 0 || !stats.IsFinite(den) {
		return 0
	}

	return stats.Clamp(num/den, -1, 1)
}

// CalculateFatTail returns the P98/P50 ratio of ascending samples.
func CalculateFatTail(sorted []float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p50 := stats.PercentileSorted(sorted, 50)
	p98 := stats.PercentileSorted(sorted, 98)

	if p50 == 0 {
		if p98 > 0 {
			return 10.0 // symbolic high value for sparse registers
		}
		return 1.0
	}
	return p98 / p50
}
