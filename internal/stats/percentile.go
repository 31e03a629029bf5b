package stats

import "slices"

// PercentileIndex returns floor((p/100)*n), clamped to [0, n-1].
func PercentileIndex(p float64, n int) int {
	if n <= 0 {
		return 0
	}
	idx := int(Clamp(p, 0, 100) / 100 * float64(n))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// PercentileSorted reads the p-th percentile from an ascending slice.
func PercentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[PercentileIndex(p, len(sorted))]
}

// Summary holds the distribution statistics extracted from one sample set.
type Summary struct {
	P50  float64 `json:"p50"`
	P80  float64 `json:"p80"`
	P90  float64 `json:"p90"`
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Summarize sorts samples in place and extracts P50/P80/P90, mean, min and max.
func Summarize(samples []float64) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	slices.Sort(samples)

	return Summary{
		P50:  PercentileSorted(samples, 50),
		P80:  PercentileSorted(samples, 80),
		P90:  PercentileSorted(samples, 90),
		Mean: Finite(Mean(samples), 0),
		Min:  samples[0],
		Max:  samples[len(samples)-1],
	}
}
