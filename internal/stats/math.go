package stats

import (
	"math"
	"slices"
)

// CalculateMedian finds the median value in a slice of floats.
func CalculateMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	// Work on a copy to avoid mutating the original
	temp := make([]float64, len(values))
	copy(temp, values)
	slices.Sort(temp)

	n := len(temp)
	if n%2 == 1 {
		return temp[n/2]
	}
	return (temp[n/2-1] + temp[n/2]) / 2.0
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Finite returns v, or fallback when v is NaN or infinite.
func Finite(v, fallback float64) float64 {
	if !IsFinite(v) {
		return fallback
	}
	return v
}

// NonNegative coerces v to a finite value >= 0. Anything else becomes 0.
func NonNegative(v float64) float64 {
	if !IsFinite(v) || v < 0 {
		return 0
	}
	return v
}

// Clamp bounds v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Normalize maps v linearly from [lo, hi] onto [0, 1] and clamps the result.
// A degenerate range yields 0.
func Normalize(v, lo, hi float64) float64 {
	if !(hi > lo) || !IsFinite(lo) || !IsFinite(hi) {
		return 0
	}
	if math.IsInf(v, 1) {
		return 1
	}
	return Clamp01((v - lo) / (hi - lo))
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	if !IsFinite(v) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var w Welford
	for _, v := range values {
		w.Add(v)
	}
	return w.StdDev()
}

// Slope returns the least-squares slope of values against their index (0..n-1).
// Fewer than two points, or a non-finite result, yields 0.
func Slope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	xMean := float64(n-1) / 2.0
	yMean := Mean(values)

	num, den := 0.0, 0.0
	for i, y := range values {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return Finite(num/den, 0)
}

// Deltas returns successive differences values[i+1]-values[i].
func Deltas(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 0; i < len(values)-1; i++ {
		out[i] = values[i+1] - values[i]
	}
	return out
}
