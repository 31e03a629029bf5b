package risk

import (
	"fmt"
	"math"
)

// ConsequenceCost maps a 1-5 consequence rating onto a most-likely currency impact.
var ConsequenceCost = map[int]float64{
	1: 25_000,
	2: 100_000,
	3: 300_000,
	4: 750_000,
	5: 1_500_000,
}

// ParseProbability normalises a probability that may be expressed as a
// fraction (0-1), a 1-5 rating, a 1-10 rating or a percentage (up to 100).
func ParseProbability(v float64) Result[float64] {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return Invalid[float64]("probability is not finite")
	case v < 0:
		return Invalid[float64](fmt.Sprintf("probability %v is negative", v))
	case v <= 1:
		return Valid(v)
	case v <= 5:
		return Valid(v / 5)
	case v <= 10:
		return Valid(v / 10)
	case v <= 100:
		return Valid(v / 100)
	default:
		return Invalid[float64](fmt.Sprintf("probability %v is out of range", v))
	}
}

// MaxAmount bounds a single cost or schedule impact. Any realistic register
// stays far below it, and summing many risks at the bound stays finite.
const MaxAmount = 1e15

// ParseAmount accepts finite, non-negative currency or day amounts up to MaxAmount.
func ParseAmount(field string, v float64) Result[float64] {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return Invalid[float64](field + " is not finite")
	case v < 0:
		return Invalid[float64](fmt.Sprintf("%s %v is negative", field, v))
	case v > MaxAmount:
		return Invalid[float64](fmt.Sprintf("%s %v exceeds %v", field, v, MaxAmount))
	default:
		return Valid(v)
	}
}

// ParseUnit accepts a finite value in [0, 1].
func ParseUnit(field string, v float64) Result[float64] {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return Invalid[float64](field + " is not finite")
	case v < 0 || v > 1:
		return Invalid[float64](fmt.Sprintf("%s %v is outside [0,1]", field, v))
	default:
		return Valid(v)
	}
}

// ParseConsequence looks a 1-5 consequence rating up in ConsequenceCost.
func ParseConsequence(rating int) Result[float64] {
	if c, ok := ConsequenceCost[rating]; ok {
		return Valid(c)
	}
	return Invalid[float64](fmt.Sprintf("consequence %d is not a 1-5 rating", rating))
}
