package optimize

import (
	"math"

	"riskquant/internal/risk"
	"riskquant/internal/stats"
)

// defaultConfidence is assumed when a mitigation carries no confidence.
const defaultConfidence = 0.5

// Response is a diminishing-returns curve: reduction(s) = max * (1 - e^(-k*s)).
type Response struct {
	MaxReduction float64 `json:"maxReduction"`
	K            float64 `json:"k"`
}

// ResponseFor derives a risk's curve. maxReduction comes from mitigation
// effectiveness when present, else defaultMax; k scales with confidence.
func ResponseFor(r risk.Record, baseK, defaultMax float64) Response {
	maxRed := stats.Clamp01(defaultMax)
	conf := defaultConfidence
	if r.Mitigation != nil {
		maxRed = stats.Clamp01(r.Mitigation.Effectiveness)
		conf = stats.Clamp01(r.Mitigation.Confidence)
	}
	return Response{
		MaxReduction: maxRed,
		K:            stats.NonNegative(baseK) * (0.8 + 0.4*conf),
	}
}

// Reduction returns the fractional cost reduction bought by spend.
func (r Response) Reduction(spend float64) float64 {
	spend = stats.NonNegative(spend)
	return r.MaxReduction * -math.Expm1(-r.K*spend)
}

// BenefitAt is the absolute P80 reduction at spend for a risk with the given weight.
func (r Response) BenefitAt(neutralP80, weight, spend float64) float64 {
	return stats.NonNegative(neutralP80 * weight * r.Reduction(spend))
}
