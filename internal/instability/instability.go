package instability

import (
	"math"

	"riskquant/internal/scenario"
	"riskquant/internal/stats"
)

// Level is the categorical EII band.
type Level string

const (
	LevelLow      Level = "Low"
	LevelModerate Level = "Moderate"
	LevelHigh     Level = "High"
	LevelCritical Level = "Critical"
)

// Flag marks a caveat on an EII result.
type Flag string

const (
	FlagLowHistory         Flag = "LowHistory"
	FlagLowConfidence      Flag = "LowConfidence"
	FlagHighScenarioSpread Flag = "HighScenarioSpread"
)

// Sub-score weights.
const (
	weightVelocity    = 0.25
	weightVolatility  = 0.20
	weightSensitivity = 0.25
	weightConfidence  = 0.20
	weightMomentum    = 0.10
)

// Normalisation ranges and rule cut-offs.
const (
	velocityMax   = 10.0
	volatilityMax = 5.0

	lowConfidence      = 0.45
	highVolatility     = 0.7
	highVelocity       = 0.7
	highSensitivity    = 0.6
	aggressiveConf     = 0.65
	highScenarioSpread = 0.7
	minHistoryDepth    = 2
)

// Inputs feed the index. Velocity and volatility are on the score scale
// (points per cycle); the rest are 0-1.
type Inputs struct {
	Velocity            float64 `json:"velocity"`
	Volatility          float64 `json:"volatility"`
	MomentumStability   float64 `json:"momentumStability"`
	ScenarioSensitivity float64 `json:"scenarioSensitivity"`
	Confidence          float64 `json:"confidence"`
	HistoryDepth        int     `json:"historyDepth"`
}

// Breakdown lists each normalised sub-score.
type Breakdown struct {
	VelocityScore     float64 `json:"velocityScore"`
	VolatilityScore   float64 `json:"volatilityScore"`
	SensitivityScore  float64 `json:"sensitivityScore"`
	ConfidencePenalty float64 `json:"confidencePenalty"`
	MomentumPenalty   float64 `json:"momentumPenalty"`
}

// Result is a computed Escalation Instability Index.
type Result struct {
	Index               int               `json:"index"`
	Level               Level             `json:"level"`
	Breakdown           Breakdown         `json:"breakdown"`
	RecommendedScenario scenario.Scenario `json:"recommendedScenario"`
	Rationale           []string          `json:"rationale"`
	Flags               []Flag            `json:"flags"`
}

// LevelFor maps an index onto its band.
func LevelFor(index int) Level {
	switch {
	case index <= 24:
		return LevelLow
	case index <= 49:
		return LevelModerate
	case index <= 74:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// Calculate computes the EII. Non-finite inputs are treated as 0 (or as
// zero confidence and stability), never propagated.
func Calculate(in Inputs) Result {
	confidence := stats.Clamp01(in.Confidence)
	sensitivity := stats.Clamp01(in.ScenarioSensitivity)

	b := Breakdown{
		VelocityScore:     stats.Normalize(math.Abs(stats.Finite(in.Velocity, 0)), 0, velocityMax),
		VolatilityScore:   stats.Normalize(stats.NonNegative(in.Volatility), 0, volatilityMax),
		SensitivityScore:  sensitivity,
		ConfidencePenalty: 1 - confidence,
		MomentumPenalty:   1 - stats.Clamp01(in.MomentumStability),
	}

	sum := weightVelocity*b.VelocityScore +
		weightVolatility*b.VolatilityScore +
		weightSensitivity*b.SensitivityScore +
		weightConfidence*b.ConfidencePenalty +
		weightMomentum*b.MomentumPenalty
	index := int(math.Round(100 * stats.Clamp01(sum)))

	res := Result{
		Index:     index,
		Level:     LevelFor(index),
		Breakdown: b,
		Flags:     []Flag{},
	}

	switch {
	case confidence < lowConfidence || b.VolatilityScore > highVolatility:
		res.RecommendedScenario = scenario.Conservative
		if confidence < lowConfidence {
			res.Rationale = append(res.Rationale, "Low confidence in trend data; dampen extrapolation.")
		}
		if b.VolatilityScore > highVolatility {
			res.Rationale = append(res.Rationale, "High volatility in score history; dampen extrapolation.")
		}
	case b.VelocityScore > highVelocity && b.SensitivityScore > highSensitivity && confidence > aggressiveConf:
		res.RecommendedScenario = scenario.Aggressive
		res.Rationale = append(res.Rationale, "Sustained high velocity with high scenario sensitivity and strong confidence.")
	default:
		res.RecommendedScenario = scenario.Neutral
		res.Rationale = append(res.Rationale, "No dominant instability driver; neutral lens applies.")
	}

	if in.HistoryDepth < minHistoryDepth {
		res.Flags = append(res.Flags, FlagLowHistory)
	}
	if confidence < lowConfidence {
		res.Flags = append(res.Flags, FlagLowConfidence)
	}
	if sensitivity > highScenarioSpread {
		res.Flags = append(res.Flags, FlagHighScenarioSpread)
	}
	return res
}
