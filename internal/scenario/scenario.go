package scenario

import (
	"riskquant/internal/risk"
	"riskquant/internal/stats"
)

// Scenario names a forecasting lens.
type Scenario string

const (
	Conservative Scenario = "Conservative"
	Neutral      Scenario = "Neutral"
	Aggressive   Scenario = "Aggressive"
)

// All lists the lenses in ordering-validation order.
var All = []Scenario{Conservative, Neutral, Aggressive}

// Lens describes how a scenario bends risk inputs and trend.
type Lens struct {
	// ProbabilityShift is the relative probability change at full sensitivity.
	ProbabilityShift float64 `json:"probabilityShift" yaml:"probabilityShift"`
	// CostShift is the relative cost change at full escalation persistence.
	CostShift float64 `json:"costShift" yaml:"costShift"`
	// MomentumScale multiplies forecast momentum.
	MomentumScale float64 `json:"momentumScale" yaml:"momentumScale"`
}

// Config holds the three lenses and the sensitivity normalisation cap.
type Config struct {
	Conservative Lens    `json:"conservative" yaml:"conservative"`
	Neutral      Lens    `json:"neutral" yaml:"neutral"`
	Aggressive   Lens    `json:"aggressive" yaml:"aggressive"`
	SpreadCap    float64 `json:"spreadCap" yaml:"spreadCap"`
}

// DefaultConfig returns the stock lenses.
func DefaultConfig() Config {
	return Config{
		Conservative: Lens{ProbabilityShift: -0.15, CostShift: -0.10, MomentumScale: 0.75},
		Neutral:      Lens{MomentumScale: 1},
		Aggressive:   Lens{ProbabilityShift: 0.20, CostShift: 0.15, MomentumScale: 1.35},
		SpreadCap:    0.6,
	}
}

// Lens returns the configuration for s. Unknown names map to Neutral.
func (c Config) Lens(s Scenario) Lens {
	switch s {
	case Conservative:
		return c.Conservative
	case Aggressive:
		return c.Aggressive
	default:
		return c.Neutral
	}
}

// weight maps a 0-1 driver onto [0.5, 1] so every risk moves a little
// under a lens even when it carries no sensitivity data.
func weight(v float64) float64 {
	return 0.5 + 0.5*stats.Clamp01(v)
}

// Apply returns a copy of r adjusted by the lens. Inputs are never mutated.
func (l Lens) Apply(r risk.Record) risk.Record {
	out := r
	if r.Mitigation != nil {
		m := *r.Mitigation
		out.Mitigation = &m
	}
	out.Probability = stats.Clamp01(r.Probability * (1 + stats.Finite(l.ProbabilityShift, 0)*weight(r.Sensitivity)))
	out.CostImpact = stats.NonNegative(r.CostImpact * (1 + stats.Finite(l.CostShift, 0)*weight(r.EscalationPersistence)))
	return out
}

// ApplyAll adjusts every record for scenario s.
func (c Config) ApplyAll(s Scenario, records []risk.Record) []risk.Record {
	lens := c.Lens(s)
	out := make([]risk.Record, len(records))
	for i, r := range records {
		out[i] = lens.Apply(r)
	}
	return out
}

// Sensitivity measures how far a risk's expected cost spreads across lenses,
// relative to its neutral expected cost, normalised to [0, 1].
func (c Config) Sensitivity(r risk.Record) float64 {
	neutral := c.Neutral.Apply(r).ExpectedCost()
	if !(neutral > 0) {
		return 0
	}
	lo := c.Conservative.Apply(r).ExpectedCost()
	hi := c.Aggressive.Apply(r).ExpectedCost()
	spread := stats.NonNegative((hi - lo) / neutral)

	limit := c.SpreadCap
	if !(limit > 0) {
		limit = DefaultConfig().SpreadCap
	}
	return stats.Normalize(spread, 0, limit)
}
