package scoring

import (
	"math"

	"riskquant/internal/stats"
)

// Metrics are the per-risk inputs to scoring. Nil fields are absent:
// absent trigger rate, velocity and volatility count as 0, absent stability
// counts as fully stable (100).
type Metrics struct {
	TriggerRate    *float64 `json:"triggerRate,omitempty"`
	Velocity       *float64 `json:"velocity,omitempty"`
	Volatility     *float64 `json:"volatility,omitempty"`
	StabilityScore *float64 `json:"stabilityScore,omitempty"`
}

// Float is a convenience for populating optional metrics.
func Float(v float64) *float64 { return &v }

// Resolved holds metrics after defaults and sanitisation.
type Resolved struct {
	TriggerRate    float64 `json:"triggerRate"`
	Velocity       float64 `json:"velocity"`
	Volatility     float64 `json:"volatility"`
	StabilityScore float64 `json:"stabilityScore"`
}

// Resolve applies absence defaults and strips non-finite values.
func (m Metrics) Resolve() Resolved {
	r := Resolved{StabilityScore: 100}
	if m.TriggerRate != nil {
		r.TriggerRate = stats.Clamp01(*m.TriggerRate)
	}
	if m.Velocity != nil {
		r.Velocity = stats.Finite(*m.Velocity, 0)
	}
	if m.Volatility != nil {
		r.Volatility = stats.NonNegative(*m.Volatility)
	}
	if m.StabilityScore != nil {
		r.StabilityScore = stats.Clamp(stats.Finite(*m.StabilityScore, 100), 0, 100)
	}
	return r
}

// ResolvedWeights always sum to 1 with every weight in [0, 1].
type ResolvedWeights struct {
	Trigger      float64 `json:"trigger"`
	Velocity     float64 `json:"velocity"`
	Volatility   float64 `json:"volatility"`
	Stability    float64 `json:"stability"`
	Renormalized bool    `json:"renormalized"`
}

// ResolveWeights derives the trigger weight. When the explicit weights
// exceed 1 they are scaled back proportionally and the trigger weight is 0.
func ResolveWeights(w Weights) ResolvedWeights {
	v := stats.NonNegative(w.Velocity)
	vol := stats.NonNegative(w.Volatility)
	s := stats.NonNegative(w.Stability)

	sum := v + vol + s
	if sum <= 1 {
		return ResolvedWeights{Trigger: 1 - sum, Velocity: v, Volatility: vol, Stability: s}
	}
	// Scale by the largest weight first so huge finite weights cannot
	// overflow the sum.
	top := max(v, vol, s)
	v, vol, s = v/top, vol/top, s/top
	sum = v + vol + s
	return ResolvedWeights{
		Velocity:     v / sum,
		Volatility:   vol / sum,
		Stability:    s / sum,
		Renormalized: true,
	}
}

// Breakdown shows each normalised component and its weighted contribution.
type Breakdown struct {
	Weights         ResolvedWeights `json:"weights"`
	TriggerNorm     float64         `json:"triggerNorm"`
	VelocityNorm    float64         `json:"velocityNorm"`
	VolatilityNorm  float64         `json:"volatilityNorm"`
	InstabilityNorm float64         `json:"instabilityNorm"`
	Trigger         float64         `json:"trigger"`
	Velocity        float64         `json:"velocity"`
	Volatility      float64         `json:"volatility"`
	Instability     float64         `json:"instability"`
}

// Score is a 0-100 composite with its breakdown.
type Score struct {
	Composite float64   `json:"compositeScore"`
	Breakdown Breakdown `json:"breakdown"`
}

// Scorer computes composite scores and rankings for one configuration.
type Scorer struct {
	cfg     Config
	weights ResolvedWeights
}

// NewScorer builds a scorer. Non-positive scale and cap fall back to defaults.
func NewScorer(cfg Config) *Scorer {
	def := DefaultConfig()
	if !(cfg.VelocityScale > 0) || !stats.IsFinite(cfg.VelocityScale) {
		cfg.VelocityScale = def.VelocityScale
	}
	if !(cfg.VolatilityCap > 0) || !stats.IsFinite(cfg.VolatilityCap) {
		cfg.VolatilityCap = def.VolatilityCap
	}
	return &Scorer{cfg: cfg, weights: ResolveWeights(cfg.Weights)}
}

// Config returns the effective configuration.
func (s *Scorer) Config() Config { return s.cfg }

// Score computes the composite score for one risk.
func (s *Scorer) Score(m Metrics) Score {
	return s.score(m.Resolve())
}

func (s *Scorer) score(r Resolved) Score {
	w := s.weights
	b := Breakdown{
		Weights:         w,
		TriggerNorm:     r.TriggerRate,
		VelocityNorm:    stats.Clamp01(math.Tanh(r.Velocity / s.cfg.VelocityScale)),
		VolatilityNorm:  stats.Clamp01(r.Volatility / s.cfg.VolatilityCap),
		InstabilityNorm: stats.Clamp01((100 - r.StabilityScore) / 100),
	}
	b.Trigger = w.Trigger * b.TriggerNorm * 100
	b.Velocity = w.Velocity * b.VelocityNorm * 100
	b.Volatility = w.Volatility * b.VolatilityNorm * 100
	b.Instability = w.Stability * b.InstabilityNorm * 100

	composite := b.Trigger + b.Velocity + b.Volatility + b.Instability
	return Score{
		Composite: stats.Clamp(composite, 0, 100),
		Breakdown: b,
	}
}
