package history

import (
	"math"

	"riskquant/internal/stats"
)

// MetricsConfig controls how history is condensed into trend metrics.
type MetricsConfig struct {
	Window            int     `json:"window" yaml:"window"`
	MaxMomentum       float64 `json:"maxMomentum" yaml:"maxMomentum"`
	StabilityRangeCap float64 `json:"stabilityRangeCap" yaml:"stabilityRangeCap"`
	DeltaSpreadCap    float64 `json:"deltaSpreadCap" yaml:"deltaSpreadCap"`
	BaseConfidence    float64 `json:"baseConfidence" yaml:"baseConfidence"`
	MaxConfidence     float64 `json:"maxConfidence" yaml:"maxConfidence"`
}

// DefaultMetricsConfig returns the stock trend settings.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Window:            5,
		MaxMomentum:       10,
		StabilityRangeCap: 40,
		DeltaSpreadCap:    10,
		BaseConfidence:    0.2,
		MaxConfidence:     0.9,
	}
}

// Metrics are the trend figures derived from a risk's recent snapshots.
type Metrics struct {
	Depth int `json:"depth"`
	// Velocity is the per-cycle slope of simulated mean cost relative to its mean.
	Velocity float64 `json:"velocity"`
	// Momentum is the per-cycle slope of the composite score.
	Momentum float64 `json:"momentum"`
	// Volatility is the standard deviation of score changes between cycles.
	Volatility        float64   `json:"volatility"`
	StabilityScore    float64   `json:"stabilityScore"`
	MomentumStability float64   `json:"momentumStability"`
	Confidence        float64   `json:"confidence"`
	TriggerRates      []float64 `json:"triggerRates,omitempty"`
}

// Derive condenses the newest cfg.Window snapshots of snaps into trend metrics.
// Empty or single-entry histories produce zero motion and full stability.
func Derive(snaps []Snapshot, cfg MetricsConfig) Metrics {
	if cfg.Window <= 0 {
		cfg.Window = DefaultMetricsConfig().Window
	}
	recent := Tail(snaps, cfg.Window)

	scores := make([]float64, len(recent))
	costs := make([]float64, len(recent))
	rates := make([]float64, len(recent))
	for i, s := range recent {
		scores[i] = stats.Clamp(s.Score, 0, 100)
		costs[i] = stats.NonNegative(s.SimMeanCost)
		rates[i] = stats.Clamp01(s.TriggerRate)
	}

	m := Metrics{
		Depth:          len(snaps),
		Momentum:       Momentum(scores, cfg.MaxMomentum),
		Velocity:       relativeSlope(costs),
		StabilityScore: stats.StabilityScore(scores, cfg.StabilityRangeCap),
		TriggerRates:   rates,
	}

	deltas := stats.Deltas(scores)
	m.Volatility = stats.StdDev(deltas)
	m.MomentumStability = 1 - stats.Normalize(m.Volatility, 0, cfg.DeltaSpreadCap)
	m.Confidence = confidence(len(recent), m.Volatility, cfg)

	return m
}

// Momentum is the least-squares slope of scores, bounded to ±maxMomentum.
func Momentum(scores []float64, maxMomentum float64) float64 {
	if len(scores) < 2 {
		return 0
	}
	if maxMomentum <= 0 || !stats.IsFinite(maxMomentum) {
		maxMomentum = DefaultMetricsConfig().MaxMomentum
	}
	return stats.Clamp(stats.Slope(scores), -maxMomentum, maxMomentum)
}

func relativeSlope(values []float64) float64 {
	mean := stats.Mean(values)
	if mean <= 0 {
		return 0
	}
	return stats.Finite(stats.Slope(values)/mean, 0)
}

// confidence grows with history depth and shrinks as cycle-to-cycle swings widen.
func confidence(depth int, volatility float64, cfg MetricsConfig) float64 {
	base := stats.Clamp01(cfg.BaseConfidence)
	top := math.Max(base, stats.Clamp01(cfg.MaxConfidence))

	depthFactor := stats.Clamp01(float64(depth) / float64(cfg.Window))
	c := base + (top-base)*depthFactor
	c *= 1 - 0.5*stats.Normalize(volatility, 0, cfg.DeltaSpreadCap)
	return stats.Clamp01(c)
}
