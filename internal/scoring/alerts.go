package scoring

import "riskquant/internal/stats"

// Alert is a non-exclusive tag attached to a ranked risk.
type Alert string

const (
	AlertCritical     Alert = "CRITICAL"
	AlertAccelerating Alert = "ACCELERATING"
	AlertVolatile     Alert = "VOLATILE"
	AlertUnstable     Alert = "UNSTABLE"
	AlertImproving    Alert = "IMPROVING"
	AlertEmerging     Alert = "EMERGING"
)

// Alerts derives the tag set for one risk, in a fixed order without duplicates.
func (s *Scorer) Alerts(r Resolved, composite float64, triggerHistory []float64) []Alert {
	t := s.cfg.Thresholds
	alerts := []Alert{}

	if composite >= t.Critical {
		alerts = append(alerts, AlertCritical)
	}
	if r.Velocity >= t.Accelerating {
		alerts = append(alerts, AlertAccelerating)
	}
	if r.Volatility >= t.Volatile {
		alerts = append(alerts, AlertVolatile)
	}
	if r.StabilityScore <= t.Unstable {
		alerts = append(alerts, AlertUnstable)
	}
	if r.StabilityScore >= t.Improving && r.Velocity < 0 {
		alerts = append(alerts, AlertImproving)
	}
	if emerging(triggerHistory, t.EmergingLatest, t.EmergingRise) {
		alerts = append(alerts, AlertEmerging)
	}
	return alerts
}

func emerging(history []float64, latestMin, riseMin float64) bool {
	clean := make([]float64, 0, len(history))
	for _, v := range history {
		if stats.IsFinite(v) {
			clean = append(clean, stats.Clamp01(v))
		}
	}
	if len(clean) < 2 {
		return false
	}
	first, latest := clean[0], clean[len(clean)-1]
	return latest >= latestMin-epsilon && latest-first >= riseMin-epsilon
}

// epsilon absorbs float noise in differences like 0.3-0.2.
const epsilon = 1e-9
