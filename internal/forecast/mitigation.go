package forecast

import (
	"riskquant/internal/history"
	"riskquant/internal/risk"
	"riskquant/internal/stats"
)

// MitigationForecast pairs the unmitigated trajectory with a mitigated one.
type MitigationForecast struct {
	RiskID    string   `json:"riskId"`
	Strength  float64  `json:"mitigationStrength"`
	Baseline  Forecast `json:"baseline"`
	Mitigated Forecast `json:"mitigated"`
	// MitigationInsufficient is true when the mitigated trajectory still
	// reaches the critical band within the horizon.
	MitigationInsufficient bool `json:"mitigationInsufficient"`
	// StepsGained is how much later the mitigated forecast goes critical
	// than the baseline; nil unless the baseline crosses.
	StepsGained *int `json:"stepsGained,omitempty"`
}

// SanitizeStrength returns s when it is a finite value in [0, 1], else 0.
func SanitizeStrength(s *float64) float64 {
	if s == nil || !stats.IsFinite(*s) || *s < 0 || *s > 1 {
		return 0
	}
	return *s
}

// StrengthOf derives mitigation strength from a risk's mitigation profile.
func StrengthOf(m *risk.Mitigation) float64 {
	if m == nil {
		return 0
	}
	return stats.Clamp01(m.Effectiveness) * stats.Clamp01(m.Confidence)
}

// StressTest builds baseline and mitigated forecasts from the same starting point.
// A missing or invalid strength leaves the mitigated forecast equal to baseline.
func (p *Projector) StressTest(riskID string, current *float64, snaps []history.Snapshot, strength *float64) MitigationForecast {
	in := p.InputsFromHistory(current, snaps)
	return p.StressTestFrom(riskID, in, strength)
}

// StressTestFrom is StressTest over already-resolved inputs.
func (p *Projector) StressTestFrom(riskID string, in Inputs, strength *float64) MitigationForecast {
	s := SanitizeStrength(strength)
	base := p.Project(riskID, in.Current, in.Momentum, in.Confidence)
	mitigated := p.Project(riskID, in.Current, in.Momentum*(1-s), in.Confidence)

	mf := MitigationForecast{
		RiskID:                 riskID,
		Strength:               s,
		Baseline:               base,
		Mitigated:              mitigated,
		MitigationInsufficient: mitigated.TimeToCritical != nil,
	}
	if base.TimeToCritical != nil {
		gained := p.cfg.Horizon + 1 - *base.TimeToCritical
		if mitigated.TimeToCritical != nil {
			gained = *mitigated.TimeToCritical - *base.TimeToCritical
		}
		mf.StepsGained = &gained
	}
	return mf
}
