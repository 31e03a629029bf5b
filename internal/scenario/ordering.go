package scenario

import (
	"errors"
	"fmt"

	"riskquant/internal/forecast"
)

// ErrScenarioOrderingViolation is returned when lens time-to-critical values
// do not satisfy conservative >= neutral >= aggressive.
var ErrScenarioOrderingViolation = errors.New("scenario ordering violation")

// TTC holds time-to-critical per lens. Nil means never critical in the horizon.
type TTC struct {
	Conservative *int `json:"conservative"`
	Neutral      *int `json:"neutral"`
	Aggressive   *int `json:"aggressive"`
}

// atLeast reports a >= b with nil treated as infinity.
func atLeast(a, b *int) bool {
	switch {
	case a == nil:
		return true
	case b == nil:
		return false
	default:
		return *a >= *b
	}
}

func show(v *int) string {
	if v == nil {
		return "never"
	}
	return fmt.Sprint(*v)
}

// ValidateOrdering checks conservative >= neutral >= aggressive.
func ValidateOrdering(riskID string, t TTC) error {
	if !atLeast(t.Conservative, t.Neutral) || !atLeast(t.Neutral, t.Aggressive) {
		return fmt.Errorf("%w: risk %s has conservative=%s neutral=%s aggressive=%s",
			ErrScenarioOrderingViolation, riskID, show(t.Conservative), show(t.Neutral), show(t.Aggressive))
	}
	return nil
}

// Forecasts are per-lens projections of one risk.
type Forecasts struct {
	RiskID       string            `json:"riskId"`
	Conservative forecast.Forecast `json:"conservative"`
	Neutral      forecast.Forecast `json:"neutral"`
	Aggressive   forecast.Forecast `json:"aggressive"`
	TTC          TTC               `json:"ttc"`
	Consistent   bool              `json:"consistent"`
}

// Project runs the projector once per lens, scaling momentum by each lens.
func (c Config) Project(p *forecast.Projector, riskID string, in forecast.Inputs) (Forecasts, error) {
	run := func(s Scenario) forecast.Forecast {
		scale := c.Lens(s).MomentumScale
		if !(scale >= 0) {
			scale = 1
		}
		return p.Project(riskID, in.Current, in.Momentum*scale, in.Confidence)
	}

	out := Forecasts{
		RiskID:       riskID,
		Conservative: run(Conservative),
		Neutral:      run(Neutral),
		Aggressive:   run(Aggressive),
	}
	out.TTC = TTC{
		Conservative: out.Conservative.TimeToCritical,
		Neutral:      out.Neutral.TimeToCritical,
		Aggressive:   out.Aggressive.TimeToCritical,
	}

	err := ValidateOrdering(riskID, out.TTC)
	out.Consistent = err == nil
	return out, err
}
