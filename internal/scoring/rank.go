package scoring

import (
	"cmp"
	"slices"
	"strings"
)

// Input is one risk to be scored and ranked.
type Input struct {
	RiskID  string  `json:"riskId"`
	Title   string  `json:"title"`
	Metrics Metrics `json:"metrics"`
	// TriggerHistory is oldest first and feeds the EMERGING alert.
	TriggerHistory []float64 `json:"triggerHistory,omitempty"`
}

// Ranked is a scored risk with its position in the ranking.
type Ranked struct {
	RiskID  string   `json:"riskId"`
	Title   string   `json:"title"`
	Rank    int      `json:"rank"`
	Metrics Resolved `json:"metrics"`
	Score
	Alerts []Alert `json:"alerts"`
}

// Rank scores every input and orders them deterministically. The output
// does not depend on the order of inputs.
func (s *Scorer) Rank(inputs []Input) []Ranked {
	out := make([]Ranked, len(inputs))
	for i, in := range inputs {
		r := in.Metrics.Resolve()
		sc := s.score(r)
		out[i] = Ranked{
			RiskID:  in.RiskID,
			Title:   in.Title,
			Metrics: r,
			Score:   sc,
			Alerts:  s.Alerts(r, sc.Composite, in.TriggerHistory),
		}
	}

	slices.SortStableFunc(out, compareRanked)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func compareRanked(a, b Ranked) int {
	if c := cmp.Compare(b.Composite, a.Composite); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Metrics.TriggerRate, a.Metrics.TriggerRate); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Metrics.Velocity, a.Metrics.Velocity); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Metrics.Volatility, a.Metrics.Volatility); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Metrics.StabilityScore, b.Metrics.StabilityScore); c != 0 {
		return c
	}
	if c := cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); c != 0 {
		return c
	}
	return cmp.Compare(a.RiskID, b.RiskID)
}
