package simulation_test

import (
	"context"
	"math"
	"testing"

	"riskquant/internal/risk"
	"riskquant/internal/simulation"
	"riskquant/internal/stats"
)

func ptr(v int64) *int64 { return &v }

// Values below are pinned against an independent reference. They depend on
// the per-iteration sub-stream scheme, not on one mulberry32 stream: the user
// seed folds to 32 bits (low ^ high), iteration i seeds its own mulberry32
// with fmix32(base + (i+1)*0x9E3779B9), and the risks draw from that stream in
// register order. Any change in seeding or sampling order breaks them.
func TestSimulation_Golden(t *testing.T) {
	tests := []struct {
		name        string
		records     []risk.Record
		iterations  int
		seed        int64
		cost        stats.Summary
		time        stats.Summary
		triggerRate []float64
	}{
		{
			name:        "single coin-flip risk",
			records:     []risk.Record{{ID: "R-1", Probability: 0.5, CostImpact: 100_000}},
			iterations:  1000,
			seed:        42,
			cost:        stats.Summary{P50: 0, P80: 100_000, P90: 100_000, Mean: 48_200, Min: 0, Max: 100_000},
			time:        stats.Summary{},
			triggerRate: []float64{0.482},
		},
		{
			name: "three mixed risks",
			records: []risk.Record{
				{ID: "R-1", Probability: 0.3, CostImpact: 250_000, ScheduleImpactDays: 20},
				{ID: "R-2", Probability: 0.6, CostImpact: 80_000, ScheduleImpactDays: 5},
				{ID: "R-3", Probability: 0.1, CostImpact: 1_500_000, ScheduleImpactDays: 60},
			},
			iterations:  1000,
			seed:        7,
			cost:        stats.Summary{P50: 80_000, P80: 330_000, P90: 330_000, Mean: 264_820},
			time:        stats.Summary{P50: 5, P80: 25, P90: 25, Mean: 14.64},
			triggerRate: []float64{0.296, 0.604, 0.095},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, workers := range []int{1, 4} {
				engine := simulation.NewEngine(simulation.Config{Workers: workers})
				res, err := engine.Run(context.Background(), tt.records, simulation.Options{Iterations: tt.iterations, Seed: ptr(tt.seed)})
				if err != nil {
					t.Fatalf("run failed: %v", err)
				}
				s := res.Summary

				checkSummary(t, "cost", s.Cost, tt.cost)
				checkSummary(t, "time", s.Time, tt.time)

				for i, want := range tt.triggerRate {
					if got := s.Risks[i].TriggerRate; math.Abs(got-want) > 1e-12 {
						t.Errorf("workers=%d risk %s: expected trigger rate %v, got %v", workers, s.Risks[i].RiskID, want, got)
					}
				}
			}
		})
	}
}

func checkSummary(t *testing.T, label string, got, want stats.Summary) {
	t.Helper()
	pairs := []struct {
		name      string
		got, want float64
	}{
		{"P50", got.P50, want.P50},
		{"P80", got.P80, want.P80},
		{"P90", got.P90, want.P90},
		{"Mean", got.Mean, want.Mean},
	}
	for _, p := range pairs {
		if math.Abs(p.got-p.want) > 1e-9 {
			t.Errorf("%s %s: expected %v, got %v", label, p.name, p.want, p.got)
		}
	}
}

func TestSimulation_ExpectedValueConvergence(t *testing.T) {
	records := []risk.Record{
		{ID: "A", Probability: 0.25, CostImpact: 400_000},
		{ID: "B", Probability: 0.75, CostImpact: 40_000},
	}
	engine := simulation.NewEngine(simulation.DefaultConfig())
	res, err := engine.Run(context.Background(), records, simulation.Options{Iterations: 50_000, Seed: ptr(2024)})
	if err != nil {
		t.Fatal(err)
	}

	expected := 0.25*400_000 + 0.75*40_000
	if rel := math.Abs(res.Summary.Cost.Mean-expected) / expected; rel > 0.02 {
		t.Errorf("simulated mean %v drifted %.2f%% from expected %v", res.Summary.Cost.Mean, rel*100, expected)
	}
	for _, r := range res.Summary.Risks {
		if math.Abs(r.TriggerRate-r.Probability) > 0.01 {
			t.Errorf("risk %s: trigger rate %v far from probability %v", r.RiskID, r.TriggerRate, r.Probability)
		}
	}
}
