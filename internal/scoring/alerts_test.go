package scoring

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAlerts(t *testing.T) {
	s := NewScorer(DefaultConfig())

	tests := []struct {
		name      string
		r         Resolved
		composite float64
		history   []float64
		want      []Alert
	}{
		{"quiet", Resolved{StabilityScore: 70}, 10, nil, []Alert{}},
		{"critical", Resolved{StabilityScore: 70}, 75, nil, []Alert{AlertCritical}},
		{"accelerating and volatile", Resolved{Velocity: 0.2, Volatility: 0.5, StabilityScore: 70}, 40, nil, []Alert{AlertAccelerating, AlertVolatile}},
		{"unstable", Resolved{StabilityScore: 50}, 0, nil, []Alert{AlertUnstable}},
		{"improving", Resolved{Velocity: -0.1, StabilityScore: 90}, 0, nil, []Alert{AlertImproving}},
		{"stable but flat is not improving", Resolved{Velocity: 0, StabilityScore: 90}, 0, nil, []Alert{}},
		{"emerging", Resolved{StabilityScore: 70}, 0, []float64{0.1, 0.15, 0.2}, []Alert{AlertEmerging}},
		{"emerging float edge", Resolved{StabilityScore: 70}, 0, []float64{0.2, 0.3}, []Alert{AlertEmerging}},
		{"rise too small", Resolved{StabilityScore: 70}, 0, []float64{0.15, 0.22}, []Alert{}},
		{"latest too low", Resolved{StabilityScore: 70}, 0, []float64{0.0, 0.15}, []Alert{}},
		{"single point", Resolved{StabilityScore: 70}, 0, []float64{0.9}, []Alert{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Alerts(tt.r, tt.composite, tt.history)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("alerts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAlerts_ThresholdsConfigurable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds.Critical = 30
	s := NewScorer(cfg)

	got := s.Alerts(Resolved{StabilityScore: 70}, 35, nil)
	if diff := cmp.Diff([]Alert{AlertCritical}, got); diff != "" {
		t.Errorf("expected configured critical threshold to apply (-want +got):\n%s", diff)
	}
}
