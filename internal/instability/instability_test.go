package instability

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"

	"riskquant/internal/scenario"
)

func TestCalculate_Golden(t *testing.T) {
	tests := []struct {
		name     string
		in       Inputs
		index    int
		level    Level
		scenario scenario.Scenario
		flags    []Flag
	}{
		{
			name:     "calm with no history",
			in:       Inputs{Confidence: 1, MomentumStability: 1},
			index:    0,
			level:    LevelLow,
			scenario: scenario.Neutral,
			flags:    []Flag{FlagLowHistory},
		},
		{
			name:     "fast and sensitive",
			in:       Inputs{Velocity: 8, Volatility: 1, MomentumStability: 0.5, ScenarioSensitivity: 0.8, Confidence: 0.7, HistoryDepth: 5},
			index:    55,
			level:    LevelHigh,
			scenario: scenario.Aggressive,
			flags:    []Flag{FlagHighScenarioSpread},
		},
		{
			name:     "negative velocity counts by magnitude",
			in:       Inputs{Velocity: -8, Volatility: 1, MomentumStability: 0.5, ScenarioSensitivity: 0.8, Confidence: 0.7, HistoryDepth: 5},
			index:    55,
			level:    LevelHigh,
			scenario: scenario.Aggressive,
			flags:    []Flag{FlagHighScenarioSpread},
		},
		{
			name:     "low confidence and volatile",
			in:       Inputs{Volatility: 4, MomentumStability: 1, Confidence: 0.3, HistoryDepth: 3},
			index:    30,
			level:    LevelModerate,
			scenario: scenario.Conservative,
			flags:    []Flag{FlagLowConfidence},
		},
		{
			name:     "saturated",
			in:       Inputs{Velocity: 20, Volatility: 10, ScenarioSensitivity: 1},
			index:    100,
			level:    LevelCritical,
			scenario: scenario.Conservative,
			flags:    []Flag{FlagLowHistory, FlagLowConfidence, FlagHighScenarioSpread},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.in)
			if got.Index != tt.index || got.Level != tt.level || got.RecommendedScenario != tt.scenario {
				t.Errorf("expected %d/%s/%s, got %d/%s/%s", tt.index, tt.level, tt.scenario, got.Index, got.Level, got.RecommendedScenario)
			}
			if diff := cmp.Diff(tt.flags, got.Flags); diff != "" {
				t.Errorf("flags mismatch (-want +got):\n%s", diff)
			}
			if len(got.Rationale) == 0 {
				t.Error("expected a rationale")
			}
		})
	}
}

func TestLevelFor_CutPoints(t *testing.T) {
	cases := map[int]Level{
		0: LevelLow, 24: LevelLow,
		25: LevelModerate, 49: LevelModerate,
		50: LevelHigh, 74: LevelHigh,
		75: LevelCritical, 100: LevelCritical,
	}
	for idx, want := range cases {
		if got := LevelFor(idx); got != want {
			t.Errorf("index %d: expected %s, got %s", idx, want, got)
		}
	}
}

func TestCalculate_AggressiveNeedsAllThree(t *testing.T) {
	base := Inputs{Velocity: 9, ScenarioSensitivity: 0.9, Confidence: 0.9, MomentumStability: 1, HistoryDepth: 5}
	if got := Calculate(base).RecommendedScenario; got != scenario.Aggressive {
		t.Fatalf("expected Aggressive, got %s", got)
	}

	lowConf := base
	lowConf.Confidence = 0.6
	if got := Calculate(lowConf).RecommendedScenario; got != scenario.Neutral {
		t.Errorf("confidence 0.6 should fall back to Neutral, got %s", got)
	}

	lowSens := base
	lowSens.ScenarioSensitivity = 0.5
	if got := Calculate(lowSens).RecommendedScenario; got != scenario.Neutral {
		t.Errorf("sensitivity 0.5 should fall back to Neutral, got %s", got)
	}
}

func TestCalculate_BoundedForAdversarialInputs(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 9))
	pool := []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1e12, 1e12, -1, 0, 0.5, 1, 7}
	pick := func() float64 { return pool[rng.IntN(len(pool))] }

	for i := 0; i < 1000; i++ {
		in := Inputs{pick(), pick(), pick(), pick(), pick(), rng.IntN(7) - 3}
		res := Calculate(in)
		if res.Index < 0 || res.Index > 100 {
			t.Fatalf("index escaped bounds for %+v: %d", in, res.Index)
		}
		b := res.Breakdown
		for _, v := range []float64{b.VelocityScore, b.VolatilityScore, b.SensitivityScore, b.ConfidencePenalty, b.MomentumPenalty} {
			if math.IsNaN(v) || v < 0 || v > 1 {
				t.Fatalf("sub-score escaped [0,1] for %+v: %+v", in, b)
			}
		}
	}
}

func TestCalculateFragility(t *testing.T) {
	ip := func(v int) *int { return &v }

	tests := []struct {
		name     string
		index    int
		previous *int
		conf     float64
		score    int
		band     FragilityBand
	}{
		{"worsening", 80, ip(60), 0.5, 80, FragilityStructural},
		{"first run", 30, nil, 0.9, 32, FragilityStable},
		{"recovering", 50, ip(70), 0.5, 35, FragilityStable},
		{"holding", 60, ip(60), 0.6, 53, FragilityWatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateFragility(tt.index, tt.previous, tt.conf)
			if got.Score != tt.score || got.Band != tt.band {
				t.Errorf("expected %d/%s, got %d/%s", tt.score, tt.band, got.Score, got.Band)
			}
		})
	}
}
