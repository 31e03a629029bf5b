package forecast

import (
	"math"
	"math/rand/v2"
	"testing"

	"riskquant/internal/history"
)

func scoreHistory(scores ...float64) []history.Snapshot {
	out := make([]history.Snapshot, len(scores))
	for i, s := range scores {
		out[i] = history.Snapshot{RiskID: "R", Cycle: i + 1, Score: s}
	}
	return out
}

func TestBuildRiskForecast_NoHistoryIsFlat(t *testing.T) {
	p := NewProjector(DefaultConfig())

	for _, snaps := range [][]history.Snapshot{nil, scoreHistory(35)} {
		f := p.BuildRiskForecast("R", nil, snaps)
		if f.Momentum != 0 {
			t.Errorf("depth %d: expected zero momentum, got %v", len(snaps), f.Momentum)
		}
		if f.ProjectedCritical {
			t.Errorf("depth %d: flat forecast must not project critical", len(snaps))
		}
		if len(f.Points) != 5 {
			t.Fatalf("depth %d: expected 5 points, got %d", len(snaps), len(f.Points))
		}
		for _, pt := range f.Points {
			if pt.Score != f.CurrentScore || pt.Delta != 0 {
				t.Errorf("depth %d: expected flat point at %v, got %+v", len(snaps), f.CurrentScore, pt)
			}
		}
	}
}

func TestBuildRiskForecast_ConstantHistoryIsFlat(t *testing.T) {
	f := NewProjector(DefaultConfig()).BuildRiskForecast("R", nil, scoreHistory(60, 60, 60, 60))
	if f.Momentum != 0 || f.Final() != 60 {
		t.Errorf("expected flat forecast at 60, got momentum %v final %v", f.Momentum, f.Final())
	}
}

func TestProject_DecayAndCrossing(t *testing.T) {
	p := NewProjector(DefaultConfig())
	f := p.Project("R", 60, 10, 0.8)

	want := []float64{70, 78.5, 85.725, 91.86625, 97.0863125}
	for i, w := range want {
		if math.Abs(f.Points[i].Score-w) > 1e-9 {
			t.Errorf("step %d: expected %v, got %v", i+1, w, f.Points[i].Score)
		}
	}
	if f.TimeToCritical == nil || *f.TimeToCritical != 3 {
		t.Errorf("expected time to critical 3, got %v", f.TimeToCritical)
	}
	if !f.ProjectedCritical || f.Status != StatusProjectedCritical {
		t.Errorf("expected projected critical, got %v/%s", f.ProjectedCritical, f.Status)
	}
	if math.Abs(f.Points[0].Confidence-0.8*0.92) > 1e-12 {
		t.Errorf("expected decayed confidence, got %v", f.Points[0].Confidence)
	}
	if f.Points[2].Band != BandCritical || f.Points[0].Band != BandHigh {
		t.Errorf("unexpected bands: %s, %s", f.Points[0].Band, f.Points[2].Band)
	}
}

func TestProject_AlreadyCritical(t *testing.T) {
	f := NewProjector(DefaultConfig()).Project("R", 85, 0, 0.5)
	if f.ProjectedCritical {
		t.Error("already-critical risk must not report a projected crossing")
	}
	if !f.AlreadyCritical || f.Status != StatusAlreadyCritical {
		t.Errorf("expected already critical status, got %s", f.Status)
	}
	if f.TimeToCritical == nil || *f.TimeToCritical != 1 {
		t.Errorf("expected time to critical 1 for a risk that stays critical, got %v", f.TimeToCritical)
	}

	never := NewProjector(DefaultConfig()).Project("R", 20, 0, 0.5)
	if never.Status != StatusNotCritical || never.TimeToCritical != nil {
		t.Errorf("expected never-critical status, got %s / %v", never.Status, never.TimeToCritical)
	}
}

func TestProject_BoundedForAdversarialInputs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 200
	p := NewProjector(cfg)

	rng := rand.New(rand.NewPCG(7, 7))
	pool := []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1e9, 1e9, -50, 0, 50, 150}
	for i := 0; i < 500; i++ {
		f := p.Project("R", pool[rng.IntN(len(pool))], pool[rng.IntN(len(pool))], pool[rng.IntN(len(pool))])
		for _, pt := range f.Points {
			if math.IsNaN(pt.Score) || pt.Score < 0 || pt.Score > 100 {
				t.Fatalf("score escaped bounds: %+v", pt)
			}
			if math.IsNaN(pt.Confidence) || pt.Confidence < 0 || pt.Confidence > 1 {
				t.Fatalf("confidence escaped bounds: %+v", pt)
			}
		}
	}
}

func TestNewProjector_SanitisesConfig(t *testing.T) {
	p := NewProjector(Config{Horizon: -1, MomentumDecay: 3, ConfidenceDecay: math.NaN()})
	cfg := p.Config()
	def := DefaultConfig()
	if cfg.Horizon != def.Horizon || cfg.MomentumDecay != def.MomentumDecay || cfg.ConfidenceDecay != def.ConfidenceDecay {
		t.Errorf("expected defaults for invalid config, got %+v", cfg)
	}
	if cfg.Bands != def.Bands {
		t.Errorf("expected default bands, got %+v", cfg.Bands)
	}
}
