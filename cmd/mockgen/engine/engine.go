package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"riskquant/internal/history"
	"riskquant/internal/risk"
	"riskquant/internal/stats"

	"gopkg.in/yaml.v3"
)

// Scenario names a score-history shape.
const (
	ScenarioMild  = "mild"
	ScenarioChaos = "chaos"
	ScenarioDrift = "drift"
)

type GeneratorConfig struct {
	Scenario     string
	Distribution string // "uniform" or "weibull"
	Count        int
	Cycles       int
	Seed         uint64
	Now          time.Time
}

// Dataset is a generated register with a recorded score history per risk.
type Dataset struct {
	Risks   []risk.Draft
	History map[string][]history.Snapshot
}

func Generate(cfg GeneratorConfig) Dataset {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now().UTC()
	}
	cfg.Cycles = min(max(cfg.Cycles, 0), history.MaxSnapshots)
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9E3779B97F4A7C15))

	ds := Dataset{History: make(map[string][]history.Snapshot, cfg.Count)}

	for i := 0; i < cfg.Count; i++ {
		id := fmt.Sprintf("MOCK-%03d", i+1)

		// 1. Register fields
		probability := 0.05 + rng.Float64()*0.6
		var cost float64
		if cfg.Distribution == "weibull" {
			// Heavy right tail: most risks are cheap, a few are very expensive.
			cost = 20_000 * weibullSample(rng, 0.9, 4)
		} else {
			cost = 20_000 + rng.Float64()*480_000
		}
		cost = math.Round(cost/1000) * 1000
		days := math.Round(rng.Float64() * 60)
		persistence := rng.Float64()
		sensitivity := rng.Float64()

		d := risk.Draft{
			ID:                    id,
			Title:                 fmt.Sprintf("Synthetic risk %d", i+1),
			Probability:           &probability,
			CostImpact:            &cost,
			ScheduleImpactDays:    &days,
			EscalationPersistence: &persistence,
			Sensitivity:           &sensitivity,
		}
		if rng.Float64() < 0.5 {
			eff, conf := 0.2+rng.Float64()*0.6, 0.3+rng.Float64()*0.6
			d.Mitigation = &risk.MitigationDraft{Effectiveness: &eff, Confidence: &conf}
		}
		ds.Risks = append(ds.Risks, d)

		// 2. Score history
		if cfg.Cycles == 0 {
			continue
		}
		base := 20 + rng.Float64()*45
		slope := 2 + rng.Float64()*4
		snaps := make([]history.Snapshot, 0, cfg.Cycles)
		for c := 0; c < cfg.Cycles; c++ {
			score := base
			switch cfg.Scenario {
			case ScenarioChaos:
				score += (rng.Float64()*2 - 1) * 15
			case ScenarioDrift:
				score += slope*float64(c) + (rng.Float64()*2-1)*2
			default:
				score += (rng.Float64()*2 - 1) * 2
			}
			score = stats.Round(stats.Clamp(score, 0, 100), 2)

			ts := cfg.Now.AddDate(0, 0, -7*(cfg.Cycles-1-c))
			snaps = append(snaps, history.Snapshot{
				RiskID:      id,
				Cycle:       c + 1,
				Timestamp:   ts,
				Score:       score,
				TriggerRate: stats.Clamp01(probability + (rng.Float64()*2-1)*0.03),
				SimMeanCost: probability * cost * (score / base),
			})
		}
		ds.History[id] = snaps
	}

	return ds
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Save writes register.yaml into outDir and the history as JSONL under
// outDir/history, the layout the file history backend reads.
func Save(ctx context.Context, outDir string, ds Dataset) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(risk.Register{Risks: ds.Risks})
	if err != nil {
		return fmt.Errorf("failed to encode register: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "register.yaml"), data, 0644); err != nil {
		return fmt.Errorf("failed to write register: %w", err)
	}

	persister := history.NewFilePersister(filepath.Join(outDir, "history"))
	for id, snaps := range ds.History {
		if err := persister.Save(ctx, id, snaps); err != nil {
			return err
		}
	}
	return nil
}
