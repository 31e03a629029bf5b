package simulation

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"riskquant/internal/risk"
	"riskquant/internal/stats"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultIterations is the iteration count used when callers do not choose one.
const DefaultIterations = 10000

// SamplingMode selects how a triggered risk contributes to an iteration.
type SamplingMode string

const (
	// SamplingFixed adds the most-likely cost and days on a single trigger draw.
	SamplingFixed SamplingMode = "fixed"
	// SamplingTriangular draws cost and schedule triggers independently and
	// samples each impact from a triangular distribution around the mode.
	SamplingTriangular SamplingMode = "triangular"
)

// Config tunes the engine.
type Config struct {
	Iterations int          `json:"iterations" yaml:"iterations"`
	Mode       SamplingMode `json:"mode" yaml:"mode"`
	Spread     float64      `json:"spread" yaml:"spread"`
	Workers    int          `json:"workers" yaml:"workers"`
	ChunkSize  int          `json:"chunkSize" yaml:"chunkSize"`
}

// DefaultConfig returns the stock engine configuration.
func DefaultConfig() Config {
	return Config{
		Iterations: DefaultIterations,
		Mode:       SamplingFixed,
		Spread:     0.2,
		Workers:    runtime.NumCPU(),
		ChunkSize:  1024,
	}
}

// Options are the per-run inputs. Iterations is taken literally: zero or
// negative yields a degenerate all-zero result.
type Options struct {
	Iterations int    `json:"iterations"`
	Seed       *int64 `json:"seed,omitempty"`
}

// RiskSummary is the per-risk breakdown of a run.
type RiskSummary struct {
	RiskID       string  `json:"riskId"`
	Probability  float64 `json:"probability"`
	CostImpact   float64 `json:"costImpact"`
	ExpectedCost float64 `json:"expectedCost"`
	ExpectedDays float64 `json:"expectedDays"`
	SimMeanCost  float64 `json:"simMeanCost"`
	SimMeanDays  float64 `json:"simMeanDays"`
	SimStdDev    float64 `json:"simStdDev"`
	TriggerRate  float64 `json:"triggerRate"`
}

// Snapshot is the immutable summary of one Monte Carlo run.
type Snapshot struct {
	Iterations int           `json:"iterations"`
	Seed       *int64        `json:"seed,omitempty"`
	Mode       SamplingMode  `json:"mode"`
	Cost       stats.Summary `json:"cost"`
	Time       stats.Summary `json:"time"`
	Risks      []RiskSummary `json:"risks"`
	Tail       TailReport    `json:"tail"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// P80Cost is the baseline figure used by mitigation optimisation.
func (s Snapshot) P80Cost() float64 { return s.Cost.P80 }

// Risk returns the per-risk breakdown for id.
func (s Snapshot) Risk(id string) (RiskSummary, bool) {
	for _, r := range s.Risks {
		if r.RiskID == id {
			return r, true
		}
	}
	return RiskSummary{}, false
}

// Result holds sorted samples plus their summary.
type Result struct {
	CostSamples []float64 `json:"costSamples"`
	TimeSamples []float64 `json:"timeSamples"`
	Summary     Snapshot  `json:"summary"`
}

// Engine performs the Monte-Carlo simulation.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine, filling unset config fields from DefaultConfig.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Mode == "" {
		cfg.Mode = def.Mode
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if !stats.IsFinite(cfg.Spread) || cfg.Spread < 0 {
		cfg.Spread = def.Spread
	}
	cfg.Spread = math.Min(cfg.Spread, 1)
	if cfg.Iterations <= 0 {
		cfg.Iterations = def.Iterations
	}
	return &Engine{cfg: cfg}
}

// DefaultOptions returns options carrying the configured iteration count.
func (e *Engine) DefaultOptions() Options {
	return Options{Iterations: e.cfg.Iterations}
}

type riskInput struct {
	p, cost, days float64
}

type riskAcc struct {
	cost     stats.Welford
	days     stats.Welford
	triggers int64
}

// Run simulates the given risks. Iterations are processed in fixed-size
// chunks across workers; with a seed, output is bit-identical regardless of
// worker count.
func (e *Engine) Run(ctx context.Context, records []risk.Record, opts Options) (Result, error) {
	start := time.Now()
	n := opts.Iterations
	if n < 0 {
		n = 0
	}

	snap := Snapshot{
		Iterations: n,
		Seed:       opts.Seed,
		Mode:       e.cfg.Mode,
		Risks:      make([]RiskSummary, len(records)),
		CreatedAt:  time.Now().UTC(),
	}

	inputs := make([]riskInput, len(records))
	for i, r := range records {
		in := riskInput{
			p:    risk.ParseProbability(r.Probability).OrElse(0),
			cost: math.Min(stats.NonNegative(r.CostImpact), risk.MaxAmount),
			days: math.Min(stats.NonNegative(r.ScheduleImpactDays), risk.MaxAmount),
		}
		inputs[i] = in
		snap.Risks[i] = RiskSummary{
			RiskID:       r.ID,
			Probability:  in.p,
			CostImpact:   in.cost,
			ExpectedCost: in.p * in.cost,
			ExpectedDays: in.p * in.days,
		}
	}

	if n == 0 || len(records) == 0 {
		return Result{CostSamples: []float64{}, TimeSamples: []float64{}, Summary: snap}, nil
	}

	var base uint32
	if opts.Seed != nil {
		base = baseSeed(*opts.Seed)
	} else {
		base = rand.Uint32()
	}

	costSamples := make([]float64, n)
	timeSamples := make([]float64, n)

	chunkSize := e.cfg.ChunkSize
	chunks := (n + chunkSize - 1) / chunkSize
	accs := make([][]riskAcc, chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for c := 0; c < chunks; c++ {
		lo := c * chunkSize
		hi := min(lo+chunkSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			accs[c] = e.runChunk(inputs, base, lo, hi, costSamples, timeSamples)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	// Merge in chunk order so floating-point results are reproducible.
	merged := make([]riskAcc, len(inputs))
	for _, chunk := range accs {
		for k := range merged {
			merged[k].cost.Merge(chunk[k].cost)
			merged[k].days.Merge(chunk[k].days)
			merged[k].triggers += chunk[k].triggers
		}
	}
	for k, acc := range merged {
		rs := &snap.Risks[k]
		rs.SimMeanCost = stats.Finite(acc.cost.Mean, 0)
		rs.SimMeanDays = stats.Finite(acc.days.Mean, 0)
		rs.SimStdDev = acc.cost.StdDev()
		rs.TriggerRate = float64(acc.triggers) / float64(n)
	}

	corr := CalculateCorrelation(costSamples, timeSamples)
	snap.Cost = stats.Summarize(costSamples)
	snap.Time = stats.Summarize(timeSamples)
	snap.Tail = analyzeTail(costSamples, corr)

	log.Debug().
		Int("risks", len(records)).
		Int("iterations", n).
		Int("chunks", chunks).
		Int("workers", e.cfg.Workers).
		Bool("seeded", opts.Seed != nil).
		Dur("elapsed", time.Since(start)).
		Msg("Monte Carlo run complete")

	return Result{CostSamples: costSamples, TimeSamples: timeSamples, Summary: snap}, nil
}

func (e *Engine) runChunk(inputs []riskInput, base uint32, lo, hi int, costOut, timeOut []float64) []riskAcc {
	acc := make([]riskAcc, len(inputs))
	spread := e.cfg.Spread
	triangularMode := e.cfg.Mode == SamplingTriangular

	for i := lo; i < hi; i++ {
		rng := newMulberry32(iterationSeed(base, i))
		totalCost, totalDays := 0.0, 0.0

		for k, in := range inputs {
			cost, days := 0.0, 0.0
			if triangularMode {
				if rng.Float64() < in.p {
					cost = triangular(rng.Float64(), in.cost*(1-spread), in.cost, in.cost*(1+spread))
					acc[k].triggers++
				}
				if rng.Float64() < in.p {
					days = triangular(rng.Float64(), in.days*(1-spread), in.days, in.days*(1+spread))
				}
			} else if rng.Float64() < in.p {
				cost, days = in.cost, in.days
				acc[k].triggers++
			}

			acc[k].cost.Add(cost)
			acc[k].days.Add(days)
			totalCost += cost
			totalDays += days
		}

		costOut[i] = totalCost
		timeOut[i] = totalDays
	}
	return acc
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
