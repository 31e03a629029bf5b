package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"riskquant/internal/forecast"
	"riskquant/internal/history"
	"riskquant/internal/instability"
	"riskquant/internal/metrics"
	"riskquant/internal/optimize"
	"riskquant/internal/risk"
	"riskquant/internal/scenario"
	"riskquant/internal/scoring"
	"riskquant/internal/simulation"
	"riskquant/internal/stats"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Request is one pass of the pipeline.
type Request struct {
	Source     string       `json:"source"`
	Risks      []risk.Draft `json:"risks"`
	Iterations int          `json:"iterations,omitempty"`
	Seed       *int64       `json:"seed,omitempty"`
	// DryRun skips appending snapshots to history.
	DryRun bool `json:"dryRun,omitempty"`
}

// ScenarioRun is the portfolio outcome under one lens.
type ScenarioRun struct {
	Scenario scenario.Scenario `json:"scenario"`
	Cost     stats.Summary     `json:"cost"`
	Time     stats.Summary     `json:"time"`
	DeltaP80 float64           `json:"deltaP80"`
}

// RiskAnalysis is everything the pipeline derived for one risk.
type RiskAnalysis struct {
	RiskID              string                      `json:"riskId"`
	Title               string                      `json:"title"`
	Simulation          simulation.RiskSummary      `json:"simulation"`
	Trend               history.Metrics             `json:"trend"`
	ScenarioSensitivity float64                     `json:"scenarioSensitivity"`
	Ranking             scoring.Ranked              `json:"ranking"`
	Forecast            forecast.Forecast           `json:"forecast"`
	Mitigation          forecast.MitigationForecast `json:"mitigation"`
	Scenarios           scenario.Forecasts          `json:"scenarios"`
	OrderingViolation   string                      `json:"orderingViolation,omitempty"`
	Instability         instability.Result          `json:"instability"`
	Fragility           instability.Fragility       `json:"fragility"`
}

// Report is the pipeline output.
type Report struct {
	Source      string                `json:"source"`
	Neutral     simulation.Snapshot   `json:"neutral"`
	Tail        simulation.TailReport `json:"tail"`
	Histogram   *simulation.Histogram `json:"histogram,omitempty"`
	Scenarios   []ScenarioRun         `json:"scenarios"`
	Risks       []RiskAnalysis        `json:"risks"`
	Issues      []risk.Issue          `json:"issues,omitempty"`
	Rejections  []risk.Rejection      `json:"rejections,omitempty"`
	GeneratedAt time.Time             `json:"generatedAt"`
}

// Service runs the full quantification pipeline.
type Service struct {
	cfg       Config
	engine    *simulation.Engine
	scorer    *scoring.Scorer
	projector *forecast.Projector
	optimizer *optimize.Optimizer
	history   *history.Store
	contexts  *optimize.ContextHolder
	metrics   *metrics.Recorder
}

// NewService wires the stages. store and contexts must be non-nil; rec may be nil.
func NewService(cfg Config, store *history.Store, contexts *optimize.ContextHolder, rec *metrics.Recorder) *Service {
	return &Service{
		cfg:       cfg,
		engine:    simulation.NewEngine(cfg.Simulation),
		scorer:    scoring.NewScorer(cfg.Scoring),
		projector: forecast.NewProjector(cfg.Forecast),
		optimizer: optimize.NewOptimizer(cfg.Optimize),
		history:   store,
		contexts:  contexts,
		metrics:   rec,
	}
}

// Engine exposes the simulation engine.
func (s *Service) Engine() *simulation.Engine { return s.engine }

// Config returns the pipeline configuration.
func (s *Service) Config() Config { return s.cfg }

// Projector exposes the forecast projector.
func (s *Service) Projector() *forecast.Projector { return s.projector }

// History exposes the snapshot store.
func (s *Service) History() *history.Store { return s.history }

// Contexts exposes the simulation context holder.
func (s *Service) Contexts() *optimize.ContextHolder { return s.contexts }

func (s *Service) stage(name string, start time.Time) {
	s.metrics.ObserveStage(name, time.Since(start))
}

func (s *Service) options(iterations int, seed *int64) simulation.Options {
	opts := s.engine.DefaultOptions()
	if iterations > 0 {
		opts.Iterations = iterations
	}
	opts.Seed = seed
	return opts
}

// Sync parses risks, runs the neutral simulation and stores the result as the
// optimisation baseline for source.
func (s *Service) Sync(ctx context.Context, source string, drafts []risk.Draft, iterations int, seed *int64) (optimize.SimulationContext, []risk.Rejection, error) {
	records, _, rejected := risk.ParseAll(drafts)

	start := time.Now()
	res, err := s.engine.Run(ctx, records, s.options(iterations, seed))
	if err != nil {
		s.metrics.RecordError("simulation")
		return optimize.SimulationContext{}, rejected, fmt.Errorf("neutral simulation failed: %w", err)
	}
	s.stage("simulation", start)
	s.metrics.RecordIterations(res.Summary.Iterations)

	snap := res.Summary
	sc := optimize.SimulationContext{Source: source, Risks: records, Neutral: &snap}
	s.contexts.Set(sc)
	s.metrics.RecordBaseline(source, snap.P80Cost())

	log.Info().Str("source", source).Int("risks", len(records)).Float64("p80", snap.P80Cost()).Msg("Simulation context synced")
	return sc, rejected, nil
}

// Optimise runs the mitigation optimiser against the stored context for source.
func (s *Service) Optimise(source string, req optimize.Request) (optimize.Result, error) {
	start := time.Now()
	sc, ok := s.contexts.Get(source)
	if !ok {
		s.metrics.RecordError("missing_baseline")
		return optimize.Result{}, fmt.Errorf("%w: no simulation context for source %q", optimize.ErrMissingBaseline, source)
	}
	res, err := s.optimizer.Optimise(sc, req)
	if err != nil {
		s.metrics.RecordError("optimise")
		return optimize.Result{}, err
	}
	s.stage("optimise", start)
	return res, nil
}

// Analyze runs simulation under every lens, then scoring, ranking, history,
// forecasting, stress tests, EII and fragility for each risk.
func (s *Service) Analyze(ctx context.Context, req Request) (Report, error) {
	records, issues, rejected := risk.ParseAll(req.Risks)
	opts := s.options(req.Iterations, req.Seed)

	start := time.Now()
	runs, err := s.simulateLenses(ctx, records, opts)
	if err != nil {
		s.metrics.RecordError("simulation")
		return Report{}, err
	}
	s.stage("simulation", start)

	neutral := runs[scenario.Neutral]
	s.metrics.RecordIterations(neutral.Summary.Iterations * len(scenario.All))
	neutralSnap := neutral.Summary
	s.contexts.Set(optimize.SimulationContext{Source: req.Source, Risks: records, Neutral: &neutralSnap})
	s.metrics.RecordBaseline(req.Source, neutralSnap.P80Cost())

	report := Report{
		Source:      req.Source,
		Neutral:     neutralSnap,
		Tail:        neutralSnap.Tail,
		Histogram:   simulation.NewHistogram(neutral.CostSamples, 20),
		Issues:      issues,
		Rejections:  rejected,
		GeneratedAt: time.Now().UTC(),
	}
	for _, sc := range scenario.All {
		r := runs[sc]
		report.Scenarios = append(report.Scenarios, ScenarioRun{
			Scenario: sc,
			Cost:     r.Summary.Cost,
			Time:     r.Summary.Time,
			DeltaP80: r.Summary.Cost.P80 - neutralSnap.Cost.P80,
		})
	}

	// Score every risk against its prior history plus this run.
	start = time.Now()
	histCfg := s.projector.Config().History
	priors := make([][]history.Snapshot, len(records))
	inputs := make([]scoring.Input, len(records))
	for i, r := range records {
		rs := neutralSnap.Risks[i]
		priors[i] = s.history.Get(r.ID)

		withCost := append(history.Tail(priors[i], histCfg.Window-1), history.Snapshot{SimMeanCost: rs.SimMeanCost})
		trend := history.Derive(withCost, histCfg)
		stability := history.Derive(priors[i], histCfg).StabilityScore

		triggers := make([]float64, 0, len(priors[i])+1)
		for _, p := range priors[i] {
			triggers = append(triggers, p.TriggerRate)
		}
		triggers = append(triggers, rs.TriggerRate)

		inputs[i] = scoring.Input{
			RiskID: r.ID,
			Title:  r.Name(),
			Metrics: scoring.Metrics{
				TriggerRate:    scoring.Float(rs.TriggerRate),
				Velocity:       scoring.Float(trend.Velocity),
				Volatility:     scoring.Float(coefficientOfVariation(rs)),
				StabilityScore: scoring.Float(stability),
			},
			TriggerHistory: triggers,
		}
	}
	ranked := s.scorer.Rank(inputs)
	s.stage("scoring", start)

	index := make(map[string]int, len(records))
	for i, r := range records {
		index[r.ID] = i
	}

	start = time.Now()
	for _, rk := range ranked {
		i := index[rk.RiskID]
		ra, err := s.analyzeRisk(ctx, req, records[i], neutralSnap.Risks[i], priors[i], rk)
		if err != nil {
			return Report{}, err
		}
		report.Risks = append(report.Risks, ra)
		for _, a := range rk.Alerts {
			s.metrics.RecordAlert(string(a))
		}
	}
	s.stage("forecast", start)
	s.metrics.RecordHistoryRisks(len(s.history.IDs()))

	log.Info().
		Str("source", req.Source).
		Int("risks", len(records)).
		Int("rejected", len(rejected)).
		Float64("neutralP80", neutralSnap.P80Cost()).
		Msg("Analysis complete")

	return report, nil
}

func (s *Service) analyzeRisk(ctx context.Context, req Request, r risk.Record, rs simulation.RiskSummary, prior []history.Snapshot, rk scoring.Ranked) (RiskAnalysis, error) {
	histCfg := s.projector.Config().History
	score := rk.Composite

	current := history.Snapshot{
		RiskID:      r.ID,
		Score:       score,
		TriggerRate: rs.TriggerRate,
		SimMeanCost: rs.SimMeanCost,
	}
	withCurrent := append(append([]history.Snapshot(nil), prior...), current)
	trend := history.Derive(withCurrent, histCfg)
	momentum := trend.Momentum
	current.Momentum = &momentum

	fc := s.projector.BuildRiskForecast(r.ID, &score, withCurrent)
	in := forecast.Inputs{Current: score, Momentum: trend.Momentum, Confidence: trend.Confidence}
	strength := forecast.StrengthOf(r.Mitigation)
	mf := s.projector.StressTestFrom(r.ID, in, &strength)

	ra := RiskAnalysis{
		RiskID:              r.ID,
		Title:               r.Name(),
		Simulation:          rs,
		Trend:               trend,
		ScenarioSensitivity: s.cfg.Scenario.Sensitivity(r),
		Ranking:             rk,
		Forecast:            fc,
		Mitigation:          mf,
	}

	lenses, err := s.cfg.Scenario.Project(s.projector, r.ID, in)
	ra.Scenarios = lenses
	if err != nil {
		if !errors.Is(err, scenario.ErrScenarioOrderingViolation) {
			return RiskAnalysis{}, err
		}
		ra.OrderingViolation = err.Error()
		s.metrics.RecordOrderingViolation()
		log.Warn().Err(err).Str("risk", r.ID).Msg("Scenario ordering violated")
	}

	ra.Instability = instability.Calculate(instability.Inputs{
		Velocity:            trend.Momentum,
		Volatility:          trend.Volatility,
		MomentumStability:   trend.MomentumStability,
		ScenarioSensitivity: ra.ScenarioSensitivity,
		Confidence:          trend.Confidence,
		HistoryDepth:        len(withCurrent),
	})

	var previous *int
	if n := len(prior); n > 0 {
		previous = prior[n-1].InstabilityIndex
	}
	ra.Fragility = instability.CalculateFragility(ra.Instability.Index, previous, trend.Confidence)

	if !req.DryRun {
		idx := ra.Instability.Index
		current.InstabilityIndex = &idx
		if _, err := s.history.Append(ctx, current); err != nil {
			s.metrics.RecordError("history")
			return RiskAnalysis{}, err
		}
	}
	return ra, nil
}

// simulateLenses runs the neutral, conservative and aggressive simulations
// concurrently with the same options.
func (s *Service) simulateLenses(ctx context.Context, records []risk.Record, opts simulation.Options) (map[scenario.Scenario]simulation.Result, error) {
	results := make([]simulation.Result, len(scenario.All))
	g, gctx := errgroup.WithContext(ctx)
	for i, sc := range scenario.All {
		adjusted := s.cfg.Scenario.ApplyAll(sc, records)
		g.Go(func() error {
			res, err := s.engine.Run(gctx, adjusted, opts)
			if err != nil {
				return fmt.Errorf("%s simulation failed: %w", sc, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[scenario.Scenario]simulation.Result, len(results))
	for i, sc := range scenario.All {
		out[sc] = results[i]
	}
	return out, nil
}

// coefficientOfVariation is the simulated cost spread relative to its mean.
func coefficientOfVariation(rs simulation.RiskSummary) float64 {
	if !(rs.SimMeanCost > 0) {
		return 0
	}
	return stats.NonNegative(rs.SimStdDev / rs.SimMeanCost)
}
