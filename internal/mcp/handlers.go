package mcp

import (
	"context"
	"errors"
	"fmt"

	"riskquant/internal/analysis"
	"riskquant/internal/forecast"
	"riskquant/internal/history"
	"riskquant/internal/instability"
	"riskquant/internal/optimize"
	"riskquant/internal/risk"
	"riskquant/internal/scenario"
	"riskquant/internal/simulation"
	"riskquant/internal/visuals"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// loadDrafts prefers a register file over inline risks.
func loadDrafts(path string, inline []risk.Draft) ([]risk.Draft, error) {
	if path == "" {
		return inline, nil
	}
	drafts, err := risk.LoadFile(path)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("path", path).Int("risks", len(drafts)).Msg("Loaded register file")
	return drafts, nil
}

func rejectionWarnings(rejected []risk.Rejection) []string {
	var warnings []string
	for _, r := range rejected {
		warnings = append(warnings, fmt.Sprintf("risk #%d (%s) rejected: %s", r.Index, r.RiskID, r.Reason))
	}
	return warnings
}

type simulationResponse struct {
	Source     string              `json:"source"`
	Risks      int                 `json:"risks"`
	Neutral    simulation.Snapshot `json:"neutral"`
	Rejections []risk.Rejection    `json:"rejections,omitempty"`
}

func (s *Server) handleRunSimulation(ctx context.Context, _ *mcpsdk.CallToolRequest, in SimulationInput) (*mcpsdk.CallToolResult, any, error) {
	drafts, err := loadDrafts(in.RegisterPath, in.Risks)
	if err != nil {
		return nil, nil, err
	}

	sc, rejected, err := s.svc.Sync(ctx, in.Source, drafts, in.Iterations, in.Seed)
	if err != nil {
		return nil, nil, err
	}

	warnings := rejectionWarnings(rejected)
	if len(sc.Risks) == 0 {
		warnings = append(warnings, "no valid risks: every simulated outcome is zero")
	}
	return textResult(simulationResponse{
		Source:     sc.Source,
		Risks:      len(sc.Risks),
		Neutral:    *sc.Neutral,
		Rejections: rejected,
	}, warnings...)
}

type analyzeResponse struct {
	Report analysis.Report   `json:"report"`
	Charts map[string]string `json:"charts,omitempty"`
}

func (s *Server) handleAnalyzeRegister(ctx context.Context, _ *mcpsdk.CallToolRequest, in AnalyzeInput) (*mcpsdk.CallToolResult, any, error) {
	drafts, err := loadDrafts(in.RegisterPath, in.Risks)
	if err != nil {
		return nil, nil, err
	}

	report, err := s.svc.Analyze(ctx, analysis.Request{
		Source:     in.Source,
		Risks:      drafts,
		Iterations: in.Iterations,
		Seed:       in.Seed,
		DryRun:     in.DryRun,
	})
	if err != nil {
		return nil, nil, err
	}

	warnings := rejectionWarnings(report.Rejections)
	for _, ra := range report.Risks {
		if ra.OrderingViolation != "" {
			warnings = append(warnings, ra.OrderingViolation)
		}
	}

	resp := analyzeResponse{Report: report}
	if s.enableCharts || in.Charts {
		snaps := s.svc.History().Get(visuals.TopRiskID(report))
		resp.Charts = visuals.GenerateReportCharts(report, snaps, s.svc.Config().Forecast.Bands.Critical)
	}
	return textResult(resp, warnings...)
}

type forecastResponse struct {
	Forecast   forecast.Forecast           `json:"forecast"`
	Mitigation forecast.MitigationForecast `json:"mitigation"`
	Scenarios  scenario.Forecasts          `json:"scenarios"`
	History    int                         `json:"historyDepth"`
}

func (s *Server) handleForecastRisk(_ context.Context, _ *mcpsdk.CallToolRequest, in ForecastInput) (*mcpsdk.CallToolResult, any, error) {
	if in.RiskID == "" {
		return nil, nil, errors.New("risk_id is required")
	}
	snaps := s.svc.History().Get(in.RiskID)
	if len(snaps) == 0 && in.CurrentScore == nil {
		return nil, nil, fmt.Errorf("no history for risk %q: run analyze_register first or pass current_score", in.RiskID)
	}

	p := s.svc.Projector()
	mf := p.StressTest(in.RiskID, in.CurrentScore, snaps, in.MitigationStrength)

	resp := forecastResponse{
		Forecast:   mf.Baseline,
		Mitigation: mf,
		History:    len(snaps),
	}

	var warnings []string
	lenses, err := s.svc.Config().Scenario.Project(p, in.RiskID, p.InputsFromHistory(in.CurrentScore, snaps))
	resp.Scenarios = lenses
	if err != nil {
		if !errors.Is(err, scenario.ErrScenarioOrderingViolation) {
			return nil, nil, err
		}
		warnings = append(warnings, err.Error())
	}
	if len(snaps) < 2 {
		warnings = append(warnings, "fewer than two recorded cycles: momentum is zero and confidence is at its floor")
	}
	return textResult(resp, warnings...)
}

type instabilityResponse struct {
	Inputs      instability.Inputs    `json:"inputs"`
	Instability instability.Result    `json:"instability"`
	Fragility   instability.Fragility `json:"fragility"`
}

func (s *Server) handleCalcInstability(_ context.Context, _ *mcpsdk.CallToolRequest, in InstabilityInput) (*mcpsdk.CallToolResult, any, error) {
	var inputs instability.Inputs
	var previous *int
	var warnings []string

	if in.RiskID != "" {
		snaps := s.svc.History().Get(in.RiskID)
		if len(snaps) == 0 {
			warnings = append(warnings, fmt.Sprintf("no history for risk %q: trend inputs default to zero", in.RiskID))
		}
		trend := history.Derive(snaps, s.svc.Projector().Config().History)
		inputs = instability.Inputs{
			Velocity:          trend.Momentum,
			Volatility:        trend.Volatility,
			MomentumStability: trend.MomentumStability,
			Confidence:        trend.Confidence,
			HistoryDepth:      len(snaps),
		}
		if n := len(snaps); n >= 2 {
			previous = snaps[n-2].InstabilityIndex
		}
	}

	override(&inputs.Velocity, in.Velocity)
	override(&inputs.Volatility, in.Volatility)
	override(&inputs.MomentumStability, in.MomentumStability)
	override(&inputs.Confidence, in.Confidence)
	override(&inputs.HistoryDepth, in.HistoryDepth)
	if in.ScenarioSensitivity != nil {
		inputs.ScenarioSensitivity = *in.ScenarioSensitivity
	} else {
		warnings = append(warnings, "scenario_sensitivity not supplied: assumed 0")
	}
	if in.PreviousIndex != nil {
		previous = in.PreviousIndex
	}

	result := instability.Calculate(inputs)
	return textResult(instabilityResponse{
		Inputs:      inputs,
		Instability: result,
		Fragility:   instability.CalculateFragility(result.Index, previous, inputs.Confidence),
	}, warnings...)
}

func override[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (s *Server) handleOptimiseMitigation(_ context.Context, _ *mcpsdk.CallToolRequest, in OptimiseInput) (*mcpsdk.CallToolResult, any, error) {
	res, err := s.svc.Optimise(in.Source, optimize.Request{
		SpendSteps:    in.SpendSteps,
		BudgetCap:     in.BudgetCap,
		BenefitMetric: in.BenefitMetric,
	})
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	if res.FallbackCount > 0 {
		warnings = append(warnings, fmt.Sprintf("%d risks had no simulated materiality and used the %s fallback", res.FallbackCount, fallbackSource(res)))
	}
	return textResult(res, warnings...)
}

func fallbackSource(res optimize.Result) string {
	for _, r := range res.Risks {
		if r.MaterialitySource != optimize.SourceSnapshot {
			return r.MaterialitySource
		}
	}
	return optimize.SourceFallback
}
