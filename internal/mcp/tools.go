package mcp

import (
	"riskquant/internal/optimize"
	"riskquant/internal/risk"

	"github.com/google/jsonschema-go/jsonschema"
)

// SimulationInput is the argument set of run_simulation.
type SimulationInput struct {
	Source       string       `json:"source,omitempty" jsonschema:"Label for this register. The neutral baseline is stored under it for optimise_mitigation."`
	RegisterPath string       `json:"register_path,omitempty" jsonschema:"Path to a YAML or JSON risk register file. Takes precedence over risks."`
	Risks        []risk.Draft `json:"risks,omitempty" jsonschema:"Inline risk records"`
	Iterations   int          `json:"iterations,omitempty" jsonschema:"Monte Carlo iterations (default 10000)"`
	Seed         *int64       `json:"seed,omitempty" jsonschema:"Seed for a reproducible run"`
}

// AnalyzeInput is the argument set of analyze_register.
type AnalyzeInput struct {
	Source       string       `json:"source,omitempty" jsonschema:"Label for this register"`
	RegisterPath string       `json:"register_path,omitempty" jsonschema:"Path to a YAML or JSON risk register file. Takes precedence over risks."`
	Risks        []risk.Draft `json:"risks,omitempty" jsonschema:"Inline risk records"`
	Iterations   int          `json:"iterations,omitempty" jsonschema:"Monte Carlo iterations per scenario lens (default 10000)"`
	Seed         *int64       `json:"seed,omitempty" jsonschema:"Seed for a reproducible run"`
	DryRun       bool         `json:"dry_run,omitempty" jsonschema:"Do not record this run in the score history"`
	Charts       bool         `json:"charts,omitempty" jsonschema:"Attach Mermaid charts for the top-ranked risk"`
}

// ForecastInput is the argument set of forecast_risk.
type ForecastInput struct {
	RiskID             string   `json:"risk_id" jsonschema:"Risk identifier with recorded history"`
	CurrentScore       *float64 `json:"current_score,omitempty" jsonschema:"Composite score to project from. Defaults to the latest recorded score."`
	MitigationStrength *float64 `json:"mitigation_strength,omitempty" jsonschema:"Mitigation strength in [0,1] for the stress test (effectiveness x confidence)"`
}

// InstabilityInput is the argument set of calc_instability.
type InstabilityInput struct {
	RiskID              string   `json:"risk_id,omitempty" jsonschema:"Risk whose recorded history supplies the trend inputs"`
	Velocity            *float64 `json:"velocity,omitempty" jsonschema:"Score momentum in points per cycle"`
	Volatility          *float64 `json:"volatility,omitempty" jsonschema:"Standard deviation of score changes"`
	MomentumStability   *float64 `json:"momentum_stability,omitempty" jsonschema:"Momentum stability in [0,1]"`
	ScenarioSensitivity *float64 `json:"scenario_sensitivity,omitempty" jsonschema:"Scenario sensitivity in [0,1]"`
	Confidence          *float64 `json:"confidence,omitempty" jsonschema:"Forecast confidence in [0,1]"`
	HistoryDepth        *int     `json:"history_depth,omitempty" jsonschema:"Number of recorded cycles"`
	PreviousIndex       *int     `json:"previous_index,omitempty" jsonschema:"Prior instability index, used for fragility"`
}

// OptimiseInput is the argument set of optimise_mitigation.
type OptimiseInput struct {
	Source        string    `json:"source,omitempty" jsonschema:"Register label used in run_simulation. Defaults to the most recent one."`
	SpendSteps    []float64 `json:"spend_steps,omitempty" jsonschema:"Ascending spend levels starting at 0"`
	BudgetCap     *float64  `json:"budget_cap,omitempty" jsonschema:"Total budget to allocate across risks"`
	BenefitMetric string    `json:"benefit_metric,omitempty" jsonschema:"Benefit measure"`
}

const (
	descRunSimulation = "Run the Monte Carlo cost and schedule simulation for a risk register and store the result as the neutral baseline. \n\n" +
		"Returns P50/P80/P90 cost and delay, per-risk trigger rates and a tail report. " +
		"Guidance: Call this (or 'analyze_register') before 'optimise_mitigation'; the optimiser has no baseline otherwise.\n" +
		"STRICT GUARDRAIL: Do NOT invent probabilities or costs for risks the user has not quantified. Rejected risks are listed in the warnings."

	descAnalyzeRegister = "Run the full quantification pipeline: simulation under the Conservative, Neutral and Aggressive lenses, composite scoring and ranking, alerts, " +
		"score forecasts, mitigation stress tests, the Escalation Instability Index and fragility. \n\n" +
		"Each run appends a snapshot to every risk's history unless dry_run is set; trend metrics sharpen as history accumulates. " +
		"Guidance: Use 'forecast_risk' or 'calc_instability' afterwards to drill into a single risk."

	descForecastRisk = "Project a risk's composite score forward over the configured horizon using its recorded momentum and confidence. \n\n" +
		"Returns the baseline projection, a mitigation stress test and the three scenario lenses with their time-to-critical. " +
		"NOTE: A risk already at or above the critical threshold is reported as already critical, not as projected."

	descCalcInstability = "Compute the Escalation Instability Index (0-100) and fragility for a risk, and recommend a forecasting lens. \n\n" +
		"Inputs come from the risk's recorded history when risk_id is given; explicit values override them. " +
		"If the LowHistory or LowConfidence flag is set, YOU MUST tell the user the recommendation is provisional."

	descOptimiseMitigation = "Rank risks by return on mitigation spend against the neutral P80 baseline and, when budget_cap is given, allocate the budget greedily across spend bands. \n\n" +
		"Benefits follow a diminishing-returns curve and never reach the risk's maximum reduction. " +
		"STRICT GUARDRAIL: If this tool reports a missing baseline, run 'run_simulation' first. Do NOT estimate benefits yourself."
)

func (s *Server) registerTools() error {
	if err := addTool(s.server, "run_simulation", descRunSimulation, s.handleRunSimulation, func(sc *jsonschema.Schema) {
		bound(sc, "iterations", 0, 1_000_000)
	}); err != nil {
		return err
	}
	if err := addTool(s.server, "analyze_register", descAnalyzeRegister, s.handleAnalyzeRegister, func(sc *jsonschema.Schema) {
		bound(sc, "iterations", 0, 1_000_000)
	}); err != nil {
		return err
	}
	if err := addTool(s.server, "forecast_risk", descForecastRisk, s.handleForecastRisk, nil); err != nil {
		return err
	}
	if err := addTool(s.server, "calc_instability", descCalcInstability, s.handleCalcInstability, nil); err != nil {
		return err
	}
	return addTool(s.server, "optimise_mitigation", descOptimiseMitigation, s.handleOptimiseMitigation, func(sc *jsonschema.Schema) {
		if p := sc.Properties["benefit_metric"]; p != nil {
			p.Enum = []any{optimize.MetricP80CostReduction}
		}
		bound(sc, "budget_cap", 0, 0)
	})
}

// bound sets a minimum and, when hi > lo, a maximum on a numeric property.
func bound(sc *jsonschema.Schema, name string, lo, hi float64) {
	p := sc.Properties[name]
	if p == nil {
		return
	}
	p.Minimum = &lo
	if hi > lo {
		p.Maximum = &hi
	}
}
