package visuals

import (
	"fmt"
	"math"
	"strings"

	"riskquant/internal/forecast"
	"riskquant/internal/history"
	"riskquant/internal/optimize"
	"riskquant/internal/scenario"
	"riskquant/internal/simulation"
	"riskquant/internal/stats"
)

func joinFloats(values []float64, format string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf(format, v)
	}
	return strings.Join(parts, ", ")
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func safeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

// GenerateForecastChart creates a Mermaid xychart-beta of baseline vs
// mitigated projected scores, with the critical threshold as a flat line.
func GenerateForecastChart(mf forecast.MitigationForecast, critical float64) string {
	if len(mf.Baseline.Points) == 0 {
		return ""
	}

	labels := []string{"\"now\""}
	baseline := []float64{mf.Baseline.CurrentScore}
	mitigated := []float64{mf.Mitigated.CurrentScore}
	for i, p := range mf.Baseline.Points {
		labels = append(labels, fmt.Sprintf("\"+%d\"", p.Step))
		baseline = append(baseline, p.Score)
		if i < len(mf.Mitigated.Points) {
			mitigated = append(mitigated, mf.Mitigated.Points[i].Score)
		}
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"Score Forecast: %s\"\n", safeLabel(mf.RiskID)))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString("    y-axis \"Composite Score\" 0 --> 100\n")
	sb.WriteString(fmt.Sprintf("    line [%s]\n", joinFloats(baseline, "%.1f")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", joinFloats(mitigated, "%.1f")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", joinFloats(repeat(critical, len(baseline)), "%.1f")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateScenarioChart plots the three lens forecasts for one risk.
func GenerateScenarioChart(fc scenario.Forecasts) string {
	if len(fc.Neutral.Points) == 0 {
		return ""
	}

	series := func(f forecast.Forecast) []float64 {
		out := []float64{f.CurrentScore}
		for _, p := range f.Points {
			out = append(out, p.Score)
		}
		return out
	}

	labels := []string{"\"now\""}
	for _, p := range fc.Neutral.Points {
		labels = append(labels, fmt.Sprintf("\"+%d\"", p.Step))
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"Scenario Lenses: %s\"\n", safeLabel(fc.RiskID)))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString("    y-axis \"Composite Score\" 0 --> 100\n")
	for _, f := range []forecast.Forecast{fc.Conservative, fc.Neutral, fc.Aggressive} {
		sb.WriteString(fmt.Sprintf("    line [%s]\n", joinFloats(series(f), "%.1f")))
	}
	sb.WriteString("```")
	return sb.String()
}

// GenerateCostHistogram creates a Mermaid bar chart of simulated cost totals.
func GenerateCostHistogram(h *simulation.Histogram) string {
	if h == nil || len(h.Bins) == 0 {
		return ""
	}

	var labels []string
	var values []string
	maxVal := 0
	for _, b := range h.Bins {
		labels = append(labels, fmt.Sprintf("\"%s\"", compact(b.Lo)))
		values = append(values, fmt.Sprintf("%d", b.Count))
		if b.Count > maxVal {
			maxVal = b.Count
		}
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Simulated Cost Distribution\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Iterations\" 0 --> %d\n", maxVal+int(math.Max(1, float64(maxVal)*0.2))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateBenefitCurveChart plots cumulative benefit against spend for one risk.
func GenerateBenefitCurveChart(r optimize.RiskLeverage) string {
	if len(r.Curve) == 0 {
		return ""
	}

	var labels []string
	values := make([]float64, 0, len(r.Curve))
	maxVal := 0.0
	for _, b := range r.Curve {
		labels = append(labels, fmt.Sprintf("\"%s\"", compact(b.ToSpend)))
		values = append(values, b.CumulativeBenefit)
		maxVal = math.Max(maxVal, b.CumulativeBenefit)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"Mitigation Benefit: %s\"\n", safeLabel(r.Name)))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"P80 Reduction\" 0 --> %d\n", int(math.Ceil(math.Max(1, maxVal*1.1)))))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", joinFloats(values, "%.0f")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateAllocationPie shows how a budget plan splits across risks.
func GenerateAllocationPie(plan *optimize.Plan) string {
	if plan == nil || len(plan.Allocations) == 0 {
		return ""
	}

	totals := map[string]float64{}
	var order []string
	for _, a := range plan.Allocations {
		if _, ok := totals[a.Name]; !ok {
			order = append(order, a.Name)
		}
		totals[a.Name] += a.Spend
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("pie title Mitigation Budget Allocation\n")
	for _, name := range order {
		sb.WriteString(fmt.Sprintf("    \"%s\" : %.0f\n", safeLabel(name), totals[name]))
	}
	if plan.RemainingBudget > 0 {
		sb.WriteString(fmt.Sprintf("    \"Unallocated\" : %.0f\n", plan.RemainingBudget))
	}
	sb.WriteString("```")
	return sb.String()
}

// GenerateHistoryChart creates an XmR-style chart of a risk's recorded scores.
func GenerateHistoryChart(snaps []history.Snapshot) string {
	if len(snaps) == 0 {
		return ""
	}

	values := make([]float64, len(snaps))
	labels := make([]string, len(snaps))
	for i, s := range snaps {
		values[i] = s.Score
		labels[i] = fmt.Sprintf("\"c%d\"", s.Cycle)
	}
	xmr := stats.CalculateXmR(values)

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Score History (XmR)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString("    y-axis \"Composite Score\" 0 --> 100\n")
	sb.WriteString(fmt.Sprintf("    line [%s]\n", joinFloats(values, "%.1f")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", joinFloats(repeat(xmr.Average, len(values)), "%.1f")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", joinFloats(repeat(stats.Clamp(xmr.UNPL, 0, 100), len(values)), "%.1f")))
	sb.WriteString("```")
	return sb.String()
}

// compact renders currency amounts as 25k / 1.5M.
func compact(v float64) string {
	switch a := math.Abs(v); {
	case a >= 1_000_000:
		return strings.TrimSuffix(fmt.Sprintf("%.1f", v/1_000_000), ".0") + "M"
	case a >= 1_000:
		return strings.TrimSuffix(fmt.Sprintf("%.1f", v/1_000), ".0") + "k"
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
