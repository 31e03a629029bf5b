package visuals

import (
	"riskquant/internal/analysis"
	"riskquant/internal/history"
)

// GenerateReportCharts renders the cost histogram for the whole register plus
// forecast, lens and history charts for the top-ranked risk. snaps is that
// risk's recorded history; empty charts are omitted.
func GenerateReportCharts(report analysis.Report, snaps []history.Snapshot, critical float64) map[string]string {
	charts := make(map[string]string)
	add := func(name, chart string) {
		if chart != "" {
			charts[name] = chart
		}
	}

	add("costHistogram", GenerateCostHistogram(report.Histogram))
	if len(report.Risks) > 0 {
		top := report.Risks[0]
		add("forecast", GenerateForecastChart(top.Mitigation, critical))
		add("scenarios", GenerateScenarioChart(top.Scenarios))
		add("history", GenerateHistoryChart(snaps))
	}
	return charts
}

// TopRiskID returns the highest-ranked risk of a report, or "".
func TopRiskID(report analysis.Report) string {
	if len(report.Risks) == 0 {
		return ""
	}
	return report.Risks[0].RiskID
}
