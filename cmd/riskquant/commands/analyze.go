package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"riskquant/internal/analysis"
	"riskquant/internal/risk"
	"riskquant/internal/visuals"

	"github.com/spf13/cobra"
)

var (
	iterations int
	seedFlag   int64
	source     string
	dryRun     bool
	asJSON     bool
	withCharts bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <register.yaml>",
	Short: "Run the full quantification pipeline over a register file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		drafts, err := risk.LoadFile(args[0])
		if err != nil {
			return err
		}

		env, err := newEnvironment(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		req := analysis.Request{
			Source:     sourceOr(args[0]),
			Risks:      drafts,
			Iterations: iterations,
			Seed:       seedPtr(cmd),
			DryRun:     dryRun,
		}
		report, err := env.Service.Analyze(cmd.Context(), req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(out, report)
		}
		printReport(out, report)
		if withCharts || cfg.EnableMermaidCharts {
			snaps := env.Service.History().Get(visuals.TopRiskID(report))
			for name, chart := range visuals.GenerateReportCharts(report, snaps, cfg.Engine.Forecast.Bands.Critical) {
				fmt.Fprintf(out, "\n%s\n%s\n", name, chart)
			}
		}
		return nil
	},
}

func sourceOr(fallback string) string {
	if source != "" {
		return source
	}
	return fallback
}

func seedPtr(cmd *cobra.Command) *int64 {
	if !cmd.Flags().Changed("seed") {
		return nil
	}
	s := seedFlag
	return &s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(w io.Writer, report analysis.Report) {
	n := report.Neutral
	fmt.Fprintf(w, "Source: %s  Iterations: %d  Risks: %d\n", report.Source, n.Iterations, len(report.Risks))
	fmt.Fprintf(w, "Cost  P50 %.0f  P80 %.0f  P90 %.0f  mean %.0f\n", n.Cost.P50, n.Cost.P80, n.Cost.P90, n.Cost.Mean)
	fmt.Fprintf(w, "Delay P50 %.1f  P80 %.1f  P90 %.1f days\n", n.Time.P50, n.Time.P80, n.Time.P90)
	fmt.Fprintf(w, "Tail ratio %.2f  fat-tail %v\n\n", n.Tail.TailRatio, n.Tail.FatTail)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tRISK\tSCORE\tTRIGGER\tFORECAST\tEII\tLENS\tALERTS")
	for _, ra := range report.Risks {
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%.3f\t%s\t%d %s\t%s\t%v\n",
			ra.Ranking.Rank,
			ra.RiskID,
			ra.Ranking.Composite,
			ra.Simulation.TriggerRate,
			ra.Forecast.Status,
			ra.Instability.Index,
			ra.Instability.Level,
			ra.Instability.RecommendedScenario,
			ra.Ranking.Alerts,
		)
	}
	_ = tw.Flush()

	for _, r := range report.Rejections {
		fmt.Fprintf(w, "rejected #%d %s: %s\n", r.Index, r.RiskID, r.Reason)
	}
}

func init() {
	analyzeCmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "Monte Carlo iterations (default from engine config)")
	analyzeCmd.Flags().Int64Var(&seedFlag, "seed", 0, "seed for a reproducible run")
	analyzeCmd.Flags().StringVar(&source, "source", "", "register label (defaults to the file path)")
	analyzeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not record snapshots in history")
	analyzeCmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	analyzeCmd.Flags().BoolVar(&withCharts, "charts", false, "print Mermaid charts")
}
