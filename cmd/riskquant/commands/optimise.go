package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"riskquant/internal/optimize"
	"riskquant/internal/risk"

	"github.com/spf13/cobra"
)

var (
	budget     float64
	spendSteps []float64
)

var optimiseCmd = &cobra.Command{
	Use:     "optimise <register.yaml>",
	Aliases: []string{"optimize"},
	Short:   "Simulate a register and rank risks by return on mitigation spend",
	Args:    cobra.ExactArgs(1),
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

		src := sourceOr(args[0])
		if _, _, err := env.Service.Sync(cmd.Context(), src, drafts, iterations, seedPtr(cmd)); err != nil {
			return err
		}

		req := optimize.Request{SpendSteps: spendSteps}
		if cmd.Flags().Changed("budget") {
			b := budget
			req.BudgetCap = &b
		}
		res, err := env.Service.Optimise(src, req)
		if err != nil {
			return err
		}

		if asJSON {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		printOptimisation(cmd.OutOrStdout(), res)
		return nil
	},
}

func printOptimisation(w io.Writer, res optimize.Result) {
	fmt.Fprintf(w, "Neutral P80 cost: %.0f  spend steps: %v\n\n", res.NeutralP80, res.SpendSteps)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tRISK\tMATERIALITY\tBEST BAND\tBENEFIT/$\tLEVERAGE")
	for _, r := range res.Risks {
		fmt.Fprintf(tw, "%d\t%s\t%.3f (%s)\t%.0f-%.0f\t%.4f\t%.4f\n",
			r.Rank, r.RiskID, r.MaterialityWeight, r.MaterialitySource,
			r.BestBand.FromSpend, r.BestBand.ToSpend, r.BestBand.BenefitPerDollar, r.LeverageScore)
	}
	_ = tw.Flush()

	if res.Plan == nil {
		return
	}
	p := res.Plan
	fmt.Fprintf(w, "\nBudget %.0f  allocated %.0f  remaining %.0f  projected P80 reduction %.0f\n",
		p.BudgetCap, p.AllocatedSpend, p.RemainingBudget, p.TotalProjectedBenefit)
	for i, a := range p.Allocations {
		fmt.Fprintf(w, "%2d. %s  %.0f -> %.0f  spend %.0f  benefit %.0f\n", i+1, a.RiskID, a.FromSpend, a.ToSpend, a.Spend, a.Benefit)
	}
}

func init() {
	optimiseCmd.Flags().IntVarP(&iterations, "iterations", "n", 0, "Monte Carlo iterations (default from engine config)")
	optimiseCmd.Flags().Int64Var(&seedFlag, "seed", 0, "seed for a reproducible run")
	optimiseCmd.Flags().StringVar(&source, "source", "", "register label (defaults to the file path)")
	optimiseCmd.Flags().Float64Var(&budget, "budget", 0, "budget cap to allocate across risks")
	optimiseCmd.Flags().Float64SliceVar(&spendSteps, "steps", nil, "ascending spend steps starting at 0")
	optimiseCmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
}
