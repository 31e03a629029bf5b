package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"riskquant/cmd/mockgen/engine"
)

func main() {
	scenario := flag.String("scenario", "mild", "Score history shape: mild, chaos, drift")
	distribution := flag.String("distribution", "uniform", "Cost distribution: uniform, weibull")
	outDir := flag.String("out", "./.cache", "Output directory for the register and history")
	count := flag.Int("count", 20, "Number of risks to generate")
	cycles := flag.Int("cycles", 6, "Recorded history cycles per risk")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "Generator seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario:     *scenario,
		Distribution: *distribution,
		Count:        *count,
		Cycles:       *cycles,
		Seed:         *seed,
		Now:          time.Now().UTC(),
	}

	fmt.Printf("Generating scenario '%s' (Distribution: %s, Risks: %d, Cycles: %d) to %s...\n", cfg.Scenario, cfg.Distribution, cfg.Count, cfg.Cycles, *outDir)

	ds := engine.Generate(cfg)
	if err := engine.Save(context.Background(), *outDir, ds); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Done.")
}
