package analysis

import (
	"riskquant/internal/forecast"
	"riskquant/internal/optimize"
	"riskquant/internal/scenario"
	"riskquant/internal/scoring"
	"riskquant/internal/simulation"
)

// Config bundles the configuration of every pipeline stage.
type Config struct {
	Simulation simulation.Config `json:"simulation" yaml:"simulation"`
	Scoring    scoring.Config    `json:"scoring" yaml:"scoring"`
	Forecast   forecast.Config   `json:"forecast" yaml:"forecast"`
	Scenario   scenario.Config   `json:"scenario" yaml:"scenario"`
	Optimize   optimize.Config   `json:"optimize" yaml:"optimize"`
}

// DefaultConfig returns every stage's defaults.
func DefaultConfig() Config {
	return Config{
		Simulation: simulation.DefaultConfig(),
		Scoring:    scoring.DefaultConfig(),
		Forecast:   forecast.DefaultConfig(),
		Scenario:   scenario.DefaultConfig(),
		Optimize:   optimize.DefaultConfig(),
	}
}
