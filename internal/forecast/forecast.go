package forecast

import (
	"riskquant/internal/history"
	"riskquant/internal/stats"
)

// Band names for projected scores.
const (
	BandLow      = "low"
	BandModerate = "moderate"
	BandHigh     = "high"
	BandCritical = "critical"
)

// Bands are the lower bounds of each named score band.
type Bands struct {
	Moderate float64 `json:"moderate" yaml:"moderate"`
	High     float64 `json:"high" yaml:"high"`
	Critical float64 `json:"critical" yaml:"critical"`
}

// Config controls projection.
type Config struct {
	Horizon         int                   `json:"horizon" yaml:"horizon"`
	MomentumDecay   float64               `json:"momentumDecay" yaml:"momentumDecay"`
	ConfidenceDecay float64               `json:"confidenceDecay" yaml:"confidenceDecay"`
	Bands           Bands                 `json:"bands" yaml:"bands"`
	History         history.MetricsConfig `json:"history" yaml:"history"`
}

// DefaultConfig returns the stock projection settings.
func DefaultConfig() Config {
	return Config{
		Horizon:         5,
		MomentumDecay:   0.85,
		ConfidenceDecay: 0.92,
		Bands:           Bands{Moderate: 40, High: 60, Critical: 80},
		History:         history.DefaultMetricsConfig(),
	}
}

// Band classifies a score.
func (b Bands) Band(score float64) string {
	switch {
	case score >= b.Critical:
		return BandCritical
	case score >= b.High:
		return BandHigh
	case score >= b.Moderate:
		return BandModerate
	default:
		return BandLow
	}
}

// Status separates a risk that is critical today from one that becomes
// critical within the horizon and one that never does.
type Status string

const (
	StatusAlreadyCritical   Status = "already_critical"
	StatusProjectedCritical Status = "projected_critical"
	StatusNotCritical       Status = "not_critical"
)

// Point is one projected step.
type Point struct {
	Step       int     `json:"step"`
	Score      float64 `json:"projectedScore"`
	Delta      float64 `json:"delta"`
	Confidence float64 `json:"confidence"`
	Band       string  `json:"band"`
}

// Forecast is a bounded score trajectory for one risk.
type Forecast struct {
	RiskID            string  `json:"riskId"`
	CurrentScore      float64 `json:"currentScore"`
	Momentum          float64 `json:"momentum"`
	Confidence        float64 `json:"confidence"`
	Points            []Point `json:"points"`
	TimeToCritical    *int    `json:"timeToCritical"`
	ProjectedCritical bool    `json:"projectedCritical"`
	AlreadyCritical   bool    `json:"alreadyCritical"`
	Status            Status  `json:"status"`
}

// Final returns the last projected score, or the current score for an empty horizon.
func (f Forecast) Final() float64 {
	if len(f.Points) == 0 {
		return f.CurrentScore
	}
	return f.Points[len(f.Points)-1].Score
}

// Projector builds forecasts for one configuration.
type Projector struct {
	cfg Config
}

// NewProjector sanitises cfg against DefaultConfig.
func NewProjector(cfg Config) *Projector {
	def := DefaultConfig()
	if cfg.Horizon <= 0 {
		cfg.Horizon = def.Horizon
	}
	if !validDecay(cfg.MomentumDecay) {
		cfg.MomentumDecay = def.MomentumDecay
	}
	if !validDecay(cfg.ConfidenceDecay) {
		cfg.ConfidenceDecay = def.ConfidenceDecay
	}
	if !(cfg.Bands.Critical > 0) || cfg.Bands.Critical > 100 {
		cfg.Bands = def.Bands
	}
	if cfg.History.Window <= 0 {
		cfg.History = def.History
	}
	return &Projector{cfg: cfg}
}

func validDecay(d float64) bool {
	return stats.IsFinite(d) && d >= 0 && d <= 1
}

// Config returns the effective configuration.
func (p *Projector) Config() Config { return p.cfg }

// Project steps score forward from current with decaying momentum.
// Scores stay inside [0, 100] for any input.
func (p *Projector) Project(riskID string, current, momentum, confidence float64) Forecast {
	current = stats.Clamp(current, 0, 100)
	maxM := p.cfg.History.MaxMomentum
	if !(maxM > 0) {
		maxM = history.DefaultMetricsConfig().MaxMomentum
	}
	momentum = stats.Clamp(stats.Finite(momentum, 0), -maxM, maxM)
	confidence = stats.Clamp01(confidence)

	f := Forecast{
		RiskID:       riskID,
		CurrentScore: current,
		Momentum:     momentum,
		Confidence:   confidence,
		Points:       make([]Point, 0, p.cfg.Horizon),
	}

	critical := p.cfg.Bands.Critical
	f.AlreadyCritical = current >= critical

	score, m, c := current, momentum, confidence
	for step := 1; step <= p.cfg.Horizon; step++ {
		score = stats.Clamp(score+m, 0, 100)
		m *= p.cfg.MomentumDecay
		c *= p.cfg.ConfidenceDecay

		f.Points = append(f.Points, Point{
			Step:       step,
			Score:      score,
			Delta:      score - current,
			Confidence: c,
			Band:       p.cfg.Bands.Band(score),
		})
		if f.TimeToCritical == nil && score >= critical {
			s := step
			f.TimeToCritical = &s
		}
	}

	f.ProjectedCritical = !f.AlreadyCritical && f.TimeToCritical != nil
	switch {
	case f.AlreadyCritical:
		f.Status = StatusAlreadyCritical
	case f.ProjectedCritical:
		f.Status = StatusProjectedCritical
	default:
		f.Status = StatusNotCritical
	}
	return f
}

// Inputs are the history-derived starting conditions of a forecast.
type Inputs struct {
	Current    float64
	Momentum   float64
	Confidence float64
}

// InputsFromHistory resolves the current score and trend from snapshots.
// A nil current falls back to the newest snapshot score, then 0.
func (p *Projector) InputsFromHistory(current *float64, snaps []history.Snapshot) Inputs {
	m := history.Derive(snaps, p.cfg.History)
	in := Inputs{Momentum: m.Momentum, Confidence: m.Confidence}
	switch {
	case current != nil:
		in.Current = stats.Finite(*current, 0)
	case len(snaps) > 0:
		in.Current = snaps[len(snaps)-1].Score
	}
	return in
}

// BuildRiskForecast projects a risk from its snapshot history.
func (p *Projector) BuildRiskForecast(riskID string, current *float64, snaps []history.Snapshot) Forecast {
	in := p.InputsFromHistory(current, snaps)
	return p.Project(riskID, in.Current, in.Momentum, in.Confidence)
}
