package scoring

// Weights are the explicit component weights. The trigger-rate weight is
// whatever remains of 1 after these three.
type Weights struct {
	Velocity   float64 `json:"velocityWeight" yaml:"velocityWeight"`
	Volatility float64 `json:"volatilityWeight" yaml:"volatilityWeight"`
	Stability  float64 `json:"stabilityWeight" yaml:"stabilityWeight"`
}

// Thresholds drive alert tagging.
type Thresholds struct {
	Critical       float64 `json:"critical" yaml:"critical"`
	Accelerating   float64 `json:"accelerating" yaml:"accelerating"`
	Volatile       float64 `json:"volatile" yaml:"volatile"`
	Unstable       float64 `json:"unstable" yaml:"unstable"`
	Improving      float64 `json:"improving" yaml:"improving"`
	EmergingLatest float64 `json:"emergingLatest" yaml:"emergingLatest"`
	EmergingRise   float64 `json:"emergingRise" yaml:"emergingRise"`
}

// Config is the full scoring configuration.
type Config struct {
	Weights       Weights    `json:"weights" yaml:"weights"`
	VelocityScale float64    `json:"velocityScale" yaml:"velocityScale"`
	VolatilityCap float64    `json:"volatilityCap" yaml:"volatilityCap"`
	Thresholds    Thresholds `json:"thresholds" yaml:"thresholds"`
}

// DefaultConfig returns the stock scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Velocity:   0.25,
			Volatility: 0.20,
			Stability:  0.15,
		},
		VelocityScale: 0.25,
		VolatilityCap: 0.8,
		Thresholds: Thresholds{
			Critical:       75,
			Accelerating:   0.15,
			Volatile:       0.4,
			Unstable:       50,
			Improving:      80,
			EmergingLatest: 0.2,
			EmergingRise:   0.1,
		},
	}
}
