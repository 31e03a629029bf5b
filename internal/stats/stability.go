package stats

import (
	"math"
)

// XmRResult represents the output of a Process Behavior Chart analysis.
type XmRResult struct {
	Average     float64   `json:"average"`
	AmR         float64   `json:"average_moving_range"`
	UNPL        float64   `json:"upper_natural_process_limit"`
	LNPL        float64   `json:"lower_natural_process_limit"`
	Values      []float64 `json:"values"`
	MovingRange []float64 `json:"moving_ranges"`
	Signals     []Signal  `json:"signals"`
}

// Signal represents a detected special cause variation.
type Signal struct {
	Index       int    `json:"index"`
	Type        string `json:"type"` // "outlier", "shift"
	Description string `json:"description"`
}

// CalculateXmR performs the math for an Individuals and Moving Range chart.
func CalculateXmR(values []float64) XmRResult {
	if len(values) == 0 {
		return XmRResult{}
	}

	result := XmRResult{
		Values: values,
	}

	// 1. Calculate Average
	result.Average = Mean(values)

	// 2. Calculate Moving Ranges
	if len(values) > 1 {
		mrSum := 0.0
		result.MovingRange = make([]float64, len(values)-1)
		for i := 0; i < len(values)-1; i++ {
			mr := math.Abs(values[i+1] - values[i])
			result.MovingRange[i] = mr
			mrSum += mr
		}
		result.AmR = mrSum / float64(len(values)-1)
	}

	// 3. Calculate Limits (Wheeler's scaling constant for Individuals is 2.66)
	result.UNPL = result.Average + (2.66 * result.AmR)
	result.LNPL = math.Max(0, result.Average-(2.66*result.AmR))

	// 4. Detect Signals
	result.Signals = detectSignals(values, result.Average, result.UNPL, result.LNPL)

	return result
}

// StabilityScore condenses an XmR view of a 0-100 score series into a 0-100
// stability score (100 = fully stable). The average moving range is compared
// against rangeCap, and every special-cause signal costs a further 10 points.
// Fewer than two points is reported as fully stable.
func StabilityScore(values []float64, rangeCap float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if IsFinite(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) < 2 {
		return 100
	}
	if !(rangeCap > 0) {
		rangeCap = 40
	}

	xmr := CalculateXmR(clean)
	score := 100 * (1 - Clamp01(xmr.AmR/rangeCap))
	score -= 10 * float64(len(xmr.Signals))

	return Clamp(score, 0, 100)
}

func detectSignals(values []float64, avg, unpl, lnpl float64) []Signal {
	var signals []Signal

	for i, v := range values {
		if v > unpl {
			signals = append(signals, Signal{
				Index:       i,
				Type:        "outlier",
				Description: "Point above Upper Natural Process Limit (UNPL)",
			})
		} else if v < lnpl {
			signals = append(signals, Signal{
				Index:       i,
				Type:        "outlier",
				Description: "Point below Lower Natural Process Limit (LNPL)",
			})
		}
	}

	if len(values) >= 8 {
		side := 0
		count := 0
		for i, v := range values {
			currentSide := 0
			if v > avg {
				currentSide = 1
			} else if v < avg {
				currentSide = -1
			}

			if currentSide == side && currentSide != 0 {
				count++
			} else {
				side = currentSide
				count = 1
			}

			if count == 8 {
				signals = append(signals, Signal{
					Index:       i,
					Type:        "shift",
					Description: "8 consecutive points on one side of the average identified (Process Shift)",
				})
			}
		}
	}

	return signals
}
