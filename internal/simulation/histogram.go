package simulation

import (
	"math"

	"riskquant/internal/stats"
)

// Bin is one bucket of a sample histogram. Lo is inclusive, Hi exclusive
// except for the last bin.
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Histogram buckets simulated totals into equal-width bins.
type Histogram struct {
	Bins  []Bin          `json:"bins"`
	Total int            `json:"total"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// NewHistogram builds a histogram over samples with the given bin count.
// Samples need not be sorted. Non-finite samples are dropped.
func NewHistogram(samples []float64, bins int) *Histogram {
	if bins <= 0 {
		bins = 20
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	dropped := 0
	for _, v := range samples {
		if !stats.IsFinite(v) {
			dropped++
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	h := &Histogram{Meta: map[string]any{"dropped": dropped}}
	if len(samples)-dropped == 0 {
		h.Bins = []Bin{}
		return h
	}

	// All samples identical: a single bin holds everything.
	if hi == lo {
		h.Bins = []Bin{{Lo: lo, Hi: hi, Count: len(samples) - dropped}}
		h.Total = len(samples) - dropped
		return h
	}

	width := (hi - lo) / float64(bins)
	h.Bins = make([]Bin, bins)
	for i := range h.Bins {
		h.Bins[i].Lo = lo + float64(i)*width
		h.Bins[i].Hi = lo + float64(i+1)*width
	}
	h.Bins[bins-1].Hi = hi

	for _, v := range samples {
		if !stats.IsFinite(v) {
			continue
		}
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		h.Bins[idx].Count++
		h.Total++
	}

	h.Meta["width"] = width
	return h
}
