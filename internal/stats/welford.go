package stats

import "math"

// Welford is a running mean/variance accumulator. The zero value is ready to use.
type Welford struct {
	N    int64
	Mean float64
	M2   float64
}

// Add folds one observation into the accumulator.
func (w *Welford) Add(x float64) {
	w.N++
	delta := x - w.Mean
	w.Mean += delta / float64(w.N)
	w.M2 += delta * (x - w.Mean)
}

// Merge combines another accumulator into w (Chan et al. parallel update).
// Merging in a fixed order keeps results bit-identical across runs.
func (w *Welford) Merge(o Welford) {
	if o.N == 0 {
		return
	}
	if w.N == 0 {
		*w = o
		return
	}
	n := w.N + o.N
	delta := o.Mean - w.Mean
	mean := w.Mean + delta*float64(o.N)/float64(n)
	m2 := w.M2 + o.M2 + delta*delta*float64(w.N)*float64(o.N)/float64(n)
	w.N, w.Mean, w.M2 = n, mean, m2
}

// Variance returns the population variance.
func (w Welford) Variance() float64 {
	if w.N < 2 {
		return 0
	}
	v := w.M2 / float64(w.N)
	if v < 0 || !IsFinite(v) {
		return 0
	}
	return v
}

// StdDev returns the population standard deviation.
func (w Welford) StdDev() float64 {
	return math.Sqrt(w.Variance())
}
