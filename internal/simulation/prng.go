package simulation

// mulberry32 is a 32-bit state PRNG. Identical seeds yield identical
// streams on every platform.
type mulberry32 struct {
	state uint32
}

func newMulberry32(seed uint32) *mulberry32 {
	return &mulberry32{state: seed}
}

// Float64 returns a uniform value in [0, 1).
func (m *mulberry32) Float64() float64 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296.0
}

// baseSeed folds a 64-bit user seed into 32 bits.
func baseSeed(seed int64) uint32 {
	u := uint64(seed)
	return uint32(u) ^ uint32(u>>32)
}

// iterationSeed derives the sub-stream seed for one iteration. Every iteration
// owns its stream, so results do not depend on which worker runs it.
func iterationSeed(base uint32, i int) uint32 {
	return fmix32(base + uint32(i+1)*0x9E3779B9)
}

// fmix32 is the murmur3 finalizer.
func fmix32(h uint32) uint32 {
	h ^= h >> 16
	h *= 0x85EBCA6B
	h ^= h >> 13
	h *= 0xC2B2AE35
	h ^= h >> 16
	return h
}

// triangular draws from Triangular(lo, mode, hi) by inverse CDF.
func triangular(u, lo, mode, hi float64) float64 {
	if hi <= lo {
		return mode
	}
	span := hi - lo
	fc := (mode - lo) / span
	if u < fc {
		return lo + sqrt(u*span*(mode-lo))
	}
	return hi - sqrt((1-u)*span*(hi-mode))
}
