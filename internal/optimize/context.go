package optimize

import (
	"sync"
	"time"

	"riskquant/internal/risk"
	"riskquant/internal/simulation"
)

// SimulationContext is the baseline the optimiser works against: the current
// risks and the neutral-scenario simulation of them.
type SimulationContext struct {
	Source    string               `json:"source"`
	Risks     []risk.Record        `json:"risks"`
	Neutral   *simulation.Snapshot `json:"neutralSnapshot,omitempty"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// ContextHolder keeps the most recent context per source. It is created by
// the caller and passed to whoever needs it; there is no package-level instance.
type ContextHolder struct {
	mu     sync.RWMutex
	latest string
	byKey  map[string]SimulationContext
}

// NewContextHolder returns an empty holder.
func NewContextHolder() *ContextHolder {
	return &ContextHolder{byKey: make(map[string]SimulationContext)}
}

// Set stores ctx under its source and marks it as the latest.
func (h *ContextHolder) Set(sc SimulationContext) {
	if sc.UpdatedAt.IsZero() {
		sc.UpdatedAt = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byKey[sc.Source] = sc
	h.latest = sc.Source
}

// Get returns the context for source. An empty source returns the latest.
func (h *ContextHolder) Get(source string) (SimulationContext, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if source == "" {
		source = h.latest
	}
	sc, ok := h.byKey[source]
	return sc, ok
}

// BaselineP80 returns the neutral P80 for status probes, 0 when there is
// no baseline yet. Optimisation paths must not use it.
func (h *ContextHolder) BaselineP80(source string) float64 {
	sc, ok := h.Get(source)
	if !ok || sc.Neutral == nil {
		return 0
	}
	return sc.Neutral.P80Cost()
}
