package history

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"riskquant/internal/stats"

	"github.com/rs/zerolog/log"
)

// MaxSnapshots is the retention cap per risk; older entries are evicted.
const MaxSnapshots = 10

// Snapshot is one point-in-time observation of a risk.
type Snapshot struct {
	RiskID      string    `json:"riskId"`
	Cycle       int       `json:"cycle"`
	Timestamp   time.Time `json:"timestamp"`
	Score       float64   `json:"score"`
	Momentum    *float64  `json:"momentum,omitempty"`
	TriggerRate float64   `json:"triggerRate"`
	SimMeanCost float64   `json:"simMeanCost"`
	// InstabilityIndex is the EII recorded on this cycle, if any.
	InstabilityIndex *int `json:"instabilityIndex,omitempty"`
}

// sanitized returns a copy with every numeric field finite and bounded.
func (s Snapshot) sanitized() Snapshot {
	out := s
	out.Score = stats.Clamp(s.Score, 0, 100)
	out.TriggerRate = stats.Clamp01(s.TriggerRate)
	out.SimMeanCost = stats.NonNegative(s.SimMeanCost)
	if s.Momentum != nil {
		m := stats.Finite(*s.Momentum, 0)
		out.Momentum = &m
	}
	if s.InstabilityIndex != nil {
		idx := min(max(*s.InstabilityIndex, 0), 100)
		out.InstabilityIndex = &idx
	}
	return out
}

// Persister durably stores snapshot histories. Implementations must treat
// total absence of data as an empty history, not an error.
type Persister interface {
	LoadAll(ctx context.Context) (map[string][]Snapshot, error)
	Save(ctx context.Context, riskID string, snaps []Snapshot) error
}

type series struct {
	mu    sync.Mutex
	snaps []Snapshot
}

// Store keeps the most recent snapshots per risk. Appends to the same risk
// are serialized; different risks never contend.
type Store struct {
	mu        sync.RWMutex
	series    map[string]*series
	persister Persister
}

// NewStore creates a store. A nil persister keeps history in memory only.
func NewStore(p Persister) *Store {
	return &Store{
		series:    make(map[string]*series),
		persister: p,
	}
}

// Load replaces in-memory state with the persisted histories.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	all, err := s.persister.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot history: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, snaps := range all {
		clean := make([]Snapshot, 0, len(snaps))
		for _, snap := range snaps {
			snap.RiskID = id
			clean = append(clean, snap.sanitized())
		}
		slices.SortStableFunc(clean, func(a, b Snapshot) int { return a.Cycle - b.Cycle })
		if len(clean) > MaxSnapshots {
			clean = clean[len(clean)-MaxSnapshots:]
		}
		s.series[id] = &series{snaps: clean}
	}

	log.Info().Int("risks", len(all)).Msg("Loaded snapshot history")
	return nil
}

func (s *Store) get(riskID string, create bool) *series {
	s.mu.RLock()
	sr, ok := s.series[riskID]
	s.mu.RUnlock()
	if ok || !create {
		return sr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sr, ok = s.series[riskID]; !ok {
		sr = &series{}
		s.series[riskID] = sr
	}
	return sr
}

// Append records a snapshot and returns the resulting history, oldest first.
// A zero Cycle is assigned the next cycle number; a zero Timestamp is set to now.
// The returned slice is a copy.
func (s *Store) Append(ctx context.Context, snap Snapshot) ([]Snapshot, error) {
	if snap.RiskID == "" {
		return nil, fmt.Errorf("snapshot has no risk id")
	}
	sr := s.get(snap.RiskID, true)

	sr.mu.Lock()
	defer sr.mu.Unlock()

	snap = snap.sanitized()
	if snap.Cycle == 0 {
		snap.Cycle = 1
		if n := len(sr.snaps); n > 0 {
			snap.Cycle = sr.snaps[n-1].Cycle + 1
		}
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}

	next := append(slices.Clone(sr.snaps), snap)
	if len(next) > MaxSnapshots {
		next = next[len(next)-MaxSnapshots:]
	}

	// Persist while holding the key lock so writes for one risk stay ordered.
	if s.persister != nil {
		if err := s.persister.Save(ctx, snap.RiskID, next); err != nil {
			return nil, fmt.Errorf("failed to persist history for %s: %w", snap.RiskID, err)
		}
	}
	sr.snaps = next

	return slices.Clone(next), nil
}

// Get returns a copy of the history for riskID, oldest first.
func (s *Store) Get(riskID string) []Snapshot {
	sr := s.get(riskID, false)
	if sr == nil {
		return nil
	}
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return slices.Clone(sr.snaps)
}

// IDs lists risks with recorded history, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.series))
	for id := range s.series {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Tail returns the last n snapshots of snaps without copying.
func Tail(snaps []Snapshot, n int) []Snapshot {
	if n <= 0 {
		return nil
	}
	if len(snaps) > n {
		return snaps[len(snaps)-n:]
	}
	return snaps
}
