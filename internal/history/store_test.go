package history

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestStore_AppendCapsAndEvictsOldest(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	for i := 1; i <= 15; i++ {
		if _, err := s.Append(ctx, Snapshot{RiskID: "R1", Score: float64(i)}); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	got := s.Get("R1")
	if len(got) != MaxSnapshots {
		t.Fatalf("expected %d snapshots, got %d", MaxSnapshots, len(got))
	}
	if got[0].Score != 6 || got[0].Cycle != 6 {
		t.Errorf("expected oldest retained to be cycle 6, got cycle %d score %v", got[0].Cycle, got[0].Score)
	}
	if got[len(got)-1].Cycle != 15 {
		t.Errorf("expected newest cycle 15, got %d", got[len(got)-1].Cycle)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore(nil)
	out, _ := s.Append(context.Background(), Snapshot{RiskID: "R1", Score: 50})
	out[0].Score = 99

	if s.Get("R1")[0].Score != 50 {
		t.Error("mutating returned history leaked into the store")
	}
}

func TestStore_SanitisesSnapshots(t *testing.T) {
	s := NewStore(nil)
	m := math.NaN()
	out, err := s.Append(context.Background(), Snapshot{RiskID: "R1", Score: math.Inf(1), TriggerRate: -1, SimMeanCost: math.NaN(), Momentum: &m})
	if err != nil {
		t.Fatal(err)
	}
	got := out[0]
	if got.Score != 100 || got.TriggerRate != 0 || got.SimMeanCost != 0 || *got.Momentum != 0 {
		t.Errorf("expected sanitised snapshot, got %+v (momentum %v)", got, *got.Momentum)
	}
}

func TestStore_RejectsMissingID(t *testing.T) {
	if _, err := NewStore(nil).Append(context.Background(), Snapshot{Score: 1}); err == nil {
		t.Error("expected error for snapshot without risk id")
	}
}

func TestStore_ConcurrentAppendsSameKey(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Append(ctx, Snapshot{RiskID: "HOT", Score: 10})
			_, _ = s.Append(ctx, Snapshot{RiskID: "COLD", Score: 10})
		}()
	}
	wg.Wait()

	for _, id := range []string{"HOT", "COLD"} {
		got := s.Get(id)
		if len(got) != MaxSnapshots {
			t.Fatalf("%s: expected %d snapshots, got %d", id, MaxSnapshots, len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].Cycle != got[i-1].Cycle+1 {
				t.Errorf("%s: cycles not contiguous: %d then %d", id, got[i-1].Cycle, got[i].Cycle)
			}
		}
		if got[len(got)-1].Cycle != 50 {
			t.Errorf("%s: expected final cycle 50, got %d", id, got[len(got)-1].Cycle)
		}
	}
	if diff := cmp.Diff([]string{"COLD", "HOT"}, s.IDs()); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
}

func TestFilePersister_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "history")
	ctx := context.Background()

	s1 := NewStore(NewFilePersister(dir))
	for i := 0; i < 3; i++ {
		if _, err := s1.Append(ctx, Snapshot{RiskID: "R/1 alpha", Score: float64(10 * (i + 1)), SimMeanCost: 1000}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "R%2F1%20alpha.jsonl")); err != nil {
		t.Fatalf("expected escaped history file: %v", err)
	}

	s2 := NewStore(NewFilePersister(dir))
	if err := s2.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	want := s1.Get("R/1 alpha")
	got := s2.Get("R/1 alpha")
	if diff := cmp.Diff(want, got, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("history mismatch after reload (-want +got):\n%s", diff)
	}

	// Appending after reload continues the cycle sequence.
	out, _ := s2.Append(ctx, Snapshot{RiskID: "R/1 alpha", Score: 40})
	if out[len(out)-1].Cycle != 4 {
		t.Errorf("expected cycle 4 after reload, got %d", out[len(out)-1].Cycle)
	}
}

func TestFilePersister_MissingDirIsEmpty(t *testing.T) {
	s := NewStore(NewFilePersister(filepath.Join(t.TempDir(), "nope")))
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("expected absent history to load cleanly, got %v", err)
	}
	if len(s.IDs()) != 0 {
		t.Errorf("expected no histories, got %v", s.IDs())
	}
}

func TestFilePersister_SkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	content := "{\"riskId\":\"R1\",\"cycle\":1,\"score\":12}\nnot-json\n{\"riskId\":\"R1\",\"cycle\":2,\"score\":14}\n"
	if err := os.WriteFile(filepath.Join(dir, "R1.jsonl"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(NewFilePersister(dir))
	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.Get("R1"); len(got) != 2 || got[1].Score != 14 {
		t.Errorf("expected two valid snapshots, got %+v", got)
	}
}

type failingPersister struct{}

func (failingPersister) LoadAll(context.Context) (map[string][]Snapshot, error) {
	return nil, errors.New("boom")
}

func (failingPersister) Save(context.Context, string, []Snapshot) error {
	return errors.New("disk full")
}

func TestStore_PersistFailureLeavesStateUntouched(t *testing.T) {
	s := NewStore(failingPersister{})
	if _, err := s.Append(context.Background(), Snapshot{RiskID: "R1", Score: 5}); err == nil {
		t.Fatal("expected persist error")
	}
	if got := s.Get("R1"); len(got) != 0 {
		t.Errorf("expected no history after failed persist, got %d entries", len(got))
	}
	if err := s.Load(context.Background()); err == nil {
		t.Error("expected load error to surface")
	}
}
