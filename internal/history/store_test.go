package history

import (
	"path/filepath"
	"testing"

	"github.com/adaptivelab/experiment-core/internal/space"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreReplayRoundTrip(t *testing.T) {
	s := openStore(t)

	if err := s.SaveExperiment("exp-1", "threshold", []byte("name: threshold")); err != nil {
		t.Fatalf("save experiment failed: %v", err)
	}

	trials := []*space.Trial{
		{ID: 1, Stimuli: [][]float64{{0.25, 0.5}}},
		{ID: 2, Stimuli: [][]float64{{0.75, 0.1}}},
		{ID: 3, Stimuli: [][]float64{{0.5, 0.9}}},
	}
	for _, tr := range trials {
		if err := s.SaveTrial("exp-1", tr, "explore"); err != nil {
			t.Fatalf("save trial %d failed: %v", tr.ID, err)
		}
	}

	// Tell out of order, leave trial 3 pending
	if err := s.SaveOutcome("exp-1", 2, []float64{1}); err != nil {
		t.Fatalf("save outcome failed: %v", err)
	}
	if err := s.SaveOutcome("exp-1", 1, []float64{0}); err != nil {
		t.Fatalf("save outcome failed: %v", err)
	}

	entries, err := s.Replay("exp-1")
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.TrialID != int64(i+1) {
			t.Fatalf("replay must be ordered by trial ID, got %d at position %d", e.TrialID, i)
		}
	}
	if entries[0].Outcome == nil || entries[0].Outcome[0] != 0 {
		t.Fatalf("unexpected outcome for trial 1: %v", entries[0].Outcome)
	}
	if entries[1].Outcome == nil || entries[1].Outcome[0] != 1 {
		t.Fatalf("unexpected outcome for trial 2: %v", entries[1].Outcome)
	}
	if entries[2].Outcome != nil {
		t.Fatalf("untold trial must replay without an outcome, got %v", entries[2].Outcome)
	}
	if entries[0].Stimuli[0][1] != 0.5 {
		t.Fatalf("stimuli did not round-trip: %v", entries[0].Stimuli)
	}
}

func TestStoreReplayUnknownExperiment(t *testing.T) {
	s := openStore(t)
	entries, err := s.Replay("missing")
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestStoreListExperiments(t *testing.T) {
	s := openStore(t)
	if err := s.SaveExperiment("exp-a", "first", []byte("{}")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.SaveExperiment("exp-b", "second", []byte("{}")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	infos, err := s.ListExperiments()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 experiments, got %d", len(infos))
	}
	seen := map[string]bool{}
	for _, info := range infos {
		seen[info.ID] = true
		if info.CreatedAt.IsZero() {
			t.Fatalf("experiment %s missing created_at", info.ID)
		}
	}
	if !seen["exp-a"] || !seen["exp-b"] {
		t.Fatalf("missing experiments in %v", infos)
	}
}

func TestStoreDuplicateExperimentRejected(t *testing.T) {
	s := openStore(t)
	if err := s.SaveExperiment("exp-1", "one", []byte("{}")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := s.SaveExperiment("exp-1", "again", []byte("{}")); err == nil {
		t.Fatal("expected primary key violation")
	}
}
