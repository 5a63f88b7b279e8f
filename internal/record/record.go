package record

import (
	"fmt"
	"sync"

	"github.com/adaptivelab/experiment-core/internal/space"
)

// Entry is one recorded observation: the issued trial and its outcome vector
type Entry struct {
	Trial   *space.Trial
	Outcome []float64
}

// OutcomeRecord is the append-only log of (trial, outcome) pairs for one
// experiment. It is owned by the sequencer; generators and models only ever
// see immutable snapshots. Telling is permissive with respect to order: any
// issued, un-told trial may be appended, but never twice.
type OutcomeRecord struct {
	mu          sync.RWMutex
	numOutcomes int
	entries     []Entry
	issued      map[int64]*space.Trial
	told        map[int64]bool
}

// NewOutcomeRecord creates an empty record expecting outcome vectors of the
// given length
func NewOutcomeRecord(numOutcomes int) *OutcomeRecord {
	return &OutcomeRecord{
		numOutcomes: numOutcomes,
		issued:      make(map[int64]*space.Trial),
		told:        make(map[int64]bool),
	}
}

// RegisterIssued marks a trial as issued so its outcome may later be appended.
// Called by the sequencer when a trial leaves Ask.
func (r *OutcomeRecord) RegisterIssued(t *space.Trial) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t == nil {
		return fmt.Errorf("trial is nil")
	}
	if _, exists := r.issued[t.ID]; exists {
		return fmt.Errorf("trial %d already issued", t.ID)
	}
	r.issued[t.ID] = t.Clone()
	return nil
}

// Append records the outcome for an issued trial. Fails with *ShapeError when
// the outcome length does not match the expected channel count, with
// *UnknownTrialError when the trial was never issued, and with
// *DuplicateOutcomeError when the trial has already been told.
func (r *OutcomeRecord) Append(trialID int64, outcome []float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(outcome) != r.numOutcomes {
		return &ShapeError{Got: len(outcome), Want: r.numOutcomes}
	}
	trial, ok := r.issued[trialID]
	if !ok {
		return &UnknownTrialError{TrialID: trialID}
	}
	if r.told[trialID] {
		return &DuplicateOutcomeError{TrialID: trialID}
	}

	cloned := make([]float64, len(outcome))
	copy(cloned, outcome)
	r.entries = append(r.entries, Entry{Trial: trial.Clone(), Outcome: cloned})
	r.told[trialID] = true
	return nil
}

// Count returns the total number of appended entries
func (r *OutcomeRecord) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IssuedCount returns how many trials have been issued so far
func (r *OutcomeRecord) IssuedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.issued)
}

// WasIssued reports whether the trial ID has been issued
func (r *OutcomeRecord) WasIssued(trialID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.issued[trialID]
	return ok
}

// EntriesSince returns a copy of the entries appended at or after the given
// index. Used when a per-strategy slice of the history is needed.
func (r *OutcomeRecord) EntriesSince(start int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if start < 0 {
		start = 0
	}
	if start >= len(r.entries) {
		return nil
	}
	out := make([]Entry, 0, len(r.entries)-start)
	for _, e := range r.entries[start:] {
		out = append(out, Entry{Trial: e.Trial.Clone(), Outcome: append([]float64(nil), e.Outcome...)})
	}
	return out
}

// Snapshot returns an immutable view of the record at this instant.
// The snapshot shares nothing with the live record.
func (r *OutcomeRecord) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, Entry{Trial: e.Trial.Clone(), Outcome: append([]float64(nil), e.Outcome...)})
	}
	return &Snapshot{entries: entries}
}

// Snapshot is a point-in-time read-only view of an outcome record
type Snapshot struct {
	entries []Entry
}

// Count returns the number of entries in the snapshot
func (s *Snapshot) Count() int {
	return len(s.entries)
}

// Entries returns the snapshot's entries. Callers must not mutate them.
func (s *Snapshot) Entries() []Entry {
	return s.entries
}

// Flatten expands the snapshot into per-stimulus training pairs: one row per
// stimulus vector, with the trial's first outcome channel as the target.
func (s *Snapshot) Flatten() (x [][]float64, y []float64) {
	for _, e := range s.entries {
		for _, stim := range e.Trial.Stimuli {
			row := make([]float64, len(stim))
			copy(row, stim)
			x = append(x, row)
			y = append(y, e.Outcome[0])
		}
	}
	return x, y
}

// BestOutcome returns the largest first-channel outcome observed, or ok=false
// for an empty snapshot
func (s *Snapshot) BestOutcome() (best float64, ok bool) {
	for i, e := range s.entries {
		if i == 0 || e.Outcome[0] > best {
			best = e.Outcome[0]
		}
	}
	return best, len(s.entries) > 0
}

// ShapeError indicates an outcome vector whose length does not match the
// configured outcome channels
type ShapeError struct {
	Got  int
	Want int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("outcome vector has %d values, expected %d", e.Got, e.Want)
}

// UnknownTrialError indicates a tell for a trial this experiment never issued
type UnknownTrialError struct {
	TrialID int64
}

func (e *UnknownTrialError) Error() string {
	return fmt.Sprintf("trial %d was never issued by this experiment", e.TrialID)
}

// DuplicateOutcomeError indicates a second tell for an already-told trial
type DuplicateOutcomeError struct {
	TrialID int64
}

func (e *DuplicateOutcomeError) Error() string {
	return fmt.Sprintf("trial %d already has a recorded outcome", e.TrialID)
}
