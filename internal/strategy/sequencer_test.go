package strategy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/adaptivelab/experiment-core/internal/generator"
	"github.com/adaptivelab/experiment-core/internal/record"
	"github.com/adaptivelab/experiment-core/internal/space"
)

// fakeGen serves the space center on every draw, optionally failing
type fakeGen struct {
	name string
	err  error
}

func (g *fakeGen) Name() string { return g.name }

func (g *fakeGen) Generate(ctx context.Context, n int, sp *space.ParameterSpace, hist *record.Snapshot) ([]generator.Candidate, error) {
	if g.err != nil {
		return nil, g.err
	}
	out := make([]generator.Candidate, n)
	for i := range out {
		stimuli := make([][]float64, sp.StimuliPerTrial())
		for s := range stimuli {
			stimuli[s] = sp.Center()
		}
		out[i] = generator.Candidate(stimuli)
	}
	return out, nil
}

func testSpace(t *testing.T) *space.ParameterSpace {
	t.Helper()
	sp, err := space.NewParameterSpace(
		[]space.Parameter{{Name: "x", Lower: 0, Upper: 1}},
		1,
		[]space.OutcomeType{space.OutcomeBinary},
	)
	if err != nil {
		t.Fatalf("failed to build space: %v", err)
	}
	return sp
}

func mustSequencer(t *testing.T, sp *space.ParameterSpace, strategies ...*Strategy) *Sequencer {
	t.Helper()
	seq, err := NewSequencer(sp, strategies, nil)
	if err != nil {
		t.Fatalf("failed to build sequencer: %v", err)
	}
	return seq
}

func TestSequencerSingleStrategyLifecycle(t *testing.T) {
	sp := testSpace(t)
	s := NewStrategy("explore", &fakeGen{name: "fake"}, nil, 0, 3, 3)
	seq := mustSequencer(t, sp, s)

	if s.State() != StatePending {
		t.Fatalf("expected pending before first ask, got %s", s.State())
	}

	var lastID int64
	for i := 0; i < 3; i++ {
		trial, err := seq.Ask(context.Background())
		if err != nil {
			t.Fatalf("ask %d failed: %v", i, err)
		}
		if trial.ID <= lastID {
			t.Fatalf("trial IDs must increase: %d after %d", trial.ID, lastID)
		}
		lastID = trial.ID

		if s.State() != StateActive {
			t.Fatalf("expected active during asks, got %s", s.State())
		}
		if err := seq.Tell(trial.ID, []float64{1}); err != nil {
			t.Fatalf("tell %d failed: %v", i, err)
		}
	}

	if s.State() != StateDone {
		t.Fatalf("expected done after meeting criteria, got %s", s.State())
	}
	if s.AsksIssued() != 3 {
		t.Fatalf("expected 3 asks issued, got %d", s.AsksIssued())
	}

	var ee *SequenceExhaustedError
	if _, err := seq.Ask(context.Background()); !errors.As(err, &ee) {
		t.Fatalf("expected SequenceExhaustedError, got %v", err)
	}
}

func TestSequencerBothConditionsRequired(t *testing.T) {
	sp := testSpace(t)
	// One ask suffices, but three outcomes are required
	s := NewStrategy("explore", &fakeGen{name: "fake"}, nil, 0, 1, 3)
	next := NewStrategy("later", &fakeGen{name: "fake2"}, nil, 0, 1, 0)
	seq := mustSequencer(t, sp, s, next)

	t1, err := seq.Ask(context.Background())
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if err := seq.Tell(t1.ID, []float64{0}); err != nil {
		t.Fatalf("tell failed: %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("min_asks met but outcomes short, expected active, got %s", s.State())
	}

	// Two more asks and tells push the global count to the threshold
	for i := 0; i < 2; i++ {
		tr, err := seq.Ask(context.Background())
		if err != nil {
			t.Fatalf("ask failed: %v", err)
		}
		if err := seq.Tell(tr.ID, []float64{1}); err != nil {
			t.Fatalf("tell failed: %v", err)
		}
	}
	if s.State() != StateDone {
		t.Fatalf("expected done once both conditions hold, got %s", s.State())
	}

	// Next strategy serves the following ask
	if _, err := seq.Ask(context.Background()); err != nil {
		t.Fatalf("ask on second strategy failed: %v", err)
	}
	if next.State() != StateActive {
		t.Fatalf("expected second strategy active, got %s", next.State())
	}
}

func TestSequencerHandoffBetweenStrategies(t *testing.T) {
	sp := testSpace(t)
	first := NewStrategy("explore", &fakeGen{name: "g1"}, nil, 0, 2, 2)
	second := NewStrategy("optimize", &fakeGen{name: "g2"}, nil, 0, 1, 3)
	seq := mustSequencer(t, sp, first, second)

	for i := 0; i < 2; i++ {
		tr, err := seq.Ask(context.Background())
		if err != nil {
			t.Fatalf("ask failed: %v", err)
		}
		if err := seq.Tell(tr.ID, []float64{1}); err != nil {
			t.Fatalf("tell failed: %v", err)
		}
	}

	st := seq.Status()
	if st.ActiveIndex != 1 {
		t.Fatalf("expected active index 1 after handoff, got %d", st.ActiveIndex)
	}
	if first.AsksIssued() != 2 || second.AsksIssued() != 0 {
		t.Fatalf("unexpected ask counters: %d/%d", first.AsksIssued(), second.AsksIssued())
	}

	tr, err := seq.Ask(context.Background())
	if err != nil {
		t.Fatalf("ask on second strategy failed: %v", err)
	}
	if err := seq.Tell(tr.ID, []float64{1}); err != nil {
		t.Fatalf("tell failed: %v", err)
	}

	// min_asks=1 met and global outcomes now 3: whole sequence is done
	var ee *SequenceExhaustedError
	if _, err := seq.Ask(context.Background()); !errors.As(err, &ee) {
		t.Fatalf("expected SequenceExhaustedError, got %v", err)
	}
	if st := seq.Status(); !st.Exhausted {
		t.Fatal("status must report exhaustion")
	}
}

func TestSequencerOutOfOrderTell(t *testing.T) {
	sp := testSpace(t)
	s := NewStrategy("explore", &fakeGen{name: "fake"}, nil, 0, 10, 10)
	seq := mustSequencer(t, sp, s)

	t1, _ := seq.Ask(context.Background())
	t2, _ := seq.Ask(context.Background())

	if err := seq.Tell(t2.ID, []float64{1}); err != nil {
		t.Fatalf("telling the later trial first must work: %v", err)
	}
	if err := seq.Tell(t1.ID, []float64{0}); err != nil {
		t.Fatalf("telling the earlier trial second must work: %v", err)
	}
}

func TestSequencerTellErrors(t *testing.T) {
	sp := testSpace(t)
	s := NewStrategy("explore", &fakeGen{name: "fake"}, nil, 0, 10, 10)
	seq := mustSequencer(t, sp, s)

	tr, _ := seq.Ask(context.Background())

	var ue *record.UnknownTrialError
	if err := seq.Tell(999, []float64{1}); !errors.As(err, &ue) {
		t.Fatalf("expected UnknownTrialError, got %v", err)
	}

	var se *record.ShapeError
	if err := seq.Tell(tr.ID, []float64{1, 2}); !errors.As(err, &se) {
		t.Fatalf("expected ShapeError, got %v", err)
	}

	if err := seq.Tell(tr.ID, []float64{1}); err != nil {
		t.Fatalf("tell failed: %v", err)
	}
	var de *record.DuplicateOutcomeError
	if err := seq.Tell(tr.ID, []float64{1}); !errors.As(err, &de) {
		t.Fatalf("expected DuplicateOutcomeError, got %v", err)
	}
}

func TestSequencerGenerationErrorLeavesStateUnchanged(t *testing.T) {
	sp := testSpace(t)
	failing := &fakeGen{name: "slow", err: &generator.GenerationTimeoutError{Timeout: time.Millisecond}}
	s := NewStrategy("optimize", failing, nil, 0, 5, 5)
	seq := mustSequencer(t, sp, s)

	_, err := seq.Ask(context.Background())
	var te *generator.GenerationTimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected GenerationTimeoutError, got %v", err)
	}

	if s.AsksIssued() != 0 {
		t.Fatalf("failed ask must not count, got %d", s.AsksIssued())
	}
	if st := seq.Status(); st.TrialsIssued != 0 {
		t.Fatalf("failed ask must not consume a trial ID, got %d", st.TrialsIssued)
	}
	if seq.Metrics().Counter("timeouts") != 1 {
		t.Fatal("timeout must be counted")
	}
}

// rogueGen returns a fixed point regardless of the space bounds
type rogueGen struct {
	point []float64
}

func (g *rogueGen) Name() string { return "rogue" }

func (g *rogueGen) Generate(ctx context.Context, n int, sp *space.ParameterSpace, hist *record.Snapshot) ([]generator.Candidate, error) {
	out := make([]generator.Candidate, n)
	for i := range out {
		stimuli := make([][]float64, sp.StimuliPerTrial())
		for s := range stimuli {
			stimuli[s] = g.point
		}
		out[i] = generator.Candidate(stimuli)
	}
	return out, nil
}

func TestSequencerRejectsOutOfBoundsCandidate(t *testing.T) {
	sp := testSpace(t)
	s := NewStrategy("explore", &rogueGen{point: []float64{99}}, nil, 0, 5, 5)
	seq := mustSequencer(t, sp, s)

	_, err := seq.Ask(context.Background())
	var be *space.BoundsError
	if !errors.As(err, &be) {
		t.Fatalf("expected BoundsError, got %v", err)
	}

	if s.AsksIssued() != 0 {
		t.Fatalf("rejected ask must not count, got %d", s.AsksIssued())
	}
	if st := seq.Status(); st.TrialsIssued != 0 {
		t.Fatalf("rejected ask must not consume a trial ID, got %d", st.TrialsIssued)
	}

	// Nothing was issued, so nothing is tellable
	var ue *record.UnknownTrialError
	if err := seq.Tell(1, []float64{1}); !errors.As(err, &ue) {
		t.Fatalf("expected UnknownTrialError, got %v", err)
	}
}

func TestStrategyWarmupFallback(t *testing.T) {
	sp := testSpace(t)
	primary := &fakeGen{name: "optimize_acqf", err: fmt.Errorf("model should not run during warm-up")}
	fallback := &fakeGen{name: "sobol"}
	s := NewStrategy("optimize", primary, fallback, 2, 10, 10)
	seq := mustSequencer(t, sp, s)

	// No outcomes yet: the fallback serves the draw
	t1, err := seq.Ask(context.Background())
	if err != nil {
		t.Fatalf("warm-up ask failed: %v", err)
	}
	if seq.Metrics().Counter("fallbacks") != 1 {
		t.Fatal("fallback must be counted")
	}

	if err := seq.Tell(t1.ID, []float64{1}); err != nil {
		t.Fatalf("tell failed: %v", err)
	}
	t2, err := seq.Ask(context.Background())
	if err != nil {
		t.Fatalf("second warm-up ask failed: %v", err)
	}
	if err := seq.Tell(t2.ID, []float64{0}); err != nil {
		t.Fatalf("tell failed: %v", err)
	}

	// Two outcomes recorded: the primary generator takes over and fails
	if _, err := seq.Ask(context.Background()); err == nil {
		t.Fatal("expected the primary generator to run once data suffices")
	}
	if got := seq.Metrics().Counter("fallbacks"); got != 2 {
		t.Fatalf("expected 2 fallbacks, got %d", got)
	}
}

func TestSequencerZeroThresholdStrategySkipped(t *testing.T) {
	sp := testSpace(t)
	trivial := NewStrategy("noop", &fakeGen{name: "g1"}, nil, 0, 0, 0)
	real := NewStrategy("explore", &fakeGen{name: "g2"}, nil, 0, 1, 0)
	seq := mustSequencer(t, sp, trivial, real)

	if _, err := seq.Ask(context.Background()); err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if trivial.State() != StateDone {
		t.Fatalf("trivially satisfied strategy must be skipped, got %s", trivial.State())
	}
	if real.AsksIssued() != 1 {
		t.Fatalf("expected the real strategy to serve the ask, got %d", real.AsksIssued())
	}
}

func TestSequencerAsksOnlyNoOutcomeThreshold(t *testing.T) {
	sp := testSpace(t)
	gen, err := generator.NewSobol(1, 2, 9)
	if err != nil {
		t.Fatalf("failed to build generator: %v", err)
	}
	s := NewStrategy("explore", gen, nil, 0, 3, 0)
	seq := mustSequencer(t, sp, s)

	// No tells at all: the ask threshold alone finishes the strategy
	for i := 0; i < 3; i++ {
		if _, err := seq.Ask(context.Background()); err != nil {
			t.Fatalf("ask %d failed: %v", i, err)
		}
	}
	var ee *SequenceExhaustedError
	if _, err := seq.Ask(context.Background()); !errors.As(err, &ee) {
		t.Fatalf("expected SequenceExhaustedError on the fourth ask, got %v", err)
	}
}

func TestSequencerTrialIsIsolatedCopy(t *testing.T) {
	sp := testSpace(t)
	s := NewStrategy("explore", &fakeGen{name: "fake"}, nil, 0, 5, 5)
	seq := mustSequencer(t, sp, s)

	tr, err := seq.Ask(context.Background())
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	tr.Stimuli[0][0] = -999

	// Mutating the returned trial must not corrupt the issued registry
	if err := seq.Tell(tr.ID, []float64{1}); err != nil {
		t.Fatalf("tell failed: %v", err)
	}
}
