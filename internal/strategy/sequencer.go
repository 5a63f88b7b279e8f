package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adaptivelab/experiment-core/internal/generator"
	"github.com/adaptivelab/experiment-core/internal/metrics"
	"github.com/adaptivelab/experiment-core/internal/record"
	"github.com/adaptivelab/experiment-core/internal/space"
)

// SequenceExhaustedError is returned by Ask once every strategy has finished
type SequenceExhaustedError struct {
	Strategies int
}

func (e *SequenceExhaustedError) Error() string {
	return fmt.Sprintf("experiment sequence exhausted: all %d strategies complete", e.Strategies)
}

// Sequencer runs an ordered list of strategies over one shared parameter
// space and outcome record. Ask and Tell are serialized behind a single
// mutex; generation itself runs outside the lock against an immutable
// history snapshot, so a slow model fit never blocks tells.
type Sequencer struct {
	mu          sync.Mutex
	space       *space.ParameterSpace
	rec         *record.OutcomeRecord
	strategies  []*Strategy
	activeIndex int
	nextTrialID int64
	collector   *metrics.Collector
}

// NewSequencer builds a sequencer over the given strategies. The outcome
// record is created internally and sized from the space's outcome types.
func NewSequencer(sp *space.ParameterSpace, strategies []*Strategy, collector *metrics.Collector) (*Sequencer, error) {
	if sp == nil {
		return nil, fmt.Errorf("parameter space is required")
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("at least one strategy is required")
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Sequencer{
		space:      sp,
		rec:        record.NewOutcomeRecord(sp.NumOutcomes()),
		strategies: strategies,
		collector:  collector,
	}, nil
}

// Space returns the shared parameter space
func (seq *Sequencer) Space() *space.ParameterSpace { return seq.space }

// Metrics returns the sequencer's collector
func (seq *Sequencer) Metrics() *metrics.Collector { return seq.collector }

// currentLocked resolves the strategy that should serve the next ask,
// advancing past any strategy whose completion criteria already hold.
// Caller must hold mu.
func (seq *Sequencer) currentLocked() (*Strategy, error) {
	for seq.activeIndex < len(seq.strategies) {
		s := seq.strategies[seq.activeIndex]
		if s.readyToFinish(seq.rec.Count()) {
			s.state = StateDone
			seq.activeIndex++
			continue
		}
		if s.state == StatePending {
			s.state = StateActive
		}
		return s, nil
	}
	return nil, &SequenceExhaustedError{Strategies: len(seq.strategies)}
}

// advanceLocked applies the post-tell transition check. Caller must hold mu.
func (seq *Sequencer) advanceLocked() {
	for seq.activeIndex < len(seq.strategies) {
		s := seq.strategies[seq.activeIndex]
		if !s.readyToFinish(seq.rec.Count()) {
			return
		}
		s.state = StateDone
		seq.activeIndex++
	}
}

// Ask issues the next trial. The active strategy's generator runs outside
// the sequencer lock against a snapshot of the history; on any generation
// error (including *generator.GenerationTimeoutError) no trial ID is
// consumed and no counter moves.
func (seq *Sequencer) Ask(ctx context.Context) (*space.Trial, error) {
	seq.mu.Lock()
	strat, err := seq.currentLocked()
	if err != nil {
		seq.mu.Unlock()
		return nil, err
	}
	snap := seq.rec.Snapshot()
	seq.mu.Unlock()

	start := time.Now()
	cands, usedFallback, err := strat.generate(ctx, 1, seq.space, snap)
	if err != nil {
		var te *generator.GenerationTimeoutError
		if errors.As(err, &te) {
			seq.collector.Inc("timeouts")
		}
		return nil, err
	}
	if len(cands) != 1 {
		return nil, fmt.Errorf("generator %s returned %d candidates, want 1", strat.GeneratorName(), len(cands))
	}
	// Candidates are validated against the space before an ID is assigned,
	// so a misbehaving generator surfaces a *space.BoundsError here instead
	// of an out-of-bounds trial entering the record.
	if err := seq.space.ValidateTrial(&space.Trial{Stimuli: cands[0]}); err != nil {
		return nil, err
	}

	seq.mu.Lock()
	defer seq.mu.Unlock()

	seq.nextTrialID++
	trial := &space.Trial{ID: seq.nextTrialID, Stimuli: cands[0]}
	if err := seq.rec.RegisterIssued(trial); err != nil {
		return nil, err
	}
	strat.asksIssued++

	seq.collector.ObserveAskLatency(strat.name, time.Since(start))
	seq.collector.Inc("asks")
	if usedFallback {
		seq.collector.Inc("fallbacks")
	}
	return trial.Clone(), nil
}

// Tell records an outcome for a previously issued trial. Any issued, un-told
// trial is tellable, in any order. After the outcome is appended the active
// strategy's completion criteria are re-checked.
func (seq *Sequencer) Tell(trialID int64, outcome []float64) error {
	seq.mu.Lock()
	defer seq.mu.Unlock()

	if err := seq.rec.Append(trialID, outcome); err != nil {
		return err
	}
	seq.collector.Inc("tells")
	seq.advanceLocked()
	return nil
}

// StrategyStatus describes one strategy's progress
type StrategyStatus struct {
	Name       string `json:"name"`
	Generator  string `json:"generator"`
	State      State  `json:"state"`
	AsksIssued int    `json:"asks_issued"`
}

// Status is a point-in-time view of the sequence
type Status struct {
	ActiveIndex  int              `json:"active_index"`
	Exhausted    bool             `json:"exhausted"`
	TrialsIssued int64            `json:"trials_issued"`
	OutcomesTold int              `json:"outcomes_told"`
	Strategies   []StrategyStatus `json:"strategies"`
}

// Status reports the sequence state for inspection
func (seq *Sequencer) Status() Status {
	seq.mu.Lock()
	defer seq.mu.Unlock()

	st := Status{
		ActiveIndex:  seq.activeIndex,
		Exhausted:    seq.activeIndex >= len(seq.strategies),
		TrialsIssued: seq.nextTrialID,
		OutcomesTold: seq.rec.Count(),
		Strategies:   make([]StrategyStatus, 0, len(seq.strategies)),
	}
	for _, s := range seq.strategies {
		st.Strategies = append(st.Strategies, StrategyStatus{
			Name:       s.name,
			Generator:  s.GeneratorName(),
			State:      s.state,
			AsksIssued: s.asksIssued,
		})
	}
	return st
}
