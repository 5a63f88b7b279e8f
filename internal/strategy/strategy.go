package strategy

import (
	"context"

	"github.com/adaptivelab/experiment-core/internal/generator"
	"github.com/adaptivelab/experiment-core/internal/record"
	"github.com/adaptivelab/experiment-core/internal/space"
	"github.com/adaptivelab/experiment-core/pkg/logger"
)

// State is the lifecycle phase of a strategy
type State string

const (
	// StatePending means the strategy has not served an ask yet
	StatePending State = "pending"
	// StateActive means the strategy is currently serving asks
	StateActive State = "active"
	// StateDone means the strategy met its completion criteria
	StateDone State = "done"
)

// Strategy pairs a candidate generator with completion criteria. A strategy
// finishes only when it has issued at least minAsks trials AND the experiment
// has accumulated at least minOutcomes outcomes in total.
type Strategy struct {
	name        string
	gen         generator.Generator
	fallback    generator.Generator
	minData     int
	minAsks     int
	minOutcomes int

	state      State
	asksIssued int
}

// NewStrategy builds a strategy around a generator. fallback and minData are
// set for model-based strategies: when the history holds fewer than minData
// outcomes, generation is served by the fallback instead of the model.
func NewStrategy(name string, gen generator.Generator, fallback generator.Generator, minData, minAsks, minOutcomes int) *Strategy {
	return &Strategy{
		name:        name,
		gen:         gen,
		fallback:    fallback,
		minData:     minData,
		minAsks:     minAsks,
		minOutcomes: minOutcomes,
		state:       StatePending,
	}
}

func (s *Strategy) Name() string { return s.name }

func (s *Strategy) State() State { return s.state }

func (s *Strategy) AsksIssued() int { return s.asksIssued }

// GeneratorName reports which generator serves this strategy's asks
func (s *Strategy) GeneratorName() string { return s.gen.Name() }

// readyToFinish reports whether the completion criteria hold. Both conditions
// must hold at the same time; the outcome count is the global cumulative
// count, not a per-strategy one.
func (s *Strategy) readyToFinish(globalOutcomes int) bool {
	return s.asksIssued >= s.minAsks && globalOutcomes >= s.minOutcomes
}

// generate produces n candidates against the history snapshot. When the
// history cannot yet support the primary generator, the warm-up fallback
// serves the draw instead and usedFallback is true.
func (s *Strategy) generate(ctx context.Context, n int, sp *space.ParameterSpace, hist *record.Snapshot) (cands []generator.Candidate, usedFallback bool, err error) {
	gen := s.gen
	if s.fallback != nil && hist.Count() < s.minData {
		logger.Warn("insufficient data for model fit, serving warm-up draw",
			"strategy", s.name,
			"outcomes", hist.Count(),
			"required", s.minData)
		gen = s.fallback
		usedFallback = true
	}
	cands, err = gen.Generate(ctx, n, sp, hist)
	return cands, usedFallback, err
}
