package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/adaptivelab/experiment-core/internal/record"
	"github.com/adaptivelab/experiment-core/internal/space"
)

// Candidate is one proposed trial: one parameter vector per stimulus slot.
// Candidates carry no trial ID; the sequencer assigns IDs at issue time.
type Candidate [][]float64

// Generator produces candidate trials given the current space and history.
// Implementations must return points inside the parameter space bounds and
// exactly StimuliPerTrial vectors per candidate.
type Generator interface {
	// Generate produces n candidates. The history snapshot is read-only.
	Generate(ctx context.Context, n int, sp *space.ParameterSpace, hist *record.Snapshot) ([]Candidate, error)

	// Name returns the generator's registry name
	Name() string
}

// GenerationTimeoutError indicates that candidate generation exceeded its
// time budget. The ask is recoverable: sequencer state is left unchanged and
// the caller may simply retry.
type GenerationTimeoutError struct {
	Timeout time.Duration
}

func (e *GenerationTimeoutError) Error() string {
	return fmt.Sprintf("candidate generation exceeded %s budget", e.Timeout)
}
