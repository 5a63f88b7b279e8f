package acquisition

import (
	"fmt"

	"github.com/adaptivelab/experiment-core/internal/model"
)

// Acquisition scores candidate points against a fitted posterior. Higher
// utility means a more desirable next trial. best is the best first-channel
// outcome observed so far; functions that do not use an incumbent ignore it.
type Acquisition interface {
	Score(points [][]float64, post model.Posterior, best float64) ([]float64, error)
	Name() string
}

// Config selects and parameterizes an acquisition function
type Config struct {
	Name string
	Beta float64 // UCB exploration weight, defaults to 1.96
	Xi   float64 // EI improvement margin, defaults to 0.01
}

// New creates an acquisition function from a config. Unknown names fail so
// that misconfigurations surface at sequencer construction.
func New(cfg Config) (Acquisition, error) {
	switch cfg.Name {
	case "ucb", "upper_confidence_bound":
		beta := cfg.Beta
		if beta <= 0 {
			beta = 1.96
		}
		return &UpperConfidenceBound{Beta: beta}, nil
	case "ei", "expected_improvement":
		xi := cfg.Xi
		if xi < 0 {
			xi = 0.01
		}
		return &ExpectedImprovement{Xi: xi}, nil
	default:
		return nil, fmt.Errorf("unknown acquisition function: %s", cfg.Name)
	}
}
