package acquisition

import (
	"fmt"
	"math"

	"github.com/adaptivelab/experiment-core/internal/model"
	"github.com/adaptivelab/experiment-core/pkg/utils"
)

// UpperConfidenceBound scores points by posterior mean plus a scaled
// posterior standard deviation. Larger Beta explores more.
type UpperConfidenceBound struct {
	Beta float64
}

func (a *UpperConfidenceBound) Name() string {
	return "ucb"
}

func (a *UpperConfidenceBound) Score(points [][]float64, post model.Posterior, best float64) ([]float64, error) {
	mean, variance, err := post.Predict(points)
	if err != nil {
		return nil, fmt.Errorf("posterior predict failed: %w", err)
	}
	scores := make([]float64, len(points))
	for i := range scores {
		scores[i] = mean[i] + math.Sqrt(a.Beta)*math.Sqrt(variance[i])
	}
	return scores, nil
}

// ExpectedImprovement scores points by the expected gain over the incumbent
// best outcome, with Xi as an optional improvement margin.
type ExpectedImprovement struct {
	Xi float64
}

func (a *ExpectedImprovement) Name() string {
	return "ei"
}

func (a *ExpectedImprovement) Score(points [][]float64, post model.Posterior, best float64) ([]float64, error) {
	mean, variance, err := post.Predict(points)
	if err != nil {
		return nil, fmt.Errorf("posterior predict failed: %w", err)
	}
	scores := make([]float64, len(points))
	for i := range scores {
		sd := math.Sqrt(variance[i])
		if sd < 1e-12 {
			scores[i] = math.Max(mean[i]-best-a.Xi, 0)
			continue
		}
		z := (mean[i] - best - a.Xi) / sd
		scores[i] = (mean[i]-best-a.Xi)*utils.NormCDF(z) + sd*utils.NormPDF(z)
	}
	return scores, nil
}
