package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adaptivelab/experiment-core/internal/acquisition"
	"github.com/adaptivelab/experiment-core/internal/model"
	"github.com/adaptivelab/experiment-core/internal/record"
	"github.com/adaptivelab/experiment-core/internal/space"
	"github.com/adaptivelab/experiment-core/pkg/utils"
)

// StimulusSampling selects how multi-stimulus trials are assembled
type StimulusSampling string

const (
	// SamplingIndependent optimizes each stimulus slot separately
	SamplingIndependent StimulusSampling = "independent"
	// SamplingJoint scores whole stimulus blocks together
	SamplingJoint StimulusSampling = "joint"
)

// ModelBasedGenerator produces candidates in two phases: fit the surrogate
// model to the history snapshot, then optimize the acquisition surface with
// multi-start random search. Multi-start exists because the acquisition
// surface is generally non-convex; best-of-restarts avoids local optima.
type ModelBasedGenerator struct {
	mu        sync.Mutex
	surrogate model.SurrogateModel
	acqf      acquisition.Acquisition
	restarts  int
	samps     int
	seed      int64
	sampling  StimulusSampling
	timeout   time.Duration
	calls     int64
}

// NewModelBased creates a model-based generator. restarts and samps default
// to 10 and 1000; a zero timeout disables the generation budget.
func NewModelBased(surrogate model.SurrogateModel, acqf acquisition.Acquisition, restarts, samps int, seed int64, sampling StimulusSampling, timeout time.Duration) (*ModelBasedGenerator, error) {
	if surrogate == nil {
		return nil, fmt.Errorf("surrogate model is required")
	}
	if acqf == nil {
		return nil, fmt.Errorf("acquisition function is required")
	}
	if restarts <= 0 {
		restarts = 10
	}
	if samps <= 0 {
		samps = 1000
	}
	if sampling == "" {
		sampling = SamplingIndependent
	}
	if sampling != SamplingIndependent && sampling != SamplingJoint {
		return nil, fmt.Errorf("unknown stimulus sampling mode: %s", sampling)
	}
	return &ModelBasedGenerator{
		surrogate: surrogate,
		acqf:      acqf,
		restarts:  restarts,
		samps:     samps,
		seed:      seed,
		sampling:  sampling,
		timeout:   timeout,
	}, nil
}

func (g *ModelBasedGenerator) Name() string {
	return "optimize_acqf"
}

// Model returns the surrogate so callers can inspect its data requirements
func (g *ModelBasedGenerator) Model() model.SurrogateModel {
	return g.surrogate
}

// Generate fits the surrogate to the snapshot and optimizes the acquisition
// surface. Returns *model.FitError when the history cannot support a fit and
// *GenerationTimeoutError when the optional budget is exceeded.
func (g *ModelBasedGenerator) Generate(ctx context.Context, n int, sp *space.ParameterSpace, hist *record.Snapshot) ([]Candidate, error) {
	if n < 1 {
		return nil, fmt.Errorf("must request at least one candidate, got %d", n)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	// Fit phase. The snapshot is immutable, so the fit runs without any
	// sequencer lock held.
	post, err := g.surrogate.Fit(hist)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, g.wrapCtxErr(err)
	}

	best := 0.0
	if b, ok := hist.BestOutcome(); ok {
		best = b
	}

	g.mu.Lock()
	callBase := g.calls
	g.calls += int64(n)
	g.mu.Unlock()

	out := make([]Candidate, 0, n)
	for i := 0; i < n; i++ {
		// Distinct seed block per candidate so repeated asks explore
		// different starting points
		seedBase := g.seed + (callBase+int64(i))*int64(g.restarts)*2

		var cand Candidate
		var genErr error
		if g.sampling == SamplingJoint {
			cand, genErr = g.optimizeJoint(ctx, post, best, sp, seedBase)
		} else {
			cand, genErr = g.optimizeIndependent(ctx, post, best, sp, seedBase)
		}
		if genErr != nil {
			return nil, g.wrapCtxErr(genErr)
		}
		out = append(out, cand)
	}
	return out, nil
}

// optimizeIndependent optimizes each stimulus slot separately. Slots run in
// parallel since they read the same immutable posterior.
func (g *ModelBasedGenerator) optimizeIndependent(ctx context.Context, post model.Posterior, best float64, sp *space.ParameterSpace, seedBase int64) (Candidate, error) {
	stimuli := make([][]float64, sp.StimuliPerTrial())
	eg, egCtx := errgroup.WithContext(ctx)

	for slot := 0; slot < sp.StimuliPerTrial(); slot++ {
		slot := slot
		eg.Go(func() error {
			point, err := g.optimizeSlot(egCtx, post, best, sp, seedBase+int64(slot)*int64(g.restarts))
			if err != nil {
				return err
			}
			stimuli[slot] = point
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return Candidate(stimuli), nil
}

// optimizeSlot runs the multi-start search for a single parameter vector
func (g *ModelBasedGenerator) optimizeSlot(ctx context.Context, post model.Posterior, best float64, sp *space.ParameterSpace, seedBase int64) ([]float64, error) {
	lower, upper := sp.Bounds()
	center := sp.Center()

	type restartResult struct {
		point []float64
		score float64
	}
	results := make([]restartResult, g.restarts)
	eg, egCtx := errgroup.WithContext(ctx)

	for r := 0; r < g.restarts; r++ {
		r := r
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			rng := utils.NewSeededSource(seedBase + int64(r) + 1)
			points := make([][]float64, g.samps)
			for i := range points {
				points[i] = rng.UniformVector(lower, upper)
			}
			scores, err := g.acqf.Score(points, post, best)
			if err != nil {
				return fmt.Errorf("acquisition scoring failed: %w", err)
			}
			idx := pickBest(points, scores, center)
			results[r] = restartResult{point: points[idx], score: scores[idx]}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Best of restarts, same tie-break as within a restart
	winner := results[0]
	winnerDist := utils.EuclideanDistance(winner.point, center)
	for _, res := range results[1:] {
		d := utils.EuclideanDistance(res.point, center)
		if res.score > winner.score || (res.score == winner.score && d < winnerDist) {
			winner = res
			winnerDist = d
		}
	}
	return winner.point, nil
}

// optimizeJoint samples whole stimulus blocks and scores each block by the
// mean acquisition utility over its stimuli
func (g *ModelBasedGenerator) optimizeJoint(ctx context.Context, post model.Posterior, best float64, sp *space.ParameterSpace, seedBase int64) (Candidate, error) {
	lower, upper := sp.Bounds()
	center := sp.Center()
	k := sp.StimuliPerTrial()

	type restartResult struct {
		block [][]float64
		score float64
	}
	results := make([]restartResult, g.restarts)
	eg, egCtx := errgroup.WithContext(ctx)

	for r := 0; r < g.restarts; r++ {
		r := r
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			rng := utils.NewSeededSource(seedBase + int64(r) + 1)

			blocks := make([][][]float64, g.samps)
			flat := make([][]float64, 0, g.samps*k)
			for i := range blocks {
				block := make([][]float64, k)
				for s := range block {
					block[s] = rng.UniformVector(lower, upper)
				}
				blocks[i] = block
				flat = append(flat, block...)
			}

			scores, err := g.acqf.Score(flat, post, best)
			if err != nil {
				return fmt.Errorf("acquisition scoring failed: %w", err)
			}

			bestIdx, bestScore, bestDist := -1, 0.0, 0.0
			for i, block := range blocks {
				score := 0.0
				for s := 0; s < k; s++ {
					score += scores[i*k+s]
				}
				score /= float64(k)
				dist := blockDistance(block, center)
				if bestIdx < 0 || score > bestScore || (score == bestScore && dist < bestDist) {
					bestIdx, bestScore, bestDist = i, score, dist
				}
			}
			results[r] = restartResult{block: blocks[bestIdx], score: bestScore}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	winner := results[0]
	winnerDist := blockDistance(winner.block, center)
	for _, res := range results[1:] {
		d := blockDistance(res.block, center)
		if res.score > winner.score || (res.score == winner.score && d < winnerDist) {
			winner = res
			winnerDist = d
		}
	}
	return Candidate(winner.block), nil
}

// pickBest returns the index of the highest-scoring point; exact ties go to
// the point closest to the space center, for determinism
func pickBest(points [][]float64, scores []float64, center []float64) int {
	best := 0
	bestDist := utils.EuclideanDistance(points[0], center)
	for i := 1; i < len(points); i++ {
		d := utils.EuclideanDistance(points[i], center)
		if scores[i] > scores[best] || (scores[i] == scores[best] && d < bestDist) {
			best = i
			bestDist = d
		}
	}
	return best
}

// blockDistance sums the center distance over a block's stimuli
func blockDistance(block [][]float64, center []float64) float64 {
	total := 0.0
	for _, p := range block {
		total += utils.EuclideanDistance(p, center)
	}
	return total
}

// wrapCtxErr converts a context deadline into the recoverable timeout error
func (g *ModelBasedGenerator) wrapCtxErr(err error) error {
	if g.timeout > 0 && (errors.Is(err, context.DeadlineExceeded)) {
		return &GenerationTimeoutError{Timeout: g.timeout}
	}
	return err
}
