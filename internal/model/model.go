package model

import (
	"fmt"

	"github.com/adaptivelab/experiment-core/internal/record"
)

// Posterior is the opaque state produced by fitting a surrogate model.
// Predictions are distribution summaries (mean, variance) per query point.
type Posterior interface {
	// Predict returns the posterior mean and variance at each query point
	Predict(points [][]float64) (mean, variance []float64, err error)
}

// SurrogateModel is the fit/predict capability consumed by model-based
// generators. Implementations are treated as black boxes: fitting may be
// arbitrarily slow and nothing beyond the interface is assumed.
type SurrogateModel interface {
	// Fit builds a posterior from an outcome-record snapshot.
	// Returns a *FitError when the data is insufficient or degenerate.
	Fit(snap *record.Snapshot) (Posterior, error)

	// MinObservations returns the minimum number of recorded outcomes the
	// model needs before Fit can succeed
	MinObservations() int

	// Name returns the model's registry name
	Name() string
}

// Config selects and parameterizes a surrogate model
type Config struct {
	Name         string
	Mean         string  // constant, zero
	Covariance   string  // rbf, matern52
	Lengthscale  float64 // kernel lengthscale, defaults to 0.25
	OutputScale  float64 // kernel output scale, defaults to 1.0
	Noise        float64 // observation noise variance, defaults to 1e-4
	InducingSize int     // subsample cap for large histories, 0 disables
	MinData      int     // observations required before fitting, defaults to 1
	Seed         int64   // seed for inducing-point subsampling
}

// New creates a surrogate model from a config. Unknown model names fail so
// that misconfigurations surface at sequencer construction, not first use.
func New(cfg Config) (SurrogateModel, error) {
	switch cfg.Name {
	case "gp", "gaussian_process":
		return NewGPRegressor(cfg)
	default:
		return nil, fmt.Errorf("unknown model: %s", cfg.Name)
	}
}

// FitError indicates a surrogate model fit failure, for example insufficient
// or degenerate data. Callers may retry after more outcomes arrive.
type FitError struct {
	Reason string
}

func (e *FitError) Error() string {
	return "model fit failed: " + e.Reason
}
