package model

import (
	"fmt"
	"math"

	"github.com/adaptivelab/experiment-core/internal/record"
	"github.com/adaptivelab/experiment-core/pkg/utils"
)

// kernelFunc evaluates the covariance between two points
type kernelFunc func(a, b []float64) float64

// GPRegressor is a Gaussian-process surrogate with selectable mean and
// covariance factories. Large histories are subsampled down to InducingSize
// points before fitting to bound the cubic solve cost.
type GPRegressor struct {
	mean         string
	covariance   string
	lengthscale  float64
	outputScale  float64
	noise        float64
	inducingSize int
	minData      int
	seed         int64
	kern         kernelFunc
}

// NewGPRegressor creates a GP surrogate from a config, applying defaults for
// unset numeric fields
func NewGPRegressor(cfg Config) (*GPRegressor, error) {
	g := &GPRegressor{
		mean:         cfg.Mean,
		covariance:   cfg.Covariance,
		lengthscale:  cfg.Lengthscale,
		outputScale:  cfg.OutputScale,
		noise:        cfg.Noise,
		inducingSize: cfg.InducingSize,
		minData:      cfg.MinData,
		seed:         cfg.Seed,
	}
	if g.mean == "" {
		g.mean = "constant"
	}
	if g.covariance == "" {
		g.covariance = "rbf"
	}
	if g.lengthscale <= 0 {
		g.lengthscale = 0.25
	}
	if g.outputScale <= 0 {
		g.outputScale = 1.0
	}
	if g.noise <= 0 {
		g.noise = 1e-4
	}
	if g.minData <= 0 {
		g.minData = 1
	}

	if g.mean != "constant" && g.mean != "zero" {
		return nil, fmt.Errorf("unknown mean factory: %s", g.mean)
	}
	switch g.covariance {
	case "rbf":
		g.kern = rbfKernel(g.lengthscale, g.outputScale)
	case "matern52":
		g.kern = matern52Kernel(g.lengthscale, g.outputScale)
	default:
		return nil, fmt.Errorf("unknown covariance factory: %s", g.covariance)
	}
	return g, nil
}

func (g *GPRegressor) Name() string {
	return "gp"
}

// MinObservations returns the configured minimum fit size
func (g *GPRegressor) MinObservations() int {
	return g.minData
}

// Fit builds the posterior from a snapshot of the outcome record
func (g *GPRegressor) Fit(snap *record.Snapshot) (Posterior, error) {
	if snap == nil || snap.Count() < g.minData {
		got := 0
		if snap != nil {
			got = snap.Count()
		}
		return nil, &FitError{Reason: fmt.Sprintf("need at least %d observations, have %d", g.minData, got)}
	}

	x, y := snap.Flatten()
	if len(x) == 0 {
		return nil, &FitError{Reason: "history flattened to zero training rows"}
	}

	// Inducing-point subsampling keeps the Cholesky tractable on long
	// histories. Seeded so repeated fits over the same snapshot agree.
	if g.inducingSize > 0 && len(x) > g.inducingSize {
		rng := utils.NewSeededSource(g.seed)
		perm := rng.Perm(len(x))[:g.inducingSize]
		xs := make([][]float64, g.inducingSize)
		ys := make([]float64, g.inducingSize)
		for i, idx := range perm {
			xs[i] = x[idx]
			ys[i] = y[idx]
		}
		x, y = xs, ys
	}

	mu := 0.0
	if g.mean == "constant" {
		mu = utils.Mean(y)
	}

	n := len(x)
	k := make([][]float64, n)
	for i := range k {
		k[i] = make([]float64, n)
		for j := 0; j <= i; j++ {
			v := g.kern(x[i], x[j])
			k[i][j] = v
			k[j][i] = v
		}
		k[i][i] += g.noise
	}

	l, err := choleskyWithJitter(k)
	if err != nil {
		return nil, &FitError{Reason: err.Error()}
	}

	resid := make([]float64, n)
	for i := range resid {
		resid[i] = y[i] - mu
	}
	alpha := solveCholesky(l, resid)

	return &gpPosterior{
		x:     x,
		alpha: alpha,
		l:     l,
		kern:  g.kern,
		mu:    mu,
	}, nil
}

// gpPosterior holds the fitted GP state. It is immutable and safe for
// concurrent Predict calls.
type gpPosterior struct {
	x     [][]float64
	alpha []float64
	l     [][]float64
	kern  kernelFunc
	mu    float64
}

// Predict returns the posterior mean and variance at each query point
func (p *gpPosterior) Predict(points [][]float64) (mean, variance []float64, err error) {
	if len(points) == 0 {
		return nil, nil, fmt.Errorf("no query points")
	}
	dim := len(p.x[0])
	mean = make([]float64, len(points))
	variance = make([]float64, len(points))

	for i, pt := range points {
		if len(pt) != dim {
			return nil, nil, fmt.Errorf("query point %d has %d components, expected %d", i, len(pt), dim)
		}
		ks := make([]float64, len(p.x))
		for j, xj := range p.x {
			ks[j] = p.kern(pt, xj)
		}

		m := p.mu
		for j := range ks {
			m += ks[j] * p.alpha[j]
		}
		mean[i] = m

		v := forwardSolve(p.l, ks)
		vv := 0.0
		for _, c := range v {
			vv += c * c
		}
		variance[i] = math.Max(p.kern(pt, pt)-vv, 1e-12)
	}
	return mean, variance, nil
}

// rbfKernel is the squared-exponential covariance
func rbfKernel(lengthscale, outputScale float64) kernelFunc {
	return func(a, b []float64) float64 {
		r2 := 0.0
		for i := range a {
			d := a[i] - b[i]
			r2 += d * d
		}
		return outputScale * math.Exp(-r2/(2*lengthscale*lengthscale))
	}
}

// matern52Kernel is the Matern 5/2 covariance
func matern52Kernel(lengthscale, outputScale float64) kernelFunc {
	return func(a, b []float64) float64 {
		r2 := 0.0
		for i := range a {
			d := a[i] - b[i]
			r2 += d * d
		}
		r := math.Sqrt(r2)
		s := math.Sqrt(5) * r / lengthscale
		return outputScale * (1 + s + s*s/3) * math.Exp(-s)
	}
}

// choleskyWithJitter factors a symmetric matrix, escalating a diagonal jitter
// when the matrix is not numerically positive definite
func choleskyWithJitter(a [][]float64) ([][]float64, error) {
	jitter := 0.0
	for attempt := 0; attempt < 4; attempt++ {
		l, err := cholesky(a, jitter)
		if err == nil {
			return l, nil
		}
		if jitter == 0 {
			jitter = 1e-8
		} else {
			jitter *= 100
		}
	}
	return nil, fmt.Errorf("covariance matrix not positive definite after jitter escalation")
}

// cholesky computes the lower-triangular factor of a + jitter*I
func cholesky(a [][]float64, jitter float64) ([][]float64, error) {
	n := len(a)
	l := make([][]float64, n)
	for i := range l {
		l[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i][j]
			if i == j {
				sum += jitter
			}
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 0 {
					return nil, fmt.Errorf("matrix not positive definite at row %d", i)
				}
				l[i][j] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l, nil
}

// forwardSolve solves L v = b for lower-triangular L
func forwardSolve(l [][]float64, b []float64) []float64 {
	n := len(b)
	v := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for k := 0; k < i; k++ {
			sum -= l[i][k] * v[k]
		}
		v[i] = sum / l[i][i]
	}
	return v
}

// solveCholesky solves (L L^T) x = b via two triangular solves
func solveCholesky(l [][]float64, b []float64) []float64 {
	n := len(b)
	v := forwardSolve(l, b)
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := v[i]
		for k := i + 1; k < n; k++ {
			sum -= l[k][i] * x[k]
		}
		x[i] = sum / l[i][i]
	}
	return x
}
