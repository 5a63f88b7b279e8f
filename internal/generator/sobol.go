package generator

import (
	"context"
	"fmt"
	"sync"

	"github.com/adaptivelab/experiment-core/internal/record"
	"github.com/adaptivelab/experiment-core/internal/space"
	"github.com/adaptivelab/experiment-core/pkg/utils"
)

// SobolMaxDim is the highest dimensionality the built-in direction-number
// table supports
const SobolMaxDim = 10

// sobolDirections holds the primitive polynomial degree s, the encoded middle
// coefficients a, and the initial direction numbers m for dimensions 2..10.
// Dimension 1 is the van der Corput sequence and needs no table row.
var sobolDirections = []struct {
	s uint
	a uint32
	m []uint32
}{
	{1, 0, []uint32{1}},
	{2, 1, []uint32{1, 3}},
	{3, 1, []uint32{1, 3, 1}},
	{3, 2, []uint32{1, 1, 1}},
	{4, 1, []uint32{1, 1, 3, 3}},
	{4, 4, []uint32{1, 3, 5, 13}},
	{5, 2, []uint32{1, 1, 5, 5, 17}},
	{5, 4, []uint32{1, 1, 5, 5, 5}},
	{5, 7, []uint32{1, 1, 7, 11, 19}},
}

const sobolBits = 32

// SobolGenerator draws a deterministic low-discrepancy sequence over the
// parameter space. The internal draw index advances monotonically so repeated
// calls never repeat points within one experiment run. A per-dimension XOR
// digital scramble derived from the seed makes distinct seeds produce
// distinct, individually reproducible sequences.
type SobolGenerator struct {
	mu       sync.Mutex
	dim      int
	nPoints  int
	seed     int64
	v        [][]uint32 // direction numbers, dim x sobolBits
	x        []uint32   // current integer state per dimension
	scramble []uint32
	index    uint64
	cache    [][]float64 // precomputed unit-cube points not yet served
}

// NewSobol creates a Sobol generator for a dim-dimensional space. nPoints is
// a precompute hint, not a cap: when more points are requested than cached,
// more are drawn lazily. The sequence is fully determined by the seed,
// including seed zero.
func NewSobol(dim, nPoints int, seed int64) (*SobolGenerator, error) {
	if dim < 1 {
		return nil, fmt.Errorf("dimension must be at least 1, got %d", dim)
	}
	if dim > SobolMaxDim {
		return nil, fmt.Errorf("dimension %d exceeds supported maximum %d", dim, SobolMaxDim)
	}
	if nPoints < 0 {
		return nil, fmt.Errorf("n_points cannot be negative, got %d", nPoints)
	}

	g := &SobolGenerator{
		dim:     dim,
		nPoints: nPoints,
		seed:    seed,
		v:       make([][]uint32, dim),
		x:       make([]uint32, dim),
	}

	// Dimension 0: van der Corput direction numbers
	g.v[0] = make([]uint32, sobolBits)
	for k := 0; k < sobolBits; k++ {
		g.v[0][k] = 1 << (sobolBits - 1 - k)
	}

	// Remaining dimensions from the polynomial table
	for j := 1; j < dim; j++ {
		row := sobolDirections[j-1]
		v := make([]uint32, sobolBits)
		s := int(row.s)
		for k := 0; k < s; k++ {
			v[k] = row.m[k] << (sobolBits - 1 - k)
		}
		for k := s; k < sobolBits; k++ {
			v[k] = v[k-s] ^ (v[k-s] >> row.s)
			for i := 1; i < s; i++ {
				if (row.a>>(s-1-i))&1 == 1 {
					v[k] ^= v[k-i]
				}
			}
		}
		g.v[j] = v
	}

	// Seeded digital scramble, one mask per dimension
	rng := utils.NewSeededSource(seed)
	g.scramble = make([]uint32, dim)
	for j := range g.scramble {
		g.scramble[j] = rng.Uint32()
	}

	if nPoints > 0 {
		g.cache = make([][]float64, 0, nPoints)
		for i := 0; i < nPoints; i++ {
			g.cache = append(g.cache, g.nextUnit())
		}
	}
	return g, nil
}

func (g *SobolGenerator) Name() string {
	return "sobol"
}

// DrawIndex returns how many raw points have been drawn from the sequence so
// far, cached or served
func (g *SobolGenerator) DrawIndex() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.index
}

// nextUnit advances the Gray-code recurrence and returns the next scrambled
// point on the unit cube. Caller must hold mu (or be the constructor).
func (g *SobolGenerator) nextUnit() []float64 {
	// c = index of the lowest zero bit of the current index
	c := 0
	for i := g.index; i&1 == 1; i >>= 1 {
		c++
	}

	p := make([]float64, g.dim)
	for j := 0; j < g.dim; j++ {
		g.x[j] ^= g.v[j][c]
		p[j] = float64(g.x[j]^g.scramble[j]) / (1 << sobolBits)
	}
	g.index++
	return p
}

// takeUnit serves one unit-cube point, preferring the precomputed cache
func (g *SobolGenerator) takeUnit() []float64 {
	if len(g.cache) > 0 {
		p := g.cache[0]
		g.cache = g.cache[1:]
		return p
	}
	return g.nextUnit()
}

// Generate produces n candidates of StimuliPerTrial points each, scaled to
// the parameter bounds. The draw index advances by n x StimuliPerTrial.
func (g *SobolGenerator) Generate(ctx context.Context, n int, sp *space.ParameterSpace, hist *record.Snapshot) ([]Candidate, error) {
	if n < 1 {
		return nil, fmt.Errorf("must request at least one candidate, got %d", n)
	}
	if sp.Dim() != g.dim {
		return nil, fmt.Errorf("generator built for %d dimensions, space has %d", g.dim, sp.Dim())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Candidate, 0, n)
	for i := 0; i < n; i++ {
		stimuli := make([][]float64, 0, sp.StimuliPerTrial())
		for s := 0; s < sp.StimuliPerTrial(); s++ {
			point, err := sp.FromUnit(g.takeUnit())
			if err != nil {
				return nil, err
			}
			stimuli = append(stimuli, point)
		}
		out = append(out, Candidate(stimuli))
	}
	return out, nil
}
