package utils

import (
	"math/rand"
	"time"
)

// RandSource is a thread-unsafe seeded random number generator.
// Callers that share one across goroutines must serialize access.
type RandSource struct {
	rng *rand.Rand
}

// NewRandSource creates a new random source with the given seed.
// A zero seed falls back to the current time.
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSource{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NewSeededSource creates a random source that treats the seed literally,
// including zero. Used where reproducibility for any fixed seed is required.
func NewSeededSource(seed int64) *RandSource {
	return &RandSource{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	return r.rng.Float64()
}

// Intn returns a random int in [0, n)
func (r *RandSource) Intn(n int) int {
	return r.rng.Intn(n)
}

// Int63 returns a non-negative random int64
func (r *RandSource) Int63() int64 {
	return r.rng.Int63()
}

// Uint32 returns a random 32-bit value
func (r *RandSource) Uint32() uint32 {
	return r.rng.Uint32()
}

// NormFloat64 returns a normally distributed random number with mean and stddev
func (r *RandSource) NormFloat64(mean, stddev float64) float64 {
	return r.rng.NormFloat64()*stddev + mean
}

// UniformFloat64 returns a uniformly distributed random number in [min, max)
func (r *RandSource) UniformFloat64(min, max float64) float64 {
	return min + r.rng.Float64()*(max-min)
}

// UniformVector returns a vector drawn uniformly from the box [lower, upper).
// lower and upper must have equal length.
func (r *RandSource) UniformVector(lower, upper []float64) []float64 {
	v := make([]float64, len(lower))
	for i := range lower {
		v[i] = r.UniformFloat64(lower[i], upper[i])
	}
	return v
}

// Perm returns a random permutation of [0, n)
func (r *RandSource) Perm(n int) []int {
	return r.rng.Perm(n)
}
