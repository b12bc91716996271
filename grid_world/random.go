package grid_world

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// RandomSource supplies the draws the lane simulation needs. It is injected so that
// runs are reproducible under a fixed seed, and so tests can script exact draws.
type RandomSource interface {
	// Uniform returns a draw in [0, 1).
	Uniform() float64
	// Normal returns a draw from Normal(mean, stddev).
	Normal(mean, stddev float64) float64
}

// seededSource draws both distributions from a single PCG stream.
type seededSource struct {
	src     rand.Source
	uniform *rand.Rand
}

// NewRandomSource returns a RandomSource seeded deterministically from seed.
func NewRandomSource(seed uint64) RandomSource {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &seededSource{
		src:     src,
		uniform: rand.New(src),
	}
}

func (s *seededSource) Uniform() float64 {
	return s.uniform.Float64()
}

func (s *seededSource) Normal(mean, stddev float64) float64 {
	return distuv.Normal{Mu: mean, Sigma: stddev, Src: s.src}.Rand()
}
