package service

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/biomatch-server/internal/domain"
)

// Rand is a goroutine-safe pseudo-random source.
// A zero seed draws one from the clock.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand creates a source seeded with seed
func NewRand(seed uint64) *Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Uniform returns a value in [min, max)
func (r *Rand) Uniform(min, max float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + r.r.Float64()*(max-min)
}

// IntN returns a value in [0, n)
func (r *Rand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.IntN(n)
}

type scoreRange struct {
	min, max float64
}

// defaultFactorRanges are the uniform draw ranges for each factor
var defaultFactorRanges = map[string]scoreRange{
	domain.FactorHLATyping:           {70, 100},
	domain.FactorBloodType:           {75, 100},
	domain.FactorGeneticMarkers:      {65, 100},
	domain.FactorAgeCompatibility:    {80, 100},
	domain.FactorGeographicProximity: {60, 100},
}

// RandomFactorScorer draws each factor score uniformly from a fixed range.
// It stands in for model inference.
type RandomFactorScorer struct {
	rng *Rand
}

// NewRandomFactorScorer creates a scorer drawing from rng
func NewRandomFactorScorer(rng *Rand) *RandomFactorScorer {
	return &RandomFactorScorer{rng: rng}
}

// Score implements domain.FactorScorer
func (s *RandomFactorScorer) Score(factorName string, _ *domain.BioSample, _ domain.Candidate) float64 {
	rg, ok := defaultFactorRanges[factorName]
	if !ok {
		rg = scoreRange{0, 100}
	}
	return s.rng.Uniform(rg.min, rg.max)
}

// UniformBaseline draws the donor-pool prior uniformly from [70,100)
type UniformBaseline struct {
	rng *Rand
}

// NewUniformBaseline creates a prior drawing from rng
func NewUniformBaseline(rng *Rand) *UniformBaseline {
	return &UniformBaseline{rng: rng}
}

// Baseline implements domain.BaselinePrior
func (b *UniformBaseline) Baseline(_ *domain.BioSample, _ domain.Candidate) float64 {
	return b.rng.Uniform(70, 100)
}
