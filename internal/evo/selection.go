package evo

import (
	"fmt"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// BuildCDF turns non-negative scores into a cumulative distribution. When
// every score is zero the distribution is uniform. The last entry is exactly
// 1.0 for non-empty input.
func BuildCDF(scores []int) []float64 {
	n := len(scores)
	cdf := make([]float64, n)
	if n == 0 {
		return cdf
	}

	weights := make([]float64, n)
	for i, s := range scores {
		weights[i] = float64(s)
	}
	total := floats.Sum(weights)
	if total <= 0 {
		for i := range cdf {
			cdf[i] = float64(i+1) / float64(n)
		}
		return cdf
	}

	floats.CumSum(cdf, weights)
	floats.Scale(1/total, cdf)
	cdf[n-1] = 1.0
	return cdf
}

// WeightedSample draws r in [0, 1) and returns the smallest index whose cdf
// entry exceeds r. It returns -1 for an empty cdf.
func WeightedSample(rng *rand.Rand, cdf []float64) int {
	if len(cdf) == 0 {
		return -1
	}
	r := rng.Float64()
	lo, hi := 0, len(cdf)-1
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cdf[mid] <= r {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return hi
}

// Sampler draws indexes into the ranked population it was prepared from.
type Sampler interface {
	Sample(rng *rand.Rand) int
}

// Selector prepares a Sampler over a population ranked by descending score.
type Selector interface {
	Name() string
	Prepare(ranked []ScoredBlueprint) (Sampler, error)
}

type samplerFunc func(rng *rand.Rand) int

func (f samplerFunc) Sample(rng *rand.Rand) int {
	return f(rng)
}

// CDFSelector samples with replacement, proportional to score.
type CDFSelector struct{}

func (CDFSelector) Name() string {
	return "cdf"
}

func (CDFSelector) Prepare(ranked []ScoredBlueprint) (Sampler, error) {
	if len(ranked) == 0 {
		return nil, fmt.Errorf("ranked population is empty")
	}
	scores := make([]int, len(ranked))
	for i, item := range ranked {
		if item.Score < 0 {
			return nil, fmt.Errorf("negative score %d for %s", item.Score, item.ID)
		}
		scores[i] = item.Score
	}
	cdf := BuildCDF(scores)
	return samplerFunc(func(rng *rand.Rand) int {
		return WeightedSample(rng, cdf)
	}), nil
}

// EliteSelector picks uniformly from the top Count individuals.
type EliteSelector struct {
	Count int
}

func (EliteSelector) Name() string {
	return "elite"
}

func (s EliteSelector) Prepare(ranked []ScoredBlueprint) (Sampler, error) {
	if len(ranked) == 0 {
		return nil, fmt.Errorf("ranked population is empty")
	}
	if s.Count <= 0 || s.Count > len(ranked) {
		return nil, fmt.Errorf("invalid elite count: %d", s.Count)
	}
	count := s.Count
	return samplerFunc(func(rng *rand.Rand) int {
		return rng.Intn(count)
	}), nil
}

// TournamentSelector samples candidates from the top PoolSize individuals and
// keeps the fittest. Ties go to the better-ranked candidate.
type TournamentSelector struct {
	PoolSize       int
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) Prepare(ranked []ScoredBlueprint) (Sampler, error) {
	if len(ranked) == 0 {
		return nil, fmt.Errorf("ranked population is empty")
	}

	poolSize := s.PoolSize
	if poolSize <= 0 || poolSize > len(ranked) {
		poolSize = len(ranked)
	}
	tournamentSize := s.TournamentSize
	if tournamentSize <= 0 {
		tournamentSize = 3
	}
	if tournamentSize > poolSize {
		tournamentSize = poolSize
	}

	return samplerFunc(func(rng *rand.Rand) int {
		best := rng.Intn(poolSize)
		for i := 1; i < tournamentSize; i++ {
			candidate := rng.Intn(poolSize)
			if ranked[candidate].Score > ranked[best].Score ||
				(ranked[candidate].Score == ranked[best].Score && candidate < best) {
				best = candidate
			}
		}
		return best
	}), nil
}

func SelectorNames() []string {
	return []string{"cdf", "tournament", "elite"}
}

// SelectorFromName resolves a configured selection policy. eliteCount sizes
// the elite selector's pool.
func SelectorFromName(name string, eliteCount int) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cdf":
		return CDFSelector{}, nil
	case "tournament":
		return TournamentSelector{}, nil
	case "elite":
		if eliteCount <= 0 {
			eliteCount = 1
		}
		return EliteSelector{Count: eliteCount}, nil
	default:
		return nil, fmt.Errorf("unknown selection policy: %s", name)
	}
}
