package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/chromaffi/internal/distance"
)

// SearchResult represents a search result.
type SearchResult struct {
	ID       uint32
	Distance float32
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// UniformVectors generates num vectors with components in [0, 1).
func (r *RNG) UniformVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	vectors := make([][]float32, num)
	for i := range vectors {
		v := make([]float32, dimensions)
		for j := range v {
			v[j] = r.rand.Float32()
		}
		vectors[i] = v
	}
	return vectors
}

// UnitVectors generates num gaussian vectors normalised to unit length.
func (r *RNG) UnitVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	vectors := make([][]float32, num)
	for i := range vectors {
		v := make([]float32, dimensions)
		var norm float64
		for j := range v {
			x := r.rand.NormFloat64()
			v[j] = float32(x)
			norm += x * x
		}
		if norm == 0 {
			v[0], norm = 1, 1
		}
		inv := float32(1 / math.Sqrt(norm))
		for j := range v {
			v[j] *= inv
		}
		vectors[i] = v
	}
	return vectors
}

// BruteForceSearch returns the exact k nearest vectors to query, closest first.
// Ties are broken by the lower index.
func BruteForceSearch(vectors [][]float32, query []float32, k int, fn distance.Func) []SearchResult {
	results := make([]SearchResult, len(vectors))
	for i, v := range vectors {
		results[i] = SearchResult{ID: uint32(i), Distance: fn(query, v)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if k < len(results) {
		results = results[:k]
	}
	return results
}

// ComputeRecall returns the fraction of groundTruth ids present in approximate.
func ComputeRecall(groundTruth, approximate []SearchResult) float64 {
	if len(groundTruth) == 0 {
		return 1
	}
	found := make(map[uint32]struct{}, len(approximate))
	for _, r := range approximate {
		found[r.ID] = struct{}{}
	}
	hits := 0
	for _, r := range groundTruth {
		if _, ok := found[r.ID]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(groundTruth))
}
