package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/chromaffi/internal/distance"
)

func TestUniformVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniformVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.LessOrEqual(t, v[0][0], float32(1.0))
	assert.GreaterOrEqual(t, v[1][0], float32(0.0))
}

func TestUnitVectors(t *testing.T) {
	rng := NewRNG(4711)

	for _, vec := range rng.UnitVectors(8, 32) {
		var sum float32
		for _, val := range vec {
			sum += val * val
		}
		assert.InDelta(t, float32(1.0), sum, 1e-5)
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.UniformVectors(1, 10)
	rng.Reset()
	v2 := rng.UniformVectors(1, 10)
	assert.Equal(t, v1, v2)
}

func TestBruteForceSearch(t *testing.T) {
	data := [][]float32{{0, 0}, {3, 3}, {1, 1}}

	res := BruteForceSearch(data, []float32{0, 0}, 2, distance.SquaredL2)

	assert.Equal(t, []SearchResult{{ID: 0, Distance: 0}, {ID: 2, Distance: 2}}, res)
}

func TestComputeRecall(t *testing.T) {
	truth := []SearchResult{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	approx := []SearchResult{{ID: 1}, {ID: 4}, {ID: 9}}

	assert.InDelta(t, 0.5, ComputeRecall(truth, approx), 1e-9)
	assert.InDelta(t, 1.0, ComputeRecall(nil, approx), 1e-9)
}
