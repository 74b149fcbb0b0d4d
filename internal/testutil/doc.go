// Package testutil provides helpers for tests: seeded vector generation,
// exact nearest neighbour search and recall computation.
//
//	rng := testutil.NewRNG(4711)
//	data := rng.UniformVectors(1000, 16)
//	truth := testutil.BruteForceSearch(data, data[0], 10, distance.SquaredL2)
package testutil
