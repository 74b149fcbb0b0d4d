// Package distance provides the distance functions a collection can be
// configured with.
//
// # Supported Spaces
//
//   - SpaceL2: squared Euclidean distance (default)
//   - SpaceCosine: 1 - cosine similarity
//   - SpaceIP: 1 - inner product
//
// Smaller is always closer, so every index can rank with the same ordering.
package distance
