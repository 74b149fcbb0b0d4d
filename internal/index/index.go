// Package index defines the contract shared by the collection vector indexes.
package index

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Kind selects the vector index of a collection.
type Kind string

const (
	KindHNSW Kind = "hnsw"
	KindFlat Kind = "flat"
)

// ParseKind validates an index kind. The empty string yields def.
func ParseKind(name string, def Kind) (Kind, error) {
	switch Kind(name) {
	case "":
		return def, nil
	case KindHNSW, KindFlat:
		return Kind(name), nil
	default:
		return "", fmt.Errorf("unsupported knn index %q, expected hnsw or flat", name)
	}
}

// ErrInvalidK is returned when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Hit is a single search result keyed by segment offset.
type Hit struct {
	ID       uint32
	Distance float32
}

// Index is a mutable vector index over dense uint32 offsets.
//
// Implementations are not safe for concurrent mutation; the owning segment
// serialises writers and allows concurrent readers.
type Index interface {
	// Kind reports which implementation this is.
	Kind() Kind
	// Dimension returns the vector dimension.
	Dimension() int
	// Insert adds vec under id. Ids are never reused after Delete.
	Insert(id uint32, vec []float32) error
	// Delete hides id from future searches.
	Delete(id uint32)
	// Len returns the number of live vectors.
	Len() int
	// Search returns up to k hits ordered closest first. A non-nil allow
	// restricts results to the offsets it contains.
	Search(q []float32, k int, allow *roaring.Bitmap) ([]Hit, error)
}
