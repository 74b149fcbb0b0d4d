// Package flat implements an exact brute-force vector index.
package flat

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/chromaffi/internal/distance"
	"github.com/hupe1980/chromaffi/internal/index"
	"github.com/hupe1980/chromaffi/internal/queue"
)

// Compile time check to ensure Flat satisfies the index interface.
var _ index.Index = (*Flat)(nil)

// Flat scans every live vector on each search.
type Flat struct {
	dimension int
	distFn    distance.Func
	vectors   [][]float32 // by offset, nil when deleted or never set
	live      *roaring.Bitmap
}

// New creates an empty flat index.
func New(dimension int, space distance.Space) (*Flat, error) {
	fn, err := distance.Provider(space)
	if err != nil {
		return nil, err
	}
	return &Flat{
		dimension: dimension,
		distFn:    fn,
		live:      roaring.New(),
	}, nil
}

// Kind implements index.Index.
func (f *Flat) Kind() index.Kind { return index.KindFlat }

// Dimension implements index.Index.
func (f *Flat) Dimension() int { return f.dimension }

// Len implements index.Index.
func (f *Flat) Len() int { return int(f.live.GetCardinality()) }

// Insert implements index.Index.
func (f *Flat) Insert(id uint32, vec []float32) error {
	if len(vec) != f.dimension {
		return &index.ErrDimensionMismatch{Expected: f.dimension, Actual: len(vec)}
	}
	for uint32(len(f.vectors)) <= id {
		f.vectors = append(f.vectors, nil)
	}
	f.vectors[id] = append([]float32(nil), vec...)
	f.live.Add(id)
	return nil
}

// Delete implements index.Index.
func (f *Flat) Delete(id uint32) {
	if int(id) < len(f.vectors) {
		f.vectors[id] = nil
	}
	f.live.Remove(id)
}

// Search implements index.Index.
func (f *Flat) Search(q []float32, k int, allow *roaring.Bitmap) ([]index.Hit, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(q) != f.dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.dimension, Actual: len(q)}
	}

	candidates := f.live
	if allow != nil {
		candidates = roaring.And(f.live, allow)
	}

	top := queue.NewMax(k + 1)
	it := candidates.Iterator()
	for it.HasNext() {
		id := it.Next()
		d := f.distFn(q, f.vectors[id])
		if top.Len() < k {
			top.PushCandidate(queue.Candidate{ID: id, Distance: d})
			continue
		}
		if worst, _ := top.Top(); d < worst.Distance {
			top.PopCandidate()
			top.PushCandidate(queue.Candidate{ID: id, Distance: d})
		}
	}

	sorted := top.Sorted()
	hits := make([]index.Hit, len(sorted))
	for i, c := range sorted {
		hits[i] = index.Hit{ID: c.ID, Distance: c.Distance}
	}
	return hits, nil
}
