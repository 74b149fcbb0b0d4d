// Package hnsw implements a Hierarchical Navigable Small World graph index
// with tombstone deletes and allow-list filtered search.
package hnsw

import (
	"math"
	"math/rand/v2"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/chromaffi/internal/distance"
	"github.com/hupe1980/chromaffi/internal/index"
	"github.com/hupe1980/chromaffi/internal/queue"
)

// Compile time check to ensure HNSW satisfies the index interface.
var _ index.Index = (*HNSW)(nil)

// Options represents the options for configuring HNSW.
type Options struct {
	// M is the number of neighbours linked per node and layer. Layer 0 keeps up to 2*M.
	M int

	// EFConstruction is the size of the candidate list while linking new nodes.
	EFConstruction int

	// EFSearch is the size of the candidate list at query time. The effective
	// value is never smaller than k.
	EFSearch int

	// Space selects the distance function.
	Space distance.Space

	// Seed makes level assignment reproducible.
	Seed uint64
}

// DefaultOptions mirrors the defaults of a freshly created collection.
var DefaultOptions = Options{
	M:              16,
	EFConstruction: 100,
	EFSearch:       100,
	Space:          distance.SpaceL2,
	Seed:           42,
}

// bruteForceFactor decides when a filtered search scans the allow-list instead
// of walking the graph: candidates <= bruteForceFactor*ef.
const bruteForceFactor = 4

type node struct {
	vector []float32
	level  int
	links  [][]uint32
}

// HNSW represents the Hierarchical Navigable Small World graph.
type HNSW struct {
	dimension int
	opts      Options
	distFn    distance.Func
	mmax      int     // max links per node on layers > 0
	mmax0     int     // max links per node on layer 0
	ml        float64 // level normalisation factor

	nodes    []*node // by offset, nil when never inserted
	deleted  *roaring.Bitmap
	live     int
	ep       uint32
	hasEntry bool
	maxLevel int

	rng *rand.Rand
}

// New creates a new HNSW instance with the given dimension and options.
func New(dimension int, optFns ...func(o *Options)) (*HNSW, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.M < 2 {
		// M == 1 would make the level factor 1/log(1).
		opts.M = 2
	}
	if opts.EFConstruction < opts.M {
		opts.EFConstruction = opts.M
	}
	if opts.EFSearch <= 0 {
		opts.EFSearch = DefaultOptions.EFSearch
	}

	fn, err := distance.Provider(opts.Space)
	if err != nil {
		return nil, err
	}

	return &HNSW{
		dimension: dimension,
		opts:      opts,
		distFn:    fn,
		mmax:      opts.M,
		mmax0:     2 * opts.M,
		ml:        1 / math.Log(float64(opts.M)),
		deleted:   roaring.New(),
		rng:       rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Options returns the effective options.
func (h *HNSW) Options() Options { return h.opts }

// Kind implements index.Index.
func (h *HNSW) Kind() index.Kind { return index.KindHNSW }

// Dimension implements index.Index.
func (h *HNSW) Dimension() int { return h.dimension }

// Len implements index.Index.
func (h *HNSW) Len() int { return h.live }

func (h *HNSW) randomLevel() int {
	return int(math.Floor(-math.Log(1-h.rng.Float64()) * h.ml))
}

func (h *HNSW) maxLinks(level int) int {
	if level == 0 {
		return h.mmax0
	}
	return h.mmax
}

// Insert implements index.Index.
func (h *HNSW) Insert(id uint32, v []float32) error {
	if len(v) != h.dimension {
		return &index.ErrDimensionMismatch{Expected: h.dimension, Actual: len(v)}
	}

	level := h.randomLevel()
	n := &node{
		vector: append([]float32(nil), v...),
		level:  level,
		links:  make([][]uint32, level+1),
	}

	for uint32(len(h.nodes)) <= id {
		h.nodes = append(h.nodes, nil)
	}
	h.nodes[id] = n
	h.deleted.Remove(id)
	h.live++

	if !h.hasEntry {
		h.ep, h.maxLevel, h.hasEntry = id, level, true
		return nil
	}

	// Greedy descent through the layers above the new node.
	cur := h.ep
	curDist := h.distFn(n.vector, h.nodes[cur].vector)
	for l := h.maxLevel; l > level; l-- {
		cur, curDist = h.greedy(n.vector, cur, curDist, l)
	}

	for l := min(level, h.maxLevel); l >= 0; l-- {
		found := h.searchLayer(n.vector, cur, curDist, h.opts.EFConstruction, l, func(c uint32) bool { return c != id })
		sorted := found.Sorted()
		if len(sorted) == 0 {
			continue
		}

		neighbours := h.selectNeighbours(sorted, h.mmax)
		n.links[l] = make([]uint32, len(neighbours))
		for i, c := range neighbours {
			n.links[l][i] = c.ID
		}

		// Next link the neighbour nodes to our new node, making it visible.
		for _, c := range neighbours {
			h.link(c.ID, id, l)
		}

		cur, curDist = sorted[0].ID, sorted[0].Distance
	}

	if level > h.maxLevel {
		h.ep, h.maxLevel = id, level
	}

	return nil
}

// Delete implements index.Index. Deleted nodes stay in the graph for routing.
func (h *HNSW) Delete(id uint32) {
	if int(id) >= len(h.nodes) || h.nodes[id] == nil || h.deleted.Contains(id) {
		return
	}
	h.deleted.Add(id)
	h.live--
}

// Search implements index.Index.
func (h *HNSW) Search(q []float32, k int, allow *roaring.Bitmap) ([]index.Hit, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(q) != h.dimension {
		return nil, &index.ErrDimensionMismatch{Expected: h.dimension, Actual: len(q)}
	}
	if !h.hasEntry || h.live == 0 {
		return nil, nil
	}

	ef := max(h.opts.EFSearch, k)

	if allow != nil {
		candidates := roaring.AndNot(allow, h.deleted)
		if candidates.IsEmpty() {
			return nil, nil
		}
		if candidates.GetCardinality() <= uint64(bruteForceFactor*ef) {
			return h.bruteForce(q, k, candidates), nil
		}
	}

	accept := func(c uint32) bool {
		if h.deleted.Contains(c) {
			return false
		}
		return allow == nil || allow.Contains(c)
	}

	cur := h.ep
	curDist := h.distFn(q, h.nodes[cur].vector)
	for l := h.maxLevel; l > 0; l-- {
		cur, curDist = h.greedy(q, cur, curDist, l)
	}

	found := h.searchLayer(q, cur, curDist, ef, 0, accept)
	for found.Len() > k {
		found.PopCandidate()
	}

	sorted := found.Sorted()
	hits := make([]index.Hit, len(sorted))
	for i, c := range sorted {
		hits[i] = index.Hit{ID: c.ID, Distance: c.Distance}
	}
	return hits, nil
}

func (h *HNSW) bruteForce(q []float32, k int, candidates *roaring.Bitmap) []index.Hit {
	top := queue.NewMax(k + 1)
	it := candidates.Iterator()
	for it.HasNext() {
		id := it.Next()
		if int(id) >= len(h.nodes) || h.nodes[id] == nil {
			continue
		}
		d := h.distFn(q, h.nodes[id].vector)
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
	return hits
}

// greedy walks layer l towards q and returns the closest node found.
func (h *HNSW) greedy(q []float32, cur uint32, curDist float32, l int) (uint32, float32) {
	for changed := true; changed; {
		changed = false
		for _, nb := range h.nodes[cur].links[l] {
			if d := h.distFn(q, h.nodes[nb].vector); d < curDist {
				cur, curDist, changed = nb, d, true
			}
		}
	}
	return cur, curDist
}

// searchLayer performs a beam search of width ef on layer l. Only nodes for
// which accept returns true are kept as results; all nodes are traversed.
func (h *HNSW) searchLayer(q []float32, ep uint32, epDist float32, ef int, l int, accept func(uint32) bool) *queue.Queue {
	visited := bitset.New(uint(len(h.nodes)))
	visited.Set(uint(ep))

	candidates := queue.NewMin(ef)
	candidates.PushCandidate(queue.Candidate{ID: ep, Distance: epDist})

	results := queue.NewMax(ef + 1)
	if accept(ep) {
		results.PushCandidate(queue.Candidate{ID: ep, Distance: epDist})
	}

	for candidates.Len() > 0 {
		c, _ := candidates.PopCandidate()
		if results.Len() >= ef {
			if worst, _ := results.Top(); c.Distance > worst.Distance {
				break
			}
		}

		n := h.nodes[c.ID]
		if len(n.links) <= l {
			continue
		}

		for _, nb := range n.links[l] {
			if visited.Test(uint(nb)) {
				continue
			}
			visited.Set(uint(nb))

			d := h.distFn(q, h.nodes[nb].vector)
			worst, ok := results.Top()
			if results.Len() < ef || !ok || d < worst.Distance {
				candidates.PushCandidate(queue.Candidate{ID: nb, Distance: d})
				if accept(nb) {
					results.PushCandidate(queue.Candidate{ID: nb, Distance: d})
					if results.Len() > ef {
						results.PopCandidate()
					}
				}
			}
		}
	}

	return results
}

// selectNeighbours keeps candidates that are closer to the base than to any
// already selected neighbour, then fills up with the pruned ones.
// sorted must be ordered closest first.
func (h *HNSW) selectNeighbours(sorted []queue.Candidate, m int) []queue.Candidate {
	if len(sorted) <= m {
		return sorted
	}

	selected := make([]queue.Candidate, 0, m)
	pruned := make([]queue.Candidate, 0, len(sorted))

	for _, c := range sorted {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, s := range selected {
			if h.distFn(h.nodes[s.ID].vector, h.nodes[c.ID].vector) < c.Distance {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		} else {
			pruned = append(pruned, c)
		}
	}

	for i := 0; len(selected) < m && i < len(pruned); i++ {
		selected = append(selected, pruned[i])
	}

	return selected
}

// link adds a connection from -> to on layer l and prunes from's neighbour
// list when it exceeds the layer's capacity.
func (h *HNSW) link(from, to uint32, l int) {
	n := h.nodes[from]
	n.links[l] = append(n.links[l], to)

	limit := h.maxLinks(l)
	if len(n.links[l]) <= limit {
		return
	}

	q := queue.NewMin(len(n.links[l]))
	for _, id := range n.links[l] {
		q.PushCandidate(queue.Candidate{ID: id, Distance: h.distFn(n.vector, h.nodes[id].vector)})
	}

	kept := h.selectNeighbours(q.Sorted(), limit)
	links := make([]uint32, len(kept))
	for i, c := range kept {
		links[i] = c.ID
	}
	n.links[l] = links
}
