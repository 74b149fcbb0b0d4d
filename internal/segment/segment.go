package segment

import (
	"errors"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/btree"

	"github.com/hupe1980/chromaffi/internal/distance"
	"github.com/hupe1980/chromaffi/internal/index"
	"github.com/hupe1980/chromaffi/internal/index/flat"
	"github.com/hupe1980/chromaffi/internal/index/hnsw"
	"github.com/hupe1980/chromaffi/internal/metadata"
	"github.com/hupe1980/chromaffi/internal/where"
)

// ErrDimensionMismatch is returned when a record or query does not match the
// segment dimension.
var ErrDimensionMismatch = errors.New("segment: dimension mismatch")

// Record is a single stored item.
type Record struct {
	ID        string
	Seq       int64
	Embedding []float32
	Document  *string
	Metadata  metadata.Document
}

// Config describes the vector index of a segment.
type Config struct {
	Kind  index.Kind
	Space distance.Space
	HNSW  hnsw.Options
}

// DefaultConfig returns an HNSW l2 configuration.
func DefaultConfig() Config {
	return Config{Kind: index.KindHNSW, Space: distance.SpaceL2, HNSW: hnsw.DefaultOptions}
}

type orderItem struct {
	seq    int64
	offset uint32
}

func lessOrder(a, b orderItem) bool { return a.seq < b.seq }

// Segment is safe for concurrent use.
type Segment struct {
	mu sync.RWMutex

	cfg       Config
	dimension int
	version   int64

	records []*Record // by offset, nil when tombstoned
	offsets map[string]uint32
	live    *roaring.Bitmap
	order   *btree.BTreeG[orderItem]
	meta    *metadata.Index
	vectors index.Index
}

// New creates an empty segment. A zero dimension is fixed by the first record
// carrying an embedding.
func New(cfg Config, dimension int) (*Segment, error) {
	if _, err := distance.Provider(cfg.Space); err != nil {
		return nil, err
	}
	s := &Segment{
		cfg:     cfg,
		offsets: make(map[string]uint32),
		live:    roaring.New(),
		order:   btree.NewG(16, lessOrder),
		meta:    metadata.NewIndex(),
	}
	if dimension > 0 {
		if err := s.initIndex(dimension); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Segment) initIndex(dimension int) error {
	var (
		ix  index.Index
		err error
	)
	switch s.cfg.Kind {
	case index.KindFlat:
		ix, err = flat.New(dimension, s.cfg.Space)
	default:
		ix, err = hnsw.New(dimension, func(o *hnsw.Options) {
			*o = s.cfg.HNSW
			o.Space = s.cfg.Space
		})
	}
	if err != nil {
		return err
	}
	s.dimension = dimension
	s.vectors = ix
	return nil
}

// Config returns the index configuration.
func (s *Segment) Config() Config { return s.cfg }

// Dimension returns the embedding dimension, 0 while unknown.
func (s *Segment) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Version returns the collection version the segment reflects.
func (s *Segment) Version() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// SetVersion records the collection version the segment reflects.
func (s *Segment) SetVersion(v int64) {
	s.mu.Lock()
	s.version = v
	s.mu.Unlock()
}

// Len returns the number of live records.
func (s *Segment) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.live.GetCardinality())
}

// Put inserts or replaces records by id.
func (s *Segment) Put(recs ...*Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range recs {
		if len(r.Embedding) > 0 && s.dimension == 0 {
			if err := s.initIndex(len(r.Embedding)); err != nil {
				return err
			}
		}
		if len(r.Embedding) > 0 && len(r.Embedding) != s.dimension {
			return fmt.Errorf("%w: record %q has dimension %d, expected %d", ErrDimensionMismatch, r.ID, len(r.Embedding), s.dimension)
		}
	}

	for _, r := range recs {
		if old, ok := s.offsets[r.ID]; ok {
			s.removeLocked(old)
		}

		offset := uint32(len(s.records))
		s.records = append(s.records, r)
		s.offsets[r.ID] = offset
		s.live.Add(offset)
		s.order.ReplaceOrInsert(orderItem{seq: r.Seq, offset: offset})
		s.meta.Add(offset, r.Metadata)
		if len(r.Embedding) > 0 {
			if err := s.vectors.Insert(offset, r.Embedding); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes records by id. Unknown ids are ignored.
func (s *Segment) Delete(ids ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, id := range ids {
		if offset, ok := s.offsets[id]; ok {
			s.removeLocked(offset)
			delete(s.offsets, id)
			n++
		}
	}
	return n
}

func (s *Segment) removeLocked(offset uint32) {
	r := s.records[offset]
	s.records[offset] = nil
	s.live.Remove(offset)
	s.order.Delete(orderItem{seq: r.Seq})
	s.meta.Remove(offset, r.Metadata)
	if s.vectors != nil {
		s.vectors.Delete(offset)
	}
}

// Lookup returns the live record with the given id.
func (s *Segment) Lookup(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	offset, ok := s.offsets[id]
	if !ok {
		return nil, false
	}
	return s.records[offset], true
}

// Filter selects records for Get and Query.
type Filter struct {
	// IDs restricts the result to these ids. Nil means no restriction.
	IDs []string
	// Expr is a parsed where and where_document expression.
	Expr where.Expr
}

func (f Filter) empty() bool { return f.IDs == nil && f.Expr == nil }

// allowLocked returns the matching offsets, or nil when f selects everything.
func (s *Segment) allowLocked(f Filter) *roaring.Bitmap {
	if f.empty() {
		return nil
	}
	allow := s.live.Clone()
	if f.IDs != nil {
		byID := roaring.New()
		for _, id := range f.IDs {
			if offset, ok := s.offsets[id]; ok {
				byID.Add(offset)
			}
		}
		allow.And(byID)
	}
	if f.Expr != nil && !allow.IsEmpty() {
		allow.And(f.Expr.Eval(s))
	}
	return allow
}

// Get returns matching records in insertion order. limit 0 means unlimited.
func (s *Segment) Get(f Filter, limit, offset int) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allow := s.allowLocked(f)
	var out []*Record
	skipped := 0
	s.order.Ascend(func(it orderItem) bool {
		if allow != nil && !allow.Contains(it.offset) {
			return true
		}
		if skipped < offset {
			skipped++
			return true
		}
		out = append(out, s.records[it.offset])
		return limit == 0 || len(out) < limit
	})
	return out
}

// Count returns the number of records matching f.
func (s *Segment) Count(f Filter) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if allow := s.allowLocked(f); allow != nil {
		return int(allow.GetCardinality())
	}
	return int(s.live.GetCardinality())
}

// Match is a query hit.
type Match struct {
	Record   *Record
	Distance float32
}

// Query returns the k nearest records to q among those matching f.
func (s *Segment) Query(q []float32, k int, f Filter) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.vectors == nil {
		return nil, nil
	}
	if len(q) != s.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, expected %d", ErrDimensionMismatch, len(q), s.dimension)
	}

	allow := s.allowLocked(f)
	if allow != nil && allow.IsEmpty() {
		return nil, nil
	}

	hits, err := s.vectors.Search(q, k, allow)
	if err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(hits))
	for _, h := range hits {
		if r := s.records[h.ID]; r != nil {
			out = append(out, Match{Record: r, Distance: h.Distance})
		}
	}
	return out, nil
}

// Universe implements where.Source. Callers hold the read lock.
func (s *Segment) Universe() *roaring.Bitmap { return s.live }

// Metadata implements where.Source.
func (s *Segment) Metadata() *metadata.Index { return s.meta }

// Document implements where.Source.
func (s *Segment) Document(offset uint32) (string, bool) {
	if int(offset) >= len(s.records) {
		return "", false
	}
	r := s.records[offset]
	if r == nil || r.Document == nil {
		return "", false
	}
	return *r.Document, true
}

// MemoryUsage estimates the heap held by the segment in bytes.
func (s *Segment) MemoryUsage() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const perRecord = 128
	var total int64
	for _, r := range s.records {
		if r == nil {
			continue
		}
		total += perRecord + int64(len(r.ID)) + int64(len(r.Embedding))*4
		if r.Document != nil {
			total += int64(len(*r.Document))
		}
		total += int64(len(r.Metadata)) * 48
	}
	if s.cfg.Kind == index.KindHNSW {
		total += int64(len(s.records)) * int64(s.cfg.HNSW.M) * 2 * 4
	}
	return total
}
