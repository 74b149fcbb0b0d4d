package metadata

import (
	"github.com/RoaringBitmap/roaring/v2"
)

type postings struct {
	present *roaring.Bitmap
	values  map[string]*valuePostings
}

type valuePostings struct {
	value Value
	ids   *roaring.Bitmap
}

// Index is an inverted index from key/value pairs to record offsets.
// It is not safe for concurrent use.
type Index struct {
	keys map[string]*postings
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{keys: make(map[string]*postings)}
}

// Add indexes doc under id. Null values are ignored.
func (ix *Index) Add(id uint32, doc Document) {
	for k, v := range doc {
		if v.Kind == KindNull {
			continue
		}
		p, ok := ix.keys[k]
		if !ok {
			p = &postings{present: roaring.New(), values: make(map[string]*valuePostings)}
			ix.keys[k] = p
		}
		p.present.Add(id)

		vk := v.Key()
		vp, ok := p.values[vk]
		if !ok {
			vp = &valuePostings{value: v, ids: roaring.New()}
			p.values[vk] = vp
		}
		vp.ids.Add(id)
	}
}

// Remove drops id from the postings of doc.
func (ix *Index) Remove(id uint32, doc Document) {
	for k, v := range doc {
		p, ok := ix.keys[k]
		if !ok {
			continue
		}
		p.present.Remove(id)

		vk := v.Key()
		if vp, ok := p.values[vk]; ok {
			vp.ids.Remove(id)
			if vp.ids.IsEmpty() {
				delete(p.values, vk)
			}
		}
		if p.present.IsEmpty() {
			delete(ix.keys, k)
		}
	}
}

// Present returns the ids that carry key.
func (ix *Index) Present(key string) *roaring.Bitmap {
	if p, ok := ix.keys[key]; ok {
		return p.present.Clone()
	}
	return roaring.New()
}

// Equal returns the ids whose value for key equals v.
func (ix *Index) Equal(key string, v Value) *roaring.Bitmap {
	p, ok := ix.keys[key]
	if !ok {
		return roaring.New()
	}
	if vp, ok := p.values[v.Key()]; ok {
		return vp.ids.Clone()
	}
	return roaring.New()
}

// In returns the ids whose value for key equals any of vs.
func (ix *Index) In(key string, vs []Value) *roaring.Bitmap {
	out := roaring.New()
	for _, v := range vs {
		out.Or(ix.Equal(key, v))
	}
	return out
}

// Match returns the ids whose value for key satisfies pred.
func (ix *Index) Match(key string, pred func(Value) bool) *roaring.Bitmap {
	out := roaring.New()
	p, ok := ix.keys[key]
	if !ok {
		return out
	}
	for _, vp := range p.values {
		if pred(vp.value) {
			out.Or(vp.ids)
		}
	}
	return out
}

// Keys returns the number of distinct keys.
func (ix *Index) Keys() int { return len(ix.keys) }
