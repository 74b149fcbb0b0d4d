package where

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chromaffi/internal/metadata"
)

type fakeSource struct {
	universe *roaring.Bitmap
	index    *metadata.Index
	docs     map[uint32]string
}

func (f *fakeSource) Universe() *roaring.Bitmap { return f.universe }
func (f *fakeSource) Metadata() *metadata.Index { return f.index }
func (f *fakeSource) Document(id uint32) (string, bool) {
	d, ok := f.docs[id]
	return d, ok
}

func newFakeSource() *fakeSource {
	src := &fakeSource{
		universe: roaring.BitmapOf(0, 1, 2, 3),
		index:    metadata.NewIndex(),
		docs: map[uint32]string{
			0: "the quick brown fox",
			1: "lazy dog",
			2: "quick silver",
		},
	}
	src.index.Add(0, metadata.Document{"color": metadata.String("red"), "year": metadata.Int(2019)})
	src.index.Add(1, metadata.Document{"color": metadata.String("blue"), "year": metadata.Int(2021)})
	src.index.Add(2, metadata.Document{"color": metadata.String("red"), "year": metadata.Float(2022.5)})
	return src
}

func TestWhere(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   []uint32
	}{
		{"shorthand", `{"color":"red"}`, []uint32{0, 2}},
		{"eq", `{"color":{"$eq":"blue"}}`, []uint32{1}},
		{"ne includes missing", `{"color":{"$ne":"red"}}`, []uint32{1, 3}},
		{"gt", `{"year":{"$gt":2020}}`, []uint32{1, 2}},
		{"gte int float", `{"year":{"$gte":2021.0}}`, []uint32{1, 2}},
		{"lt", `{"year":{"$lt":2021}}`, []uint32{0}},
		{"lte", `{"year":{"$lte":2021}}`, []uint32{0, 1}},
		{"in", `{"color":{"$in":["blue","green"]}}`, []uint32{1}},
		{"nin", `{"color":{"$nin":["red"]}}`, []uint32{1, 3}},
		{"and", `{"$and":[{"color":"red"},{"year":{"$gt":2020}}]}`, []uint32{2}},
		{"or", `{"$or":[{"color":"blue"},{"year":{"$lt":2020}}]}`, []uint32{0, 1}},
		{"implicit and", `{"color":"red","year":2019}`, []uint32{0}},
		{"no match", `{"color":"purple"}`, nil},
	}

	src := newFakeSource()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseWhere([]byte(tt.filter))
			require.NoError(t, err)
			got := e.Eval(src).ToArray()
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWhereDocument(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   []uint32
	}{
		{"contains", `{"$contains":"quick"}`, []uint32{0, 2}},
		{"not contains includes missing", `{"$not_contains":"quick"}`, []uint32{1, 3}},
		{"regex", `{"$regex":"^lazy"}`, []uint32{1}},
		{"not regex", `{"$not_regex":"o"}`, []uint32{2, 3}},
		{"and", `{"$and":[{"$contains":"quick"},{"$contains":"fox"}]}`, []uint32{0}},
		{"or", `{"$or":[{"$contains":"dog"},{"$contains":"silver"}]}`, []uint32{1, 2}},
	}

	src := newFakeSource()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseWhereDocument([]byte(tt.filter))
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Eval(src).ToArray())
		})
	}
}

func TestParseErrors(t *testing.T) {
	where := []string{
		`not json`,
		`[]`,
		`{"$nope":[{"a":1}]}`,
		`{"a":{"$gt":"x"}}`,
		`{"a":{"$in":[]}}`,
		`{"a":{"$eq":1,"$ne":2}}`,
		`{"a":{"$like":"x"}}`,
		`{"a":null}`,
		`{"a":[1,2]}`,
		`{"$and":[]}`,
		`{"$or":[1]}`,
	}
	for _, f := range where {
		_, err := ParseWhere([]byte(f))
		assert.ErrorIs(t, err, ErrInvalidFilter, f)
	}

	docs := []string{
		`{"$contains":1}`,
		`{"$contains":"a","$not_contains":"b"}`,
		`{"$regex":"("}`,
		`{"$startswith":"a"}`,
	}
	for _, f := range docs {
		_, err := ParseWhereDocument([]byte(f))
		assert.ErrorIs(t, err, ErrInvalidFilter, f)
	}
}

func TestEmptyFilter(t *testing.T) {
	e, err := ParseWhere([]byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, e)

	e, err = ParseWhereDocument([]byte(` {} `))
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestCombine(t *testing.T) {
	assert.Nil(t, Combine(nil, nil))

	a := &Compare{Key: "color", Op: OpEq, Value: metadata.String("red")}
	assert.Same(t, Expr(a), Combine(nil, a))

	b := &Text{Op: OpContains, Pattern: "fox"}
	e := Combine(a, b)
	assert.Equal(t, []uint32{0}, e.Eval(newFakeSource()).ToArray())
	assert.Contains(t, e.String(), "$and")
}
