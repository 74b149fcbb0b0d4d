package chromaffi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chromaffi/internal/frontend"
	"github.com/hupe1980/chromaffi/internal/metadata"
)

func TestIncludeList(t *testing.T) {
	all := Include{Embeddings: true, Metadatas: true, Documents: true, Distances: true}
	assert.Equal(t, frontend.IncludeList{
		frontend.IncludeEmbeddings,
		frontend.IncludeMetadatas,
		frontend.IncludeDocuments,
		frontend.IncludeDistances,
	}, all.list())

	assert.Empty(t, Include{}.list())

	l, e := includeList(SourceQuery, all, true)
	require.Nil(t, e)
	assert.Len(t, l, 4)

	_, e = includeList(SourceGet, Include{Distances: true}, false)
	require.NotNil(t, e)
	assert.Equal(t, ValidationError, e.Code)
	assert.Equal(t, SourceGet, e.Source)
}

func TestDecodeRecords(t *testing.T) {
	t.Run("OptionalRows", func(t *testing.T) {
		d, e := decodeRecords(SourceUpsert, Records{
			IDs:       []string{"a", "b", "c"},
			Metadatas: []*string{strPtr(`{"k":1}`), nil, strPtr("")},
			Documents: []*string{nil, strPtr(""), strPtr("doc")},
		}, false)
		require.Nil(t, e)
		assert.Nil(t, d.embeddings)
		assert.Equal(t, []metadata.Document{{"k": metadata.Int(1)}, nil, nil}, d.metadatas)
		require.Len(t, d.documents, 3)
		assert.Nil(t, d.documents[0])
		assert.Nil(t, d.documents[1])
		assert.Equal(t, "doc", *d.documents[2])
	})

	t.Run("AbsentArrays", func(t *testing.T) {
		d, e := decodeRecords(SourceUpdate, Records{IDs: []string{"a"}}, false)
		require.Nil(t, e)
		assert.Nil(t, d.metadatas)
		assert.Nil(t, d.documents)
	})

	tests := []struct {
		name    string
		records Records
		require bool
		code    Code
		msg     string
	}{
		{"NilIDs", Records{}, false, InvalidArgument, MsgIDsNull},
		{"EmptyIDs", Records{IDs: []string{}}, false, InvalidArgument, MsgIDsEmpty},
		{"NilEmbeddings", Records{IDs: []string{"a"}}, true, InvalidArgument, MsgEmbeddingsNull},
		{"NilEmbeddingRow", Records{IDs: []string{"a"}, Embeddings: [][]float32{nil}}, true, InvalidArgument, MsgNullEmbedding},
		{"BadMetadata", Records{IDs: []string{"a"}, Metadatas: []*string{strPtr("{")}}, false, ValidationError, MsgParseMetadata},
		{"NestedMetadata", Records{IDs: []string{"a"}, Metadatas: []*string{strPtr(`{"k":{"x":1}}`)}}, false, ValidationError, MsgParseMetadata},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, e := decodeRecords(SourceAdd, tt.records, tt.require)
			require.NotNil(t, e)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.msg, e.Message)
			assert.Equal(t, SourceAdd, e.Source)
		})
	}
}

func TestDecodeFilters(t *testing.T) {
	expr, e := decodeFilters(SourceGet, nil, nil)
	require.Nil(t, e)
	assert.Nil(t, expr)

	expr, e = decodeFilters(SourceGet, strPtr(""), strPtr(""))
	require.Nil(t, e)
	assert.Nil(t, expr)

	expr, e = decodeFilters(SourceGet, strPtr(`{"a":1}`), nil)
	require.Nil(t, e)
	assert.NotNil(t, expr)

	expr, e = decodeFilters(SourceGet, strPtr(`{"a":1}`), strPtr(`{"$contains":"x"}`))
	require.Nil(t, e)
	assert.NotNil(t, expr)

	for _, bad := range []struct{ where, doc *string }{
		{strPtr("{"), nil},
		{strPtr(`{"a":{"$gt":"x"}}`), nil},
		{nil, strPtr(`{"$bogus":"x"}`)},
	} {
		_, e = decodeFilters(SourceDelete, bad.where, bad.doc)
		require.NotNil(t, e)
		assert.Equal(t, ValidationError, e.Code)
		assert.Equal(t, MsgParseWhere, e.Message)
	}
}

func TestCollectionUUID(t *testing.T) {
	id, e := collectionUUID(SourceCount, NewCollection("6f1c2a8e-4c1b-4d7e-9a3f-2b5e8c9d0a11", "t", "d"))
	require.Nil(t, e)
	assert.Equal(t, "6f1c2a8e-4c1b-4d7e-9a3f-2b5e8c9d0a11", id.String())

	_, e = collectionUUID(SourceCount, NewCollection("nope", "t", "d"))
	require.NotNil(t, e)
	assert.Equal(t, InvalidUUID, e.Code)
	assert.Equal(t, MsgInvalidUUID, e.Message)
	assert.Contains(t, e.Details, "UUID parse error: ")
}

func TestConverters(t *testing.T) {
	for _, s := range []string{"", "plain", "grüße", "日本語", "emoji 🙂"} {
		assert.Equal(t, s, RepairUTF8(s))
	}
	assert.Equal(t, "a\uFFFDb", RepairUTF8("a\xffb"))

	assert.False(t, HasNul("abc"))
	assert.True(t, HasNul("a\x00c"))

	require.NoError(t, CheckOutgoing(SourceGet, "a", "b"))
	err := CheckOutgoing(SourceGet, "a", "b\x00")
	e := requireCode(t, MemoryError, err)
	assert.Equal(t, "String at index 1 contains an embedded nul byte", e.Details)

	_, ok := optional(nil)
	assert.False(t, ok)
	_, ok = optional(strPtr(""))
	assert.False(t, ok)
	s, ok := optional(strPtr("x"))
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	assert.Equal(t, "def", orDefault("", "def"))
	assert.Equal(t, "v", orDefault("v", "def"))
}
