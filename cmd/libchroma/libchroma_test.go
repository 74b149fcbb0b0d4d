package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chromaffi"
)

func strPtr(s string) *string { return &s }

// invoke runs fn with a fresh error slot and returns a copy of the error
// object after freeing it. The return code must agree with the object.
func invoke(t *testing.T, fn func(errOut errorOut) status) errorView {
	t.Helper()
	out := newErrorOut()
	rc := fn(out)
	require.NotNil(t, *out, "no error object written")
	v := viewError(*out)
	chroma_free_error(*out)
	require.Equal(t, int(rc), v.Code, "return code and error object disagree")
	return v
}

func requireSuccess(t *testing.T, v errorView) {
	t.Helper()
	require.Equal(t, int(chromaffi.Success), v.Code, "unexpected error: %s %s", deref(v.Message), deref(v.Details))
	assert.Nil(t, v.Message)
	assert.Nil(t, v.Source)
	assert.Nil(t, v.Details)
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

// noLeaks fails the test when library allocations outlive it.
func noLeaks(t *testing.T) {
	t.Helper()
	before := liveAllocations()
	t.Cleanup(func() {
		assert.Equal(t, before, liveAllocations(), "leaked C allocations")
	})
}

func openClient(t *testing.T) clientHandle {
	t.Helper()
	out := newClientOut()
	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_create_client(1, nil, 0, nil, out, e)
	}))
	require.NotNil(t, *out)
	t.Cleanup(func() {
		requireSuccess(t, invoke(t, func(e errorOut) status { return chroma_destroy_client(*out, e) }))
	})
	return *out
}

func openCollection(t *testing.T, args *cArgs, client clientHandle, name string) collectionHandle {
	t.Helper()
	out := newCollectionOut()
	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_create_collection(client, args.str(name), nil, nil, 0, nil, nil, out, e)
	}))
	require.NotNil(t, *out)
	t.Cleanup(func() { assert.EqualValues(t, 0, chroma_destroy_collection(*out)) })
	return *out
}

func TestCreateDestroyLeaksNothing(t *testing.T) {
	noLeaks(t)

	args := &cArgs{}
	defer args.free()
	dir := t.TempDir()

	for i := 0; i < 25; i++ {
		out := newClientOut()
		cfg := args.sqliteConfig(1, i%2)
		path := args.str(dir)
		requireSuccess(t, invoke(t, func(e errorOut) status {
			return chroma_create_client(0, cfg, 8, path, out, e)
		}))
		requireSuccess(t, invoke(t, func(e errorOut) status { return chroma_destroy_client(*out, e) }))
	}
}

func TestCreateClientRejectsSelectors(t *testing.T) {
	noLeaks(t)

	args := &cArgs{}
	defer args.free()

	tests := []struct {
		hash, mode int
		message    string
		detail     string
	}{
		{2, 0, chromaffi.MsgInvalidHashType, "Got 2, expected 0 (SHA256) or 1 (MD5)"},
		{-1, 0, chromaffi.MsgInvalidHashType, "Got -1, expected 0 (SHA256) or 1 (MD5)"},
		{0, 2, chromaffi.MsgInvalidMigrationMode, "Got 2, expected 0 (Apply) or 1 (Validate)"},
		{1, 99, chromaffi.MsgInvalidMigrationMode, "Got 99, expected 0 (Apply) or 1 (Validate)"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d", tt.hash, tt.mode), func(t *testing.T) {
			out := newClientOut()
			cfg := args.sqliteConfig(tt.hash, tt.mode)
			v := invoke(t, func(e errorOut) status {
				return chroma_create_client(0, cfg, 0, nil, out, e)
			})
			assert.Equal(t, int(chromaffi.InvalidArgument), v.Code)
			assert.Equal(t, tt.message, deref(v.Message))
			assert.Equal(t, chromaffi.SourceCreateClient, deref(v.Source))
			assert.Equal(t, tt.detail, deref(v.Details))
			assert.Nil(t, *out, "handle written on failure")
		})
	}
}

func TestCreateClientFromConfig(t *testing.T) {
	noLeaks(t)

	args := &cArgs{}
	defer args.free()

	out := newClientOut()
	v := invoke(t, func(e errorOut) status {
		return chroma_create_client_from_config(args.str("cache: ["), out, e)
	})
	assert.Equal(t, int(chromaffi.InvalidArgument), v.Code)
	assert.Nil(t, *out)

	v = invoke(t, func(e errorOut) status {
		return chroma_create_client_from_config(args.str("log:\n  level: loud\n"), out, e)
	})
	assert.Equal(t, int(chromaffi.ValidationError), v.Code)
	assert.Nil(t, *out)

	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_create_client_from_config(args.str("allow_reset: true\n"), out, e)
	}))
	requireSuccess(t, invoke(t, func(e errorOut) status { return chroma_reset(*out, e) }))
	requireSuccess(t, invoke(t, func(e errorOut) status { return chroma_destroy_client(*out, e) }))
}

func TestNullArguments(t *testing.T) {
	noLeaks(t)

	chroma_free_error(nil)
	assert.EqualValues(t, 0, chroma_free_string(nil))
	assert.EqualValues(t, 0, chroma_free_string_array(nil, 3))
	assert.EqualValues(t, 0, chroma_free_query_result(nil))

	assert.EqualValues(t, chromaffi.InvalidArgument, chroma_destroy_collection(nil))

	v := invoke(t, func(e errorOut) status { return chroma_destroy_client(nil, e) })
	assert.Equal(t, int(chromaffi.InvalidArgument), v.Code)
	assert.Equal(t, chromaffi.MsgClientNull, deref(v.Message))
	assert.Equal(t, chromaffi.SourceDestroyClient, deref(v.Source))
	assert.Nil(t, v.Details)

	v = invoke(t, func(e errorOut) status { return chroma_create_client(0, nil, 0, nil, nil, e) })
	assert.Equal(t, chromaffi.MsgOutputNull, deref(v.Message))

	// A null error slot still yields the code.
	assert.EqualValues(t, chromaffi.InvalidArgument, chroma_heartbeat(nil, newUint64Out(), nil))

	args := &cArgs{}
	defer args.free()
	client := openClient(t)

	v = invoke(t, func(e errorOut) status { return chroma_heartbeat(client, nil, e) })
	assert.Equal(t, int(chromaffi.InvalidArgument), v.Code)

	v = invoke(t, func(e errorOut) status { return chroma_create_database(client, nil, nil, e) })
	assert.Equal(t, chromaffi.MsgNameNull, deref(v.Message))

	v = invoke(t, func(e errorOut) status {
		return chroma_create_collection(client, nil, nil, nil, 0, nil, nil, newCollectionOut(), e)
	})
	assert.Equal(t, chromaffi.MsgNameNull, deref(v.Message))

	v = invoke(t, func(e errorOut) status { return chroma_count(client, nil, newUintOut(), e) })
	assert.Equal(t, chromaffi.MsgCollectionNull, deref(v.Message))
}

func TestStringRoundTrip(t *testing.T) {
	noLeaks(t)

	for _, s := range []string{"", "id-1", "grüße", "日本語 text", "🙂"} {
		p := cString(s)
		require.NotNil(t, p)
		got, ok := goString(p)
		assert.True(t, ok)
		assert.Equal(t, s, got)
		chroma_free_string(p)
	}

	assert.Nil(t, cString("a\x00b"))

	_, ok := goString(nil)
	assert.False(t, ok)

	array, count, ok := cStringArray(nil)
	assert.True(t, ok)
	assert.Nil(t, array)
	assert.Zero(t, count)

	array, count, ok = cStringArray([]string{"a", "b\x00"})
	assert.False(t, ok)
	assert.Nil(t, array)
	assert.Zero(t, count)

	array, count, ok = cStringArray([]string{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, viewStrings(array, count))
	assert.EqualValues(t, 0, chroma_free_string_array(array, count))
}

func TestArrayDecoding(t *testing.T) {
	noLeaks(t)

	args := &cArgs{}
	defer args.free()

	ids, err := goIDs(chromaffi.SourceAdd, nil, 3)
	require.NoError(t, err)
	assert.Nil(t, ids)

	ids, err = goIDs(chromaffi.SourceAdd, args.ids(), 0)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	_, err = goIDs(chromaffi.SourceAdd, args.strs(strPtr("a"), nil), 2)
	assert.Equal(t, chromaffi.InvalidArgument, chromaffi.ErrorCode(err))

	rows := goOptionalStrings(args.strs(strPtr("x"), nil), 2)
	require.Len(t, rows, 2)
	assert.Equal(t, "x", *rows[0])
	assert.Nil(t, rows[1])
	assert.Nil(t, goOptionalStrings(nil, 2))

	assert.Nil(t, goFloats(nil, 4))
	assert.Equal(t, []float32{1, 2}, goFloats(args.floats([]float32{1, 2}), 2))

	emb := goEmbeddings(args.embeddings([]float32{1, 2}, nil), 2, 2)
	assert.Equal(t, [][]float32{{1, 2}, nil}, emb)
	assert.Nil(t, goEmbeddings(nil, 2, 2))
}

func TestScenario(t *testing.T) {
	noLeaks(t)

	args := &cArgs{}
	defer args.free()
	client := openClient(t)

	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_create_database(client, args.str("db1"), args.str("default_tenant"), e)
	}))

	collOut := newCollectionOut()
	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_create_collection(client, args.str("c1"), nil, nil, 0, args.str("default_tenant"), args.str("db1"), collOut, e)
	}))
	coll := *collOut
	defer chroma_destroy_collection(coll)

	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_add(client, coll, args.ids("a", "b", "c"), 3,
			args.embeddings([]float32{1, 0, 0}, []float32{0, 1, 0}, []float32{0, 0, 1}), 3, nil, nil, e)
	}))

	n := newUintOut()
	requireSuccess(t, invoke(t, func(e errorOut) status { return chroma_count(client, coll, n, e) }))
	assert.EqualValues(t, 3, *n)

	resOut := newResultOut()
	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_query(client, coll, args.floats([]float32{0.9, 0.1, 0}), 3, 2, nil, nil, 0, 0, 0, 1, resOut, e)
	}))
	require.NotNil(t, *resOut)
	res := viewResult(*resOut)
	assert.EqualValues(t, 0, chroma_free_query_result(*resOut))

	assert.Equal(t, []string{"a", "b"}, res.IDValues)
	require.Len(t, res.DistanceValues, 2)
	assert.LessOrEqual(t, res.DistanceValues[0], res.DistanceValues[1])
	assert.True(t, res.Metadatas.Null)
	assert.True(t, res.Documents.Null)
}

func TestCatalogEntryPoints(t *testing.T) {
	noLeaks(t)

	args := &cArgs{}
	defer args.free()
	client := openClient(t)

	hb := newUint64Out()
	requireSuccess(t, invoke(t, func(e errorOut) status { return chroma_heartbeat(client, hb, e) }))
	assert.NotZero(t, *hb)

	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_create_database(client, args.str("db1"), nil, e)
	}))
	v := invoke(t, func(e errorOut) status {
		return chroma_create_database(client, args.str("db1"), nil, e)
	})
	assert.Equal(t, int(chromaffi.InternalError), v.Code)
	assert.NotNil(t, v.Details)

	idOut := newStringOut()
	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_get_database(client, args.str("db1"), nil, idOut, e)
	}))
	id, _ := goString(*idOut)
	assert.Len(t, id, 36)
	chroma_free_string(*idOut)

	v = invoke(t, func(e errorOut) status {
		return chroma_get_database(client, args.str("nope"), nil, newStringOut(), e)
	})
	assert.Equal(t, int(chromaffi.NotFound), v.Code)

	coll := openCollection(t, args, client, "docs")
	idOut = newStringOut()
	requireSuccess(t, invoke(t, func(e errorOut) status { return chroma_collection_id(coll, idOut, e) }))
	collID, _ := goString(*idOut)
	chroma_free_string(*idOut)

	got := newCollectionOut()
	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_get_collection(client, args.str("docs"), nil, nil, got, e)
	}))
	idOut = newStringOut()
	requireSuccess(t, invoke(t, func(e errorOut) status { return chroma_collection_id(*got, idOut, e) }))
	gotID, _ := goString(*idOut)
	chroma_free_string(*idOut)
	chroma_destroy_collection(*got)
	assert.Equal(t, collID, gotID)

	v = invoke(t, func(e errorOut) status {
		return chroma_create_collection(client, args.str("bad"), args.str("{"), nil, 0, nil, nil, newCollectionOut(), e)
	})
	assert.Equal(t, int(chromaffi.ValidationError), v.Code)
	assert.Equal(t, chromaffi.MsgParseConfiguration, deref(v.Message))

	openCollection(t, args, client, "more")
	names, count := newStringArrayOut()
	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_list_collections(client, nil, nil, names, count, e)
	}))
	assert.Equal(t, []string{"docs", "more"}, viewStrings(*names, *count))
	chroma_free_string_array(*names, *count)

	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_delete_collection(client, args.str("more"), nil, nil, e)
	}))
	v = invoke(t, func(e errorOut) status {
		return chroma_get_collection(client, args.str("more"), nil, nil, newCollectionOut(), e)
	})
	assert.Equal(t, int(chromaffi.NotFound), v.Code)

	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_delete_database(client, args.str("db1"), nil, e)
	}))

	text := newStringOut()
	requireSuccess(t, invoke(t, func(e errorOut) status { return chroma_metrics_text(client, text, e) }))
	body, _ := goString(*text)
	chroma_free_string(*text)
	assert.Contains(t, body, "chroma_ffi_calls_total")

	requireSuccess(t, invoke(t, func(e errorOut) status { return chroma_reset(client, e) }))
}

func TestRecordArguments(t *testing.T) {
	noLeaks(t)

	args := &cArgs{}
	defer args.free()
	client := openClient(t)
	coll := openCollection(t, args, client, "records")

	v := invoke(t, func(e errorOut) status {
		return chroma_add(client, coll, args.strs(strPtr("a"), nil), 2, args.embeddings([]float32{1}, []float32{2}), 1, nil, nil, e)
	})
	assert.Equal(t, int(chromaffi.InvalidArgument), v.Code)
	assert.Equal(t, chromaffi.MsgNullID, deref(v.Message))
	assert.Equal(t, "Null ID at index 1", deref(v.Details))

	v = invoke(t, func(e errorOut) status {
		return chroma_add(client, coll, args.ids("a"), 1, nil, 1, nil, nil, e)
	})
	assert.Equal(t, chromaffi.MsgEmbeddingsNull, deref(v.Message))

	v = invoke(t, func(e errorOut) status {
		return chroma_add(client, coll, nil, 0, args.embeddings([]float32{1}), 1, nil, nil, e)
	})
	assert.Equal(t, chromaffi.MsgIDsNull, deref(v.Message))

	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_add(client, coll, args.ids("a", "b"), 2, args.embeddings([]float32{1, 0}, []float32{0, 1}), 2,
			args.strs(strPtr(`{"n":1}`), nil), args.strs(nil, strPtr("doc b")), e)
	}))

	// Null embeddings keep the stored vectors on update and upsert.
	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_update(client, coll, args.ids("a"), 1, nil, 0, args.strs(strPtr(`{"n":2}`)), nil, e)
	}))
	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_upsert(client, coll, args.ids("b", "c"), 2, args.embeddings(nil, []float32{1, 1}), 2, nil, nil, e)
	}))

	v = invoke(t, func(e errorOut) status {
		return chroma_upsert(client, coll, args.ids("new"), 1, nil, 0, nil, nil, e)
	})
	assert.Equal(t, int(chromaffi.ValidationError), v.Code)

	v = invoke(t, func(e errorOut) status {
		return chroma_update(client, coll, args.ids("a"), 1, nil, 0, args.strs(strPtr("not json")), nil, e)
	})
	assert.Equal(t, int(chromaffi.ValidationError), v.Code)
	assert.Equal(t, chromaffi.MsgParseMetadata, deref(v.Message))

	n := newUintOut()
	requireSuccess(t, invoke(t, func(e errorOut) status { return chroma_count(client, coll, n, e) }))
	assert.EqualValues(t, 3, *n)

	t.Run("QueryDimension", func(t *testing.T) {
		v := invoke(t, func(e errorOut) status {
			return chroma_query(client, coll, nil, 3, 1, nil, nil, 0, 0, 0, 1, newResultOut(), e)
		})
		assert.Equal(t, int(chromaffi.InvalidArgument), v.Code)
		assert.Equal(t, chromaffi.MsgQueryEmbedding, deref(v.Message))
		assert.Equal(t, "Expected dimension 3, got 0", deref(v.Details))

		v = invoke(t, func(e errorOut) status {
			return chroma_query(client, coll, args.floats([]float32{1}), 0, 1, nil, nil, 0, 0, 0, 1, newResultOut(), e)
		})
		assert.Equal(t, int(chromaffi.InvalidArgument), v.Code)
		assert.Equal(t, "Expected dimension 0, got 0", deref(v.Details))
	})

	t.Run("NeitherIDsNorFilters", func(t *testing.T) {
		out := newResultOut()
		v := invoke(t, func(e errorOut) status {
			return chroma_get(client, coll, nil, 0, nil, nil, 0, 0, 1, 1, 1, out, e)
		})
		assert.Equal(t, int(chromaffi.InvalidArgument), v.Code)
		assert.Equal(t, chromaffi.MsgIDsOrFilter, deref(v.Message))
		assert.Nil(t, *out)

		v = invoke(t, func(e errorOut) status {
			return chroma_delete(client, coll, nil, 0, nil, nil, e)
		})
		assert.Equal(t, int(chromaffi.InvalidArgument), v.Code)
		assert.Equal(t, chromaffi.MsgIDsOrFilter, deref(v.Message))
	})

	t.Run("InvalidUUID", func(t *testing.T) {
		bad := newCollectionHandle(chromaffi.NewCollection("not-a-uuid", "default_tenant", "default_database"))
		defer chroma_destroy_collection(bad)
		v := invoke(t, func(e errorOut) status { return chroma_count(client, bad, newUintOut(), e) })
		assert.Equal(t, int(chromaffi.InvalidUUID), v.Code)
		assert.Equal(t, chromaffi.MsgInvalidUUID, deref(v.Message))
	})

	t.Run("Delete", func(t *testing.T) {
		requireSuccess(t, invoke(t, func(e errorOut) status {
			return chroma_delete(client, coll, nil, 0, args.str(`{"n":2}`), nil, e)
		}))
		requireSuccess(t, invoke(t, func(e errorOut) status {
			return chroma_delete(client, coll, args.ids("c"), 1, nil, nil, e)
		}))
		requireSuccess(t, invoke(t, func(e errorOut) status { return chroma_count(client, coll, n, e) }))
		assert.EqualValues(t, 1, *n)
	})
}

// assertPairs checks count == 0 if and only if the pointer is null.
func assertPairs(t *testing.T, res resultView) {
	t.Helper()
	for name, a := range map[string]arrayView{
		"ids":       res.IDs,
		"distances": res.Distances,
		"metadatas": res.Metadatas,
		"documents": res.Documents,
	} {
		assert.Equal(t, a.Count == 0, a.Null, "%s: count %d, null %v", name, a.Count, a.Null)
	}
}

func TestResultPointerCountInvariant(t *testing.T) {
	noLeaks(t)

	args := &cArgs{}
	defer args.free()
	client := openClient(t)
	coll := openCollection(t, args, client, "matrix")

	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_add(client, coll, args.ids("a", "b", "c"), 3,
			args.embeddings([]float32{1, 0}, []float32{0, 1}, []float32{1, 1}), 2,
			args.strs(strPtr(`{"g":"one"}`), strPtr(`{"g":"many"}`), strPtr(`{"g":"many"}`)),
			args.strs(strPtr("a doc"), nil, strPtr("c doc")), e)
	}))

	filters := []struct {
		where string
		rows  int
	}{
		{`{"g":"none"}`, 0},
		{`{"g":"one"}`, 1},
		{`{"g":{"$in":["one","many"]}}`, 3},
	}

	for _, f := range filters {
		for mask := 0; mask < 16; mask++ {
			emb, meta, docs, dist := mask&1, mask>>1&1, mask>>2&1, mask>>3&1

			t.Run(fmt.Sprintf("query/%d/%04b", f.rows, mask), func(t *testing.T) {
				out := newResultOut()
				requireSuccess(t, invoke(t, func(e errorOut) status {
					return chroma_query(client, coll, args.floats([]float32{1, 0}), 2, 10, args.str(f.where), nil,
						status(emb), status(meta), status(docs), status(dist), out, e)
				}))
				res := viewResult(*out)
				chroma_free_query_result(*out)

				assertPairs(t, res)
				assert.Equal(t, f.rows, res.IDs.Count)
				assert.Equal(t, f.rows*dist, res.Distances.Count)
				assert.Equal(t, f.rows*meta, res.Metadatas.Count)
				assert.Equal(t, f.rows*docs, res.Documents.Count)
			})

			t.Run(fmt.Sprintf("get/%d/%04b", f.rows, mask), func(t *testing.T) {
				out := newResultOut()
				v := invoke(t, func(e errorOut) status {
					return chroma_get(client, coll, nil, 0, args.str(f.where), nil, 0, 0,
						status(emb), status(meta), status(docs), out, e)
				})
				requireSuccess(t, v)
				res := viewResult(*out)
				chroma_free_query_result(*out)

				assertPairs(t, res)
				assert.Equal(t, f.rows, res.IDs.Count)
				assert.True(t, res.Distances.Null)
				assert.Equal(t, f.rows*meta, res.Metadatas.Count)
				assert.Equal(t, f.rows*docs, res.Documents.Count)
			})
		}
	}

	out := newResultOut()
	requireSuccess(t, invoke(t, func(e errorOut) status {
		return chroma_get(client, coll, args.ids("a", "b"), 2, nil, nil, 0, 0, 0, 1, 1, out, e)
	}))
	res := viewResult(*out)
	chroma_free_query_result(*out)
	assert.Equal(t, []string{`{"g":"one"}`, `{"g":"many"}`}, res.MetadataValues)
	assert.Equal(t, []string{"a doc", ""}, res.DocumentValues)
}
