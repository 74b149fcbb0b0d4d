package frontend

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chromaffi/internal/lock"
	"github.com/hupe1980/chromaffi/internal/metadata"
	"github.com/hupe1980/chromaffi/internal/where"
)

func newTestFrontend(t *testing.T, optFns ...func(*Config)) *Frontend {
	t.Helper()
	cfg := DefaultConfig()
	for _, fn := range optFns {
		fn(&cfg)
	}
	f, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func createCollection(t *testing.T, f *Frontend, name string) Collection {
	t.Helper()
	req, err := NewCreateCollectionRequest(DefaultTenant, DefaultDatabase, name, nil, nil, false)
	require.NoError(t, err)
	c, err := f.CreateCollection(context.Background(), req)
	require.NoError(t, err)
	return c
}

func strPtr(s string) *string { return &s }

func add(t *testing.T, f *Frontend, c Collection, ids []string, embeddings [][]float32, docs []*string, mds []metadata.Document) {
	t.Helper()
	req, err := NewAddRequest(c.Tenant, c.Database, c.ID, ids, embeddings, docs, mds)
	require.NoError(t, err)
	require.NoError(t, f.Add(context.Background(), req))
}

func count(t *testing.T, f *Frontend, c Collection) uint32 {
	t.Helper()
	req, err := NewCountRequest(c.Tenant, c.Database, c.ID)
	require.NoError(t, err)
	n, err := f.Count(context.Background(), req)
	require.NoError(t, err)
	return n
}

func getAll(t *testing.T, f *Frontend, c Collection, include ...Include) GetResponse {
	t.Helper()
	req, err := NewGetRequest(c.Tenant, c.Database, c.ID, nil, nil, nil, 0, include)
	require.NoError(t, err)
	resp, err := f.Get(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func mustWhere(t *testing.T, s string) where.Expr {
	t.Helper()
	e, err := where.ParseWhere([]byte(s))
	require.NoError(t, err)
	return e
}

func TestDatabases(t *testing.T) {
	f := newTestFrontend(t)
	ctx := context.Background()

	req, err := NewCreateDatabaseRequest(DefaultTenant, "db1")
	require.NoError(t, err)
	created, err := f.CreateDatabase(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	_, err = f.CreateDatabase(ctx, req)
	assert.ErrorIs(t, err, ErrConflict)

	getReq, err := NewGetDatabaseRequest(DefaultTenant, "db1")
	require.NoError(t, err)
	got, err := f.GetDatabase(ctx, getReq)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	dbs, err := f.ListDatabases(ctx, DefaultTenant)
	require.NoError(t, err)
	assert.Len(t, dbs, 2)

	delReq, err := NewDeleteDatabaseRequest(DefaultTenant, "db1")
	require.NoError(t, err)
	require.NoError(t, f.DeleteDatabase(ctx, delReq))

	_, err = f.GetDatabase(ctx, getReq)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.DeleteDatabase(ctx, delReq), ErrNotFound)

	_, err = NewCreateDatabaseRequest(DefaultTenant, "ab")
	assert.ErrorIs(t, err, ErrValidation)

	req, err = NewCreateDatabaseRequest("no_such_tenant", "db2")
	require.NoError(t, err)
	_, err = f.CreateDatabase(ctx, req)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCollections(t *testing.T) {
	f := newTestFrontend(t)
	ctx := context.Background()

	md := metadata.Document{"owner": metadata.String("ops")}
	cfg := &CollectionConfiguration{HNSW: &HNSWConfiguration{Space: "cosine"}}
	req, err := NewCreateCollectionRequest(DefaultTenant, DefaultDatabase, "c1", md, cfg, false)
	require.NoError(t, err)

	c, err := f.CreateCollection(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "c1", c.Name)
	assert.Equal(t, md, c.Metadata)
	assert.Equal(t, "cosine", c.Configuration.HNSW.Space)
	assert.Equal(t, "hnsw", c.Configuration.KnnIndex)
	assert.Nil(t, c.Dimension)

	_, err = f.CreateCollection(ctx, req)
	assert.ErrorIs(t, err, ErrConflict)

	req.GetOrCreate = true
	again, err := f.CreateCollection(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)

	getReq, err := NewGetCollectionRequest(DefaultTenant, DefaultDatabase, "c1")
	require.NoError(t, err)
	got, err := f.GetCollection(ctx, getReq)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	createCollection(t, f, "c2")
	listReq, err := NewListCollectionsRequest(DefaultTenant, DefaultDatabase)
	require.NoError(t, err)
	list, err := f.ListCollections(ctx, listReq)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].Name)
	assert.Equal(t, "c2", list[1].Name)

	delReq, err := NewDeleteCollectionRequest(DefaultTenant, DefaultDatabase, "c1")
	require.NoError(t, err)
	require.NoError(t, f.DeleteCollection(ctx, delReq))
	_, err = f.GetCollection(ctx, getReq)
	assert.ErrorIs(t, err, ErrNotFound)

	listReq, err = NewListCollectionsRequest(DefaultTenant, "missing_db")
	require.NoError(t, err)
	_, err = f.ListCollections(ctx, listReq)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCollectionRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"c1", true},
		{"x", true},
		{"", false},
		{"abc", true},
		{"my-collection_1.v2", true},
		{"-abc", false},
		{"abc-", false},
		{"a..b", false},
		{"192.168.1.1", false},
		{"has space", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCreateCollectionRequest(DefaultTenant, DefaultDatabase, tt.name, nil, nil, false)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}

	_, err := NewCreateCollectionRequest(DefaultTenant, DefaultDatabase, "good", nil, &CollectionConfiguration{KnnIndex: "ivf"}, false)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewCreateCollectionRequest(DefaultTenant, DefaultDatabase, "good", nil, &CollectionConfiguration{HNSW: &HNSWConfiguration{Space: "manhattan"}}, false)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRecordRequestValidation(t *testing.T) {
	id := uuid.New()

	_, err := NewAddRequest(DefaultTenant, DefaultDatabase, id, nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewAddRequest(DefaultTenant, DefaultDatabase, id, []string{"a", "a"}, [][]float32{{1}, {2}}, nil, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewAddRequest(DefaultTenant, DefaultDatabase, id, []string{"a"}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewAddRequest(DefaultTenant, DefaultDatabase, id, []string{"a", "b"}, [][]float32{{1}, {1, 2}}, nil, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewAddRequest(DefaultTenant, DefaultDatabase, id, []string{"a"}, [][]float32{{1}}, []*string{nil, nil}, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewUpdateRequest(DefaultTenant, DefaultDatabase, id, []string{"a"}, [][]float32{nil}, nil, nil)
	assert.NoError(t, err)

	_, err = NewQueryRequest(DefaultTenant, DefaultDatabase, id, nil, nil, [][]float32{{1}}, 0, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewGetRequest(DefaultTenant, DefaultDatabase, id, nil, nil, nil, 0, IncludeList{IncludeDistances})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewQueryRequest(DefaultTenant, DefaultDatabase, id, nil, nil, [][]float32{{1}}, 1, IncludeList{IncludeDistances, IncludeDistances})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddCountGet(t *testing.T) {
	f := newTestFrontend(t)
	c := createCollection(t, f, "c1")

	add(t, f, c,
		[]string{"id1", "id2", "id3"},
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
		[]*string{strPtr("first"), nil, strPtr("third")},
		[]metadata.Document{{"k": metadata.Int(1)}, nil, {"k": metadata.Int(3)}},
	)
	assert.Equal(t, uint32(3), count(t, f, c))

	// Existing ids are ignored.
	add(t, f, c, []string{"id1"}, [][]float32{{5, 5}}, nil, nil)
	assert.Equal(t, uint32(3), count(t, f, c))

	resp := getAll(t, f, c, IncludeEmbeddings, IncludeMetadatas, IncludeDocuments)
	assert.Equal(t, []string{"id1", "id2", "id3"}, resp.IDs)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}, {1, 1}}, resp.Embeddings)
	assert.Equal(t, "first", *resp.Documents[0])
	assert.Nil(t, resp.Documents[1])
	assert.Nil(t, resp.Metadatas[1])
	assert.Equal(t, metadata.Int(3), resp.Metadatas[2]["k"])

	resp = getAll(t, f, c)
	assert.Len(t, resp.IDs, 3)
	assert.Nil(t, resp.Embeddings)
	assert.Nil(t, resp.Metadatas)
	assert.Nil(t, resp.Documents)

	ctx := context.Background()
	limit := uint32(1)
	req, err := NewGetRequest(c.Tenant, c.Database, c.ID, nil, nil, &limit, 1, nil)
	require.NoError(t, err)
	resp, err = f.Get(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"id2"}, resp.IDs)

	req, err = NewGetRequest(c.Tenant, c.Database, c.ID, []string{"id3", "missing"}, nil, nil, 0, nil)
	require.NoError(t, err)
	resp, err = f.Get(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"id3"}, resp.IDs)

	req, err = NewGetRequest(c.Tenant, c.Database, c.ID, nil, mustWhere(t, `{"k": {"$gte": 2}}`), nil, 0, nil)
	require.NoError(t, err)
	resp, err = f.Get(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"id3"}, resp.IDs)

	got, err := f.GetCollection(ctx, GetCollectionRequest{Tenant: c.Tenant, Database: c.Database, Name: c.Name})
	require.NoError(t, err)
	require.NotNil(t, got.Dimension)
	assert.Equal(t, 2, *got.Dimension)
}

func TestDimensionIsFixedByFirstWrite(t *testing.T) {
	f := newTestFrontend(t)
	c := createCollection(t, f, "c1")
	add(t, f, c, []string{"a"}, [][]float32{{1, 2, 3}}, nil, nil)

	req, err := NewAddRequest(c.Tenant, c.Database, c.ID, []string{"b"}, [][]float32{{1, 2}}, nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Add(context.Background(), req), ErrValidation)

	q, err := NewQueryRequest(c.Tenant, c.Database, c.ID, nil, nil, [][]float32{{1, 2}}, 1, nil)
	require.NoError(t, err)
	_, err = f.Query(context.Background(), q)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateAndUpsert(t *testing.T) {
	f := newTestFrontend(t)
	ctx := context.Background()
	c := createCollection(t, f, "c1")

	add(t, f, c, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}},
		[]*string{strPtr("doc a"), strPtr("doc b")},
		[]metadata.Document{{"x": metadata.Int(1), "y": metadata.String("keep")}, nil})

	upd, err := NewUpdateRequest(c.Tenant, c.Database, c.ID,
		[]string{"a", "missing"},
		[][]float32{nil, {3, 3}},
		[]*string{nil, strPtr("ignored")},
		[]metadata.Document{{"x": metadata.Null(), "z": metadata.Bool(true)}, nil})
	require.NoError(t, err)
	require.NoError(t, f.Update(ctx, upd))

	resp := getAll(t, f, c, IncludeEmbeddings, IncludeMetadatas, IncludeDocuments)
	assert.Equal(t, []string{"a", "b"}, resp.IDs, "update keeps the insertion order and ignores unknown ids")
	assert.Equal(t, []float32{1, 0}, resp.Embeddings[0])
	assert.Equal(t, "doc a", *resp.Documents[0])
	assert.Equal(t, metadata.Document{"y": metadata.String("keep"), "z": metadata.Bool(true)}, resp.Metadatas[0])

	ups, err := NewUpsertRequest(c.Tenant, c.Database, c.ID,
		[]string{"b", "c"},
		[][]float32{{9, 9}, {2, 2}},
		[]*string{nil, strPtr("doc c")}, nil)
	require.NoError(t, err)
	require.NoError(t, f.Upsert(ctx, ups))

	resp = getAll(t, f, c, IncludeEmbeddings, IncludeDocuments)
	assert.Equal(t, []string{"a", "b", "c"}, resp.IDs)
	assert.Equal(t, []float32{9, 9}, resp.Embeddings[1])
	assert.Equal(t, "doc b", *resp.Documents[1])
	assert.Equal(t, "doc c", *resp.Documents[2])

	ups, err = NewUpsertRequest(c.Tenant, c.Database, c.ID, []string{"new"}, nil, []*string{strPtr("no vector")}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Upsert(ctx, ups), ErrValidation)
	assert.Equal(t, uint32(3), count(t, f, c))
}

func TestQuery(t *testing.T) {
	f := newTestFrontend(t)
	ctx := context.Background()
	c := createCollection(t, f, "c1")

	add(t, f, c,
		[]string{"near", "mid", "far"},
		[][]float32{{1, 0}, {2, 0}, {10, 0}},
		nil,
		[]metadata.Document{{"group": metadata.String("a")}, {"group": metadata.String("b")}, {"group": metadata.String("a")}})

	include := IncludeList{IncludeMetadatas, IncludeDistances}
	req, err := NewQueryRequest(c.Tenant, c.Database, c.ID, nil, nil, [][]float32{{0, 0}, {10, 0}}, 2, include)
	require.NoError(t, err)
	resp, err := f.Query(ctx, req)
	require.NoError(t, err)

	require.Len(t, resp.IDs, 2)
	assert.Equal(t, []string{"near", "mid"}, resp.IDs[0])
	assert.Equal(t, []string{"far", "mid"}, resp.IDs[1])
	require.Len(t, resp.Distances[0], 2)
	assert.InDelta(t, 1.0, *resp.Distances[0][0], 1e-6)
	assert.InDelta(t, 4.0, *resp.Distances[0][1], 1e-6)
	assert.Nil(t, resp.Embeddings)
	assert.Nil(t, resp.Documents)
	assert.Equal(t, metadata.String("a"), resp.Metadatas[0][0]["group"])

	req, err = NewQueryRequest(c.Tenant, c.Database, c.ID, nil, mustWhere(t, `{"group": "a"}`), [][]float32{{0, 0}}, 10, nil)
	require.NoError(t, err)
	resp, err = f.Query(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"near", "far"}, resp.IDs[0])

	empty := createCollection(t, f, "empty")
	req, err = NewQueryRequest(empty.Tenant, empty.Database, empty.ID, nil, nil, [][]float32{{0, 0}}, 3, include)
	require.NoError(t, err)
	resp, err = f.Query(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{}}, resp.IDs)
}

func TestDelete(t *testing.T) {
	f := newTestFrontend(t)
	ctx := context.Background()
	c := createCollection(t, f, "c1")

	add(t, f, c, []string{"a", "b", "c", "d"}, [][]float32{{1}, {2}, {3}, {4}}, nil,
		[]metadata.Document{{"n": metadata.Int(1)}, {"n": metadata.Int(2)}, {"n": metadata.Int(3)}, nil})

	req, err := NewDeleteRequest(c.Tenant, c.Database, c.ID, []string{"a", "zzz"}, nil)
	require.NoError(t, err)
	n, err := f.Delete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	req, err = NewDeleteRequest(c.Tenant, c.Database, c.ID, nil, mustWhere(t, `{"n": {"$ne": 2}}`))
	require.NoError(t, err)
	n, err = f.Delete(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "complement semantics include records without the key")

	assert.Equal(t, []string{"b"}, getAll(t, f, c).IDs)

	req, err = NewDeleteRequest(c.Tenant, c.Database, c.ID, nil, nil)
	require.NoError(t, err)
	n, err = f.Delete(ctx, req)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordOperationsCheckScope(t *testing.T) {
	f := newTestFrontend(t)
	c := createCollection(t, f, "c1")

	req, err := NewCountRequest(DefaultTenant, "other_db", c.ID)
	require.NoError(t, err)
	_, err = f.Count(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotFound)

	req, err = NewCountRequest(DefaultTenant, DefaultDatabase, uuid.New())
	require.NoError(t, err)
	_, err = f.Count(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReset(t *testing.T) {
	ctx := context.Background()

	f := newTestFrontend(t)
	assert.ErrorIs(t, f.Reset(ctx), ErrValidation)

	f = newTestFrontend(t, func(c *Config) { c.AllowReset = true })
	c := createCollection(t, f, "c1")
	add(t, f, c, []string{"a"}, [][]float32{{1}}, nil, nil)
	require.NoError(t, f.Reset(ctx))

	_, err := f.GetCollection(ctx, GetCollectionRequest{Tenant: DefaultTenant, Database: DefaultDatabase, Name: "c1"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.GetDatabase(ctx, GetDatabaseRequest{Tenant: DefaultTenant, Name: DefaultDatabase})
	assert.NoError(t, err)
}

func TestHeartbeat(t *testing.T) {
	f := newTestFrontend(t)
	ns, err := f.Heartbeat(context.Background())
	require.NoError(t, err)
	assert.Positive(t, ns)
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.PersistPath = dir
	f, err := New(ctx, cfg)
	require.NoError(t, err)

	_, err = New(ctx, cfg)
	assert.ErrorIs(t, err, lock.ErrLocked)

	c := createCollection(t, f, "c1")
	add(t, f, c, []string{"a", "b"}, [][]float32{{0, 0}, {5, 5}}, []*string{strPtr("hello"), nil}, nil)
	assert.Equal(t, uint32(2), count(t, f, c))
	require.NoError(t, f.Close())

	f, err = New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	assert.Equal(t, uint32(2), count(t, f, c))
	req, err := NewQueryRequest(c.Tenant, c.Database, c.ID, nil, nil, [][]float32{{4, 4}}, 1, IncludeList{IncludeDocuments})
	require.NoError(t, err)
	resp, err := f.Query(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, resp.IDs[0])
}

func TestCacheEvictionKeepsData(t *testing.T) {
	dir := t.TempDir()
	f := newTestFrontend(t, func(c *Config) {
		c.PersistPath = dir
		c.CacheCapacity = 1
	})

	c1 := createCollection(t, f, "c1")
	c2 := createCollection(t, f, "c2")
	for i := 0; i < 3; i++ {
		add(t, f, c1, []string{"x" + string(rune('a'+i))}, [][]float32{{float32(i)}}, nil, nil)
		add(t, f, c2, []string{"y" + string(rune('a'+i))}, [][]float32{{float32(i)}}, nil, nil)
		assert.Equal(t, uint32(i+1), count(t, f, c1))
		assert.Equal(t, uint32(i+1), count(t, f, c2))
	}
	assert.LessOrEqual(t, f.Stats().CachedSegments, 1)
}
