package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/hupe1980/chromaffi/internal/metadata"
	"github.com/hupe1980/chromaffi/internal/segment"
	"github.com/hupe1980/chromaffi/internal/sysdb"
)

// changeSet collects the record changes of one transaction so they can be
// applied to a cached segment after the commit.
type changeSet struct {
	puts    []*segment.Record
	deletes []string
}

func (cs *changeSet) empty() bool { return len(cs.puts) == 0 && len(cs.deletes) == 0 }

// Add inserts records. Ids that already exist are left untouched.
func (f *Frontend) Add(ctx context.Context, req AddRequest) error {
	_, err := f.write(ctx, req.Tenant, req.Database, req.CollectionID, func(tx *sysdb.Tx, cs *changeSet) error {
		if err := checkDimension(tx.Collection(), req.dimension()); err != nil {
			return err
		}
		existing, err := tx.Lookup(req.IDs)
		if err != nil {
			return err
		}
		for i, id := range req.IDs {
			if _, ok := existing[id]; ok {
				continue
			}
			if err := insert(tx, cs, id, req.embedding(i), req.document(i), req.metadata(i)); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

// Update changes existing records. A nil embedding or document keeps the
// stored one; metadata is merged key by key and a null value removes a key.
// Unknown ids are ignored.
func (f *Frontend) Update(ctx context.Context, req UpdateRequest) error {
	_, err := f.write(ctx, req.Tenant, req.Database, req.CollectionID, func(tx *sysdb.Tx, cs *changeSet) error {
		if err := checkDimension(tx.Collection(), req.dimension()); err != nil {
			return err
		}
		existing, err := tx.Lookup(req.IDs)
		if err != nil {
			return err
		}
		for i, id := range req.IDs {
			old, ok := existing[id]
			if !ok {
				continue
			}
			if err := update(tx, cs, old, req.embedding(i), req.document(i), req.metadata(i)); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

// Upsert updates the ids that exist and adds the others. New ids need an
// embedding.
func (f *Frontend) Upsert(ctx context.Context, req UpsertRequest) error {
	_, err := f.write(ctx, req.Tenant, req.Database, req.CollectionID, func(tx *sysdb.Tx, cs *changeSet) error {
		if err := checkDimension(tx.Collection(), req.dimension()); err != nil {
			return err
		}
		existing, err := tx.Lookup(req.IDs)
		if err != nil {
			return err
		}
		for i, id := range req.IDs {
			if old, ok := existing[id]; ok {
				if err := update(tx, cs, old, req.embedding(i), req.document(i), req.metadata(i)); err != nil {
					return err
				}
				continue
			}
			if req.embedding(i) == nil {
				return validationf("missing embedding for new id %q", id)
			}
			if err := insert(tx, cs, id, req.embedding(i), req.document(i), req.metadata(i)); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

// Delete removes the records matching the ids and the filter and returns how
// many were removed. Without ids and filter nothing is selected.
func (f *Frontend) Delete(ctx context.Context, req DeleteRequest) (int, error) {
	if req.IDs == nil && req.Where == nil {
		return 0, nil
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	coll, err := f.collection(ctx, req.Tenant, req.Database, req.CollectionID)
	if err != nil {
		return 0, err
	}

	ids := req.IDs
	if req.Where != nil {
		seg, err := f.segment(ctx, coll)
		if err != nil {
			return 0, err
		}
		recs := seg.Get(segment.Filter{IDs: req.IDs, Expr: req.Where}, 0, 0)
		ids = make([]string, 0, len(recs))
		for _, r := range recs {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var n int64
	err = f.commit(ctx, coll.ID, func(tx *sysdb.Tx, cs *changeSet) error {
		var err error
		if n, err = tx.Delete(ids); err != nil {
			return err
		}
		cs.deletes = ids
		return nil
	})
	return int(n), err
}

// Count returns the number of records in a collection.
func (f *Frontend) Count(ctx context.Context, req CountRequest) (uint32, error) {
	coll, err := f.collection(ctx, req.Tenant, req.Database, req.CollectionID)
	if err != nil {
		return 0, err
	}
	seg, err := f.segment(ctx, coll)
	if err != nil {
		return 0, err
	}
	return uint32(seg.Count(segment.Filter{})), nil
}

// Get returns the records matching the ids and the filter in insertion order.
func (f *Frontend) Get(ctx context.Context, req GetRequest) (GetResponse, error) {
	coll, err := f.collection(ctx, req.Tenant, req.Database, req.CollectionID)
	if err != nil {
		return GetResponse{}, err
	}
	seg, err := f.segment(ctx, coll)
	if err != nil {
		return GetResponse{}, err
	}

	resp := GetResponse{IDs: []string{}, Include: req.Include}
	var recs []*segment.Record
	if req.Limit == nil || *req.Limit > 0 {
		limit := 0
		if req.Limit != nil {
			limit = int(*req.Limit)
		}
		recs = seg.Get(segment.Filter{IDs: req.IDs, Expr: req.Where}, limit, int(req.Offset))
	}

	if req.Include.Has(IncludeEmbeddings) {
		resp.Embeddings = make([][]float32, 0, len(recs))
	}
	if req.Include.Has(IncludeDocuments) {
		resp.Documents = make([]*string, 0, len(recs))
	}
	if req.Include.Has(IncludeMetadatas) {
		resp.Metadatas = make([]metadata.Document, 0, len(recs))
	}
	for _, r := range recs {
		resp.IDs = append(resp.IDs, r.ID)
		if resp.Embeddings != nil {
			resp.Embeddings = append(resp.Embeddings, slices.Clone(r.Embedding))
		}
		if resp.Documents != nil {
			resp.Documents = append(resp.Documents, r.Document)
		}
		if resp.Metadatas != nil {
			resp.Metadatas = append(resp.Metadatas, r.Metadata.Clone())
		}
	}
	return resp, nil
}

// Query returns, per query embedding, the NResults nearest records that match
// the ids and the filter, closest first.
func (f *Frontend) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	coll, err := f.collection(ctx, req.Tenant, req.Database, req.CollectionID)
	if err != nil {
		return QueryResponse{}, err
	}
	for i, q := range req.Embeddings {
		if coll.Dimension > 0 && len(q) != coll.Dimension {
			return QueryResponse{}, validationf("query embedding at index %d has dimension %d, expected %d", i, len(q), coll.Dimension)
		}
	}
	seg, err := f.segment(ctx, coll)
	if err != nil {
		return QueryResponse{}, err
	}

	resp := QueryResponse{Include: req.Include}
	filter := segment.Filter{IDs: req.IDs, Expr: req.Where}
	for _, q := range req.Embeddings {
		matches, err := seg.Query(q, int(req.NResults), filter)
		if errors.Is(err, segment.ErrDimensionMismatch) {
			return QueryResponse{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		if err != nil {
			return QueryResponse{}, fmt.Errorf("frontend: query: %w", err)
		}
		resp.appendRow(matches)
	}
	return resp, nil
}

func (r *QueryResponse) appendRow(matches []segment.Match) {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.Record.ID)
	}
	r.IDs = append(r.IDs, ids)

	if r.Include.Has(IncludeEmbeddings) {
		row := make([][]float32, 0, len(matches))
		for _, m := range matches {
			row = append(row, slices.Clone(m.Record.Embedding))
		}
		r.Embeddings = append(r.Embeddings, row)
	}
	if r.Include.Has(IncludeDocuments) {
		row := make([]*string, 0, len(matches))
		for _, m := range matches {
			row = append(row, m.Record.Document)
		}
		r.Documents = append(r.Documents, row)
	}
	if r.Include.Has(IncludeMetadatas) {
		row := make([]metadata.Document, 0, len(matches))
		for _, m := range matches {
			row = append(row, m.Record.Metadata.Clone())
		}
		r.Metadatas = append(r.Metadatas, row)
	}
	if r.Include.Has(IncludeDistances) {
		row := make([]*float32, 0, len(matches))
		for _, m := range matches {
			d := m.Distance
			row = append(row, &d)
		}
		r.Distances = append(r.Distances, row)
	}
}

// write resolves the collection and commits fn under the write lock.
func (f *Frontend) write(ctx context.Context, tenant, database string, id uuid.UUID, fn func(tx *sysdb.Tx, cs *changeSet) error) (sysdb.Collection, error) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	coll, err := f.collection(ctx, tenant, database, id)
	if err != nil {
		return sysdb.Collection{}, err
	}
	return coll, f.commit(ctx, coll.ID, fn)
}

// commit runs fn in a catalog transaction and brings a cached segment up to
// the committed version. Callers hold writeMu.
func (f *Frontend) commit(ctx context.Context, collectionID string, fn func(tx *sysdb.Tx, cs *changeSet) error) error {
	cs := &changeSet{}
	before := int64(-1)
	after, err := f.sysdb.UpdateRecords(ctx, collectionID, func(tx *sysdb.Tx) error {
		before = tx.Collection().Version
		return fn(tx, cs)
	})
	if err != nil {
		return err
	}
	if after.Version == before || cs.empty() {
		return nil
	}
	f.applyCached(collectionID, after.Version, cs)
	return nil
}

func (f *Frontend) applyCached(collectionID string, version int64, cs *changeSet) {
	seg, ok := f.cache.Get(collectionID)
	if !ok {
		return
	}
	if seg.Version() != version-1 {
		f.cache.Remove(collectionID)
		return
	}
	seg.Delete(cs.deletes...)
	if err := seg.Put(cs.puts...); err != nil {
		f.logger.Warn("dropping cached segment", "collection", collectionID, "error", err)
		f.cache.Remove(collectionID)
		return
	}
	seg.SetVersion(version)
	f.cache.Refresh(collectionID)
}

func checkDimension(coll sysdb.Collection, dim int) error {
	if dim > 0 && coll.Dimension > 0 && dim != coll.Dimension {
		return validationf("embedding dimension %d does not match collection dimensionality %d", dim, coll.Dimension)
	}
	return nil
}

func fixDimension(tx *sysdb.Tx, embedding []float32) error {
	if embedding == nil || tx.Collection().Dimension > 0 {
		return nil
	}
	return tx.SetDimension(len(embedding))
}

func encodeMetadata(md metadata.Document) (string, error) {
	if md == nil {
		return "", nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("frontend: encode metadata: %w", err)
	}
	return string(b), nil
}

func insert(tx *sysdb.Tx, cs *changeSet, id string, embedding []float32, document *string, md metadata.Document) error {
	if err := fixDimension(tx, embedding); err != nil {
		return err
	}
	md = md.Compact()
	mdJSON, err := encodeMetadata(md)
	if err != nil {
		return err
	}
	r, err := tx.Insert(sysdb.Record{ID: id, Embedding: slices.Clone(embedding), Document: document, Metadata: mdJSON})
	if err != nil {
		return err
	}
	cs.puts = append(cs.puts, &segment.Record{ID: id, Seq: r.Seq, Embedding: r.Embedding, Document: document, Metadata: md})
	return nil
}

func update(tx *sysdb.Tx, cs *changeSet, old sysdb.Record, embedding []float32, document *string, patch metadata.Document) error {
	if err := fixDimension(tx, embedding); err != nil {
		return err
	}
	rec, err := toSegmentRecord(old)
	if err != nil {
		return err
	}
	if embedding != nil {
		rec.Embedding = slices.Clone(embedding)
	}
	if document != nil {
		rec.Document = document
	}
	if patch != nil {
		rec.Metadata = rec.Metadata.Merge(patch)
	}

	mdJSON, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}
	if err := tx.Update(sysdb.Record{ID: old.ID, Embedding: rec.Embedding, Document: rec.Document, Metadata: mdJSON}); err != nil {
		return err
	}
	cs.puts = append(cs.puts, rec)
	return nil
}
