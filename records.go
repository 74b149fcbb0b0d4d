package chromaffi

import (
	"context"

	"github.com/hupe1980/chromaffi/internal/frontend"
)

// Add inserts records. Ids and one embedding per id are required. Ids that
// exist already are left untouched.
func (c *Client) Add(ctx context.Context, coll *Collection, r Records) error {
	return c.call(ctx, SourceAdd, MsgAdd, func(ctx context.Context) error {
		if coll == nil {
			return NewError(InvalidArgument, SourceAdd, MsgCollectionNull)
		}
		d, e := decodeRecords(SourceAdd, r, true)
		if e != nil {
			return e
		}
		id, e := collectionUUID(SourceAdd, coll)
		if e != nil {
			return e
		}
		req, err := frontend.NewAddRequest(coll.Tenant(), coll.Database(), id, d.ids, d.embeddings, d.documents, d.metadatas)
		if err != nil {
			return requestError(SourceAdd, err)
		}
		return c.fe.Add(ctx, req)
	})
}

// Update changes existing records. A nil embedding or document row keeps the
// stored value, metadata rows are merged. Unknown ids are ignored.
func (c *Client) Update(ctx context.Context, coll *Collection, r Records) error {
	return c.call(ctx, SourceUpdate, MsgUpdate, func(ctx context.Context) error {
		if coll == nil {
			return NewError(InvalidArgument, SourceUpdate, MsgCollectionNull)
		}
		d, e := decodeRecords(SourceUpdate, r, false)
		if e != nil {
			return e
		}
		id, e := collectionUUID(SourceUpdate, coll)
		if e != nil {
			return e
		}
		req, err := frontend.NewUpdateRequest(coll.Tenant(), coll.Database(), id, d.ids, d.embeddings, d.documents, d.metadatas)
		if err != nil {
			return requestError(SourceUpdate, err)
		}
		return c.fe.Update(ctx, req)
	})
}

// Upsert updates existing records and inserts new ones. New ids need an
// embedding.
func (c *Client) Upsert(ctx context.Context, coll *Collection, r Records) error {
	return c.call(ctx, SourceUpsert, MsgUpsert, func(ctx context.Context) error {
		if coll == nil {
			return NewError(InvalidArgument, SourceUpsert, MsgCollectionNull)
		}
		d, e := decodeRecords(SourceUpsert, r, false)
		if e != nil {
			return e
		}
		id, e := collectionUUID(SourceUpsert, coll)
		if e != nil {
			return e
		}
		req, err := frontend.NewUpsertRequest(coll.Tenant(), coll.Database(), id, d.ids, d.embeddings, d.documents, d.metadatas)
		if err != nil {
			return requestError(SourceUpsert, err)
		}
		return c.fe.Upsert(ctx, req)
	})
}

// Delete removes the records selected by ids, filters or both and returns
// how many were removed. Passing neither is InvalidArgument.
func (c *Client) Delete(ctx context.Context, coll *Collection, ids []string, whereJSON, whereDocumentJSON *string) (int, error) {
	var n int
	err := c.call(ctx, SourceDelete, MsgDelete, func(ctx context.Context) error {
		if coll == nil {
			return NewError(InvalidArgument, SourceDelete, MsgCollectionNull)
		}
		if ids == nil && whereJSON == nil && whereDocumentJSON == nil {
			return NewError(InvalidArgument, SourceDelete, MsgIDsOrFilter)
		}
		expr, e := decodeFilters(SourceDelete, whereJSON, whereDocumentJSON)
		if e != nil {
			return e
		}
		id, e := collectionUUID(SourceDelete, coll)
		if e != nil {
			return e
		}
		req, err := frontend.NewDeleteRequest(coll.Tenant(), coll.Database(), id, ids, expr)
		if err != nil {
			return requestError(SourceDelete, err)
		}
		n, err = c.fe.Delete(ctx, req)
		return err
	})
	return n, err
}

// Count returns the number of records in a collection.
func (c *Client) Count(ctx context.Context, coll *Collection) (uint32, error) {
	var n uint32
	err := c.call(ctx, SourceCount, MsgCount, func(ctx context.Context) error {
		if coll == nil {
			return NewError(InvalidArgument, SourceCount, MsgCollectionNull)
		}
		id, e := collectionUUID(SourceCount, coll)
		if e != nil {
			return e
		}
		req, err := frontend.NewCountRequest(coll.Tenant(), coll.Database(), id)
		if err != nil {
			return requestError(SourceCount, err)
		}
		n, err = c.fe.Count(ctx, req)
		return err
	})
	return n, err
}

// GetParams are the arguments of Get. At least one of IDs, Where and
// WhereDocument must be set.
type GetParams struct {
	IDs           []string
	Where         *string
	WhereDocument *string
	// Limit 0 is unlimited.
	Limit   uint32
	Offset  uint32
	Include Include
}

// Get returns records in insertion order.
func (c *Client) Get(ctx context.Context, coll *Collection, p GetParams) (*Rows, error) {
	var rows *Rows
	err := c.call(ctx, SourceGet, MsgGet, func(ctx context.Context) error {
		if coll == nil {
			return NewError(InvalidArgument, SourceGet, MsgCollectionNull)
		}
		if p.IDs == nil && p.Where == nil && p.WhereDocument == nil {
			return NewError(InvalidArgument, SourceGet, MsgIDsOrFilter)
		}
		expr, e := decodeFilters(SourceGet, p.Where, p.WhereDocument)
		if e != nil {
			return e
		}
		include, e := includeList(SourceGet, p.Include, false)
		if e != nil {
			return e
		}
		id, e := collectionUUID(SourceGet, coll)
		if e != nil {
			return e
		}

		var limit *uint32
		if p.Limit > 0 {
			limit = &p.Limit
		}
		req, err := frontend.NewGetRequest(coll.Tenant(), coll.Database(), id, p.IDs, expr, limit, p.Offset, include)
		if err != nil {
			return requestError(SourceGet, err)
		}
		resp, err := c.fe.Get(ctx, req)
		if err != nil {
			return err
		}
		if rows, err = FlattenGet(resp); err != nil {
			return Wrap(InternalError, SourceGet, MsgGet, err)
		}
		return nil
	})
	return rows, err
}

// QueryParams are the arguments of Query.
type QueryParams struct {
	Embedding []float32
	// Dimension is the declared length of Embedding.
	Dimension     int
	NResults      uint32
	Where         *string
	WhereDocument *string
	Include       Include
}

// Query returns the NResults records nearest to the embedding, closest
// first.
func (c *Client) Query(ctx context.Context, coll *Collection, p QueryParams) (*Rows, error) {
	var rows *Rows
	err := c.call(ctx, SourceQuery, MsgQuery, func(ctx context.Context) error {
		if coll == nil {
			return NewError(InvalidArgument, SourceQuery, MsgCollectionNull)
		}
		if p.Dimension <= 0 || len(p.Embedding) != p.Dimension {
			return Errorf(InvalidArgument, SourceQuery, MsgQueryEmbedding, "Expected dimension %d, got %d", p.Dimension, len(p.Embedding))
		}
		expr, e := decodeFilters(SourceQuery, p.Where, p.WhereDocument)
		if e != nil {
			return e
		}
		include, e := includeList(SourceQuery, p.Include, true)
		if e != nil {
			return e
		}
		id, e := collectionUUID(SourceQuery, coll)
		if e != nil {
			return e
		}

		req, err := frontend.NewQueryRequest(coll.Tenant(), coll.Database(), id, nil, expr, [][]float32{p.Embedding}, p.NResults, include)
		if err != nil {
			return requestError(SourceQuery, err)
		}
		resp, err := c.fe.Query(ctx, req)
		if err != nil {
			return err
		}
		if rows, err = FlattenQuery(resp); err != nil {
			return Wrap(InternalError, SourceQuery, MsgQuery, err)
		}
		return nil
	})
	return rows, err
}
