package frontend

import (
	"github.com/google/uuid"

	"github.com/hupe1980/chromaffi/internal/metadata"
	"github.com/hupe1980/chromaffi/internal/where"
)

// CreateDatabaseRequest creates a database in a tenant.
type CreateDatabaseRequest struct {
	Tenant string `json:"tenant" validate:"required"`
	Name   string `json:"name" validate:"database_name"`
}

// NewCreateDatabaseRequest builds a validated CreateDatabaseRequest.
func NewCreateDatabaseRequest(tenant, name string) (CreateDatabaseRequest, error) {
	req := CreateDatabaseRequest{Tenant: tenant, Name: name}
	return req, check(req)
}

// GetDatabaseRequest looks a database up by name.
type GetDatabaseRequest struct {
	Tenant string `json:"tenant" validate:"required"`
	Name   string `json:"name" validate:"required"`
}

// NewGetDatabaseRequest builds a validated GetDatabaseRequest.
func NewGetDatabaseRequest(tenant, name string) (GetDatabaseRequest, error) {
	req := GetDatabaseRequest{Tenant: tenant, Name: name}
	return req, check(req)
}

// DeleteDatabaseRequest deletes a database with everything in it.
type DeleteDatabaseRequest struct {
	Tenant string `json:"tenant" validate:"required"`
	Name   string `json:"name" validate:"required"`
}

// NewDeleteDatabaseRequest builds a validated DeleteDatabaseRequest.
func NewDeleteDatabaseRequest(tenant, name string) (DeleteDatabaseRequest, error) {
	req := DeleteDatabaseRequest{Tenant: tenant, Name: name}
	return req, check(req)
}

// CreateCollectionRequest creates a collection.
type CreateCollectionRequest struct {
	Tenant        string                   `json:"tenant" validate:"required"`
	Database      string                   `json:"database" validate:"required"`
	Name          string                   `json:"name" validate:"collection_name"`
	Metadata      metadata.Document        `json:"metadata"`
	Configuration *CollectionConfiguration `json:"configuration"`
	GetOrCreate   bool                     `json:"get_or_create"`
}

// NewCreateCollectionRequest builds a validated CreateCollectionRequest.
func NewCreateCollectionRequest(tenant, database, name string, md metadata.Document, cfg *CollectionConfiguration, getOrCreate bool) (CreateCollectionRequest, error) {
	req := CreateCollectionRequest{
		Tenant:        tenant,
		Database:      database,
		Name:          name,
		Metadata:      md,
		Configuration: cfg,
		GetOrCreate:   getOrCreate,
	}
	if err := check(req); err != nil {
		return req, err
	}
	for k, v := range md {
		if v.Kind == metadata.KindNull {
			return req, validationf("metadata key %q must not be null", k)
		}
	}
	return req, nil
}

// GetCollectionRequest looks a collection up by name.
type GetCollectionRequest struct {
	Tenant   string `json:"tenant" validate:"required"`
	Database string `json:"database" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

// NewGetCollectionRequest builds a validated GetCollectionRequest.
func NewGetCollectionRequest(tenant, database, name string) (GetCollectionRequest, error) {
	req := GetCollectionRequest{Tenant: tenant, Database: database, Name: name}
	return req, check(req)
}

// DeleteCollectionRequest deletes a collection by name.
type DeleteCollectionRequest struct {
	Tenant   string `json:"tenant" validate:"required"`
	Database string `json:"database" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

// NewDeleteCollectionRequest builds a validated DeleteCollectionRequest.
func NewDeleteCollectionRequest(tenant, database, name string) (DeleteCollectionRequest, error) {
	req := DeleteCollectionRequest{Tenant: tenant, Database: database, Name: name}
	return req, check(req)
}

// ListCollectionsRequest lists the collections of a database.
type ListCollectionsRequest struct {
	Tenant   string `json:"tenant" validate:"required"`
	Database string `json:"database" validate:"required"`
}

// NewListCollectionsRequest builds a validated ListCollectionsRequest.
func NewListCollectionsRequest(tenant, database string) (ListCollectionsRequest, error) {
	req := ListCollectionsRequest{Tenant: tenant, Database: database}
	return req, check(req)
}

// RecordsRequest carries the rows of an add, update or upsert. Embeddings,
// Documents and Metadatas are either nil or have one entry per id; a nil entry
// means "none" for add and "unchanged" for update and upsert.
type RecordsRequest struct {
	Tenant       string              `json:"tenant" validate:"required"`
	Database     string              `json:"database" validate:"required"`
	CollectionID uuid.UUID           `json:"collection_id" validate:"required"`
	IDs          []string            `json:"ids" validate:"min=1,unique,dive,required"`
	Embeddings   [][]float32         `json:"embeddings"`
	Documents    []*string           `json:"documents"`
	Metadatas    []metadata.Document `json:"metadatas"`
}

func newRecordsRequest(tenant, database string, collectionID uuid.UUID, ids []string, embeddings [][]float32, documents []*string, metadatas []metadata.Document) (RecordsRequest, error) {
	req := RecordsRequest{
		Tenant:       tenant,
		Database:     database,
		CollectionID: collectionID,
		IDs:          ids,
		Embeddings:   embeddings,
		Documents:    documents,
		Metadatas:    metadatas,
	}
	if err := check(req); err != nil {
		return req, err
	}

	n := len(ids)
	if embeddings != nil && len(embeddings) != n {
		return req, validationf("got %d embeddings for %d ids", len(embeddings), n)
	}
	if documents != nil && len(documents) != n {
		return req, validationf("got %d documents for %d ids", len(documents), n)
	}
	if metadatas != nil && len(metadatas) != n {
		return req, validationf("got %d metadatas for %d ids", len(metadatas), n)
	}

	dim := 0
	for i, e := range embeddings {
		if e == nil {
			continue
		}
		if len(e) == 0 {
			return req, validationf("embedding at index %d is empty", i)
		}
		if dim == 0 {
			dim = len(e)
		} else if len(e) != dim {
			return req, validationf("embedding at index %d has dimension %d, expected %d", i, len(e), dim)
		}
	}
	return req, nil
}

// dimension returns the dimension of the provided embeddings, 0 if none.
func (r RecordsRequest) dimension() int {
	for _, e := range r.Embeddings {
		if e != nil {
			return len(e)
		}
	}
	return 0
}

func (r RecordsRequest) embedding(i int) []float32 {
	if r.Embeddings == nil {
		return nil
	}
	return r.Embeddings[i]
}

func (r RecordsRequest) document(i int) *string {
	if r.Documents == nil {
		return nil
	}
	return r.Documents[i]
}

func (r RecordsRequest) metadata(i int) metadata.Document {
	if r.Metadatas == nil {
		return nil
	}
	return r.Metadatas[i]
}

// AddRequest adds new records. Existing ids are left untouched.
type AddRequest struct{ RecordsRequest }

// NewAddRequest builds a validated AddRequest. Every record needs an embedding.
func NewAddRequest(tenant, database string, collectionID uuid.UUID, ids []string, embeddings [][]float32, documents []*string, metadatas []metadata.Document) (AddRequest, error) {
	req, err := newRecordsRequest(tenant, database, collectionID, ids, embeddings, documents, metadatas)
	if err != nil {
		return AddRequest{req}, err
	}
	if embeddings == nil {
		return AddRequest{req}, validationf("embeddings are required for add")
	}
	for i, e := range embeddings {
		if e == nil {
			return AddRequest{req}, validationf("missing embedding at index %d", i)
		}
	}
	return AddRequest{req}, nil
}

// UpdateRequest changes existing records. Unknown ids are ignored.
type UpdateRequest struct{ RecordsRequest }

// NewUpdateRequest builds a validated UpdateRequest.
func NewUpdateRequest(tenant, database string, collectionID uuid.UUID, ids []string, embeddings [][]float32, documents []*string, metadatas []metadata.Document) (UpdateRequest, error) {
	req, err := newRecordsRequest(tenant, database, collectionID, ids, embeddings, documents, metadatas)
	return UpdateRequest{req}, err
}

// UpsertRequest updates existing records and adds the others.
type UpsertRequest struct{ RecordsRequest }

// NewUpsertRequest builds a validated UpsertRequest.
func NewUpsertRequest(tenant, database string, collectionID uuid.UUID, ids []string, embeddings [][]float32, documents []*string, metadatas []metadata.Document) (UpsertRequest, error) {
	req, err := newRecordsRequest(tenant, database, collectionID, ids, embeddings, documents, metadatas)
	return UpsertRequest{req}, err
}

// DeleteRequest deletes records by id, by filter, or both.
type DeleteRequest struct {
	Tenant       string     `json:"tenant" validate:"required"`
	Database     string     `json:"database" validate:"required"`
	CollectionID uuid.UUID  `json:"collection_id" validate:"required"`
	IDs          []string   `json:"ids" validate:"omitempty,dive,required"`
	Where        where.Expr `json:"-"`
}

// NewDeleteRequest builds a validated DeleteRequest. A nil ids slice with a
// nil expression selects nothing.
func NewDeleteRequest(tenant, database string, collectionID uuid.UUID, ids []string, expr where.Expr) (DeleteRequest, error) {
	req := DeleteRequest{Tenant: tenant, Database: database, CollectionID: collectionID, IDs: ids, Where: expr}
	return req, check(req)
}

// CountRequest counts the records of a collection.
type CountRequest struct {
	Tenant       string    `json:"tenant" validate:"required"`
	Database     string    `json:"database" validate:"required"`
	CollectionID uuid.UUID `json:"collection_id" validate:"required"`
}

// NewCountRequest builds a validated CountRequest.
func NewCountRequest(tenant, database string, collectionID uuid.UUID) (CountRequest, error) {
	req := CountRequest{Tenant: tenant, Database: database, CollectionID: collectionID}
	return req, check(req)
}

// GetRequest fetches records by id and filter.
type GetRequest struct {
	Tenant       string      `json:"tenant" validate:"required"`
	Database     string      `json:"database" validate:"required"`
	CollectionID uuid.UUID   `json:"collection_id" validate:"required"`
	IDs          []string    `json:"ids" validate:"omitempty,dive,required"`
	Where        where.Expr  `json:"-"`
	Limit        *uint32     `json:"limit"`
	Offset       uint32      `json:"offset"`
	Include      IncludeList `json:"include"`
}

// NewGetRequest builds a validated GetRequest. A nil limit is unlimited.
func NewGetRequest(tenant, database string, collectionID uuid.UUID, ids []string, expr where.Expr, limit *uint32, offset uint32, include IncludeList) (GetRequest, error) {
	req := GetRequest{
		Tenant:       tenant,
		Database:     database,
		CollectionID: collectionID,
		IDs:          ids,
		Where:        expr,
		Limit:        limit,
		Offset:       offset,
		Include:      include,
	}
	if err := check(req); err != nil {
		return req, err
	}
	return req, include.Validate(false)
}

// QueryRequest runs a nearest neighbour search per query embedding.
type QueryRequest struct {
	Tenant       string      `json:"tenant" validate:"required"`
	Database     string      `json:"database" validate:"required"`
	CollectionID uuid.UUID   `json:"collection_id" validate:"required"`
	IDs          []string    `json:"ids" validate:"omitempty,dive,required"`
	Where        where.Expr  `json:"-"`
	Embeddings   [][]float32 `json:"query_embeddings" validate:"min=1,dive,min=1"`
	NResults     uint32      `json:"n_results" validate:"gt=0"`
	Include      IncludeList `json:"include"`
}

// NewQueryRequest builds a validated QueryRequest.
func NewQueryRequest(tenant, database string, collectionID uuid.UUID, ids []string, expr where.Expr, embeddings [][]float32, nResults uint32, include IncludeList) (QueryRequest, error) {
	req := QueryRequest{
		Tenant:       tenant,
		Database:     database,
		CollectionID: collectionID,
		IDs:          ids,
		Where:        expr,
		Embeddings:   embeddings,
		NResults:     nResults,
		Include:      include,
	}
	if err := check(req); err != nil {
		return req, err
	}
	return req, include.Validate(true)
}
