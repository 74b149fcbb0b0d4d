package frontend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hupe1980/chromaffi/internal/metadata"
	"github.com/hupe1980/chromaffi/internal/sysdb"
)

// CreateCollection creates a collection. With GetOrCreate an existing
// collection is returned as is and the request configuration is ignored.
func (f *Frontend) CreateCollection(ctx context.Context, req CreateCollectionRequest) (Collection, error) {
	cfg, err := req.Configuration.resolve(f.cfg.DefaultKnnIndex)
	if err != nil {
		return Collection{}, err
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return Collection{}, fmt.Errorf("frontend: encode configuration: %w", err)
	}

	var mdJSON []byte
	if md := req.Metadata.Compact(); md != nil {
		if mdJSON, err = json.Marshal(md); err != nil {
			return Collection{}, fmt.Errorf("frontend: encode metadata: %w", err)
		}
	}

	c, created, err := f.sysdb.CreateCollection(ctx, sysdb.CreateCollectionParams{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Tenant:        req.Tenant,
		Database:      req.Database,
		Configuration: string(cfgJSON),
		Metadata:      string(mdJSON),
		GetOrCreate:   req.GetOrCreate,
	})
	if err != nil {
		return Collection{}, err
	}
	if created {
		f.logger.Info("collection created", "tenant", req.Tenant, "database", req.Database, "name", req.Name, "id", c.ID, "knn_index", cfg.KnnIndex)
	}
	return toCollection(c)
}

// GetCollection looks a collection up by name.
func (f *Frontend) GetCollection(ctx context.Context, req GetCollectionRequest) (Collection, error) {
	c, err := f.sysdb.GetCollection(ctx, req.Tenant, req.Database, req.Name)
	if err != nil {
		return Collection{}, err
	}
	return toCollection(c)
}

// ListCollections returns the collections of a database in creation order.
func (f *Frontend) ListCollections(ctx context.Context, req ListCollectionsRequest) ([]Collection, error) {
	rows, err := f.sysdb.ListCollections(ctx, req.Tenant, req.Database)
	if err != nil {
		return nil, err
	}
	out := make([]Collection, 0, len(rows))
	for _, c := range rows {
		coll, err := toCollection(c)
		if err != nil {
			return nil, err
		}
		out = append(out, coll)
	}
	return out, nil
}

// DeleteCollection deletes a collection with its records.
func (f *Frontend) DeleteCollection(ctx context.Context, req DeleteCollectionRequest) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	id, err := f.sysdb.DeleteCollection(ctx, req.Tenant, req.Database, req.Name)
	if err != nil {
		return err
	}
	f.dropSegment(id)
	f.logger.Info("collection deleted", "tenant", req.Tenant, "database", req.Database, "name", req.Name, "id", id)
	return nil
}

// collection resolves the collection of a record operation. A collection
// outside the given tenant and database does not exist for the caller.
func (f *Frontend) collection(ctx context.Context, tenant, database string, id uuid.UUID) (sysdb.Collection, error) {
	c, err := f.sysdb.GetCollectionByID(ctx, id.String())
	if err != nil {
		return sysdb.Collection{}, err
	}
	if c.Tenant != tenant || c.Database != database {
		return sysdb.Collection{}, fmt.Errorf("collection %s in database %q of tenant %q %w", id, database, tenant, ErrNotFound)
	}
	return c, nil
}

func toCollection(c sysdb.Collection) (Collection, error) {
	id, err := parseUUID(c.ID)
	if err != nil {
		return Collection{}, err
	}
	out := Collection{
		ID:       id,
		Name:     c.Name,
		Tenant:   c.Tenant,
		Database: c.Database,
		Version:  c.Version,
	}
	if c.Metadata != "" {
		if out.Metadata, err = metadata.ParseJSON([]byte(c.Metadata)); err != nil {
			return Collection{}, fmt.Errorf("frontend: collection %s metadata: %w", c.ID, err)
		}
	}
	if c.Configuration != "" {
		if err := json.Unmarshal([]byte(c.Configuration), &out.Configuration); err != nil {
			return Collection{}, fmt.Errorf("frontend: collection %s configuration: %w", c.ID, err)
		}
	}
	if c.Dimension > 0 {
		dim := c.Dimension
		out.Dimension = &dim
	}
	return out, nil
}
