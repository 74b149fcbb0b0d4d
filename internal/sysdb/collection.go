package sysdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Collection is a catalog entry of a collection.
type Collection struct {
	ID         string
	Name       string
	Tenant     string
	Database   string
	DatabaseID string
	// Dimension is 0 until the first record fixes it.
	Dimension int
	// Configuration is the JSON encoded index configuration.
	Configuration string
	// Metadata is the JSON encoded collection metadata, empty when absent.
	Metadata string
	// Version increases with every committed record change.
	Version int64
}

// CreateCollectionParams describes a new collection.
type CreateCollectionParams struct {
	ID            string
	Name          string
	Tenant        string
	Database      string
	Configuration string
	Metadata      string
	GetOrCreate   bool
}

const collectionColumns = `c.id, c.name, d.tenant_id, d.name, d.id, c.dimension, c.configuration_json, COALESCE(c.metadata_json, ''), c.version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(r rowScanner) (Collection, error) {
	var c Collection
	err := r.Scan(&c.ID, &c.Name, &c.Tenant, &c.Database, &c.DatabaseID, &c.Dimension, &c.Configuration, &c.Metadata, &c.Version)
	return c, err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getCollection(ctx context.Context, q queryer, tenant, database, name string) (Collection, error) {
	c, err := scanCollection(q.QueryRowContext(ctx, `SELECT `+collectionColumns+`
		FROM collections c JOIN databases d ON d.id = c.database_id
		WHERE d.tenant_id = ? AND d.name = ? AND c.name = ?`, tenant, database, name))
	if errors.Is(err, sql.ErrNoRows) {
		return Collection{}, fmt.Errorf("collection %q %w", name, ErrNotFound)
	}
	return c, err
}

func getCollectionByID(ctx context.Context, q queryer, id string) (Collection, error) {
	c, err := scanCollection(q.QueryRowContext(ctx, `SELECT `+collectionColumns+`
		FROM collections c JOIN databases d ON d.id = c.database_id
		WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Collection{}, fmt.Errorf("collection %s %w", id, ErrNotFound)
	}
	return c, err
}

// CreateCollection creates a collection. With GetOrCreate an existing
// collection of the same name is returned unchanged and created is false.
func (s *SysDB) CreateCollection(ctx context.Context, p CreateCollectionParams) (c Collection, created bool, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getCollection(ctx, tx, p.Tenant, p.Database, p.Name)
		switch {
		case err == nil:
			if !p.GetOrCreate {
				return fmt.Errorf("collection %q %w", p.Name, ErrConflict)
			}
			c = existing
			return nil
		case !errors.Is(err, ErrNotFound):
			return err
		}

		var dbID string
		err = tx.QueryRowContext(ctx, `SELECT id FROM databases WHERE tenant_id = ? AND name = ?`, p.Tenant, p.Database).Scan(&dbID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("database %q in tenant %q %w", p.Database, p.Tenant, ErrNotFound)
		}
		if err != nil {
			return err
		}

		var meta sql.NullString
		if p.Metadata != "" {
			meta = sql.NullString{String: p.Metadata, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO collections (id, name, database_id, configuration_json, metadata_json) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.Name, dbID, p.Configuration, meta)
		if isUniqueViolation(err) {
			return fmt.Errorf("collection %q %w", p.Name, ErrConflict)
		}
		if err != nil {
			return err
		}

		c = Collection{
			ID:            p.ID,
			Name:          p.Name,
			Tenant:        p.Tenant,
			Database:      p.Database,
			DatabaseID:    dbID,
			Configuration: p.Configuration,
			Metadata:      p.Metadata,
		}
		created = true
		return nil
	})
	return c, created, err
}

// GetCollection looks a collection up by name.
func (s *SysDB) GetCollection(ctx context.Context, tenant, database, name string) (Collection, error) {
	return getCollection(ctx, s.db, tenant, database, name)
}

// GetCollectionByID looks a collection up by id.
func (s *SysDB) GetCollectionByID(ctx context.Context, id string) (Collection, error) {
	return getCollectionByID(ctx, s.db, id)
}

// ListCollections returns the collections of a database ordered by creation.
func (s *SysDB) ListCollections(ctx context.Context, tenant, database string) ([]Collection, error) {
	if _, err := s.GetDatabase(ctx, tenant, database); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+collectionColumns+`
		FROM collections c JOIN databases d ON d.id = c.database_id
		WHERE d.tenant_id = ? AND d.name = ?
		ORDER BY c.created_at, c.rowid`, tenant, database)
	if err != nil {
		return nil, fmt.Errorf("sysdb: list collections: %w", err)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCollection deletes a collection and its records. It returns the id of
// the deleted collection.
func (s *SysDB) DeleteCollection(ctx context.Context, tenant, database, name string) (string, error) {
	var id string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := getCollection(ctx, tx, tenant, database, name)
		if err != nil {
			return err
		}
		id = c.ID
		_, err = tx.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, c.ID)
		return err
	})
	return id, err
}
