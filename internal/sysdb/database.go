package sysdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Database is a named namespace of collections within a tenant.
type Database struct {
	ID     string
	Name   string
	Tenant string
}

// CreateDatabase creates a database in an existing tenant.
func (s *SysDB) CreateDatabase(ctx context.Context, tenant, name string) (Database, error) {
	if err := s.Tenant(ctx, tenant); err != nil {
		return Database{}, err
	}

	d := Database{ID: uuid.NewString(), Name: name, Tenant: tenant}
	_, err := s.db.ExecContext(ctx, `INSERT INTO databases (id, name, tenant_id) VALUES (?, ?, ?)`, d.ID, d.Name, d.Tenant)
	if isUniqueViolation(err) {
		return Database{}, fmt.Errorf("database %q in tenant %q %w", name, tenant, ErrConflict)
	}
	if err != nil {
		return Database{}, fmt.Errorf("sysdb: create database: %w", err)
	}
	return d, nil
}

// GetDatabase looks a database up by name.
func (s *SysDB) GetDatabase(ctx context.Context, tenant, name string) (Database, error) {
	d := Database{Name: name, Tenant: tenant}
	err := s.db.QueryRowContext(ctx, `SELECT id FROM databases WHERE tenant_id = ? AND name = ?`, tenant, name).Scan(&d.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return Database{}, fmt.Errorf("database %q in tenant %q %w", name, tenant, ErrNotFound)
	}
	if err != nil {
		return Database{}, fmt.Errorf("sysdb: get database: %w", err)
	}
	return d, nil
}

// ListDatabases returns the databases of a tenant ordered by name.
func (s *SysDB) ListDatabases(ctx context.Context, tenant string) ([]Database, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM databases WHERE tenant_id = ? ORDER BY name`, tenant)
	if err != nil {
		return nil, fmt.Errorf("sysdb: list databases: %w", err)
	}
	defer rows.Close()

	var out []Database
	for rows.Next() {
		d := Database{Tenant: tenant}
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDatabase deletes a database with its collections and records. It
// returns the ids of the deleted collections.
func (s *SysDB) DeleteDatabase(ctx context.Context, tenant, name string) ([]string, error) {
	var ids []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var dbID string
		err := tx.QueryRowContext(ctx, `SELECT id FROM databases WHERE tenant_id = ? AND name = ?`, tenant, name).Scan(&dbID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("database %q in tenant %q %w", name, tenant, ErrNotFound)
		}
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `SELECT id FROM collections WHERE database_id = ?`, dbID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM databases WHERE id = ?`, dbID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
