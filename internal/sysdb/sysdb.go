// Package sysdb is the system catalog of the engine: tenants, databases,
// collections and their records, stored in SQLite.
//
// With a persist path the catalog lives in <persist>/chroma.sqlite3 in WAL
// mode. Without one it is a private shared-cache in-memory database that lives
// as long as the SysDB.
package sysdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// FileName is the catalog file below the persist path.
const FileName = "chroma.sqlite3"

var (
	// ErrNotFound is returned when a tenant, database, collection or record
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when creating something that already exists.
	ErrConflict = errors.New("already exists")
)

// Config configures the catalog.
type Config struct {
	// PersistPath is the directory of the catalog file. Empty means in memory.
	PersistPath string

	HashType      HashType
	MigrationMode MigrationMode

	DefaultTenant   string
	DefaultDatabase string
}

// SysDB is the catalog. It is safe for concurrent use.
type SysDB struct {
	db     *sql.DB
	dsn    string
	logger *slog.Logger
}

// DSN returns the sqlite3 data source name for cfg.
func DSN(cfg Config) string {
	if cfg.PersistPath == "" {
		return fmt.Sprintf("file:chroma-%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", filepath.Join(cfg.PersistPath, FileName))
}

// Open opens the catalog, runs migrations according to cfg and seeds the
// default tenant and database.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*SysDB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.HashType != HashSHA256 && cfg.HashType != HashMD5 {
		return nil, fmt.Errorf("sysdb: invalid hash type %d", cfg.HashType)
	}
	if cfg.MigrationMode != MigrationApply && cfg.MigrationMode != MigrationValidate {
		return nil, fmt.Errorf("sysdb: invalid migration mode %d", cfg.MigrationMode)
	}

	dsn := DSN(cfg)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sysdb: open: %w", err)
	}

	// A single long-lived connection keeps in-memory catalogs alive and
	// serialises writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sysdb: ping: %w", err)
	}

	s := &SysDB{db: db, dsn: dsn, logger: logger.With("component", "sysdb")}

	if err := s.migrate(ctx, cfg.MigrationMode, cfg.HashType); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.seed(ctx, cfg.DefaultTenant, cfg.DefaultDatabase); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the underlying database.
func (s *SysDB) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *SysDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SysDB) seed(ctx context.Context, tenant, database string) error {
	if tenant == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO tenants (id) VALUES (?)`, tenant); err != nil {
		return fmt.Errorf("sysdb: seed tenant: %w", err)
	}
	if database == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO databases (id, name, tenant_id) VALUES (?, ?, ?)`, uuid.NewString(), database, tenant)
	if err != nil {
		return fmt.Errorf("sysdb: seed database: %w", err)
	}
	return nil
}

// Reset deletes every tenant, database, collection and record, then seeds
// the defaults again.
func (s *SysDB) Reset(ctx context.Context, tenant, database string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM embeddings`,
			`DELETE FROM collections`,
			`DELETE FROM databases`,
			`DELETE FROM tenants`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sysdb: reset: %w", err)
	}
	return s.seed(ctx, tenant, database)
}

func (s *SysDB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Tenant reports whether tenant exists.
func (s *SysDB) Tenant(ctx context.Context, tenant string) error {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM tenants WHERE id = ?`, tenant).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("tenant %q %w", tenant, ErrNotFound)
	}
	return err
}

// CreateTenant creates a tenant.
func (s *SysDB) CreateTenant(ctx context.Context, tenant string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO tenants (id) VALUES (?)`, tenant)
	if isUniqueViolation(err) {
		return fmt.Errorf("tenant %q %w", tenant, ErrConflict)
	}
	return err
}
