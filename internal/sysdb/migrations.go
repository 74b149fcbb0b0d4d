package sysdb

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// HashType selects the digest recorded for each applied migration.
type HashType int

const (
	HashSHA256 HashType = 0
	HashMD5    HashType = 1
)

func (h HashType) String() string {
	switch h {
	case HashSHA256:
		return "sha256"
	case HashMD5:
		return "md5"
	default:
		return "HashType(" + strconv.Itoa(int(h)) + ")"
	}
}

// MigrationMode decides whether pending migrations are applied or reported.
type MigrationMode int

const (
	MigrationApply    MigrationMode = 0
	MigrationValidate MigrationMode = 1
)

func (m MigrationMode) String() string {
	switch m {
	case MigrationApply:
		return "apply"
	case MigrationValidate:
		return "validate"
	default:
		return "MigrationMode(" + strconv.Itoa(int(m)) + ")"
	}
}

var (
	// ErrMigrationMismatch is returned when an applied migration no longer
	// matches its source.
	ErrMigrationMismatch = errors.New("sysdb: applied migration does not match source")

	// ErrMigrationsPending is returned in validate mode when the schema is
	// behind.
	ErrMigrationsPending = errors.New("sysdb: migrations pending")
)

// Migration is a single schema step.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Hash returns the hex digest of the migration source.
func (m Migration) Hash(h HashType) string {
	switch h {
	case HashMD5:
		sum := md5.Sum([]byte(m.SQL))
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256([]byte(m.SQL))
		return hex.EncodeToString(sum[:])
	}
}

// AppliedMigration is a row of the migrations table.
type AppliedMigration struct {
	Version int
	Name    string
	Hash    string
}

// Migrations returns the embedded migrations in version order.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}

	out := make([]Migration, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		prefix, rest, ok := strings.Cut(strings.TrimSuffix(name, ".sql"), "_")
		if !ok {
			return nil, fmt.Errorf("sysdb: malformed migration file name %q", name)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("sysdb: malformed migration version in %q: %w", name, err)
		}
		data, err := migrationFS.ReadFile(path.Join("migrations", name))
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Version: version, Name: rest, SQL: string(data)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

const migrationsTable = `CREATE TABLE IF NOT EXISTS migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    hash TEXT NOT NULL,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Applied returns the migrations recorded in the database.
func (s *SysDB) Applied(ctx context.Context) ([]AppliedMigration, error) {
	exists, err := s.tableExists(ctx, "migrations")
	if err != nil || !exists {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT version, name, hash FROM migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("sysdb: list migrations: %w", err)
	}
	defer rows.Close()

	var out []AppliedMigration
	for rows.Next() {
		var m AppliedMigration
		if err := rows.Scan(&m.Version, &m.Name, &m.Hash); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SysDB) tableExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sysdb: inspect schema: %w", err)
	}
	return n > 0, nil
}

// migrate verifies applied migrations against the embedded sources and, in
// apply mode, runs the pending ones in version order.
func (s *SysDB) migrate(ctx context.Context, mode MigrationMode, hash HashType) error {
	all, err := Migrations()
	if err != nil {
		return err
	}

	applied, err := s.Applied(ctx)
	if err != nil {
		return err
	}

	if len(applied) > len(all) {
		return fmt.Errorf("%w: database has %d migrations, library knows %d", ErrMigrationMismatch, len(applied), len(all))
	}
	for i, a := range applied {
		m := all[i]
		if a.Version != m.Version || a.Hash != m.Hash(hash) {
			return fmt.Errorf("%w: version %d (%s)", ErrMigrationMismatch, a.Version, a.Name)
		}
	}

	pending := all[len(applied):]
	if len(pending) == 0 {
		return nil
	}
	if mode == MigrationValidate {
		return fmt.Errorf("%w: %d unapplied, first is %d (%s)", ErrMigrationsPending, len(pending), pending[0].Version, pending[0].Name)
	}

	if _, err := s.db.ExecContext(ctx, migrationsTable); err != nil {
		return fmt.Errorf("sysdb: create migrations table: %w", err)
	}

	for _, m := range pending {
		if err := s.applyMigration(ctx, m, hash); err != nil {
			return fmt.Errorf("sysdb: apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		s.logger.Info("applied migration", "version", m.Version, "name", m.Name, "hash_type", hash.String())
	}
	return nil
}

func (s *SysDB) applyMigration(ctx context.Context, m Migration, hash HashType) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO migrations (version, name, hash) VALUES (?, ?, ?)`, m.Version, m.Name, m.Hash(hash)); err != nil {
		return err
	}
	return tx.Commit()
}
