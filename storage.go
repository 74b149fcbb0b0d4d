package chromaffi

import (
	"github.com/hupe1980/chromaffi/internal/config"
)

// Storage selector values of the C ABI.
const (
	HashSHA256 = 0
	HashMD5    = 1

	MigrationApply    = 0
	MigrationValidate = 1
)

// SQLiteConfig is the optional storage block of client construction.
type SQLiteConfig struct {
	// URL is accepted for compatibility. The catalog location is always
	// derived from the persist path.
	URL           *string
	HashType      int
	MigrationMode int
}

// hashTypeName maps the hash selector to its configuration name.
func hashTypeName(source string, v int) (string, *Error) {
	switch v {
	case HashSHA256:
		return "sha256", nil
	case HashMD5:
		return "md5", nil
	default:
		return "", Errorf(InvalidArgument, source, MsgInvalidHashType, "Got %d, expected 0 (SHA256) or 1 (MD5)", v)
	}
}

// migrationModeName maps the migration selector to its configuration name.
func migrationModeName(source string, v int) (string, *Error) {
	switch v {
	case MigrationApply:
		return "apply", nil
	case MigrationValidate:
		return "validate", nil
	default:
		return "", Errorf(InvalidArgument, source, MsgInvalidMigrationMode, "Got %d, expected 0 (Apply) or 1 (Validate)", v)
	}
}

// Settings are the construction arguments of chroma_create_client.
type Settings struct {
	AllowReset bool
	// SQLite nil means SHA256 hashes and applied migrations.
	SQLite *SQLiteConfig
	// CacheCapacity bounds the cached collection segments. 0 is unlimited.
	CacheCapacity int
	// PersistPath empty keeps all data in memory.
	PersistPath string
}

// resolve applies s on top of the ambient configuration from the
// environment.
func (s Settings) resolve(source string) (*config.Config, *Error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, Wrap(ValidationError, source, MsgInvalidConfig, err)
	}

	if s.SQLite != nil {
		hash, e := hashTypeName(source, s.SQLite.HashType)
		if e != nil {
			return nil, e
		}
		mode, e := migrationModeName(source, s.SQLite.MigrationMode)
		if e != nil {
			return nil, e
		}
		cfg.SQLite.HashType = hash
		cfg.SQLite.MigrationMode = mode
	}

	cfg.AllowReset = s.AllowReset
	cfg.Cache.Capacity = s.CacheCapacity
	cfg.PersistPath = s.PersistPath
	return cfg, nil
}
