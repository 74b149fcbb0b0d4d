// Package config holds the client configuration: YAML files and inline YAML
// documents with CHROMA_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/chromaffi/internal/compress"
	"github.com/hupe1980/chromaffi/internal/frontend"
	"github.com/hupe1980/chromaffi/internal/index"
	"github.com/hupe1980/chromaffi/internal/resource"
	"github.com/hupe1980/chromaffi/internal/sysdb"
)

// EnvPrefix prefixes environment overrides, e.g. CHROMA_LOG_LEVEL.
const EnvPrefix = "CHROMA"

// ErrInvalid is returned when a configuration breaks a rule.
var ErrInvalid = errors.New("invalid configuration")

// Config is the root client configuration.
type Config struct {
	AllowReset  bool           `mapstructure:"allow_reset" yaml:"allow_reset"`
	PersistPath string         `mapstructure:"persist_path" yaml:"persist_path"`
	Cache       CacheConfig    `mapstructure:"cache" yaml:"cache"`
	SQLite      SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Log         LogConfig      `mapstructure:"log" yaml:"log"`
	Executor    ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	Resource    ResourceConfig `mapstructure:"resource" yaml:"resource"`
	Snapshot    SnapshotConfig `mapstructure:"snapshot" yaml:"snapshot"`
	Metrics     MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// CacheConfig sizes the segment cache.
type CacheConfig struct {
	// Capacity is the number of cached collections. 0 means unlimited.
	Capacity int `mapstructure:"capacity" yaml:"capacity" validate:"gte=0"`
}

// SQLiteConfig configures the catalog database.
type SQLiteConfig struct {
	HashType      string `mapstructure:"hash_type" yaml:"hash_type" validate:"oneof=sha256 md5"`
	MigrationMode string `mapstructure:"migration_mode" yaml:"migration_mode" validate:"oneof=apply validate"`
}

// LogConfig configures the client logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// ExecutorConfig configures the per-client executor.
type ExecutorConfig struct {
	LockOSThread bool `mapstructure:"lock_os_thread" yaml:"lock_os_thread"`
}

// ResourceConfig bounds engine resources. Zero values mean the defaults.
type ResourceConfig struct {
	MaxParallelLoads   int64 `mapstructure:"max_parallel_loads" yaml:"max_parallel_loads" validate:"gte=0"`
	MemoryLimitBytes   int64 `mapstructure:"memory_limit_bytes" yaml:"memory_limit_bytes" validate:"gte=0"`
	IOLimitBytesPerSec int64 `mapstructure:"io_limit_bytes_per_sec" yaml:"io_limit_bytes_per_sec" validate:"gte=0"`
}

// SnapshotConfig configures segment snapshots.
type SnapshotConfig struct {
	Compression string `mapstructure:"compression" yaml:"compression" validate:"oneof=none lz4 zstd"`
}

// MetricsConfig toggles the Prometheus collector.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultConfig returns the defaults: in memory, unlimited cache, SHA256
// migrations applied on open, warn level text logs and LZ4 snapshots.
func DefaultConfig() *Config {
	return &Config{
		SQLite: SQLiteConfig{
			HashType:      "sha256",
			MigrationMode: "apply",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Resource: ResourceConfig{
			MaxParallelLoads: resource.DefaultMaxParallelLoads,
		},
		Snapshot: SnapshotConfig{
			Compression: "lz4",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("allow_reset", d.AllowReset)
	v.SetDefault("persist_path", d.PersistPath)
	v.SetDefault("cache.capacity", d.Cache.Capacity)
	v.SetDefault("sqlite.hash_type", d.SQLite.HashType)
	v.SetDefault("sqlite.migration_mode", d.SQLite.MigrationMode)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("executor.lock_os_thread", d.Executor.LockOSThread)
	v.SetDefault("resource.max_parallel_loads", d.Resource.MaxParallelLoads)
	v.SetDefault("resource.memory_limit_bytes", d.Resource.MemoryLimitBytes)
	v.SetDefault("resource.io_limit_bytes_per_sec", d.Resource.IOLimitBytesPerSec)
	v.SetDefault("snapshot.compression", d.Snapshot.Compression)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads a YAML file, applies environment overrides and validates the
// result. An empty path yields the defaults with environment overrides.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return decode(v)
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() (*Config, error) {
	return Load("")
}

// Parse decodes an inline YAML document on top of the defaults. Unknown keys
// are rejected. Environment overrides are not applied.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// SysDB returns the catalog settings.
func (c *Config) SysDB() (sysdb.HashType, sysdb.MigrationMode) {
	hash := sysdb.HashSHA256
	if c.SQLite.HashType == "md5" {
		hash = sysdb.HashMD5
	}
	mode := sysdb.MigrationApply
	if c.SQLite.MigrationMode == "validate" {
		mode = sysdb.MigrationValidate
	}
	return hash, mode
}

// Frontend builds the engine configuration.
func (c *Config) Frontend(logger *slog.Logger) (frontend.Config, error) {
	ct, err := compress.ParseType(c.Snapshot.Compression)
	if err != nil {
		return frontend.Config{}, err
	}
	hash, mode := c.SysDB()
	return frontend.Config{
		AllowReset:      c.AllowReset,
		PersistPath:     c.PersistPath,
		CacheCapacity:   c.Cache.Capacity,
		HashType:        hash,
		MigrationMode:   mode,
		DefaultTenant:   frontend.DefaultTenant,
		DefaultDatabase: frontend.DefaultDatabase,
		DefaultKnnIndex: index.KindHNSW,
		Compression:     ct,
		Resource: resource.Config{
			MemoryLimitBytes:   c.Resource.MemoryLimitBytes,
			MaxParallelLoads:   c.Resource.MaxParallelLoads,
			IOLimitBytesPerSec: c.Resource.IOLimitBytesPerSec,
		},
		Logger: logger,
	}, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the configuration rules.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is nil", ErrInvalid)
	}
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatValidationError(e))
	}
	return fmt.Errorf("%w:\n  - %s", ErrInvalid, strings.Join(msgs, "\n  - "))
}

func formatValidationError(e validator.FieldError) string {
	field := formatFieldPath(e.Namespace())
	switch e.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", field, e.Param(), e.Value())
	case "gte":
		return fmt.Sprintf("%s must be at least %s (got: %v)", field, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", field, e.Tag(), e.Value())
	}
}

// formatFieldPath turns "Config.sqlite.hash_type" into "sqlite.hash_type".
func formatFieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
