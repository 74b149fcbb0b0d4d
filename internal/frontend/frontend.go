package frontend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hupe1980/chromaffi/internal/cache"
	"github.com/hupe1980/chromaffi/internal/compress"
	"github.com/hupe1980/chromaffi/internal/index"
	"github.com/hupe1980/chromaffi/internal/lock"
	"github.com/hupe1980/chromaffi/internal/metadata"
	"github.com/hupe1980/chromaffi/internal/resource"
	"github.com/hupe1980/chromaffi/internal/segment"
	"github.com/hupe1980/chromaffi/internal/sysdb"
)

const (
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"
)

// Config configures a Frontend.
type Config struct {
	// AllowReset enables Reset.
	AllowReset bool

	// PersistPath is the data directory. Empty keeps everything in memory.
	PersistPath string

	// CacheCapacity bounds the number of cached collection segments.
	// 0 means unlimited.
	CacheCapacity int

	HashType      sysdb.HashType
	MigrationMode sysdb.MigrationMode

	DefaultTenant   string
	DefaultDatabase string

	// DefaultKnnIndex is used for collections that do not pick an index.
	DefaultKnnIndex index.Kind

	// Compression is applied to segment snapshots.
	Compression compress.Type

	Resource resource.Config

	Logger *slog.Logger
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTenant:   DefaultTenant,
		DefaultDatabase: DefaultDatabase,
		DefaultKnnIndex: index.KindHNSW,
		Compression:     compress.LZ4,
	}
}

// Stats describes the segment cache.
type Stats struct {
	CachedSegments int
	CacheHits      int64
	CacheMisses    int64
	MemoryBytes    int64
}

// Frontend is the embedded engine. It is safe for concurrent use.
type Frontend struct {
	cfg    Config
	logger *slog.Logger

	sysdb *sysdb.SysDB
	lock  *lock.DirLock
	rc    *resource.Controller
	store *segment.Store // nil when not persisted
	cache *cache.LRU[*segment.Segment]

	// writeMu serialises record writes so that cached segments advance one
	// catalog version at a time.
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// New opens the engine.
func New(ctx context.Context, cfg Config) (*Frontend, error) {
	if cfg.DefaultTenant == "" {
		cfg.DefaultTenant = DefaultTenant
	}
	if cfg.DefaultDatabase == "" {
		cfg.DefaultDatabase = DefaultDatabase
	}
	if cfg.DefaultKnnIndex == "" {
		cfg.DefaultKnnIndex = index.KindHNSW
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	f := &Frontend{
		cfg:    cfg,
		logger: logger.With("component", "frontend"),
		rc:     resource.NewController(cfg.Resource),
	}

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0o755); err != nil {
			return nil, fmt.Errorf("frontend: create persist path: %w", err)
		}
		l, err := lock.Acquire(cfg.PersistPath)
		if err != nil {
			return nil, fmt.Errorf("frontend: %w", err)
		}
		f.lock = l

		st, err := segment.NewStore(cfg.PersistPath, cfg.Compression, f.rc)
		if err != nil {
			_ = l.Release()
			return nil, err
		}
		f.store = st
	}

	db, err := sysdb.Open(ctx, sysdb.Config{
		PersistPath:     cfg.PersistPath,
		HashType:        cfg.HashType,
		MigrationMode:   cfg.MigrationMode,
		DefaultTenant:   cfg.DefaultTenant,
		DefaultDatabase: cfg.DefaultDatabase,
	}, logger)
	if err != nil {
		_ = f.lock.Release()
		return nil, err
	}
	f.sysdb = db
	f.cache = cache.New(cfg.CacheCapacity, f.rc, f.evicted)

	f.logger.Info("frontend opened", "persist_path", cfg.PersistPath, "cache_capacity", cfg.CacheCapacity)
	return f, nil
}

// Config returns the effective configuration.
func (f *Frontend) Config() Config { return f.cfg }

// Close snapshots cached segments and releases every resource. It is safe to
// call more than once.
func (f *Frontend) Close() error {
	f.closeOnce.Do(func() {
		f.cache.Close()
		err := f.sysdb.Close()
		if lerr := f.lock.Release(); err == nil {
			err = lerr
		}
		f.closeErr = err
		f.logger.Info("frontend closed")
	})
	return f.closeErr
}

// Heartbeat checks the catalog and returns the current time in nanoseconds
// since the Unix epoch.
func (f *Frontend) Heartbeat(ctx context.Context) (int64, error) {
	if err := f.sysdb.Ping(ctx); err != nil {
		return 0, fmt.Errorf("frontend: heartbeat: %w", err)
	}
	return time.Now().UnixNano(), nil
}

// Reset deletes all data. It fails with ErrValidation unless AllowReset is set.
func (f *Frontend) Reset(ctx context.Context) error {
	if !f.cfg.AllowReset {
		return validationf("resetting is not allowed by this configuration")
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.cache.Clear()
	if f.store != nil {
		if err := f.store.RemoveAll(); err != nil {
			return fmt.Errorf("frontend: reset snapshots: %w", err)
		}
	}
	if err := f.sysdb.Reset(ctx, f.cfg.DefaultTenant, f.cfg.DefaultDatabase); err != nil {
		return err
	}
	f.logger.Warn("engine reset")
	return nil
}

// Stats reports segment cache statistics.
func (f *Frontend) Stats() Stats {
	hits, misses := f.cache.Stats()
	return Stats{
		CachedSegments: f.cache.Len(),
		CacheHits:      hits,
		CacheMisses:    misses,
		MemoryBytes:    f.rc.MemoryUsage(),
	}
}

// SysDB exposes the catalog for maintenance commands.
func (f *Frontend) SysDB() *sysdb.SysDB { return f.sysdb }

func (f *Frontend) evicted(collectionID string, seg *segment.Segment) {
	if f.store == nil {
		return
	}
	if err := f.store.Save(context.Background(), collectionID, seg); err != nil {
		f.logger.Warn("snapshot write failed", "collection", collectionID, "error", err)
		return
	}
	f.logger.Debug("snapshot written", "collection", collectionID, "version", seg.Version())
}

// segment returns the segment of coll at coll.Version or later.
func (f *Frontend) segment(ctx context.Context, coll sysdb.Collection) (*segment.Segment, error) {
	for attempt := 0; ; attempt++ {
		seg, err := f.cache.GetOrLoad(ctx, coll.ID, func(ctx context.Context) (*segment.Segment, error) {
			return f.loadSegment(ctx, coll.ID)
		})
		if err != nil {
			return nil, err
		}
		if seg.Version() >= coll.Version || attempt > 0 {
			return seg, nil
		}
		f.cache.Remove(coll.ID)
	}
}

func (f *Frontend) loadSegment(ctx context.Context, collectionID string) (*segment.Segment, error) {
	coll, rows, err := f.sysdb.Snapshot(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	cfg, err := f.segmentConfig(coll)
	if err != nil {
		return nil, err
	}
	records, err := toSegmentRecords(rows)
	if err != nil {
		return nil, err
	}

	if f.store != nil {
		seg, err := f.store.Load(coll.ID, cfg, coll.Version, records)
		if err == nil {
			f.logger.Debug("segment loaded from snapshot", "collection", coll.ID, "version", coll.Version)
			return seg, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Info("rebuilding segment", "collection", coll.ID, "reason", err)
		}
	}

	seg, err := segment.Build(cfg, coll.Dimension, coll.Version, records)
	if err != nil {
		return nil, fmt.Errorf("frontend: build segment %s: %w", coll.ID, err)
	}
	f.logger.Debug("segment built", "collection", coll.ID, "version", coll.Version, "records", len(records))
	return seg, nil
}

func (f *Frontend) segmentConfig(coll sysdb.Collection) (segment.Config, error) {
	cc, err := ParseCollectionConfiguration([]byte(coll.Configuration))
	if err != nil {
		return segment.Config{}, fmt.Errorf("frontend: collection %s configuration: %w", coll.ID, err)
	}
	resolved, err := cc.resolve(f.cfg.DefaultKnnIndex)
	if err != nil {
		return segment.Config{}, err
	}
	return resolved.segmentConfig()
}

// dropSegment forgets the cached segment and its snapshot.
func (f *Frontend) dropSegment(collectionID string) {
	f.cache.Remove(collectionID)
	if f.store != nil {
		if err := f.store.Remove(collectionID); err != nil {
			f.logger.Warn("snapshot removal failed", "collection", collectionID, "error", err)
		}
	}
}

func toSegmentRecord(r sysdb.Record) (*segment.Record, error) {
	out := &segment.Record{ID: r.ID, Seq: r.Seq, Embedding: r.Embedding, Document: r.Document}
	if r.Metadata != "" {
		md, err := metadata.ParseJSON([]byte(r.Metadata))
		if err != nil {
			return nil, fmt.Errorf("frontend: record %q metadata: %w", r.ID, err)
		}
		out.Metadata = md.Compact()
	}
	return out, nil
}

func toSegmentRecords(rows []sysdb.Record) ([]*segment.Record, error) {
	out := make([]*segment.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := toSegmentRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
