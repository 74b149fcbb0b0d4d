package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/chromaffi/internal/compress"
	"github.com/hupe1980/chromaffi/internal/mmap"
	"github.com/hupe1980/chromaffi/internal/resource"
)

// DirName is the snapshot directory below the persist path.
const DirName = "segments"

// Store reads and writes segment snapshots below a directory.
type Store struct {
	dir         string
	compression compress.Type
	rc          *resource.Controller
}

// NewStore creates the snapshot directory if needed.
func NewStore(persistPath string, ct compress.Type, rc *resource.Controller) (*Store, error) {
	dir := filepath.Join(persistPath, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("segment: create snapshot dir: %w", err)
	}
	return &Store{dir: dir, compression: ct, rc: rc}, nil
}

func (st *Store) path(collectionID string) string {
	return filepath.Join(st.dir, collectionID+".seg")
}

// Save writes the snapshot of s atomically through the IO limiter.
func (st *Store) Save(ctx context.Context, collectionID string, s *Segment) error {
	data, err := s.MarshalSnapshot(st.compression)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(st.dir, collectionID+".*.tmp")
	if err != nil {
		return fmt.Errorf("segment: create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := resource.NewRateLimitedWriter(ctx, tmp, st.rc).Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("segment: write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("segment: sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("segment: close snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), st.path(collectionID))
}

// Load restores a segment from its snapshot. It returns an error wrapping
// os.ErrNotExist or ErrStaleSnapshot when the caller should rebuild.
func (st *Store) Load(collectionID string, cfg Config, version int64, records []*Record) (*Segment, error) {
	m, err := mmap.Open(st.path(collectionID))
	if err != nil {
		return nil, err
	}
	defer m.Close()

	return UnmarshalSnapshot(m.Bytes(), cfg, version, records)
}

// Remove deletes the snapshot of a collection, if any.
func (st *Store) Remove(collectionID string) error {
	err := os.Remove(st.path(collectionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// RemoveAll deletes every snapshot.
func (st *Store) RemoveAll() error {
	if err := os.RemoveAll(st.dir); err != nil {
		return err
	}
	return os.MkdirAll(st.dir, 0o755)
}

// Build creates a segment from records, ordered by their sequence numbers.
func Build(cfg Config, dimension int, version int64, records []*Record) (*Segment, error) {
	s, err := New(cfg, dimension)
	if err != nil {
		return nil, err
	}
	if err := s.Put(records...); err != nil {
		return nil, err
	}
	s.version = version
	return s, nil
}
