package segment

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/chromaffi/internal/compress"
	"github.com/hupe1980/chromaffi/internal/distance"
	"github.com/hupe1980/chromaffi/internal/index"
	"github.com/hupe1980/chromaffi/internal/index/hnsw"
)

const (
	snapshotMagic   = "CSEG"
	snapshotVersion = uint16(1)
)

// ErrStaleSnapshot is returned when a snapshot does not describe the records
// it is restored against. Callers rebuild the segment instead.
var ErrStaleSnapshot = errors.New("segment: stale snapshot")

// MarshalSnapshot encodes the offset layout and the vector graph. Record
// payloads are not included; they are restored from the catalog.
func (s *Segment) MarshalSnapshot(ct compress.Type) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteString(snapshotMagic)

	w := func(v any) {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	w(snapshotVersion)
	w(s.version)
	w(uint32(s.dimension))
	writeString(&buf, string(s.cfg.Kind))
	writeString(&buf, string(s.cfg.Space))
	w(uint32(len(s.records)))
	for _, r := range s.records {
		if r == nil {
			writeString(&buf, "")
			continue
		}
		writeString(&buf, r.ID)
	}

	if g, ok := s.vectors.(*hnsw.HNSW); ok {
		w(uint8(1))
		if _, err := g.WriteTo(&buf); err != nil {
			return nil, err
		}
	} else {
		w(uint8(0))
	}

	return compress.Encode(buf.Bytes(), ct)
}

// UnmarshalSnapshot rebuilds a segment from a snapshot and the live records.
// It returns ErrStaleSnapshot unless the snapshot matches version, cfg and
// exactly the given records.
func UnmarshalSnapshot(data []byte, cfg Config, version int64, records []*Record) (*Segment, error) {
	raw, err := compress.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStaleSnapshot, err)
	}
	r := bytes.NewReader(raw)

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrStaleSnapshot)
	}

	var (
		format    uint16
		snapVer   int64
		dimension uint32
		count     uint32
	)
	if err := readAll(r, &format, &snapVer, &dimension); err != nil {
		return nil, err
	}
	if format != snapshotVersion {
		return nil, fmt.Errorf("%w: format %d", ErrStaleSnapshot, format)
	}
	if snapVer != version {
		return nil, fmt.Errorf("%w: version %d, catalog at %d", ErrStaleSnapshot, snapVer, version)
	}

	kind, err := readString(r)
	if err != nil {
		return nil, err
	}
	space, err := readString(r)
	if err != nil {
		return nil, err
	}
	if index.Kind(kind) != cfg.Kind || distance.Space(space) != cfg.Space {
		return nil, fmt.Errorf("%w: index %s/%s, configured %s/%s", ErrStaleSnapshot, kind, space, cfg.Kind, cfg.Space)
	}

	if err := readAll(r, &count); err != nil {
		return nil, err
	}
	if int64(count) > int64(r.Len()) {
		return nil, fmt.Errorf("%w: offset table exceeds input", ErrStaleSnapshot)
	}

	byID := make(map[string]*Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	s, err := New(cfg, 0)
	if err != nil {
		return nil, err
	}
	s.version = version
	s.dimension = int(dimension)
	s.records = make([]*Record, count)

	for offset := range s.records {
		id, err := readString(r)
		if err != nil {
			return nil, err
		}
		if id == "" {
			continue
		}
		rec, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: record %q no longer exists", ErrStaleSnapshot, id)
		}
		o := uint32(offset)
		s.records[offset] = rec
		s.offsets[id] = o
		s.live.Add(o)
		s.order.ReplaceOrInsert(orderItem{seq: rec.Seq, offset: o})
		s.meta.Add(o, rec.Metadata)
	}
	if len(s.offsets) != len(records) {
		return nil, fmt.Errorf("%w: %d records in snapshot, %d in catalog", ErrStaleSnapshot, len(s.offsets), len(records))
	}

	var hasGraph uint8
	if err := readAll(r, &hasGraph); err != nil {
		return nil, err
	}

	switch {
	case hasGraph == 1:
		rest, _ := io.ReadAll(r)
		g, err := hnsw.Decode(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStaleSnapshot, err)
		}
		if g.Dimension() != s.dimension || g.Len() != len(records) {
			return nil, fmt.Errorf("%w: graph does not match records", ErrStaleSnapshot)
		}
		s.vectors = g
	case s.dimension > 0:
		if err := s.initIndex(s.dimension); err != nil {
			return nil, err
		}
		for offset, rec := range s.records {
			if rec != nil && len(rec.Embedding) > 0 {
				if err := s.vectors.Insert(uint32(offset), rec.Embedding); err != nil {
					return nil, fmt.Errorf("%w: %w", ErrStaleSnapshot, err)
				}
			}
		}
	}

	return s, nil
}

func readAll(r io.Reader, vs ...any) error {
	for _, v := range vs {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("%w: %w", ErrStaleSnapshot, err)
		}
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := readAll(r, &n); err != nil {
		return "", err
	}
	if int64(n) > int64(r.Len()) {
		return "", fmt.Errorf("%w: string exceeds input", ErrStaleSnapshot)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("%w: %w", ErrStaleSnapshot, err)
	}
	return string(b), nil
}
