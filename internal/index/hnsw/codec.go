package hnsw

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/chromaffi/internal/distance"
)

const (
	codecMagic   = "HNSW"
	codecVersion = uint16(1)
)

// ErrCorrupt is returned when a serialized graph cannot be decoded.
var ErrCorrupt = errors.New("hnsw: corrupt graph encoding")

type header struct {
	Version        uint16
	Dimension      uint32
	M              uint32
	EFConstruction uint32
	EFSearch       uint32
	Seed           uint64
	EntryPoint     uint32
	HasEntry       uint8
	MaxLevel       uint32
	Live           uint32
	Nodes          uint32
}

// WriteTo serializes the graph, including tombstones, to w.
func (h *HNSW) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: bufio.NewWriter(w)}

	if _, err := io.WriteString(cw, codecMagic); err != nil {
		return cw.n, err
	}
	if err := writeString(cw, string(h.opts.Space)); err != nil {
		return cw.n, err
	}

	hdr := header{
		Version:        codecVersion,
		Dimension:      uint32(h.dimension),
		M:              uint32(h.opts.M),
		EFConstruction: uint32(h.opts.EFConstruction),
		EFSearch:       uint32(h.opts.EFSearch),
		Seed:           h.opts.Seed,
		EntryPoint:     h.ep,
		MaxLevel:       uint32(h.maxLevel),
		Live:           uint32(h.live),
		Nodes:          uint32(len(h.nodes)),
	}
	if h.hasEntry {
		hdr.HasEntry = 1
	}
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return cw.n, err
	}

	for _, n := range h.nodes {
		if n == nil {
			if err := binary.Write(cw, binary.LittleEndian, uint8(0)); err != nil {
				return cw.n, err
			}
			continue
		}
		if err := binary.Write(cw, binary.LittleEndian, uint8(1)); err != nil {
			return cw.n, err
		}
		if err := binary.Write(cw, binary.LittleEndian, uint32(n.level)); err != nil {
			return cw.n, err
		}
		if err := binary.Write(cw, binary.LittleEndian, n.vector); err != nil {
			return cw.n, err
		}
		for _, links := range n.links {
			if err := binary.Write(cw, binary.LittleEndian, uint32(len(links))); err != nil {
				return cw.n, err
			}
			if err := binary.Write(cw, binary.LittleEndian, links); err != nil {
				return cw.n, err
			}
		}
	}

	if _, err := h.deleted.WriteTo(cw); err != nil {
		return cw.n, err
	}

	return cw.n, cw.w.(*bufio.Writer).Flush()
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h *HNSW) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a graph previously written by WriteTo.
func Decode(data []byte) (*HNSW, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, len(codecMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != codecMagic {
		return nil, ErrCorrupt
	}
	space, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	var hdr header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if hdr.Version != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, hdr.Version)
	}
	if uint64(hdr.Nodes)*uint64(hdr.Dimension) > uint64(len(data)) {
		return nil, fmt.Errorf("%w: node table exceeds input", ErrCorrupt)
	}

	h, err := New(int(hdr.Dimension), func(o *Options) {
		o.M = int(hdr.M)
		o.EFConstruction = int(hdr.EFConstruction)
		o.EFSearch = int(hdr.EFSearch)
		o.Space = distance.Space(space)
		o.Seed = hdr.Seed
	})
	if err != nil {
		return nil, err
	}

	h.ep = hdr.EntryPoint
	h.hasEntry = hdr.HasEntry == 1
	h.maxLevel = int(hdr.MaxLevel)
	h.live = int(hdr.Live)
	h.nodes = make([]*node, hdr.Nodes)

	for i := range h.nodes {
		var present uint8
		if err := binary.Read(r, binary.LittleEndian, &present); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if present == 0 {
			continue
		}

		var level uint32
		if err := binary.Read(r, binary.LittleEndian, &level); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if int(level) > h.maxLevel {
			return nil, fmt.Errorf("%w: node level %d above max level %d", ErrCorrupt, level, h.maxLevel)
		}

		n := &node{
			vector: make([]float32, hdr.Dimension),
			level:  int(level),
			links:  make([][]uint32, level+1),
		}
		if err := binary.Read(r, binary.LittleEndian, n.vector); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		for l := range n.links {
			var count uint32
			if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
			}
			if count > hdr.Nodes {
				return nil, fmt.Errorf("%w: link count %d", ErrCorrupt, count)
			}
			n.links[l] = make([]uint32, count)
			if err := binary.Read(r, binary.LittleEndian, n.links[l]); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
			}
			for _, nb := range n.links[l] {
				if nb >= hdr.Nodes {
					return nil, fmt.Errorf("%w: dangling link %d", ErrCorrupt, nb)
				}
			}
		}
		h.nodes[i] = n
	}

	if h.hasEntry && (int(h.ep) >= len(h.nodes) || h.nodes[h.ep] == nil) {
		return nil, fmt.Errorf("%w: entry point %d missing", ErrCorrupt, h.ep)
	}

	if _, err := h.deleted.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return h, nil
}

// DeletedIDs returns a copy of the tombstone set.
func (h *HNSW) DeletedIDs() *roaring.Bitmap { return h.deleted.Clone() }

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
