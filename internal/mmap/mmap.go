package mmap

import (
	"fmt"
	"os"
)

// File represents a read-only mapping of a file.
type File struct {
	data   []byte
	mapped bool
	f      *os.File
}

// Open maps the file at path into memory as read-only.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &File{f: f}, nil
	}
	if size < 0 || int64(int(size)) != size {
		f.Close()
		return nil, fmt.Errorf("mmap: unsupported file size %d", size)
	}

	data, mapped, err := mapFile(f, int(size))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap: %s: %w", path, err)
	}

	return &File{data: data, mapped: mapped, f: f}, nil
}

// Bytes returns the mapped contents. The slice is invalid after Close.
func (m *File) Bytes() []byte { return m.data }

// Len returns the size of the mapping.
func (m *File) Len() int { return len(m.data) }

// Close unmaps the memory and closes the underlying file.
func (m *File) Close() error {
	if m == nil {
		return nil
	}
	var err error
	if m.mapped && m.data != nil {
		err = unmapFile(m.data)
	}
	m.data, m.mapped = nil, false
	if m.f != nil {
		if cerr := m.f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		m.f = nil
	}
	return err
}
