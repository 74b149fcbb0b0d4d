// Package lock takes an exclusive advisory lock on a persist directory so
// that only one client at a time owns its files.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the lock file created inside the locked directory.
const FileName = "chroma.lock"

// ErrLocked is returned when another holder owns the lock.
var ErrLocked = errors.New("lock: directory is locked by another client")

// DirLock is a held directory lock.
type DirLock struct {
	f *os.File
}

// Acquire locks dir without blocking.
func Acquire(dir string) (*DirLock, error) {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lock: open %s: %w", path, err)
	}
	if err := tryLock(f); err != nil {
		f.Close()
		return nil, err
	}
	return &DirLock{f: f}, nil
}

// Release drops the lock. It is safe to call more than once.
func (l *DirLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unlock(l.f)
	if cerr := l.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	l.f = nil
	return err
}
