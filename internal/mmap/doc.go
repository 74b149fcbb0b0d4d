// Package mmap maps segment snapshot files read-only into memory.
//
// On platforms without mmap support the file is read into a heap buffer, so
// callers never need a second code path.
package mmap
