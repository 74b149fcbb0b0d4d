// Package cache provides the LRU cache that keeps loaded collection segments
// in memory.
//
// Capacity counts entries; memory is additionally accounted against the
// resource controller so a global budget evicts cold entries first. Concurrent
// misses on the same key share one load.
package cache
