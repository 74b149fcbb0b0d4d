// Package segment holds the searchable in-memory state of one collection:
// records addressed by dense offsets, an insertion-order btree, the metadata
// inverted index and the vector index.
//
// Offsets are never reused. Replacing a record tombstones its old offset and
// appends a new one, so the vector index only ever sees inserts and deletes.
package segment
