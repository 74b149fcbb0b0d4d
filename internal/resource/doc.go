// Package resource bounds what the engine may consume in the background: the
// number of segments loading in parallel, the memory held by cached segments
// and the bandwidth used for snapshot writes.
package resource
