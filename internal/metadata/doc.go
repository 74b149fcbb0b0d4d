// Package metadata provides the typed metadata model of a record and an
// inverted index over it.
//
// Metadata documents are flat maps from key to a string, integer, float or
// boolean value. Documents travel as JSON objects; integers and floats are kept
// apart so that a float written as 2.0 is rendered back as 2.0.
package metadata
