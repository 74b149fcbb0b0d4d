// Command libchroma builds the chroma C library:
//
//	go build -buildmode=c-shared -o libchroma.so ./cmd/libchroma
//
// The exported functions are declared in include/chroma_api.h. Every pointer
// crossing the boundary is handled in this package; the engine behind it only
// sees Go values.
package main

/*
#cgo CFLAGS: -I${SRCDIR}/../../include
*/
import "C"

func main() {}
