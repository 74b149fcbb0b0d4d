package main

/*
#include "chroma_types.h"
*/
import "C"

import (
	"unsafe"
)

// The helpers below stand in for a C caller in the package tests, which
// cannot use cgo themselves.

type (
	status           = C.int
	errorOut         = **C.ChromaError
	clientHandle     = *C.ChromaClient
	collectionHandle = *C.ChromaCollection
)

// cArgs owns the input memory of one simulated call.
type cArgs struct {
	blocks []unsafe.Pointer
}

func (a *cArgs) keep(p unsafe.Pointer) unsafe.Pointer {
	if p != nil {
		a.blocks = append(a.blocks, p)
	}
	return p
}

func (a *cArgs) str(s string) *C.char {
	return (*C.char)(a.keep(unsafe.Pointer(cString(s))))
}

func (a *cArgs) optStr(s *string) *C.char {
	if s == nil {
		return nil
	}
	return a.str(*s)
}

// strs builds a string array. A nil row stays a null pointer.
func (a *cArgs) strs(rows ...*string) **C.char {
	if len(rows) == 0 {
		return (**C.char)(a.keep(cMalloc(ptrSize)))
	}
	base := (**C.char)(a.keep(cMalloc(uintptr(len(rows)) * ptrSize)))
	slots := unsafe.Slice(base, len(rows))
	for i, r := range rows {
		slots[i] = a.optStr(r)
	}
	return base
}

func (a *cArgs) ids(ids ...string) **C.char {
	rows := make([]*string, len(ids))
	for i := range ids {
		rows[i] = &ids[i]
	}
	return a.strs(rows...)
}

func (a *cArgs) floats(fs []float32) *C.float {
	if fs == nil {
		return nil
	}
	p, _, _ := cFloatArray(fs)
	return (*C.float)(a.keep(unsafe.Pointer(p)))
}

// embeddings builds an array of float rows. A nil row stays a null pointer.
func (a *cArgs) embeddings(rows ...[]float32) **C.float {
	base := (**C.float)(a.keep(cMalloc(uintptr(len(rows)+1) * ptrSize)))
	slots := unsafe.Slice(base, len(rows))
	for i, r := range rows {
		slots[i] = a.floats(r)
	}
	return base
}

func (a *cArgs) sqliteConfig(hashType, migrationMode int) *C.SqliteConfigFFI {
	p := (*C.SqliteConfigFFI)(a.keep(cMalloc(unsafe.Sizeof(C.SqliteConfigFFI{}))))
	p.hash_type = C.int(hashType)
	p.migration_mode = C.int(migrationMode)
	return p
}

func (a *cArgs) free() {
	for _, p := range a.blocks {
		cFree(p)
	}
	a.blocks = nil
}

func newClientOut() **C.ChromaClient            { return new(*C.ChromaClient) }
func newCollectionOut() **C.ChromaCollection    { return new(*C.ChromaCollection) }
func newErrorOut() **C.ChromaError              { return new(*C.ChromaError) }
func newResultOut() **C.ChromaQueryResult       { return new(*C.ChromaQueryResult) }
func newStringOut() **C.char                    { return new(*C.char) }
func newStringArrayOut() (***C.char, *C.size_t) { return new(**C.char), new(C.size_t) }
func newUintOut() *C.uint                       { return new(C.uint) }
func newUint64Out() *C.uint64_t                 { return new(C.uint64_t) }

// errorView is a Go copy of an error object.
type errorView struct {
	Code    int
	Message *string
	Source  *string
	Details *string
}

func viewError(e *C.ChromaError) errorView {
	return errorView{
		Code:    int(e.code),
		Message: goOptional(e.message),
		Source:  goOptional(e.source),
		Details: goOptional(e.details),
	}
}

// arrayView describes one (pointer, count) pair of a result.
type arrayView struct {
	Null  bool
	Count int
}

// resultView is a Go copy of a query result.
type resultView struct {
	IDs, Distances, Metadatas, Documents arrayView

	IDValues       []string
	DistanceValues []float32
	MetadataValues []string
	DocumentValues []string
}

func viewResult(r *C.ChromaQueryResult) resultView {
	v := resultView{
		IDs:       arrayView{Null: r.ids == nil, Count: int(r.ids_count)},
		Distances: arrayView{Null: r.distances == nil, Count: int(r.distances_count)},
		Metadatas: arrayView{Null: r.metadata_json == nil, Count: int(r.metadata_count)},
		Documents: arrayView{Null: r.documents == nil, Count: int(r.documents_count)},
	}
	v.IDValues = viewStrings(r.ids, r.ids_count)
	v.MetadataValues = viewStrings(r.metadata_json, r.metadata_count)
	v.DocumentValues = viewStrings(r.documents, r.documents_count)
	if r.distances != nil {
		v.DistanceValues = append([]float32(nil), unsafe.Slice((*float32)(unsafe.Pointer(r.distances)), int(r.distances_count))...)
	}
	return v
}

func viewStrings(array **C.char, count C.size_t) []string {
	if array == nil {
		return nil
	}
	out := make([]string, 0, int(count))
	for _, p := range cArray(array, count) {
		out = append(out, C.GoString(p))
	}
	return out
}
