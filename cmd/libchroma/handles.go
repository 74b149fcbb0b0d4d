package main

/*
#include "chroma_types.h"
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/hupe1980/chromaffi"
)

// newClientHandle wraps c in a C handle. It returns nil when the allocation
// fails; c is then still owned by the caller.
func newClientHandle(c *chromaffi.Client) *C.ChromaClient {
	p := (*C.ChromaClient)(cMalloc(unsafe.Sizeof(C.ChromaClient{})))
	if p == nil {
		return nil
	}
	p.handle = C.uintptr_t(cgo.NewHandle(c))
	return p
}

func clientOf(p *C.ChromaClient) *chromaffi.Client {
	return cgo.Handle(p.handle).Value().(*chromaffi.Client)
}

// releaseClient frees the C handle and returns the client it held.
func releaseClient(p *C.ChromaClient) *chromaffi.Client {
	h := cgo.Handle(p.handle)
	c := h.Value().(*chromaffi.Client)
	h.Delete()
	cFree(unsafe.Pointer(p))
	return c
}

func newCollectionHandle(c *chromaffi.Collection) *C.ChromaCollection {
	p := (*C.ChromaCollection)(cMalloc(unsafe.Sizeof(C.ChromaCollection{})))
	if p == nil {
		return nil
	}
	p.handle = C.uintptr_t(cgo.NewHandle(c))
	return p
}

func collectionOf(p *C.ChromaCollection) *chromaffi.Collection {
	return cgo.Handle(p.handle).Value().(*chromaffi.Collection)
}

func releaseCollection(p *C.ChromaCollection) {
	cgo.Handle(p.handle).Delete()
	cFree(unsafe.Pointer(p))
}
