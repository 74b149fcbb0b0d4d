package main

/*
#include <stdlib.h>
#include <string.h>
*/
import "C"

import (
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/chromaffi"
)

// live counts blocks obtained from cMalloc and not yet returned to cFree.
var live atomic.Int64

// liveAllocations returns the number of outstanding library allocations.
func liveAllocations() int64 { return live.Load() }

// cMalloc allocates n zeroed bytes on the C heap. It returns nil when the
// allocation fails.
func cMalloc(n uintptr) unsafe.Pointer {
	p := C.calloc(1, C.size_t(n))
	if p != nil {
		live.Add(1)
	}
	return p
}

// cFree releases memory from cMalloc. nil is ignored.
func cFree(p unsafe.Pointer) {
	if p == nil {
		return
	}
	live.Add(-1)
	C.free(p)
}

// cString copies s into a nul-terminated C string. It returns nil when s
// contains a nul byte or the allocation fails.
func cString(s string) *C.char {
	if chromaffi.HasNul(s) {
		return nil
	}
	p := cMalloc(uintptr(len(s)) + 1)
	if p == nil {
		return nil
	}
	if len(s) > 0 {
		C.memcpy(p, unsafe.Pointer(unsafe.StringData(s)), C.size_t(len(s)))
	}
	return (*C.char)(p)
}
