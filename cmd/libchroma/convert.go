package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/hupe1980/chromaffi"
)

const ptrSize = unsafe.Sizeof(uintptr(0))

// goString decodes a caller string. ok is false for a null pointer. Invalid
// UTF-8 is replaced, never rejected.
func goString(p *C.char) (s string, ok bool) {
	if p == nil {
		return "", false
	}
	return chromaffi.RepairUTF8(C.GoString(p)), true
}

// goOptional decodes a nullable caller string.
func goOptional(p *C.char) *string {
	s, ok := goString(p)
	if !ok {
		return nil
	}
	return &s
}

// goOrEmpty decodes a caller string where null means the default.
func goOrEmpty(p *C.char) string {
	s, _ := goString(p)
	return s
}

func cArray[T any](base *T, count C.size_t) []T {
	if base == nil || count == 0 {
		return nil
	}
	return unsafe.Slice(base, int(count))
}

// goIDs decodes an array whose rows are all required. A null base is nil, a
// non-null base with count 0 is empty.
func goIDs(source string, base **C.char, count C.size_t) ([]string, error) {
	if base == nil {
		return nil, nil
	}
	rows := cArray(base, count)
	out := make([]string, len(rows))
	for i, p := range rows {
		s, ok := goString(p)
		if !ok {
			return nil, chromaffi.Errorf(chromaffi.InvalidArgument, source, chromaffi.MsgNullID, "Null ID at index %d", i)
		}
		out[i] = s
	}
	return out, nil
}

// goOptionalStrings decodes an array whose rows may be null. A null base is
// nil.
func goOptionalStrings(base **C.char, count C.size_t) []*string {
	if base == nil {
		return nil
	}
	rows := cArray(base, count)
	out := make([]*string, len(rows))
	for i, p := range rows {
		out[i] = goOptional(p)
	}
	return out
}

// goFloats copies count floats. A null base reads as empty.
func goFloats(base *C.float, count C.size_t) []float32 {
	src := cArray((*float32)(unsafe.Pointer(base)), count)
	if src == nil {
		return nil
	}
	out := make([]float32, len(src))
	copy(out, src)
	return out
}

// goEmbeddings copies count rows of dim floats. A null base is nil and a null
// row stays nil.
func goEmbeddings(base **C.float, count, dim C.size_t) [][]float32 {
	if base == nil {
		return nil
	}
	rows := cArray(base, count)
	out := make([][]float32, len(rows))
	for i, p := range rows {
		if p == nil {
			continue
		}
		out[i] = goFloats(p, dim)
		if out[i] == nil {
			out[i] = []float32{}
		}
	}
	return out
}

// cStringArray copies ss into a C array of C strings. Empty input gives
// (nil, 0). ok is false when a string contains a nul byte or an allocation
// fails; nothing stays allocated in that case.
func cStringArray(ss []string) (array **C.char, count C.size_t, ok bool) {
	if len(ss) == 0 {
		return nil, 0, true
	}
	base := cMalloc(uintptr(len(ss)) * ptrSize)
	if base == nil {
		return nil, 0, false
	}
	array = (**C.char)(base)
	rows := unsafe.Slice(array, len(ss))
	for i, s := range ss {
		if rows[i] = cString(s); rows[i] == nil {
			freeStringArray(array, C.size_t(i))
			return nil, 0, false
		}
	}
	return array, C.size_t(len(ss)), true
}

// cFloatArray copies fs into a C float array. Empty input gives (nil, 0).
func cFloatArray(fs []float32) (array *C.float, count C.size_t, ok bool) {
	if len(fs) == 0 {
		return nil, 0, true
	}
	base := cMalloc(uintptr(len(fs)) * unsafe.Sizeof(float32(0)))
	if base == nil {
		return nil, 0, false
	}
	copy(unsafe.Slice((*float32)(base), len(fs)), fs)
	return (*C.float)(base), C.size_t(len(fs)), true
}

func freeStringArray(array **C.char, count C.size_t) {
	if array == nil {
		return
	}
	for _, p := range cArray(array, count) {
		cFree(unsafe.Pointer(p))
	}
	cFree(unsafe.Pointer(array))
}
