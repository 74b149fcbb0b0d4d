package main

/*
#include "chroma_types.h"
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/hupe1980/chromaffi"
)

// setError writes a new error object to out when out is not null and
// returns the code.
func setError(out **C.ChromaError, e *chromaffi.Error) C.int {
	if out != nil {
		if obj := (*C.ChromaError)(cMalloc(unsafe.Sizeof(C.ChromaError{}))); obj != nil {
			obj.code = C.ChromaErrorCode(e.Code)
			obj.message = cString(e.Message)
			obj.source = cString(e.Source)
			if e.HasDetails {
				obj.details = cString(e.Details)
			}
			*out = obj
		}
	}
	return C.int(e.Code)
}

// setSuccess writes a Success object with null strings.
func setSuccess(out **C.ChromaError) C.int {
	if out != nil {
		if obj := (*C.ChromaError)(cMalloc(unsafe.Sizeof(C.ChromaError{}))); obj != nil {
			obj.code = C.CHROMA_SUCCESS
			*out = obj
		}
	}
	return C.int(chromaffi.Success)
}

// report writes the outcome of err. Errors that are not an *Error become
// internal errors of source.
func report(out **C.ChromaError, source string, err error) C.int {
	if err == nil {
		return setSuccess(out)
	}
	var e *chromaffi.Error
	if !errors.As(err, &e) {
		e = chromaffi.Wrap(chromaffi.InternalError, source, "Internal error", err)
	}
	return setError(out, e)
}

func invalidArgument(out **C.ChromaError, source, message string) C.int {
	return setError(out, chromaffi.NewError(chromaffi.InvalidArgument, source, message))
}

func allocationFailed(out **C.ChromaError, source string) C.int {
	return setError(out, chromaffi.NewError(chromaffi.MemoryError, source, chromaffi.MsgAllocation))
}

// recovered turns a panic in an entry point into an internal error. It must
// be deferred directly.
func recovered(out **C.ChromaError, source string, rc *C.int) {
	if r := recover(); r != nil {
		*rc = setError(out, chromaffi.Wrap(chromaffi.InternalError, source, "Internal error", fmt.Errorf("panic: %v", r)))
	}
}

//export chroma_free_error
func chroma_free_error(e *C.ChromaError) {
	if e == nil {
		return
	}
	cFree(unsafe.Pointer(e.message))
	cFree(unsafe.Pointer(e.source))
	cFree(unsafe.Pointer(e.details))
	cFree(unsafe.Pointer(e))
}
