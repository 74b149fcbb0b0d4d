package main

/*
#include "chroma_types.h"
*/
import "C"

import (
	"unsafe"

	"github.com/hupe1980/chromaffi"
)

// materialize copies rows into a new result. Each array is filled on its
// own and stays (nil, 0) when the field is empty. It returns nil when an
// allocation fails; everything allocated so far is released.
func materialize(rows *chromaffi.Rows) *C.ChromaQueryResult {
	res := (*C.ChromaQueryResult)(cMalloc(unsafe.Sizeof(C.ChromaQueryResult{})))
	if res == nil {
		return nil
	}

	var ok bool
	if res.ids, res.ids_count, ok = cStringArray(rows.IDs); !ok {
		freeQueryResult(res)
		return nil
	}
	if res.distances, res.distances_count, ok = cFloatArray(rows.Distances); !ok {
		freeQueryResult(res)
		return nil
	}
	if res.metadata_json, res.metadata_count, ok = cStringArray(rows.Metadatas); !ok {
		freeQueryResult(res)
		return nil
	}
	if res.documents, res.documents_count, ok = cStringArray(rows.Documents); !ok {
		freeQueryResult(res)
		return nil
	}
	return res
}

func freeQueryResult(res *C.ChromaQueryResult) {
	freeStringArray(res.ids, res.ids_count)
	cFree(unsafe.Pointer(res.distances))
	freeStringArray(res.metadata_json, res.metadata_count)
	freeStringArray(res.documents, res.documents_count)
	cFree(unsafe.Pointer(res))
}
