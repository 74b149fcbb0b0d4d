package main

/*
#include "chroma_types.h"
*/
import "C"

import (
	"context"

	"github.com/hupe1980/chromaffi"
)

type writeFunc func(ctx context.Context, coll *chromaffi.Collection, r chromaffi.Records) error

// writeRecords decodes the row arrays of add, update and upsert. Null
// embedding rows are passed on as nil; the client decides whether that is
// allowed.
func writeRecords(source string, write func(*chromaffi.Client) writeFunc, clientHandle *C.ChromaClient, collectionHandle *C.ChromaCollection,
	ids **C.char, idsCount C.size_t, embeddings **C.float, embeddingDim C.size_t, metadatas, documents **C.char, errorOut **C.ChromaError) C.int {
	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	if collectionHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgCollectionNull)
	}

	goIDList, err := goIDs(source, ids, idsCount)
	if err != nil {
		return report(errorOut, source, err)
	}
	r := chromaffi.Records{
		IDs:        goIDList,
		Embeddings: goEmbeddings(embeddings, idsCount, embeddingDim),
		Metadatas:  goOptionalStrings(metadatas, idsCount),
		Documents:  goOptionalStrings(documents, idsCount),
	}

	client := clientOf(clientHandle)
	return report(errorOut, source, write(client)(context.Background(), collectionOf(collectionHandle), r))
}

//export chroma_add
func chroma_add(clientHandle *C.ChromaClient, collectionHandle *C.ChromaCollection, ids **C.char, idsCount C.size_t,
	embeddings **C.float, embeddingDim C.size_t, metadatas, documents **C.char, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceAdd
	defer recovered(errorOut, source, &rc)

	return writeRecords(source, func(c *chromaffi.Client) writeFunc { return c.Add },
		clientHandle, collectionHandle, ids, idsCount, embeddings, embeddingDim, metadatas, documents, errorOut)
}

//export chroma_update
func chroma_update(clientHandle *C.ChromaClient, collectionHandle *C.ChromaCollection, ids **C.char, idsCount C.size_t,
	embeddings **C.float, embeddingDim C.size_t, metadatas, documents **C.char, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceUpdate
	defer recovered(errorOut, source, &rc)

	return writeRecords(source, func(c *chromaffi.Client) writeFunc { return c.Update },
		clientHandle, collectionHandle, ids, idsCount, embeddings, embeddingDim, metadatas, documents, errorOut)
}

//export chroma_upsert
func chroma_upsert(clientHandle *C.ChromaClient, collectionHandle *C.ChromaCollection, ids **C.char, idsCount C.size_t,
	embeddings **C.float, embeddingDim C.size_t, metadatas, documents **C.char, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceUpsert
	defer recovered(errorOut, source, &rc)

	return writeRecords(source, func(c *chromaffi.Client) writeFunc { return c.Upsert },
		clientHandle, collectionHandle, ids, idsCount, embeddings, embeddingDim, metadatas, documents, errorOut)
}

//export chroma_delete
func chroma_delete(clientHandle *C.ChromaClient, collectionHandle *C.ChromaCollection, ids **C.char, idsCount C.size_t,
	where, whereDocument *C.char, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceDelete
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	if collectionHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgCollectionNull)
	}
	if ids == nil && where == nil && whereDocument == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgIDsOrFilter)
	}
	goIDList, err := goIDs(source, ids, idsCount)
	if err != nil {
		return report(errorOut, source, err)
	}

	_, err = clientOf(clientHandle).Delete(context.Background(), collectionOf(collectionHandle), goIDList, goOptional(where), goOptional(whereDocument))
	return report(errorOut, source, err)
}

//export chroma_count
func chroma_count(clientHandle *C.ChromaClient, collectionHandle *C.ChromaCollection, result *C.uint, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceCount
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	if collectionHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgCollectionNull)
	}
	if result == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgOutputNull)
	}

	n, err := clientOf(clientHandle).Count(context.Background(), collectionOf(collectionHandle))
	if err != nil {
		return report(errorOut, source, err)
	}
	*result = C.uint(n)
	return setSuccess(errorOut)
}

//export chroma_get
func chroma_get(clientHandle *C.ChromaClient, collectionHandle *C.ChromaCollection, ids **C.char, idsCount C.size_t,
	where, whereDocument *C.char, limit, offset C.uint, includeEmbeddings, includeMetadatas, includeDocuments C.int,
	resultOut **C.ChromaQueryResult, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceGet
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	if collectionHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgCollectionNull)
	}
	if resultOut == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgOutputNull)
	}
	if ids == nil && where == nil && whereDocument == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgIDsOrFilter)
	}
	goIDList, err := goIDs(source, ids, idsCount)
	if err != nil {
		return report(errorOut, source, err)
	}

	rows, err := clientOf(clientHandle).Get(context.Background(), collectionOf(collectionHandle), chromaffi.GetParams{
		IDs:           goIDList,
		Where:         goOptional(where),
		WhereDocument: goOptional(whereDocument),
		Limit:         uint32(limit),
		Offset:        uint32(offset),
		Include: chromaffi.Include{
			Embeddings: includeEmbeddings != 0,
			Metadatas:  includeMetadatas != 0,
			Documents:  includeDocuments != 0,
		},
	})
	if err != nil {
		return report(errorOut, source, err)
	}
	return handOverRows(rows, resultOut, errorOut, source)
}

//export chroma_query
func chroma_query(clientHandle *C.ChromaClient, collectionHandle *C.ChromaCollection, queryEmbedding *C.float, embeddingDim C.size_t,
	nResults C.uint, where, whereDocument *C.char, includeEmbeddings, includeMetadatas, includeDocuments, includeDistances C.int,
	resultOut **C.ChromaQueryResult, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceQuery
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	if collectionHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgCollectionNull)
	}
	if resultOut == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgOutputNull)
	}

	rows, err := clientOf(clientHandle).Query(context.Background(), collectionOf(collectionHandle), chromaffi.QueryParams{
		Embedding:     goFloats(queryEmbedding, embeddingDim),
		Dimension:     int(embeddingDim),
		NResults:      uint32(nResults),
		Where:         goOptional(where),
		WhereDocument: goOptional(whereDocument),
		Include: chromaffi.Include{
			Embeddings: includeEmbeddings != 0,
			Metadatas:  includeMetadatas != 0,
			Documents:  includeDocuments != 0,
			Distances:  includeDistances != 0,
		},
	})
	if err != nil {
		return report(errorOut, source, err)
	}
	return handOverRows(rows, resultOut, errorOut, source)
}

func handOverRows(rows *chromaffi.Rows, out **C.ChromaQueryResult, errorOut **C.ChromaError, source string) C.int {
	res := materialize(rows)
	if res == nil {
		return allocationFailed(errorOut, source)
	}
	*out = res
	return setSuccess(errorOut)
}
