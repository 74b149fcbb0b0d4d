package main

/*
#include "chroma_types.h"
*/
import "C"

import (
	"context"

	"github.com/hupe1980/chromaffi"
)

//export chroma_create_database
func chroma_create_database(clientHandle *C.ChromaClient, name, tenant *C.char, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceCreateDatabase
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	dbName, ok := goString(name)
	if !ok {
		return invalidArgument(errorOut, source, chromaffi.MsgNameNull)
	}
	return report(errorOut, source, clientOf(clientHandle).CreateDatabase(context.Background(), dbName, goOrEmpty(tenant)))
}

//export chroma_get_database
func chroma_get_database(clientHandle *C.ChromaClient, name, tenant *C.char, idOut **C.char, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceGetDatabase
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	if idOut == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgOutputNull)
	}
	dbName, ok := goString(name)
	if !ok {
		return invalidArgument(errorOut, source, chromaffi.MsgNameNull)
	}

	id, err := clientOf(clientHandle).GetDatabase(context.Background(), dbName, goOrEmpty(tenant))
	if err != nil {
		return report(errorOut, source, err)
	}
	return writeString(idOut, id, errorOut, source)
}

//export chroma_delete_database
func chroma_delete_database(clientHandle *C.ChromaClient, name, tenant *C.char, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceDeleteDatabase
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	dbName, ok := goString(name)
	if !ok {
		return invalidArgument(errorOut, source, chromaffi.MsgNameNull)
	}
	return report(errorOut, source, clientOf(clientHandle).DeleteDatabase(context.Background(), dbName, goOrEmpty(tenant)))
}

//export chroma_create_collection
func chroma_create_collection(clientHandle *C.ChromaClient, name, configJSON, metadataJSON *C.char, getOrCreate C.int, tenant, database *C.char, collectionOut **C.ChromaCollection, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceCreateCollection
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	if collectionOut == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgOutputNull)
	}
	collName, ok := goString(name)
	if !ok {
		return invalidArgument(errorOut, source, chromaffi.MsgNameNull)
	}

	coll, err := clientOf(clientHandle).CreateCollection(context.Background(), chromaffi.CreateCollectionParams{
		Name:              collName,
		ConfigurationJSON: goOptional(configJSON),
		MetadataJSON:      goOptional(metadataJSON),
		GetOrCreate:       getOrCreate != 0,
		Tenant:            goOrEmpty(tenant),
		Database:          goOrEmpty(database),
	})
	if err != nil {
		return report(errorOut, source, err)
	}
	return handOverCollection(coll, collectionOut, errorOut, source)
}

//export chroma_get_collection
func chroma_get_collection(clientHandle *C.ChromaClient, name, tenant, database *C.char, collectionOut **C.ChromaCollection, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceGetCollection
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	if collectionOut == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgOutputNull)
	}
	collName, ok := goString(name)
	if !ok {
		return invalidArgument(errorOut, source, chromaffi.MsgNameNull)
	}

	coll, err := clientOf(clientHandle).GetCollection(context.Background(), collName, goOrEmpty(tenant), goOrEmpty(database))
	if err != nil {
		return report(errorOut, source, err)
	}
	return handOverCollection(coll, collectionOut, errorOut, source)
}

func handOverCollection(coll *chromaffi.Collection, out **C.ChromaCollection, errorOut **C.ChromaError, source string) C.int {
	h := newCollectionHandle(coll)
	if h == nil {
		return allocationFailed(errorOut, source)
	}
	*out = h
	return setSuccess(errorOut)
}

//export chroma_delete_collection
func chroma_delete_collection(clientHandle *C.ChromaClient, name, tenant, database *C.char, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceDeleteCollection
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	collName, ok := goString(name)
	if !ok {
		return invalidArgument(errorOut, source, chromaffi.MsgNameNull)
	}
	return report(errorOut, source, clientOf(clientHandle).DeleteCollection(context.Background(), collName, goOrEmpty(tenant), goOrEmpty(database)))
}

//export chroma_list_collections
func chroma_list_collections(clientHandle *C.ChromaClient, tenant, database *C.char, namesOut ***C.char, countOut *C.size_t, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceListCollections
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	if namesOut == nil || countOut == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgOutputNull)
	}

	names, err := clientOf(clientHandle).ListCollections(context.Background(), goOrEmpty(tenant), goOrEmpty(database))
	if err != nil {
		return report(errorOut, source, err)
	}
	array, count, ok := cStringArray(names)
	if !ok {
		return allocationFailed(errorOut, source)
	}
	*namesOut = array
	*countOut = count
	return setSuccess(errorOut)
}

//export chroma_collection_id
func chroma_collection_id(collectionHandle *C.ChromaCollection, idOut **C.char, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceCollectionID
	defer recovered(errorOut, source, &rc)

	if collectionHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgCollectionNull)
	}
	if idOut == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgOutputNull)
	}
	return writeString(idOut, collectionOf(collectionHandle).ID(), errorOut, source)
}

//export chroma_destroy_collection
func chroma_destroy_collection(collectionHandle *C.ChromaCollection) C.int {
	if collectionHandle == nil {
		return C.int(chromaffi.InvalidArgument)
	}
	releaseCollection(collectionHandle)
	return C.int(chromaffi.Success)
}
