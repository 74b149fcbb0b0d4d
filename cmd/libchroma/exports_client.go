package main

/*
#include "chroma_types.h"
*/
import "C"

import (
	"context"
	"unsafe"

	"github.com/hupe1980/chromaffi"
)

//export chroma_create_client
func chroma_create_client(allowReset C.int, sqliteConfig *C.SqliteConfigFFI, hnswCacheSize C.size_t, persistPath *C.char, clientOut **C.ChromaClient, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceCreateClient
	defer recovered(errorOut, source, &rc)

	if clientOut == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgOutputNull)
	}

	s := chromaffi.Settings{
		AllowReset:    allowReset != 0,
		CacheCapacity: int(hnswCacheSize),
		PersistPath:   goOrEmpty(persistPath),
	}
	if sqliteConfig != nil {
		s.SQLite = &chromaffi.SQLiteConfig{
			URL:           goOptional(sqliteConfig.url),
			HashType:      int(sqliteConfig.hash_type),
			MigrationMode: int(sqliteConfig.migration_mode),
		}
	}

	client, err := chromaffi.NewClient(context.Background(), s)
	if err != nil {
		return report(errorOut, source, err)
	}
	return handOver(client, clientOut, errorOut, source)
}

//export chroma_create_client_from_config
func chroma_create_client_from_config(configYAML *C.char, clientOut **C.ChromaClient, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceCreateClientFromConfig
	defer recovered(errorOut, source, &rc)

	if clientOut == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgOutputNull)
	}

	client, err := chromaffi.NewClientFromConfig(context.Background(), goOrEmpty(configYAML))
	if err != nil {
		return report(errorOut, source, err)
	}
	return handOver(client, clientOut, errorOut, source)
}

func handOver(client *chromaffi.Client, clientOut **C.ChromaClient, errorOut **C.ChromaError, source string) C.int {
	h := newClientHandle(client)
	if h == nil {
		_ = client.Close()
		return allocationFailed(errorOut, source)
	}
	*clientOut = h
	return setSuccess(errorOut)
}

//export chroma_destroy_client
func chroma_destroy_client(clientHandle *C.ChromaClient, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceDestroyClient
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	client := releaseClient(clientHandle)
	if err := client.Close(); err != nil {
		return report(errorOut, source, chromaffi.Wrap(chromaffi.InternalError, source, "Failed to close client", err))
	}
	return setSuccess(errorOut)
}

//export chroma_heartbeat
func chroma_heartbeat(clientHandle *C.ChromaClient, result *C.uint64_t, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceHeartbeat
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	if result == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgOutputNull)
	}

	ns, err := clientOf(clientHandle).Heartbeat(context.Background())
	if err != nil {
		return report(errorOut, source, err)
	}
	*result = C.uint64_t(ns)
	return setSuccess(errorOut)
}

//export chroma_reset
func chroma_reset(clientHandle *C.ChromaClient, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceReset
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	return report(errorOut, source, clientOf(clientHandle).Reset(context.Background()))
}

//export chroma_metrics_text
func chroma_metrics_text(clientHandle *C.ChromaClient, textOut **C.char, errorOut **C.ChromaError) (rc C.int) {
	const source = chromaffi.SourceMetricsText
	defer recovered(errorOut, source, &rc)

	if clientHandle == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgClientNull)
	}
	if textOut == nil {
		return invalidArgument(errorOut, source, chromaffi.MsgOutputNull)
	}

	text, err := clientOf(clientHandle).MetricsText(context.Background())
	if err != nil {
		return report(errorOut, source, err)
	}
	return writeString(textOut, text, errorOut, source)
}

// writeString hands a new C copy of s to the caller.
func writeString(out **C.char, s string, errorOut **C.ChromaError, source string) C.int {
	if err := chromaffi.CheckOutgoing(source, s); err != nil {
		return report(errorOut, source, err)
	}
	p := cString(s)
	if p == nil {
		return allocationFailed(errorOut, source)
	}
	*out = p
	return setSuccess(errorOut)
}

//export chroma_free_string
func chroma_free_string(s *C.char) C.int {
	cFree(unsafe.Pointer(s))
	return C.int(chromaffi.Success)
}

//export chroma_free_string_array
func chroma_free_string_array(array **C.char, count C.size_t) C.int {
	freeStringArray(array, count)
	return C.int(chromaffi.Success)
}

//export chroma_free_query_result
func chroma_free_query_result(result *C.ChromaQueryResult) C.int {
	if result != nil {
		freeQueryResult(result)
	}
	return C.int(chromaffi.Success)
}
