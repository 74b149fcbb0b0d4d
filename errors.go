package chromaffi

import (
	"errors"
	"fmt"

	"github.com/hupe1980/chromaffi/internal/config"
	"github.com/hupe1980/chromaffi/internal/frontend"
)

// Code is the status of a boundary call. The numeric values are part of the
// C ABI.
type Code int32

const (
	Success Code = iota
	InvalidArgument
	InternalError
	MemoryError
	NotFound
	ValidationError
	InvalidUUID
	NotImplemented
)

func (c Code) String() string {
	switch c {
	case Success:
		return "Success"
	case InvalidArgument:
		return "InvalidArgument"
	case InternalError:
		return "InternalError"
	case MemoryError:
		return "MemoryError"
	case NotFound:
		return "NotFound"
	case ValidationError:
		return "ValidationError"
	case InvalidUUID:
		return "InvalidUuid"
	case NotImplemented:
		return "NotImplemented"
	default:
		return fmt.Sprintf("Code(%d)", int32(c))
	}
}

// Error is the outcome of a failed boundary call.
type Error struct {
	Code    Code
	Message string
	// Source is the name of the entry point that failed.
	Source     string
	Details    string
	HasDetails bool

	cause error
}

// NewError creates an error without details.
func NewError(code Code, source, message string) *Error {
	return &Error{Code: code, Source: source, Message: message}
}

// Errorf creates an error whose details are formatted from args.
func Errorf(code Code, source, message, format string, args ...any) *Error {
	return &Error{
		Code:       code,
		Source:     source,
		Message:    message,
		Details:    fmt.Sprintf(format, args...),
		HasDetails: true,
	}
}

// Wrap creates an error that renders cause into its details.
func Wrap(code Code, source, message string, cause error) *Error {
	e := &Error{Code: code, Source: source, Message: message, cause: cause}
	if cause != nil {
		e.Details = cause.Error()
		e.HasDetails = true
	}
	return e
}

func (e *Error) Error() string {
	if e.HasDetails {
		return fmt.Sprintf("%s: %s: %s", e.Source, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// ErrorCode returns the code of err: Success for nil, the code of an *Error,
// and InternalError otherwise.
func ErrorCode(err error) Code {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// Classify maps an engine error to a code. Conflicts, closed executors,
// recovered panics and everything unknown are internal errors.
func Classify(err error) Code {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, frontend.ErrNotFound):
		return NotFound
	case errors.Is(err, frontend.ErrValidation), errors.Is(err, config.ErrInvalid):
		return ValidationError
	default:
		return InternalError
	}
}

// FromEngine converts an engine error into an *Error with the rendered
// engine error as details. An *Error passes through unchanged.
func FromEngine(source, message string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(Classify(err), source, message, err)
}

// Entry point names reported as the error source.
const (
	SourceCreateClient           = "chroma_create_client"
	SourceCreateClientFromConfig = "chroma_create_client_from_config"
	SourceDestroyClient          = "chroma_destroy_client"
	SourceHeartbeat              = "chroma_heartbeat"
	SourceReset                  = "chroma_reset"
	SourceCreateDatabase         = "chroma_create_database"
	SourceGetDatabase            = "chroma_get_database"
	SourceDeleteDatabase         = "chroma_delete_database"
	SourceCreateCollection       = "chroma_create_collection"
	SourceGetCollection          = "chroma_get_collection"
	SourceDeleteCollection       = "chroma_delete_collection"
	SourceListCollections        = "chroma_list_collections"
	SourceCollectionID           = "chroma_collection_id"
	SourceDestroyCollection      = "chroma_destroy_collection"
	SourceAdd                    = "chroma_add"
	SourceUpdate                 = "chroma_update"
	SourceUpsert                 = "chroma_upsert"
	SourceDelete                 = "chroma_delete"
	SourceCount                  = "chroma_count"
	SourceGet                    = "chroma_get"
	SourceQuery                  = "chroma_query"
	SourceMetricsText            = "chroma_metrics_text"
)

// Messages shared by the Go core and the C shim.
const (
	MsgClientNull           = "Client handle pointer is null"
	MsgCollectionNull       = "Collection handle pointer is null"
	MsgOutputNull           = "Output pointer is null"
	MsgInvalidHashType      = "Invalid hash type"
	MsgInvalidMigrationMode = "Invalid migration mode"
	MsgExecutor             = "Failed to create execution context"
	MsgFrontend             = "Failed to create Chroma frontend"
	MsgInvalidConfig        = "Failed to parse client configuration"
	MsgNameNull             = "Name is null"
	MsgIDsNull              = "IDs array is null"
	MsgIDsEmpty             = "IDs count must be greater than zero"
	MsgEmbeddingsNull       = "Embeddings array is null"
	MsgNullID               = "Null ID pointer"
	MsgNullEmbedding        = "Null embedding pointer"
	MsgIDsOrFilter          = "Either document IDs or filter criteria must be specified"
	MsgQueryEmbedding       = "Invalid query embedding"
	MsgInvalidUUID          = "Invalid collection UUID"
	MsgParseConfiguration   = "Failed to parse configuration JSON"
	MsgParseMetadata        = "Failed to parse metadata JSON"
	MsgParseWhere           = "Failed to parse where filters"
	MsgInvalidInclude       = "Invalid include list"
	MsgInvalidRequest       = "Invalid request"
	MsgInvalidString        = "Invalid string"
	MsgAllocation           = "Memory allocation failed"
	MsgHeartbeat            = "Failed to get heartbeat"
	MsgReset                = "Failed to reset"
	MsgCreateDatabase       = "Failed to create database"
	MsgGetDatabase          = "Failed to get database"
	MsgDeleteDatabase       = "Failed to delete database"
	MsgCreateCollection     = "Failed to create collection"
	MsgGetCollection        = "Failed to get collection"
	MsgDeleteCollection     = "Failed to delete collection"
	MsgListCollections      = "Failed to list collections"
	MsgAdd                  = "Failed to add records"
	MsgUpdate               = "Failed to update records"
	MsgUpsert               = "Failed to upsert records"
	MsgDelete               = "Failed to delete records"
	MsgCount                = "Failed to count records"
	MsgGet                  = "Failed to get records"
	MsgQuery                = "Failed to query collection"
	MsgMetrics              = "Failed to render metrics"
	MsgMetricsDisabled      = "Metrics are disabled"
)
