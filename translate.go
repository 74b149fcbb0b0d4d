package chromaffi

import (
	"errors"

	"github.com/google/uuid"

	"github.com/hupe1980/chromaffi/internal/frontend"
	"github.com/hupe1980/chromaffi/internal/metadata"
	"github.com/hupe1980/chromaffi/internal/where"
)

// Include selects the optional fields of a get or query result.
type Include struct {
	Embeddings bool
	Metadatas  bool
	Documents  bool
	// Distances is only valid for queries.
	Distances bool
}

// list builds the include list in the order embeddings, metadatas,
// documents, distances.
func (i Include) list() frontend.IncludeList {
	out := make(frontend.IncludeList, 0, 4)
	if i.Embeddings {
		out = append(out, frontend.IncludeEmbeddings)
	}
	if i.Metadatas {
		out = append(out, frontend.IncludeMetadatas)
	}
	if i.Documents {
		out = append(out, frontend.IncludeDocuments)
	}
	if i.Distances {
		out = append(out, frontend.IncludeDistances)
	}
	return out
}

func includeList(source string, inc Include, query bool) (frontend.IncludeList, *Error) {
	l := inc.list()
	if err := l.Validate(query); err != nil {
		return nil, Wrap(ValidationError, source, MsgInvalidInclude, err)
	}
	return l, nil
}

// Records is the payload of add, update and upsert. Embeddings, Metadatas
// and Documents are nil or hold one row per id. Metadata rows are JSON
// objects; nil and empty rows are absent.
type Records struct {
	IDs        []string
	Embeddings [][]float32
	Metadatas  []*string
	Documents  []*string
}

type decodedRecords struct {
	ids        []string
	embeddings [][]float32
	metadatas  []metadata.Document
	documents  []*string
}

// decodeRecords checks the argument shape and decodes JSON rows.
// requireEmbeddings makes a nil embeddings array or row an invalid argument.
func decodeRecords(source string, r Records, requireEmbeddings bool) (decodedRecords, *Error) {
	if r.IDs == nil {
		return decodedRecords{}, NewError(InvalidArgument, source, MsgIDsNull)
	}
	if len(r.IDs) == 0 {
		return decodedRecords{}, NewError(InvalidArgument, source, MsgIDsEmpty)
	}
	if requireEmbeddings {
		if r.Embeddings == nil {
			return decodedRecords{}, NewError(InvalidArgument, source, MsgEmbeddingsNull)
		}
		for i, e := range r.Embeddings {
			if e == nil {
				return decodedRecords{}, Errorf(InvalidArgument, source, MsgNullEmbedding, "Null embedding at index %d", i)
			}
		}
	}

	out := decodedRecords{ids: r.IDs, embeddings: r.Embeddings}

	if r.Metadatas != nil {
		out.metadatas = make([]metadata.Document, len(r.Metadatas))
		for i, m := range r.Metadatas {
			doc, e := decodeMetadata(source, m)
			if e != nil {
				return decodedRecords{}, e
			}
			out.metadatas[i] = doc
		}
	}

	if r.Documents != nil {
		out.documents = make([]*string, len(r.Documents))
		for i, d := range r.Documents {
			if s, ok := optional(d); ok {
				out.documents[i] = &s
			}
		}
	}
	return out, nil
}

func decodeMetadata(source string, s *string) (metadata.Document, *Error) {
	raw, ok := optional(s)
	if !ok {
		return nil, nil
	}
	doc, err := metadata.ParseJSON([]byte(raw))
	if err != nil {
		return nil, Wrap(ValidationError, source, MsgParseMetadata, err)
	}
	return doc, nil
}

func decodeConfiguration(source string, s *string) (*frontend.CollectionConfiguration, *Error) {
	raw, ok := optional(s)
	if !ok {
		return nil, nil
	}
	cfg, err := frontend.ParseCollectionConfiguration([]byte(raw))
	if err != nil {
		return nil, Wrap(ValidationError, source, MsgParseConfiguration, err)
	}
	return cfg, nil
}

// decodeFilters parses the where and where_document JSON into one
// expression. Both absent yields nil.
func decodeFilters(source string, whereJSON, whereDocumentJSON *string) (where.Expr, *Error) {
	var exprs []where.Expr
	if raw, ok := optional(whereJSON); ok {
		e, err := where.ParseWhere([]byte(raw))
		if err != nil {
			return nil, Wrap(ValidationError, source, MsgParseWhere, err)
		}
		exprs = append(exprs, e)
	}
	if raw, ok := optional(whereDocumentJSON); ok {
		e, err := where.ParseWhereDocument([]byte(raw))
		if err != nil {
			return nil, Wrap(ValidationError, source, MsgParseWhere, err)
		}
		exprs = append(exprs, e)
	}
	return where.Combine(exprs...), nil
}

func collectionUUID(source string, c *Collection) (uuid.UUID, *Error) {
	id, err := uuid.Parse(c.ID())
	if err != nil {
		return uuid.Nil, Errorf(InvalidUUID, source, MsgInvalidUUID, "UUID parse error: %v", err)
	}
	return id, nil
}

// requestError maps a failed request construction.
func requestError(source string, err error) *Error {
	if errors.Is(err, frontend.ErrValidation) {
		return Wrap(ValidationError, source, MsgInvalidRequest, err)
	}
	return Wrap(InternalError, source, MsgInvalidRequest, err)
}
