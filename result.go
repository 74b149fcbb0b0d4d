package chromaffi

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/chromaffi/internal/frontend"
	"github.com/hupe1980/chromaffi/internal/metadata"
)

// Rows is a flattened get or query result. Every field is nil when it was
// not requested or holds no rows, and has one entry per id otherwise.
type Rows struct {
	IDs []string
	// Distances of a query. Missing distances are 0.
	Distances []float32
	// Metadatas holds one JSON object per row, "" for rows without metadata.
	Metadatas []string
	// Documents holds "" for rows without a document.
	Documents []string
	// Embeddings are kept for Go callers. The C result has no slot for them.
	Embeddings [][]float32
}

// Len returns the number of rows.
func (r *Rows) Len() int { return len(r.IDs) }

// FlattenGet converts a get response.
func FlattenGet(resp frontend.GetResponse) (*Rows, error) {
	return flatten(resp.IDs, resp.Embeddings, resp.Metadatas, resp.Documents, nil)
}

// FlattenQuery converts a query response using the row of the first query
// embedding.
func FlattenQuery(resp frontend.QueryResponse) (*Rows, error) {
	if len(resp.IDs) == 0 {
		return &Rows{}, nil
	}
	var (
		embeddings [][]float32
		metadatas  []metadata.Document
		documents  []*string
		distances  []*float32
	)
	if len(resp.Embeddings) > 0 {
		embeddings = resp.Embeddings[0]
	}
	if len(resp.Metadatas) > 0 {
		metadatas = resp.Metadatas[0]
	}
	if len(resp.Documents) > 0 {
		documents = resp.Documents[0]
	}
	if len(resp.Distances) > 0 {
		distances = resp.Distances[0]
	}
	return flatten(resp.IDs[0], embeddings, metadatas, documents, distances)
}

func flatten(ids []string, embeddings [][]float32, metadatas []metadata.Document, documents []*string, distances []*float32) (*Rows, error) {
	rows := &Rows{}
	if len(ids) > 0 {
		rows.IDs = append([]string(nil), ids...)
	}
	if len(embeddings) > 0 {
		rows.Embeddings = embeddings
	}

	if len(distances) > 0 {
		rows.Distances = make([]float32, len(distances))
		for i, d := range distances {
			if d != nil {
				rows.Distances[i] = *d
			}
		}
	}

	if len(metadatas) > 0 {
		rows.Metadatas = make([]string, len(metadatas))
		for i, md := range metadatas {
			if md == nil {
				continue
			}
			b, err := json.Marshal(md)
			if err != nil {
				return nil, fmt.Errorf("encode metadata of %q: %w", ids[i], err)
			}
			rows.Metadatas[i] = string(b)
		}
	}

	if len(documents) > 0 {
		rows.Documents = make([]string, len(documents))
		for i, d := range documents {
			if d != nil {
				rows.Documents[i] = *d
			}
		}
	}
	return rows, nil
}
