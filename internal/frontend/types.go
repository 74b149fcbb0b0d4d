package frontend

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hupe1980/chromaffi/internal/distance"
	"github.com/hupe1980/chromaffi/internal/index"
	"github.com/hupe1980/chromaffi/internal/index/hnsw"
	"github.com/hupe1980/chromaffi/internal/metadata"
	"github.com/hupe1980/chromaffi/internal/segment"
)

// Include names a field a get or query returns.
type Include string

const (
	IncludeEmbeddings Include = "embeddings"
	IncludeMetadatas  Include = "metadatas"
	IncludeDocuments  Include = "documents"
	IncludeDistances  Include = "distances"
)

// IncludeList is an ordered set of included fields.
type IncludeList []Include

// Has reports whether inc is part of the list.
func (l IncludeList) Has(inc Include) bool {
	for _, i := range l {
		if i == inc {
			return true
		}
	}
	return false
}

// Validate checks for unknown and repeated fields. Distances are only valid
// for queries.
func (l IncludeList) Validate(allowDistances bool) error {
	seen := make(map[Include]bool, len(l))
	for _, i := range l {
		switch i {
		case IncludeEmbeddings, IncludeMetadatas, IncludeDocuments:
		case IncludeDistances:
			if !allowDistances {
				return validationf("include %q is not valid for get", i)
			}
		default:
			return validationf("unknown include %q", i)
		}
		if seen[i] {
			return validationf("include %q given twice", i)
		}
		seen[i] = true
	}
	return nil
}

// HNSWConfiguration tunes the HNSW index of a collection. Zero values take
// the engine defaults.
type HNSWConfiguration struct {
	Space          string `json:"space,omitempty" yaml:"space" validate:"omitempty,oneof=l2 cosine ip"`
	EFConstruction int    `json:"ef_construction,omitempty" yaml:"ef_construction" validate:"gte=0"`
	EFSearch       int    `json:"ef_search,omitempty" yaml:"ef_search" validate:"gte=0"`
	MaxNeighbors   int    `json:"max_neighbors,omitempty" yaml:"max_neighbors" validate:"gte=0"`
}

// CollectionConfiguration is the index configuration of a collection.
type CollectionConfiguration struct {
	HNSW     *HNSWConfiguration `json:"hnsw,omitempty" yaml:"hnsw"`
	KnnIndex string             `json:"knn_index,omitempty" yaml:"knn_index" validate:"omitempty,oneof=hnsw flat"`
}

// ParseCollectionConfiguration decodes the JSON form of a configuration.
func ParseCollectionConfiguration(data []byte) (*CollectionConfiguration, error) {
	var cfg CollectionConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolve fills defaults so that stored configurations are complete.
func (c *CollectionConfiguration) resolve(defaultKind index.Kind) (CollectionConfiguration, error) {
	out := CollectionConfiguration{HNSW: &HNSWConfiguration{}}
	if c != nil {
		out.KnnIndex = c.KnnIndex
		if c.HNSW != nil {
			*out.HNSW = *c.HNSW
		}
	}

	kind, err := index.ParseKind(out.KnnIndex, defaultKind)
	if err != nil {
		return CollectionConfiguration{}, validationf("%v", err)
	}
	out.KnnIndex = string(kind)

	h := out.HNSW
	if h.Space == "" {
		h.Space = string(distance.SpaceL2)
	}
	if h.EFConstruction == 0 {
		h.EFConstruction = hnsw.DefaultOptions.EFConstruction
	}
	if h.EFSearch == 0 {
		h.EFSearch = hnsw.DefaultOptions.EFSearch
	}
	if h.MaxNeighbors == 0 {
		h.MaxNeighbors = hnsw.DefaultOptions.M
	}
	return out, nil
}

func (c CollectionConfiguration) segmentConfig() (segment.Config, error) {
	space, err := distance.ParseSpace(c.HNSW.Space)
	if err != nil {
		return segment.Config{}, err
	}
	kind, err := index.ParseKind(c.KnnIndex, index.KindHNSW)
	if err != nil {
		return segment.Config{}, err
	}
	opts := hnsw.DefaultOptions
	opts.M = c.HNSW.MaxNeighbors
	opts.EFConstruction = c.HNSW.EFConstruction
	opts.EFSearch = c.HNSW.EFSearch
	opts.Space = space
	return segment.Config{Kind: kind, Space: space, HNSW: opts}, nil
}

// Database is a namespace of collections.
type Database struct {
	ID     uuid.UUID
	Name   string
	Tenant string
}

// Collection describes a collection.
type Collection struct {
	ID            uuid.UUID
	Name          string
	Tenant        string
	Database      string
	Metadata      metadata.Document
	Configuration CollectionConfiguration
	// Dimension is nil until the first record fixes it.
	Dimension *int
	Version   int64
}

// GetResponse holds the records of a get, one entry per id. Fields not
// included are nil.
type GetResponse struct {
	IDs        []string
	Embeddings [][]float32
	Documents  []*string
	Metadatas  []metadata.Document
	Include    IncludeList
}

// QueryResponse holds one result row per query embedding.
type QueryResponse struct {
	IDs        [][]string
	Embeddings [][][]float32
	Documents  [][]*string
	Metadatas  [][]metadata.Document
	Distances  [][]*float32
	Include    IncludeList
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	return id, nil
}
