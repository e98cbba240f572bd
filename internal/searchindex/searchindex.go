// Package searchindex mirrors migrated documents into Elasticsearch.
package searchindex

import (
	"context"
	"encoding/json"

	"github.com/tphakala/challenge-migration/internal/errors"
)

// Index is the search index used by the writer and the runner.
type Index interface {
	Create(ctx context.Context, index, docType, id string, body map[string]any) error
	Update(ctx context.Context, index, docType, id string, doc map[string]any, upsert bool) error
	Search(ctx context.Context, index, docType string, query map[string]any) ([]Hit, error)
	// ExistingByLegacyIDs returns the already indexed challenges among ids.
	ExistingByLegacyIDs(ctx context.Context, ids []int64) ([]Existing, error)
}

// Hit is one search result.
type Hit struct {
	ID     string
	Source json.RawMessage
}

// Existing identifies an indexed challenge and the source modification time
// it was built from.
type Existing struct {
	ID               string
	LegacyID         int64
	InformixModified int64
}

// ExistingSource is the _source filter used for resumability lookups.
var ExistingSource = []string{"id", "legacyId", "legacy.informixModified"}

// existingQuery builds the terms query for ExistingByLegacyIDs. Hits are
// collapsed on legacyId so a legacy id indexed twice still takes one slot of
// the page size.
func existingQuery(ids []int64) map[string]any {
	return map[string]any{
		"size":     len(ids),
		"_source":  ExistingSource,
		"collapse": map[string]any{"field": "legacyId"},
		"query": map[string]any{
			"terms": map[string]any{"legacyId": ids},
		},
	}
}

type existingDoc struct {
	ID       string `json:"id"`
	LegacyID int64  `json:"legacyId"`
	Legacy   struct {
		InformixModified int64 `json:"informixModified"`
	} `json:"legacy"`
}

func decodeExisting(hits []Hit) ([]Existing, error) {
	out := make([]Existing, 0, len(hits))
	for _, h := range hits {
		var doc existingDoc
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return nil, indexError(err, "decode-existing", "", h.ID)
		}
		id := doc.ID
		if id == "" {
			id = h.ID
		}
		out = append(out, Existing{ID: id, LegacyID: doc.LegacyID, InformixModified: doc.Legacy.InformixModified})
	}
	return out, nil
}

// ByLegacyID indexes existing documents by legacy id.
func ByLegacyID(existing []Existing) map[int64]Existing {
	m := make(map[int64]Existing, len(existing))
	for _, e := range existing {
		m[e.LegacyID] = e
	}
	return m
}

func indexError(err error, op, index, id string) error {
	b := errors.New(err).
		Component("search").
		Category(errors.CategorySearchIndex).
		Context("operation", op)
	if index != "" {
		b = b.Context("index", index)
	}
	if id != "" {
		b = b.Context("id", id)
	}
	return b.Build()
}
