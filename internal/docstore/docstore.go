// Package docstore writes migrated documents to the document store. Documents
// are generic JSON objects keyed by table and id.
package docstore

import (
	"context"
	"encoding/json"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/logger"
)

// Store is the document store used by the writer and the reference resolver.
type Store interface {
	// Create inserts a new document. Creating an existing id fails.
	Create(ctx context.Context, table, id string, doc map[string]any) error
	// Update replaces the whole document, creating it when missing.
	Update(ctx context.Context, table, id string, doc map[string]any) error
	// ScanAll returns every document in table. The record id is returned
	// under "id".
	ScanAll(ctx context.Context, table string) ([]map[string]any, error)
	// IDsByLegacyID maps the legacy ids among ids stored in table to their
	// record ids.
	IDsByLegacyID(ctx context.Context, table string, ids []int64) (map[int64]string, error)
	Close(ctx context.Context) error
}

// Open connects the store selected by settings.
func Open(ctx context.Context, s conf.DocStoreSettings, log logger.Logger) (Store, error) {
	switch s.Driver {
	case conf.DocStoreSurrealDB:
		return NewSurreal(ctx, SurrealConfig{
			URL:       s.URL,
			Namespace: s.Namespace,
			Database:  s.Database,
			Username:  s.Username,
			Password:  s.Password,
		}, log)
	case conf.DocStoreMemory:
		return NewMemory(), nil
	default:
		return nil, errors.Newf("unsupported document store driver %q", s.Driver).
			Component("docstore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func storeError(err error, op, table, id string) error {
	b := errors.New(err).
		Component("docstore").
		Category(errors.CategoryDocumentStore).
		Context("operation", op).
		Context("table", table)
	if id != "" {
		b = b.Context("id", id)
	}
	return b.Build()
}

// legacyIDOf reads a legacyId field as decoded by either backend.
func legacyIDOf(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), n == float64(int64(n))
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// withoutID returns doc minus its "id" key. The record id carries it.
func withoutID(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != "id" {
			out[k] = v
		}
	}
	return out
}
