package docstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/tphakala/challenge-migration/internal/errors"
)

// ErrExists is returned by Create for an id that is already stored.
var ErrExists = errors.NewStd("document already exists")

// Memory is an in-process Store. Tests use it in place of SurrealDB, and
// "memory" in the config selects it for dry runs.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]map[string]map[string]any

	// Fail, when set, is consulted before every write; a non-nil result is
	// returned as the write error.
	Fail func(op, table, id string) error
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]map[string]map[string]any)}
}

// Create implements Store.
func (m *Memory) Create(_ context.Context, table, id string, doc map[string]any) error {
	if err := m.fail("create", table, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table)
	if _, ok := t[id]; ok {
		return storeError(ErrExists, "create", table, id)
	}
	t[id] = withoutID(doc)
	return nil
}

// Update implements Store.
func (m *Memory) Update(_ context.Context, table, id string, doc map[string]any) error {
	if err := m.fail("update", table, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.table(table)[id] = withoutID(doc)
	return nil
}

// ScanAll implements Store. Documents are returned in id order.
func (m *Memory) ScanAll(_ context.Context, table string) ([]map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.tables[table]
	out := make([]map[string]any, 0, len(t))
	for _, id := range slices.Sorted(maps.Keys(t)) {
		doc := maps.Clone(t[id])
		doc["id"] = id
		out = append(out, doc)
	}
	return out, nil
}

// IDsByLegacyID implements Store. When a legacy id is stored more than once
// the lowest record id wins.
func (m *Memory) IDsByLegacyID(_ context.Context, table string, ids []int64) (map[int64]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.tables[table]
	out := make(map[int64]string)
	for _, id := range slices.Sorted(maps.Keys(t)) {
		legacyID, ok := legacyIDOf(t[id]["legacyId"])
		if !ok || !slices.Contains(ids, legacyID) {
			continue
		}
		if _, seen := out[legacyID]; !seen {
			out[legacyID] = id
		}
	}
	return out, nil
}

// Get returns a copy of one document.
func (m *Memory) Get(table, id string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.tables[table][id]
	if !ok {
		return nil, false
	}
	out := maps.Clone(doc)
	out["id"] = id
	return out, true
}

// Len returns the number of documents in table.
func (m *Memory) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

// Close implements Store.
func (m *Memory) Close(context.Context) error { return nil }

func (m *Memory) table(name string) map[string]map[string]any {
	t, ok := m.tables[name]
	if !ok {
		t = make(map[string]map[string]any)
		m.tables[name] = t
	}
	return t
}

func (m *Memory) fail(op, table, id string) error {
	if m.Fail == nil {
		return nil
	}
	if err := m.Fail(op, table, id); err != nil {
		return storeError(err, op, table, id)
	}
	return nil
}
