package searchindex

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"sync"

	"github.com/tphakala/challenge-migration/internal/errors"
)

// ErrConflict is returned by Memory.Create for an id that is already indexed.
var ErrConflict = errors.NewStd("version conflict, document already exists")

// Memory is an in-process Index for tests and dry runs. Search ignores the
// query and returns every document of the index.
type Memory struct {
	mu      sync.RWMutex
	indices map[string]map[string]map[string]any

	// challengeIndex is read by ExistingByLegacyIDs
	challengeIndex string

	// Fail, when set, is consulted before every write.
	Fail func(op, index, id string) error
}

// NewMemory returns an empty index. challengeIndex names the index searched
// by ExistingByLegacyIDs.
func NewMemory(challengeIndex string) *Memory {
	return &Memory{
		indices:        make(map[string]map[string]map[string]any),
		challengeIndex: challengeIndex,
	}
}

// Create implements Index.
func (m *Memory) Create(_ context.Context, index, _, id string, body map[string]any) error {
	if err := m.fail("create", index, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.index(index)
	if _, ok := idx[id]; ok {
		return indexError(ErrConflict, "create", index, id)
	}
	idx[id] = maps.Clone(body)
	return nil
}

// Update implements Index. Top level fields of doc replace the stored ones.
func (m *Memory) Update(_ context.Context, index, _, id string, doc map[string]any, upsert bool) error {
	if err := m.fail("update", index, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.index(index)
	current, ok := idx[id]
	if !ok {
		if !upsert {
			return indexError(errors.NewStd("document missing"), "update", index, id)
		}
		current = make(map[string]any, len(doc))
	}
	merged := maps.Clone(current)
	maps.Copy(merged, doc)
	idx[id] = merged
	return nil
}

// Search implements Index.
func (m *Memory) Search(_ context.Context, index, _ string, _ map[string]any) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.indices[index]
	hits := make([]Hit, 0, len(idx))
	for _, id := range slices.Sorted(maps.Keys(idx)) {
		src, err := json.Marshal(idx[id])
		if err != nil {
			return nil, indexError(err, "search", index, id)
		}
		hits = append(hits, Hit{ID: id, Source: src})
	}
	return hits, nil
}

// ExistingByLegacyIDs implements Index.
func (m *Memory) ExistingByLegacyIDs(ctx context.Context, ids []int64) ([]Existing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	hits, err := m.Search(ctx, m.challengeIndex, "", nil)
	if err != nil {
		return nil, err
	}
	all, err := decodeExisting(hits)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if slices.Contains(ids, e.LegacyID) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Get returns a copy of one document.
func (m *Memory) Get(index, id string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.indices[index][id]
	return maps.Clone(doc), ok
}

// Len returns the number of documents in index.
func (m *Memory) Len(index string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.indices[index])
}

func (m *Memory) index(name string) map[string]map[string]any {
	idx, ok := m.indices[name]
	if !ok {
		idx = make(map[string]map[string]any)
		m.indices[name] = idx
	}
	return idx
}

func (m *Memory) fail(op, index, id string) error {
	if m.Fail == nil {
		return nil
	}
	if err := m.Fail(op, index, id); err != nil {
		return indexError(err, op, index, id)
	}
	return nil
}
