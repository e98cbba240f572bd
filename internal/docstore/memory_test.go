package docstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/errors"
)

func TestMemory_CreateUpdateScan(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	m := NewMemory()

	require.NoError(t, m.Create(ctx, "challenge", "b", map[string]any{"id": "b", "legacyId": 2}))
	require.NoError(t, m.Create(ctx, "challenge", "a", map[string]any{"legacyId": 1, "name": "first"}))

	err := m.Create(ctx, "challenge", "a", map[string]any{"legacyId": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExists)
	assert.True(t, errors.IsCategory(err, errors.CategoryDocumentStore))

	// update replaces the whole document
	require.NoError(t, m.Update(ctx, "challenge", "a", map[string]any{"legacyId": 1}))
	// and creates missing ones
	require.NoError(t, m.Update(ctx, "challenge", "c", map[string]any{"legacyId": 3}))

	docs, err := m.ScanAll(ctx, "challenge")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"id": "a", "legacyId": 1},
		{"id": "b", "legacyId": 2},
		{"id": "c", "legacyId": 3},
	}, docs)

	empty, err := m.ScanAll(ctx, "challenge_type")
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, 3, m.Len("challenge"))
}

func TestMemory_IDsByLegacyID(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	m := NewMemory()

	require.NoError(t, m.Create(ctx, "Challenge", "uuid-2", map[string]any{"legacyId": float64(1001)}))
	require.NoError(t, m.Create(ctx, "Challenge", "uuid-1", map[string]any{"legacyId": int64(1001)}))
	require.NoError(t, m.Create(ctx, "Challenge", "uuid-3", map[string]any{"legacyId": 1002}))
	require.NoError(t, m.Create(ctx, "Challenge", "uuid-4", map[string]any{"legacyId": "1003"}))
	require.NoError(t, m.Create(ctx, "ChallengeType", "type-1", map[string]any{"legacyId": 1004}))

	got, err := m.IDsByLegacyID(ctx, "Challenge", []int64{1001, 1002, 1003, 1004})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1001: "uuid-1", 1002: "uuid-3"}, got)

	got, err = m.IDsByLegacyID(ctx, "Missing", []int64{1001})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLegacyIDOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{int64(7), 7, true},
		{7, 7, true},
		{uint64(7), 7, true},
		{float64(7), 7, true},
		{7.5, 7, false},
		{json.Number("7"), 7, true},
		{"7", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := legacyIDOf(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestMemory_ScanReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	m := NewMemory()
	require.NoError(t, m.Create(ctx, "t", "x", map[string]any{"n": 1}))

	docs, err := m.ScanAll(ctx, "t")
	require.NoError(t, err)
	docs[0]["n"] = 99

	got, ok := m.Get("t", "x")
	require.True(t, ok)
	assert.Equal(t, 1, got["n"])
}

func TestMemory_FailHook(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	m := NewMemory()
	m.Fail = func(op, table, id string) error {
		if op == "create" && id == "bad" {
			return errors.NewStd("throttled")
		}
		return nil
	}

	err := m.Create(ctx, "t", "bad", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	require.NoError(t, m.Create(ctx, "t", "good", map[string]any{}))
	require.NoError(t, m.Update(ctx, "t", "bad", map[string]any{}))
}

func TestOpen(t *testing.T) {
	t.Parallel()

	s, err := Open(t.Context(), conf.DocStoreSettings{Driver: conf.DocStoreMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	require.NoError(t, s.Close(t.Context()))

	_, err = Open(t.Context(), conf.DocStoreSettings{Driver: "dynamodb"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
