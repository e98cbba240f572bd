package writer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/datastore"
	"github.com/tphakala/challenge-migration/internal/docstore"
	"github.com/tphakala/challenge-migration/internal/ledger"
	"github.com/tphakala/challenge-migration/internal/model"
	"github.com/tphakala/challenge-migration/internal/searchindex"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

type fixture struct {
	docs   *docstore.Memory
	index  *searchindex.Memory
	ledger *ledger.Store
	w      *Writer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := datastore.Open(datastore.Options{Driver: conf.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = datastore.Close(db) })

	store, err := ledger.NewStore(db, nil)
	require.NoError(t, err)

	f := &fixture{
		docs:   docstore.NewMemory(),
		index:  searchindex.NewMemory("challenge"),
		ledger: store,
	}
	f.w = New(f.docs, f.index, store, Config{
		ChallengeTable:     "Challenge",
		ChallengeTypeTable: "ChallengeType",
		ChallengeIndex:     "challenge",
		ChallengeType:      "_doc",
		ChallengeTypeIndex: "challenge_type",
		ChallengeTypeType:  "_doc",
		Concurrency:        2,
	}, nil, nil)
	return f
}

func sampleChallenge(legacyID int64, id string) *model.Challenge {
	created := time.Date(2019, 3, 1, 10, 0, 0, 0, time.UTC)
	return &model.Challenge{
		ID:               id,
		LegacyID:         legacyID,
		Legacy:           model.Legacy{Track: "DEVELOP", InformixModified: created.UnixMilli()},
		Name:             "Sample challenge",
		Status:           "Completed",
		Created:          created,
		Updated:          created,
		StartDate:        created,
		Groups:           []string{"g-1", "null", "NULL"},
		NumOfSubmissions: 4,
		NumOfRegistrants: 9,
	}
}

func ledgerEntries(t *testing.T, s *ledger.Store) map[ledger.Sink]ledger.Entry {
	t.Helper()
	entries, err := s.List(t.Context())
	require.NoError(t, err)
	out := map[ledger.Sink]ledger.Entry{}
	for _, e := range entries {
		out[e.Sink] = e
	}
	return out
}

func TestCreate_WritesBothSinks(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rec := f.w.Create(t.Context(), sampleChallenge(30001, "uuid-1"), false)
	require.True(t, rec.OK())
	assert.False(t, rec.Updated)

	stored, ok := f.docs.Get("Challenge", "uuid-1")
	require.True(t, ok)
	assert.NotContains(t, stored, "numOfSubmissions")
	assert.NotContains(t, stored, "numOfRegistrants")
	assert.Equal(t, []any{"g-1", "null", "NULL"}, stored["groups"])

	indexed, ok := f.index.Get("challenge", "uuid-1")
	require.True(t, ok)
	assert.InDelta(t, 4, indexed["numOfSubmissions"], 0)
	assert.Equal(t, []any{"g-1"}, indexed["groups"])

	assert.Empty(t, ledgerEntries(t, f.ledger))
}

func TestCreate_PrimaryFailureStillMirrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.docs.Fail = func(op, _, _ string) error {
		if op == "create" {
			return errors.New("connection reset")
		}
		return nil
	}

	rec := f.w.Create(t.Context(), sampleChallenge(30002, "uuid-2"), false)
	assert.True(t, rec.Failed())
	assert.Equal(t, model.StepFailed, rec.Primary.Status)
	assert.Equal(t, model.StepOK, rec.Mirror.Status)
	assert.Equal(t, 1, f.index.Len("challenge"))

	entries := ledgerEntries(t, f.ledger)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(30002), entries[ledger.SinkPersistence].LegacyID)
	assert.Contains(t, entries[ledger.SinkPersistence].Message, "connection reset")
}

func TestUpdate_RetryClearsLedger(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	f.index.Fail = func(string, string, string) error { return errors.New("503 service unavailable") }
	rec := f.w.Create(ctx, sampleChallenge(30003, "uuid-3"), false)
	require.Equal(t, model.StepFailed, rec.Mirror.Status)
	require.Len(t, ledgerEntries(t, f.ledger), 1)

	f.index.Fail = nil
	rec = f.w.Update(ctx, sampleChallenge(30003, "uuid-3"), true)
	require.True(t, rec.OK())
	assert.True(t, rec.Updated)
	assert.Empty(t, ledgerEntries(t, f.ledger))
	assert.Equal(t, 1, f.docs.Len("Challenge"))
	assert.Equal(t, 1, f.index.Len("challenge"))
}

func TestUpdate_Idempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	doc := sampleChallenge(30004, "uuid-4")
	require.True(t, f.w.Update(ctx, doc, true).OK())
	first, _ := f.docs.Get("Challenge", "uuid-4")

	require.True(t, f.w.Update(ctx, doc, true).OK())
	second, _ := f.docs.Get("Challenge", "uuid-4")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.index.Len("challenge"))
	assert.Empty(t, ledgerEntries(t, f.ledger))
}

func TestWriteAll_ReusesExistingIDs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	docs := []*model.Challenge{
		sampleChallenge(1, "new-1"),
		sampleChallenge(2, "new-2"),
		sampleChallenge(3, "new-3"),
	}
	existing := map[int64]string{2: "old-2"}

	records := f.w.WriteAll(t.Context(), docs, existing, false)
	require.Len(t, records, 3)

	assert.Equal(t, "new-1", records[0].ID)
	assert.False(t, records[0].Updated)
	assert.Equal(t, "old-2", records[1].ID)
	assert.True(t, records[1].Updated)
	assert.Equal(t, "new-2", docs[1].ID, "input document must not be modified")

	_, ok := f.docs.Get("Challenge", "old-2")
	assert.True(t, ok)
	_, ok = f.docs.Get("Challenge", "new-2")
	assert.False(t, ok)
	for _, r := range records {
		assert.True(t, r.OK())
	}
}

func TestWriteAll_CancelledContextStillRecordsFailures(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	ctx, cancel := context.WithCancel(t.Context())
	f.docs.Fail = func(string, string, string) error {
		cancel()
		return context.Canceled
	}

	records := f.w.WriteAll(ctx, []*model.Challenge{sampleChallenge(7, "uuid-7")}, nil, false)
	require.Len(t, records, 1)
	assert.Equal(t, model.StepFailed, records[0].Primary.Status)
	assert.Contains(t, ledgerEntries(t, f.ledger), ledger.SinkPersistence)
}

func TestTypeWrites(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := t.Context()

	ct := &model.ChallengeType{
		ID:           "type-uuid",
		LegacyID:     39,
		Name:         "Marathon Match",
		Abbreviation: "MM",
		Extra:        map[string]any{"isActive": true},
	}

	f.docs.Fail = func(string, string, string) error { return errors.New("unavailable") }
	rec := f.w.CreateType(ctx, ct, false)
	require.Equal(t, model.StepFailed, rec.Primary.Status)

	entries := ledgerEntries(t, f.ledger)
	require.Len(t, entries, 1)
	assert.Equal(t, "Marathon Match", entries[ledger.SinkPersistence].ChallengeType)
	assert.Zero(t, entries[ledger.SinkPersistence].LegacyID)

	f.docs.Fail = nil
	rec = f.w.UpdateType(ctx, ct, true)
	require.True(t, rec.OK())
	assert.Empty(t, ledgerEntries(t, f.ledger))

	stored, ok := f.docs.Get("ChallengeType", "type-uuid")
	require.True(t, ok)
	assert.Equal(t, "MM", stored["abbreviation"])
	assert.Equal(t, true, stored["isActive"])

	indexed, ok := f.index.Get("challenge_type", "type-uuid")
	require.True(t, ok)
	assert.Equal(t, "Marathon Match", indexed["name"])
}

func TestIndexBody(t *testing.T) {
	t.Parallel()

	body := map[string]any{
		"groups": []any{"a", nil, "Null", "b"},
		"name":   "x",
	}
	out := IndexBody(body)
	assert.Equal(t, []any{"a", "b"}, out["groups"])
	assert.Len(t, body["groups"], 4, "input must not be modified")

	out = IndexBody(map[string]any{"name": "no groups"})
	assert.NotContains(t, out, "groups")
}

func TestStoreBody(t *testing.T) {
	t.Parallel()

	body := map[string]any{"numOfSubmissions": 1, "numOfRegistrants": 2, "name": "x"}
	out := StoreBody(body)
	assert.Equal(t, map[string]any{"name": "x"}, out)
	assert.Len(t, body, 3)
}
