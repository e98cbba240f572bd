// Package writer commits migrated documents to the document store and the
// search index. Every failed write is recorded in the error ledger; a retry
// that succeeds clears its entry.
package writer

import (
	"context"
	"maps"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/challenge-migration/internal/docstore"
	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/ledger"
	"github.com/tphakala/challenge-migration/internal/logger"
	"github.com/tphakala/challenge-migration/internal/model"
	"github.com/tphakala/challenge-migration/internal/observability/metrics"
	"github.com/tphakala/challenge-migration/internal/searchindex"
)

const defaultConcurrency = 8

// Fields indexed for search but never stored in the document store.
var searchOnlyFields = []string{"numOfSubmissions", "numOfRegistrants"}

// Ledger records failed writes. *ledger.Store implements it.
type Ledger interface {
	Put(ctx context.Context, key ledger.Key, sink ledger.Sink, message string) error
	Remove(ctx context.Context, key ledger.Key, sink ledger.Sink) error
}

// Config names the tables and indices written to.
type Config struct {
	ChallengeTable     string
	ChallengeTypeTable string

	ChallengeIndex     string
	ChallengeType      string
	ChallengeTypeIndex string
	ChallengeTypeType  string

	// Concurrency bounds parallel document writes in WriteAll
	Concurrency int
}

// Writer writes documents to both sinks.
type Writer struct {
	docs    docstore.Store
	index   searchindex.Index
	ledger  Ledger
	cfg     Config
	log     logger.Logger
	metrics *metrics.MigrationMetrics
}

// New creates a writer. log and m may be nil.
func New(docs docstore.Store, index searchindex.Index, l Ledger, cfg Config, log logger.Logger, m *metrics.MigrationMetrics) *Writer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Writer{docs: docs, index: index, ledger: l, cfg: cfg, log: log, metrics: m}
}

type target struct {
	table   string
	index   string
	docType string
}

func (w *Writer) challengeTarget() target {
	return target{table: w.cfg.ChallengeTable, index: w.cfg.ChallengeIndex, docType: w.cfg.ChallengeType}
}

func (w *Writer) typeTarget() target {
	return target{table: w.cfg.ChallengeTypeTable, index: w.cfg.ChallengeTypeIndex, docType: w.cfg.ChallengeTypeType}
}

// Create writes a new challenge to both sinks. It never fails; the outcome
// of each sink is in the returned record.
func (w *Writer) Create(ctx context.Context, doc *model.Challenge, isRetry bool) *model.WriteRecord {
	return w.writeChallenge(ctx, doc, false, isRetry)
}

// Update replaces an existing challenge in the document store and upserts
// it into the search index.
func (w *Writer) Update(ctx context.Context, doc *model.Challenge, isRetry bool) *model.WriteRecord {
	return w.writeChallenge(ctx, doc, true, isRetry)
}

// WriteAll writes docs concurrently. Documents whose legacy id is in existing
// are updated under the existing id; the others are created. Records are
// returned in input order.
func (w *Writer) WriteAll(ctx context.Context, docs []*model.Challenge, existing map[int64]string, isRetry bool) []*model.WriteRecord {
	records := make([]*model.WriteRecord, len(docs))

	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			if id, ok := existing[doc.LegacyID]; ok && id != "" {
				updated := *doc
				updated.ID = id
				records[i] = w.Update(ctx, &updated, isRetry)
				return nil
			}
			records[i] = w.Create(ctx, doc, isRetry)
			return nil
		})
	}
	_ = g.Wait()
	return records
}

// CreateType writes a new challenge type to both sinks.
func (w *Writer) CreateType(ctx context.Context, t *model.ChallengeType, isRetry bool) *model.WriteRecord {
	return w.writeType(ctx, t, false, isRetry)
}

// UpdateType replaces a challenge type in both sinks.
func (w *Writer) UpdateType(ctx context.Context, t *model.ChallengeType, isRetry bool) *model.WriteRecord {
	return w.writeType(ctx, t, true, isRetry)
}

func (w *Writer) writeChallenge(ctx context.Context, doc *model.Challenge, update, isRetry bool) *model.WriteRecord {
	rec := model.NewWriteRecord(doc.LegacyID, doc.ID, update)
	key := ledger.ChallengeKey(doc.LegacyID)

	body, err := model.ToMap(doc)
	if err != nil {
		w.failBoth(ctx, rec, key, err)
		return rec
	}
	w.write(ctx, rec, w.challengeTarget(), key, doc.ID, StoreBody(body), IndexBody(body), update, isRetry)
	return rec
}

func (w *Writer) writeType(ctx context.Context, t *model.ChallengeType, update, isRetry bool) *model.WriteRecord {
	rec := model.NewWriteRecord(t.LegacyID, t.ID, update)
	key := ledger.TypeKey(t.Name)
	doc := t.Document()
	w.write(ctx, rec, w.typeTarget(), key, t.ID, doc, doc, update, isRetry)
	return rec
}

// write runs the primary and the mirror step. Both are always attempted.
func (w *Writer) write(ctx context.Context, rec *model.WriteRecord, tgt target, key ledger.Key, id string, storeBody, indexBody map[string]any, update, isRetry bool) {
	w.step(ctx, &rec.Primary, key, ledger.SinkPersistence, isRetry, func() error {
		if update {
			return w.docs.Update(ctx, tgt.table, id, storeBody)
		}
		return w.docs.Create(ctx, tgt.table, id, storeBody)
	})

	w.step(ctx, &rec.Mirror, key, ledger.SinkSearchIndex, isRetry, func() error {
		if update {
			return w.index.Update(ctx, tgt.index, tgt.docType, id, indexBody, true)
		}
		return w.index.Create(ctx, tgt.index, tgt.docType, id, indexBody)
	})
}

func (w *Writer) step(ctx context.Context, st *model.Step, key ledger.Key, sink ledger.Sink, isRetry bool, fn func() error) {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start).Seconds()

	// ledger bookkeeping must survive a cancelled run
	lctx := context.WithoutCancel(ctx)

	if err != nil {
		st.Status, st.Err = model.StepFailed, err
		w.metrics.RecordSinkWrite(string(sink), metrics.StatusError, elapsed)
		w.log.Warn("sink write failed",
			logger.String("sink", string(sink)),
			logger.Int64("legacy_id", key.LegacyID),
			logger.String("challenge_type", key.ChallengeType),
			logger.Error(err))
		if lerr := w.ledger.Put(lctx, key, sink, err.Error()); lerr != nil {
			w.log.Error("failed to record ledger entry",
				logger.String("sink", string(sink)),
				logger.Int64("legacy_id", key.LegacyID),
				logger.Error(lerr))
		}
		return
	}

	st.Status = model.StepOK
	w.metrics.RecordSinkWrite(string(sink), metrics.StatusSuccess, elapsed)
	if !isRetry {
		return
	}
	if lerr := w.ledger.Remove(lctx, key, sink); lerr != nil {
		w.log.Error("failed to clear ledger entry",
			logger.String("sink", string(sink)),
			logger.Int64("legacy_id", key.LegacyID),
			logger.Error(lerr))
	}
}

func (w *Writer) failBoth(ctx context.Context, rec *model.WriteRecord, key ledger.Key, err error) {
	err = errors.New(err).
		Component("writer").
		Category(errors.CategoryProcessing).
		Context("operation", "encode-document").
		Context("legacy_id", key.LegacyID).
		Build()
	for _, s := range []struct {
		st   *model.Step
		sink ledger.Sink
	}{{&rec.Primary, ledger.SinkPersistence}, {&rec.Mirror, ledger.SinkSearchIndex}} {
		w.step(ctx, s.st, key, s.sink, false, func() error { return err })
	}
}

// StoreBody returns the document store body: body without the search-only
// counters.
func StoreBody(body map[string]any) map[string]any {
	out := maps.Clone(body)
	for _, f := range searchOnlyFields {
		delete(out, f)
	}
	return out
}

// IndexBody returns the search index body: body with groups whose string
// form is "null" removed.
func IndexBody(body map[string]any) map[string]any {
	out := maps.Clone(body)
	groups, ok := body["groups"].([]any)
	if !ok {
		return out
	}
	kept := make([]any, 0, len(groups))
	for _, g := range groups {
		if s, ok := g.(string); ok && strings.EqualFold(s, "null") {
			continue
		}
		if g == nil {
			continue
		}
		kept = append(kept, g)
	}
	out["groups"] = kept
	return out
}
