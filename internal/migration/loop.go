package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/legacy"
	"github.com/tphakala/challenge-migration/internal/logger"
	"github.com/tphakala/challenge-migration/internal/model"
	"github.com/tphakala/challenge-migration/internal/observability/metrics"
	"github.com/tphakala/challenge-migration/internal/searchindex"
)

// Mode selects what a run processes.
type Mode string

const (
	// ModeNormal pages through the legacy source.
	ModeNormal Mode = "normal"
	// ModeRetryFailed reprocesses the keys recorded in the error ledger.
	ModeRetryFailed Mode = "retry-failed"
)

// DefaultBatchSize is used when Options.BatchSize is not positive.
const DefaultBatchSize = 100

// ParseMode validates a mode name. The empty string is ModeNormal.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeNormal:
		return ModeNormal, nil
	case ModeRetryFailed:
		return ModeRetryFailed, nil
	default:
		return "", errors.Newf("unknown migration mode %q", s).
			Component("migration").
			Category(errors.CategoryValidation).
			Context("mode", s).
			Build()
	}
}

// Options configures Migrate.
type Options struct {
	Mode      Mode
	Filter    legacy.Filter
	BatchSize int
	StartSkip int

	// MaxPages stops the run after this many pages; 0 runs until the source
	// is exhausted
	MaxPages int
}

// RunSummary reports the outcome of a run.
type RunSummary struct {
	Mode     Mode
	Pages    int
	Fetched  int
	Written  int
	Updated  int
	Skipped  int
	Failed   int
	Duration time.Duration

	// Cancelled is set when the context ended the run early
	Cancelled bool
	// LedgerEntries is the ledger size after the run, -1 when unknown
	LedgerEntries int64
	// Stale counts ledger ids the legacy source no longer returns
	Stale int
}

// Succeeded reports whether the run finished without failures.
func (s RunSummary) Succeeded() bool {
	return s.Failed == 0 && !s.Cancelled
}

func (s RunSummary) String() string {
	return fmt.Sprintf("mode=%s pages=%d fetched=%d written=%d updated=%d skipped=%d failed=%d duration=%s",
		s.Mode, s.Pages, s.Fetched, s.Written, s.Updated, s.Skipped, s.Failed, s.Duration.Round(time.Millisecond))
}

// Migrate runs the page loop. It stops when the source is exhausted, after
// MaxPages pages, on a page error or when ctx is cancelled between pages.
// The summary is valid even when an error is returned.
func (r *Runner) Migrate(ctx context.Context, opts Options) (RunSummary, error) {
	start := time.Now()
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Mode == "" {
		opts.Mode = ModeNormal
	}
	summary := RunSummary{Mode: opts.Mode, LedgerEntries: -1}

	r.log.Info("migration started",
		logger.String("mode", string(opts.Mode)),
		logger.Int("batch_size", opts.BatchSize),
		logger.Int("start_skip", opts.StartSkip),
		logger.Int("max_pages", opts.MaxPages),
		logger.Time("created_after", opts.Filter.CreatedAfter))

	var err error
	switch opts.Mode {
	case ModeNormal:
		err = r.migrateNormal(ctx, opts, &summary)
	case ModeRetryFailed:
		err = r.migrateRetry(ctx, opts, &summary)
	default:
		_, err = ParseMode(string(opts.Mode))
	}

	summary.Duration = time.Since(start)
	r.finish(ctx, &summary, err)
	return summary, err
}

func (r *Runner) migrateNormal(ctx context.Context, opts Options, summary *RunSummary) error {
	skip := opts.StartSkip
	for opts.MaxPages <= 0 || summary.Pages < opts.MaxPages {
		if ctx.Err() != nil {
			summary.Cancelled = true
			return nil
		}

		req := PageRequest{Skip: skip, Limit: opts.BatchSize, Filter: opts.Filter}
		finished, err := r.page(ctx, req, false, summary)
		if err != nil || finished {
			return err
		}
		skip += opts.BatchSize
	}
	return nil
}

func (r *Runner) migrateRetry(ctx context.Context, opts Options, summary *RunSummary) error {
	ids, err := r.ledger.FailedLegacyIDs(ctx)
	if err != nil {
		return err
	}
	r.log.Info("retrying failed challenges", logger.Int("challenges", len(ids)))

	for start := 0; start < len(ids); start += opts.BatchSize {
		if opts.MaxPages > 0 && summary.Pages >= opts.MaxPages {
			return nil
		}
		if ctx.Err() != nil {
			summary.Cancelled = true
			return nil
		}

		chunk := ids[start:min(start+opts.BatchSize, len(ids))]
		if _, err := r.page(ctx, PageRequest{IDs: chunk}, true, summary); err != nil {
			return err
		}
	}
	return nil
}

// page runs and writes one page. It reports whether the source is exhausted.
func (r *Runner) page(ctx context.Context, req PageRequest, isRetry bool, summary *RunSummary) (bool, error) {
	start := time.Now()

	res, err := r.RunPage(ctx, req)
	if err != nil {
		r.metrics.RecordOperation(metrics.OpPage, metrics.StatusError)
		r.log.Error("page failed",
			logger.Int("skip", req.Skip),
			logger.Int("ids", len(req.IDs)),
			logger.Error(err))
		return false, err
	}
	if isRetry {
		r.reportStale(req.IDs, res, summary)
	}
	if res.Finish {
		if !isRetry {
			r.log.Info("legacy source exhausted", logger.Int("skip", req.Skip))
		}
		return true, nil
	}

	summary.Pages++
	summary.Fetched += res.Fetched
	summary.Failed += len(res.Failed)
	for range res.Failed {
		r.metrics.RecordDocument("challenge", metrics.OutcomeFailed)
	}

	stored, err := r.lookupStored(ctx, res.Challenges)
	if err != nil {
		r.metrics.RecordOperation(metrics.OpPage, metrics.StatusError)
		r.log.Error("page failed",
			logger.Int("skip", req.Skip),
			logger.Int("ids", len(req.IDs)),
			logger.Error(err))
		return false, err
	}
	indexed := r.lookupExisting(ctx, res.Challenges)
	toWrite, existingIDs := partition(res.Challenges, indexed, stored, isRetry)
	skipped := len(res.Challenges) - len(toWrite)
	summary.Skipped += skipped
	for range skipped {
		r.metrics.RecordDocument("challenge", metrics.OutcomeSkipped)
	}

	records := r.sink.WriteAll(ctx, toWrite, existingIDs, isRetry)
	var written, updated, failed int
	for _, rec := range records {
		switch {
		case rec.Failed():
			failed++
			r.metrics.RecordDocument("challenge", metrics.OutcomeFailed)
		case rec.Updated:
			updated++
			r.metrics.RecordDocument("challenge", metrics.OutcomeUpdated)
		default:
			written++
			r.metrics.RecordDocument("challenge", metrics.OutcomeCreated)
		}
	}
	summary.Written += written
	summary.Updated += updated
	summary.Failed += failed

	r.metrics.RecordOperation(metrics.OpPage, metrics.StatusSuccess)
	r.metrics.RecordDuration(metrics.OpPage, time.Since(start).Seconds())
	r.log.Info("page migrated",
		logger.Int("page", summary.Pages),
		logger.Int("skip", req.Skip),
		logger.Int("fetched", res.Fetched),
		logger.Int("created", written),
		logger.Int("updated", updated),
		logger.Int("skipped", skipped),
		logger.Int("failed", failed+len(res.Failed)),
		logger.Duration("elapsed", time.Since(start)))
	return false, nil
}

// reportStale counts the requested ledger ids the legacy source no longer
// returns. Their entries stay in the ledger until cleared.
func (r *Runner) reportStale(requested []int64, res PageResult, summary *RunSummary) {
	seen := make(map[int64]bool, len(res.Challenges)+len(res.Failed))
	for _, c := range res.Challenges {
		seen[c.LegacyID] = true
	}
	for _, id := range res.Failed {
		seen[id] = true
	}
	var stale []int64
	for _, id := range requested {
		if !seen[id] {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return
	}
	summary.Stale += len(stale)
	r.log.Warn("ledger ids no longer returned by the legacy source",
		logger.Any("legacy_ids", stale))
}

// lookupStored returns the document store record ids of docs keyed by legacy
// id. Nil means the store is not consulted.
func (r *Runner) lookupStored(ctx context.Context, docs []*model.Challenge) (map[int64]string, error) {
	if r.docs == nil || r.table == "" || len(docs) == 0 {
		return nil, nil
	}
	start := time.Now()
	stored, err := r.docs.IDsByLegacyID(ctx, r.table, legacyIDs(docs))
	r.observe(metrics.OpStoredLookup, start, err)
	if err != nil {
		return nil, errors.New(err).
			Component("migration").
			Category(errors.CategoryDocumentStore).
			Context("operation", "stored-lookup").
			Context("table", r.table).
			Build()
	}
	return stored, nil
}

// lookupExisting returns the already indexed challenges of docs keyed by
// legacy id. A failed lookup is treated as no hits.
func (r *Runner) lookupExisting(ctx context.Context, docs []*model.Challenge) map[int64]searchindex.Existing {
	if r.existing == nil || len(docs) == 0 {
		return nil
	}
	ids := legacyIDs(docs)

	start := time.Now()
	hits, err := r.existing.ExistingByLegacyIDs(ctx, ids)
	r.observe(metrics.OpExistingLookup, start, err)
	if err != nil {
		r.log.Warn("existing challenge lookup failed, treating page as new",
			logger.Int("challenges", len(ids)),
			logger.Error(err))
		return nil
	}
	return searchindex.ByLegacyID(hits)
}

func legacyIDs(docs []*model.Challenge) []int64 {
	ids := make([]int64, len(docs))
	for i, d := range docs {
		ids[i] = d.LegacyID
	}
	return ids
}

// partition drops unchanged documents, unless retrying, and returns the
// documents to write with the ids of those that already exist. A stored
// record id wins over the indexed one. A nil stored map means the store was
// not consulted; otherwise an indexed document missing from the store is
// rewritten even when unchanged.
func partition(docs []*model.Challenge, indexed map[int64]searchindex.Existing, stored map[int64]string, isRetry bool) ([]*model.Challenge, map[int64]string) {
	toWrite := make([]*model.Challenge, 0, len(docs))
	ids := make(map[int64]string)
	for _, d := range docs {
		e, inIndex := indexed[d.LegacyID]
		inIndex = inIndex && e.ID != ""
		storedID, inStore := stored[d.LegacyID]
		inStore = inStore && storedID != ""

		unchanged := inIndex && e.InformixModified == d.Legacy.InformixModified
		if !isRetry && unchanged && (stored == nil || inStore) {
			continue
		}
		switch {
		case inStore:
			ids[d.LegacyID] = storedID
		case inIndex:
			ids[d.LegacyID] = e.ID
		}
		toWrite = append(toWrite, d)
	}
	return toWrite, ids
}

func (r *Runner) finish(ctx context.Context, summary *RunSummary, err error) {
	if r.ledger != nil {
		if n, lerr := r.ledger.Count(context.WithoutCancel(ctx)); lerr == nil {
			summary.LedgerEntries = n
			r.metrics.SetLedgerEntries(n)
		}
	}
	r.metrics.MarkRunFinished(float64(time.Now().Unix()))

	fields := []logger.Field{
		logger.String("mode", string(summary.Mode)),
		logger.Int("pages", summary.Pages),
		logger.Int("fetched", summary.Fetched),
		logger.Int("created", summary.Written),
		logger.Int("updated", summary.Updated),
		logger.Int("skipped", summary.Skipped),
		logger.Int("failed", summary.Failed),
		logger.Int("stale", summary.Stale),
		logger.Int64("ledger_entries", summary.LedgerEntries),
		logger.Bool("cancelled", summary.Cancelled),
		logger.Duration("duration", summary.Duration),
	}
	if err != nil {
		r.log.Error("migration stopped", append(fields, logger.Error(err))...)
		return
	}
	r.log.Info("migration finished", fields...)
}
