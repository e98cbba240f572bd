package migration

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/logger"
	"github.com/tphakala/challenge-migration/internal/model"
	"github.com/tphakala/challenge-migration/internal/observability/metrics"
	"github.com/tphakala/challenge-migration/internal/reference"
)

// DefaultAbbreviation is used for legacy types without a sub-track.
const DefaultAbbreviation = "Other"

// Legacy attributes consumed by the mapping and not copied to the document.
var consumedTypeFields = []string{"id", "type", "subTrack", "name"}

// MigrateChallengeTypes copies the legacy challenge types into both sinks.
// In normal mode types whose legacy id is already stored are skipped. In
// retry mode only the types named in the ledger are written, replacing the
// stored document when there is one.
func (r *Runner) MigrateChallengeTypes(ctx context.Context, mode Mode) (RunSummary, error) {
	start := time.Now()
	summary := RunSummary{Mode: mode, LedgerEntries: -1}

	err := r.migrateTypes(ctx, mode, &summary)
	summary.Duration = time.Since(start)
	r.finish(ctx, &summary, err)
	return summary, err
}

func (r *Runner) migrateTypes(ctx context.Context, mode Mode, summary *RunSummary) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	legacyTypes, err := r.refs.ChallengeTypes(ctx)
	if err != nil {
		return err
	}
	summary.Fetched = len(legacyTypes)

	stored, err := r.docs.ScanAll(ctx, r.typeTable)
	if err != nil {
		return errors.New(err).
			Component("migration").
			Category(errors.CategoryDocumentStore).
			Context("operation", "scan-challenge-types").
			Context("table", r.typeTable).
			Build()
	}
	storedIDs := reference.TypeMappingFrom(stored)

	isRetry := mode == ModeRetryFailed
	var retryNames []string
	if isRetry {
		if retryNames, err = r.ledger.FailedChallengeTypes(ctx); err != nil {
			return err
		}
		r.log.Info("retrying failed challenge types", logger.Int("types", len(retryNames)))
	}

	for _, raw := range legacyTypes {
		if ctx.Err() != nil {
			summary.Cancelled = true
			return nil
		}

		t, err := r.challengeType(raw)
		if err != nil {
			r.log.Warn("skipping malformed challenge type", logger.Error(err))
			summary.Failed++
			r.metrics.RecordDocument("challenge_type", metrics.OutcomeFailed)
			continue
		}

		existingID, exists := storedIDs[t.LegacyID]
		var rec *model.WriteRecord
		switch {
		case isRetry && !slices.Contains(retryNames, t.Name):
			continue
		case isRetry && exists:
			t.ID = existingID
			rec = r.sink.UpdateType(ctx, t, true)
		case isRetry:
			rec = r.sink.CreateType(ctx, t, true)
		case exists:
			summary.Skipped++
			r.metrics.RecordDocument("challenge_type", metrics.OutcomeSkipped)
			continue
		default:
			rec = r.sink.CreateType(ctx, t, false)
		}

		switch {
		case rec.Failed():
			summary.Failed++
			r.metrics.RecordDocument("challenge_type", metrics.OutcomeFailed)
		case rec.Updated:
			summary.Updated++
			r.metrics.RecordDocument("challenge_type", metrics.OutcomeUpdated)
		default:
			summary.Written++
			r.metrics.RecordDocument("challenge_type", metrics.OutcomeCreated)
		}
		r.log.Debug("challenge type written",
			logger.String("name", t.Name),
			logger.Int64("legacy_id", t.LegacyID),
			logger.String("id", t.ID),
			logger.Bool("ok", rec.OK()))
	}
	summary.Pages = 1
	return nil
}

// challengeType maps a legacy challenge type listing entry to a document
// with a fresh id.
func (r *Runner) challengeType(raw map[string]any) (*model.ChallengeType, error) {
	legacyID, ok := reference.AsInt64(raw["id"])
	if !ok {
		return nil, errors.Newf("challenge type without a numeric id").
			Component("migration").
			Category(errors.CategoryValidation).
			Context("name", raw["name"]).
			Build()
	}
	name, _ := raw["name"].(string)
	abbreviation, _ := raw["subTrack"].(string)
	if abbreviation == "" {
		abbreviation = DefaultAbbreviation
	}

	extra := make(map[string]any, len(raw))
	for k, v := range raw {
		if slices.Contains(consumedTypeFields, k) {
			continue
		}
		extra[k] = plainJSON(v)
	}

	return &model.ChallengeType{
		ID:           r.newID(),
		LegacyID:     legacyID,
		Name:         name,
		Abbreviation: abbreviation,
		Extra:        extra,
	}, nil
}

// plainJSON replaces json.Number values with int64 or float64 so documents
// encode as numbers in every sink.
func plainJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plainJSON(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plainJSON(e)
		}
		return out
	default:
		return v
	}
}
