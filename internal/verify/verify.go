// Package verify compares the legacy source with the migrated sinks.
package verify

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/legacy"
	"github.com/tphakala/challenge-migration/internal/logger"
	"github.com/tphakala/challenge-migration/internal/reference"
	"github.com/tphakala/challenge-migration/internal/searchindex"
)

// DefaultBatchSize is the page size of the id scan and the index lookup.
const DefaultBatchSize = 500

// maxListed bounds the ids printed per missing list.
const maxListed = 20

// IDSource lists legacy ids. *legacy.Fetcher implements it.
type IDSource interface {
	FetchIDs(ctx context.Context, req legacy.PageRequest) ([]int64, error)
}

// Existing finds migrated challenges in the search index.
type Existing interface {
	ExistingByLegacyIDs(ctx context.Context, ids []int64) ([]searchindex.Existing, error)
}

// Documents lists stored documents.
type Documents interface {
	ScanAll(ctx context.Context, table string) ([]map[string]any, error)
}

// Report is the outcome of a verification.
type Report struct {
	Legacy  int
	Indexed int
	Stored  int

	MissingFromIndex []int64
	MissingFromStore []int64
}

// OK reports whether every legacy challenge is in both sinks.
func (r *Report) OK() bool {
	return len(r.MissingFromIndex) == 0 && len(r.MissingFromStore) == 0
}

// Verifier performs post-migration verification.
type Verifier struct {
	source         IDSource
	index          Existing
	docs           Documents
	challengeTable string
	batchSize      int
	log            logger.Logger
}

// New creates a verifier. batchSize <= 0 uses DefaultBatchSize.
func New(source IDSource, index Existing, docs Documents, challengeTable string, batchSize int, log logger.Logger) *Verifier {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Verifier{
		source:         source,
		index:          index,
		docs:           docs,
		challengeTable: challengeTable,
		batchSize:      batchSize,
		log:            log,
	}
}

// Verify checks that every legacy challenge matching filter was written to
// the search index and the document store.
func (v *Verifier) Verify(ctx context.Context, filter legacy.Filter) (*Report, error) {
	ids, err := v.legacyIDs(ctx, filter)
	if err != nil {
		return nil, err
	}
	report := &Report{Legacy: len(ids)}

	indexed := make(map[int64]bool, len(ids))
	for chunk := range slices.Chunk(ids, v.batchSize) {
		hits, err := v.index.ExistingByLegacyIDs(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			indexed[h.LegacyID] = true
		}
	}

	stored, err := v.storedIDs(ctx)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		if indexed[id] {
			report.Indexed++
		} else {
			report.MissingFromIndex = append(report.MissingFromIndex, id)
		}
		if stored[id] {
			report.Stored++
		} else {
			report.MissingFromStore = append(report.MissingFromStore, id)
		}
	}

	v.log.Info("verification finished",
		logger.Int("legacy", report.Legacy),
		logger.Int("indexed", report.Indexed),
		logger.Int("stored", report.Stored))
	return report, nil
}

func (v *Verifier) legacyIDs(ctx context.Context, filter legacy.Filter) ([]int64, error) {
	var ids []int64
	for skip := 0; ; skip += v.batchSize {
		page, err := v.source.FetchIDs(ctx, legacy.PageRequest{Skip: skip, Limit: v.batchSize, Filter: filter})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return ids, nil
		}
		ids = append(ids, page...)
	}
}

func (v *Verifier) storedIDs(ctx context.Context) (map[int64]bool, error) {
	docs, err := v.docs.ScanAll(ctx, v.challengeTable)
	if err != nil {
		return nil, errors.New(err).
			Component("verify").
			Category(errors.CategoryDocumentStore).
			Context("operation", "scan-challenges").
			Context("table", v.challengeTable).
			Build()
	}
	stored := make(map[int64]bool, len(docs))
	for _, d := range docs {
		if id, ok := reference.AsInt64(d["legacyId"]); ok {
			stored[id] = true
		}
	}
	return stored, nil
}

// Print writes the report as a table followed by up to 20 missing ids per
// sink.
func (r *Report) Print(out io.Writer) {
	fmt.Fprintf(out, "%-15s %12s %8s\n", "Sink", "Challenges", "Match")
	row := func(name string, n int) {
		match := "yes"
		if n != r.Legacy {
			match = "no"
		}
		fmt.Fprintf(out, "%-15s %12d %8s\n", name, n, match)
	}
	fmt.Fprintf(out, "%-15s %12d %8s\n", "legacy", r.Legacy, "")
	row("search index", r.Indexed)
	row("document store", r.Stored)

	listMissing(out, "search index", r.MissingFromIndex)
	listMissing(out, "document store", r.MissingFromStore)
}

func listMissing(out io.Writer, sink string, ids []int64) {
	if len(ids) == 0 {
		return
	}
	shown := ids[:min(len(ids), maxListed)]
	fmt.Fprintf(out, "missing from %s (%d): %v", sink, len(ids), shown)
	if len(ids) > len(shown) {
		fmt.Fprint(out, " ...")
	}
	fmt.Fprintln(out)
}
