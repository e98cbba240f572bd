// Package migration drives the challenge migration: it turns one page of
// legacy rows into documents (RunPage), runs the page loop that writes them
// (Migrate) and migrates the challenge types (MigrateChallengeTypes).
package migration

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/legacy"
	"github.com/tphakala/challenge-migration/internal/logger"
	"github.com/tphakala/challenge-migration/internal/model"
	"github.com/tphakala/challenge-migration/internal/observability/metrics"
	"github.com/tphakala/challenge-migration/internal/reference"
	"github.com/tphakala/challenge-migration/internal/searchindex"
	"github.com/tphakala/challenge-migration/internal/transform"
)

// Source reads legacy rows. *legacy.Fetcher implements it.
type Source interface {
	FetchPage(ctx context.Context, req legacy.PageRequest) ([]legacy.ChallengeRow, error)
	FetchSecondary(ctx context.Context, ids []int64) (*legacy.SecondaryRows, error)
}

// References resolves reference data. *reference.Resolver implements it.
type References interface {
	TypeMapping(ctx context.Context) (map[int64]string, error)
	Timelines(ctx context.Context, typeIDs []string) map[string]string
	Terms(ctx context.Context) ([]reference.Term, error)
	ResolveGroups(ctx context.Context, refs []reference.GroupRef) []reference.ResolvedGroup
	Project(ctx context.Context, directProjectID int64) (*int64, error)
	ChallengeTypes(ctx context.Context) ([]map[string]any, error)
	Caches() *reference.Caches
}

// Sink writes documents. *writer.Writer implements it.
type Sink interface {
	WriteAll(ctx context.Context, docs []*model.Challenge, existing map[int64]string, isRetry bool) []*model.WriteRecord
	CreateType(ctx context.Context, t *model.ChallengeType, isRetry bool) *model.WriteRecord
	UpdateType(ctx context.Context, t *model.ChallengeType, isRetry bool) *model.WriteRecord
}

// Ledger lists failed keys. *ledger.Store implements it.
type Ledger interface {
	FailedLegacyIDs(ctx context.Context) ([]int64, error)
	FailedChallengeTypes(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// Existing finds already migrated challenges. searchindex.Index implements it.
type Existing interface {
	ExistingByLegacyIDs(ctx context.Context, ids []int64) ([]searchindex.Existing, error)
}

// Documents reads stored documents. docstore.Store implements it.
type Documents interface {
	ScanAll(ctx context.Context, table string) ([]map[string]any, error)
	IDsByLegacyID(ctx context.Context, table string, ids []int64) (map[int64]string, error)
}

// Deps are the collaborators of a Runner. Metrics and Log may be nil.
type Deps struct {
	Source     Source
	References References
	Engine     *transform.Engine
	Sink       Sink
	Ledger     Ledger
	Existing   Existing
	Documents  Documents
	Metrics    *metrics.MigrationMetrics
	Log        logger.Logger

	// ChallengeTable is searched for already stored challenges
	ChallengeTable     string
	// ChallengeTypeTable is scanned for already migrated challenge types
	ChallengeTypeTable string

	// NewID generates challenge type ids; defaults to random UUIDs
	NewID func() string
}

// Runner migrates challenges page by page.
type Runner struct {
	source    Source
	refs      References
	engine    *transform.Engine
	sink      Sink
	ledger    Ledger
	existing  Existing
	docs      Documents
	metrics   *metrics.MigrationMetrics
	log       logger.Logger
	table     string
	typeTable string
	newID     func() string
}

// NewRunner creates a runner.
func NewRunner(d Deps) *Runner {
	r := &Runner{
		source:    d.Source,
		refs:      d.References,
		engine:    d.Engine,
		sink:      d.Sink,
		ledger:    d.Ledger,
		existing:  d.Existing,
		docs:      d.Documents,
		metrics:   d.Metrics,
		log:       d.Log,
		table:     d.ChallengeTable,
		typeTable: d.ChallengeTypeTable,
		newID:     d.NewID,
	}
	if r.log == nil {
		r.log = logger.NewNopLogger()
	}
	if r.engine == nil {
		r.engine = transform.NewEngine(transform.Config{})
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	return r
}

// PageRequest selects the legacy rows of one page.
type PageRequest = legacy.PageRequest

// PageResult is one transformed page. Skip echoes the request; Finish is set
// when the source returned no rows.
type PageResult struct {
	Challenges []*model.Challenge
	Skip       int
	Finish     bool

	// Fetched is the number of header rows read
	Fetched int

	// Failed lists the legacy ids whose transformation failed
	Failed []int64
}

// RunPage fetches, resolves and transforms one page. It does not write.
// A fetch or resolve error fails the page; a transform error only drops the
// affected challenge.
func (r *Runner) RunPage(ctx context.Context, req PageRequest) (PageResult, error) {
	start := time.Now()
	res := PageResult{Skip: req.Skip}

	rows, err := r.source.FetchPage(ctx, req)
	r.observe(metrics.OpFetchPage, start, err)
	if err != nil {
		return res, r.pageError(err, "fetch-page", req)
	}
	if len(rows) == 0 {
		res.Finish = true
		return res, nil
	}
	res.Fetched = len(rows)

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	secStart := time.Now()
	secondary, err := r.source.FetchSecondary(ctx, ids)
	r.observe(metrics.OpFetchSecondary, secStart, err)
	if err != nil {
		return res, r.pageError(err, "fetch-secondary", req)
	}

	refStart := time.Now()
	shared, err := r.sharedReferences(ctx, secondary)
	r.observe(metrics.OpResolve, refStart, err)
	if err != nil {
		return res, r.pageError(err, "resolve", req)
	}

	projects, err := r.projects(ctx, rows)
	if err != nil {
		return res, r.pageError(err, "resolve-project", req)
	}

	for _, row := range rows {
		ref := shared
		if row.DirectProjectID != nil {
			ref.ProjectID = projects[*row.DirectProjectID]
		}

		tStart := time.Now()
		doc, err := r.engine.Transform(row, secondary.ForChallenge(row.ID), ref)
		r.observe(metrics.OpTransform, tStart, err)
		if err != nil {
			r.log.Error("challenge transformation failed",
				logger.Int64("legacy_id", row.ID),
				logger.Error(err))
			res.Failed = append(res.Failed, row.ID)
			continue
		}
		r.log.Debug("challenge transformed",
			logger.Int64("legacy_id", row.ID),
			logger.String("id", doc.ID),
			logger.Time("created", doc.Created))
		res.Challenges = append(res.Challenges, doc)
	}

	r.recordCacheSizes()
	return res, nil
}

// sharedReferences resolves the reference data shared by every challenge of
// the page. ProjectID is left unset.
func (r *Runner) sharedReferences(ctx context.Context, secondary *legacy.SecondaryRows) (transform.Resolved, error) {
	typeIDs, err := r.refs.TypeMapping(ctx)
	if err != nil {
		return transform.Resolved{}, err
	}

	// every known type is warmed, not only the ones on this page
	newTypeIDs := slices.Sorted(maps.Values(typeIDs))
	timelines := r.refs.Timelines(ctx, slices.Compact(newTypeIDs))

	terms, err := r.refs.Terms(ctx)
	if err != nil {
		return transform.Resolved{}, err
	}

	var groupRefs []reference.GroupRef
	for _, g := range secondary.Groups {
		if g.GroupID == nil {
			continue
		}
		groupRefs = append(groupRefs, reference.GroupRef{ChallengeID: g.ChallengeID, LegacyGroupID: *g.GroupID})
	}
	groups := r.refs.ResolveGroups(ctx, groupRefs)

	return transform.Resolved{
		TypeIDs:   typeIDs,
		Timelines: timelines,
		TermIDs:   reference.TermIDs(terms),
		GroupIDs:  reference.GroupIDs(groups),
	}, nil
}

// projects resolves the project of every distinct direct project id on the
// page.
func (r *Runner) projects(ctx context.Context, rows []legacy.ChallengeRow) (map[int64]*int64, error) {
	out := make(map[int64]*int64)
	for _, row := range rows {
		if row.DirectProjectID == nil {
			continue
		}
		direct := *row.DirectProjectID
		if _, done := out[direct]; done {
			continue
		}
		id, err := r.refs.Project(ctx, direct)
		if err != nil {
			r.metrics.RecordLookup("project", "error")
			return nil, err
		}
		if id == nil {
			r.metrics.RecordLookup("project", "none")
		} else {
			r.metrics.RecordLookup("project", "found")
		}
		out[direct] = id
	}
	return out, nil
}

func (r *Runner) recordCacheSizes() {
	if r.metrics == nil {
		return
	}
	caches := r.refs.Caches()
	if caches == nil {
		return
	}
	stats := caches.Stats()
	r.metrics.SetCacheSize("types", stats.Types)
	r.metrics.SetCacheSize("timelines", stats.Timelines)
	r.metrics.SetCacheSize("terms", stats.Terms)
	r.metrics.SetCacheSize("groups", stats.Groups)
}

func (r *Runner) observe(op string, start time.Time, err error) {
	r.metrics.RecordDuration(op, time.Since(start).Seconds())
	if err != nil {
		r.metrics.RecordOperation(op, metrics.StatusError)
		r.metrics.RecordError(op, string(errors.CategoryOf(err)))
		return
	}
	r.metrics.RecordOperation(op, metrics.StatusSuccess)
}

func (r *Runner) pageError(err error, stage string, req PageRequest) error {
	category := errors.CategoryOf(err)
	if category == errors.CategoryGeneric {
		category = errors.CategoryMigration
	}
	return errors.New(err).
		Component("migration").
		Category(category).
		Context("stage", stage).
		Context("skip", req.Skip).
		Context("limit", req.Limit).
		Context("ids", len(req.IDs)).
		Build()
}
