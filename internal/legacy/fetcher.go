// Package legacy reads challenge rows from the legacy relational store.
//
// A page is read in two steps: FetchPage runs the paginated header query,
// then FetchSecondary runs the ten per-topic queries for the fetched ids
// concurrently. Rows are joined by challenge id later, in memory.
package legacy

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/logger"
)

// Querier runs a raw SELECT and scans every row into dest.
type Querier interface {
	Select(ctx context.Context, dest any, sql string, args ...any) error
}

type gormQuerier struct {
	db *gorm.DB
}

// NewGormQuerier adapts a gorm connection to Querier.
func NewGormQuerier(db *gorm.DB) Querier {
	return &gormQuerier{db: db}
}

func (q *gormQuerier) Select(ctx context.Context, dest any, sql string, args ...any) error {
	return q.db.WithContext(ctx).Raw(sql, args...).Scan(dest).Error
}

// Filter narrows the header query.
type Filter struct {
	CreatedAfter time.Time // zero disables the filter
}

// PageRequest selects one page of legacy challenges. A nil IDs slice means
// "all ids"; a non-nil empty slice selects nothing.
type PageRequest struct {
	IDs    []int64
	Skip   int
	Limit  int
	Filter Filter
}

// Observer receives the outcome of every query.
type Observer func(query string, elapsed time.Duration, err error)

// Fetcher runs the legacy queries.
type Fetcher struct {
	q       Querier
	dialect Dialect
	log     logger.Logger
	observe Observer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithObserver registers a per-query callback, used for metrics.
func WithObserver(o Observer) Option {
	return func(f *Fetcher) { f.observe = o }
}

// NewFetcher creates a fetcher.
func NewFetcher(q Querier, dialect Dialect, log logger.Logger, opts ...Option) *Fetcher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	f := &Fetcher{q: q, dialect: dialect, log: log}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchPage returns the header rows of one page ordered by project id.
// An empty result means the source is exhausted.
func (f *Fetcher) FetchPage(ctx context.Context, req PageRequest) ([]ChallengeRow, error) {
	if req.IDs != nil && len(req.IDs) == 0 {
		return nil, nil
	}
	var rows []ChallengeRow
	if err := f.run(ctx, headerQuery, req, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FetchIDs runs the header query projected to the project id only.
func (f *Fetcher) FetchIDs(ctx context.Context, req PageRequest) ([]int64, error) {
	if req.IDs != nil && len(req.IDs) == 0 {
		return nil, nil
	}
	var rows []struct {
		ID int64 `gorm:"column:id"`
	}
	if err := f.run(ctx, idsQuery, req, &rows); err != nil {
		return nil, err
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

// FetchSecondary runs the per-topic queries for ids concurrently. The first
// failure cancels the rest and fails the call.
func (f *Fetcher) FetchSecondary(ctx context.Context, ids []int64) (*SecondaryRows, error) {
	out := &SecondaryRows{}
	if len(ids) == 0 {
		return out, nil
	}

	req := PageRequest{IDs: ids}
	g, gctx := errgroup.WithContext(ctx)
	spawn := func(q query, dest any) {
		g.Go(func() error { return f.run(gctx, q, req, dest) })
	}
	spawn(prizeQuery, &out.Prizes)
	spawn(technologyQuery, &out.Technologies)
	spawn(platformQuery, &out.Platforms)
	spawn(groupQuery, &out.Groups)
	spawn(winnerQuery, &out.Winners)
	spawn(phaseQuery, &out.Phases)
	spawn(metadataQuery, &out.Metadata)
	spawn(termsQuery, &out.Terms)
	spawn(submissionQuery, &out.Submissions)
	spawn(registrantQuery, &out.Registrants)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Render returns the SQL and arguments of a query for req. Exposed for
// dry runs and tests.
func (f *Fetcher) Render(name string, req PageRequest) (string, []any) {
	for _, q := range allQueries {
		if q.name == name {
			return f.build(q, req)
		}
	}
	return "", nil
}

var allQueries = []query{
	headerQuery, idsQuery, prizeQuery, technologyQuery, platformQuery, groupQuery,
	winnerQuery, phaseQuery, metadataQuery, termsQuery, submissionQuery, registrantQuery,
}

// build appends the created-after filter, the id restriction, the order and
// the pagination suffix to the rendered statement.
func (f *Fetcher) build(q query, req PageRequest) (string, []any) {
	paged := q.name == headerQuery.name || q.name == idsQuery.name

	prefix := ""
	if paged {
		prefix = f.dialect.SelectPrefix(req.Skip, req.Limit)
	}
	sql := q.render(f.dialect, prefix)

	var args []any
	if paged && !req.Filter.CreatedAfter.IsZero() {
		sql += "\n  and p.create_date > ?"
		args = append(args, req.Filter.CreatedAfter)
	}
	if req.IDs != nil {
		sql += "\n  and p.project_id in ?"
		args = append(args, req.IDs)
	}
	if q.order != "" {
		sql += "\n" + q.order
	}
	if paged {
		if suffix := f.dialect.PageSuffix(req.Skip, req.Limit); suffix != "" {
			sql += "\n" + suffix
		}
	}
	return sql, args
}

func (f *Fetcher) run(ctx context.Context, q query, req PageRequest, dest any) error {
	sql, args := f.build(q, req)

	start := time.Now()
	err := f.q.Select(ctx, dest, sql, args...)
	elapsed := time.Since(start)
	if f.observe != nil {
		f.observe(q.name, elapsed, err)
	}

	if err != nil {
		return errors.New(err).
			Component("legacy").
			Category(errors.CategoryLegacyQuery).
			Context("query", q.name).
			Context("dialect", f.dialect.Name()).
			Context("ids", len(req.IDs)).
			Timing("legacy-"+q.name, elapsed).
			Build()
	}

	f.log.Debug("legacy query done",
		logger.String("query", q.name),
		logger.Int("ids", len(req.IDs)),
		logger.Duration("elapsed", elapsed))
	return nil
}
