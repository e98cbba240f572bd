// Package app assembles the migration components from settings.
package app

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/challenge-migration/internal/buildinfo"
	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/datastore"
	"github.com/tphakala/challenge-migration/internal/docstore"
	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/httpclient"
	"github.com/tphakala/challenge-migration/internal/ledger"
	"github.com/tphakala/challenge-migration/internal/legacy"
	"github.com/tphakala/challenge-migration/internal/logger"
	"github.com/tphakala/challenge-migration/internal/migration"
	"github.com/tphakala/challenge-migration/internal/notify"
	"github.com/tphakala/challenge-migration/internal/observability"
	"github.com/tphakala/challenge-migration/internal/observability/metrics"
	"github.com/tphakala/challenge-migration/internal/reference"
	"github.com/tphakala/challenge-migration/internal/searchindex"
	"github.com/tphakala/challenge-migration/internal/telemetry"
	"github.com/tphakala/challenge-migration/internal/transform"
	"github.com/tphakala/challenge-migration/internal/writer"
)

// shutdownTimeout bounds closing the sinks after the run context ended.
const shutdownTimeout = 10 * time.Second

// App holds the wired components of one process run.
type App struct {
	Settings *conf.Settings
	Build    *buildinfo.Context
	Log      logger.Logger

	Metrics  *observability.Metrics
	Fetcher  *legacy.Fetcher
	Docs     docstore.Store
	Index    searchindex.Index
	Ledger   *ledger.Store
	HTTP     *httpclient.Client
	Resolver *reference.Resolver
	Writer   *writer.Writer
	Runner   *migration.Runner
	Notifier *notify.Notifier

	central  *logger.CentralLogger
	endpoint *observability.Endpoint
	legacyDB *gorm.DB
	ledgerDB *gorm.DB
	flush    func()
	wg       sync.WaitGroup
}

// Logging creates the central logger described by settings. Debug forces
// the default level to debug.
func Logging(settings *conf.Settings) (*logger.CentralLogger, error) {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = "debug"
	}
	return logger.NewCentralLogger(&cfg)
}

// OpenLedger connects to the ledger database and migrates its schema.
func OpenLedger(settings conf.LedgerSettings, log logger.Logger) (*ledger.Store, *gorm.DB, error) {
	db, err := datastore.Open(datastore.Options{
		Driver: settings.Driver,
		DSN:    settings.DSN,
		Logger: log,
	})
	if err != nil {
		return nil, nil, err
	}
	store, err := ledger.NewStore(db, log)
	if err != nil {
		_ = datastore.Close(db)
		return nil, nil, err
	}
	return store, db, nil
}

// New connects every component. On error the components opened so far are
// closed again.
func New(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) (a *App, err error) {
	a = &App{Settings: settings, Build: build, flush: func() {}}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	if a.central, err = Logging(settings); err != nil {
		return a, err
	}
	a.Log = a.central.Module("main").With(logger.String("run_id", build.RunID()))

	if a.flush, err = telemetry.Init(settings.Sentry, telemetry.Options{
		Release: build.Release(),
		RunID:   build.RunID(),
	}, a.central.Module("telemetry")); err != nil {
		return a, err
	}

	if a.Metrics, err = observability.NewMetrics(); err != nil {
		return a, err
	}
	m := a.Metrics.Migration
	if settings.Metrics.Enabled {
		if a.endpoint, err = observability.NewEndpoint(settings.Metrics, a.Metrics, a.central.Module("metrics")); err != nil {
			return a, err
		}
	}

	if err = a.openLegacy(m); err != nil {
		return a, err
	}

	if a.Docs, err = docstore.Open(ctx, settings.DocStore, a.central.Module("docstore")); err != nil {
		return a, err
	}
	if err = a.openIndex(); err != nil {
		return a, err
	}
	if a.Ledger, a.ledgerDB, err = OpenLedger(settings.Ledger, a.central.Module("ledger")); err != nil {
		return a, err
	}

	a.HTTP = httpclient.New(&httpclient.Config{
		DefaultTimeout:    settings.API.Timeout,
		UserAgent:         build.UserAgent(),
		RequestsPerSecond: settings.API.RequestsPerSecond,
		Burst:             settings.API.Burst,
	})
	a.HTTP.SetAfterResponseHook(RequestObserver(m, a.central.Module("reference")))
	a.Resolver = reference.NewResolver(reference.Config{
		TimelineURL:        settings.API.TimelineURL,
		ProjectsURL:        settings.API.ProjectsURL,
		TermsURL:           settings.API.TermsURL,
		GroupsURL:          settings.API.GroupsURL,
		ChallengeTypesURL:  settings.API.ChallengeTypesURL,
		TermsPerPage:       settings.API.TermsPerPage,
		ChallengeTypeTable: settings.DocStore.ChallengeTypeTable,
	}, a.HTTP, reference.NewTokenSource(ctx, settings.Auth, a.HTTP), a.Docs, nil, a.central.Module("reference"))

	phaseNames, err := PhaseNames(settings.PhaseNames)
	if err != nil {
		return a, err
	}
	engine := transform.NewEngine(transform.Config{
		PhaseNames:    phaseNames,
		EndDatePolicy: settings.Migration.EndDatePolicy,
	})

	a.Writer = writer.New(a.Docs, a.Index, a.Ledger, writer.Config{
		ChallengeTable:     settings.DocStore.ChallengeTable,
		ChallengeTypeTable: settings.DocStore.ChallengeTypeTable,
		ChallengeIndex:     settings.Search.ChallengeIndex,
		ChallengeType:      settings.Search.ChallengeType,
		ChallengeTypeIndex: settings.Search.ChallengeTypeIndex,
		ChallengeTypeType:  settings.Search.ChallengeTypeType,
		Concurrency:        settings.Migration.Concurrency,
	}, a.central.Module("writer"), m)

	a.Runner = migration.NewRunner(migration.Deps{
		Source:             a.Fetcher,
		References:         a.Resolver,
		Engine:             engine,
		Sink:               a.Writer,
		Ledger:             a.Ledger,
		Existing:           a.Index,
		Documents:          a.Docs,
		Metrics:            m,
		Log:                a.central.Module("migration"),
		ChallengeTable:     settings.DocStore.ChallengeTable,
		ChallengeTypeTable: settings.DocStore.ChallengeTypeTable,
	})

	if a.Notifier, err = notify.New(settings.Notification, a.central.Module("notify")); err != nil {
		return a, err
	}
	return a, nil
}

func (a *App) openLegacy(m *metrics.MigrationMetrics) error {
	s := a.Settings.Legacy
	dialect, err := legacy.NewDialect(s.Dialect, s.Driver)
	if err != nil {
		return err
	}
	log := a.central.Module("legacy")
	if a.legacyDB, err = datastore.Open(datastore.Options{
		Driver:        s.Driver,
		DSN:           s.DSN,
		MaxOpenConns:  s.MaxOpenConns,
		SlowThreshold: s.SlowQueryThreshold,
		Logger:        log,
	}); err != nil {
		return err
	}
	a.Fetcher = legacy.NewFetcher(legacy.NewGormQuerier(a.legacyDB), dialect, log,
		legacy.WithObserver(QueryObserver(m)))
	return nil
}

// QueryObserver records every legacy statement as a legacy_query operation.
func QueryObserver(r metrics.Recorder) legacy.Observer {
	if r == nil {
		r = metrics.NopRecorder{}
	}
	return func(_ string, elapsed time.Duration, err error) {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
			r.RecordError(metrics.OpLegacyQuery, string(errors.CategoryOf(err)))
		}
		r.RecordOperation(metrics.OpLegacyQuery, status)
		r.RecordDuration(metrics.OpLegacyQuery, elapsed.Seconds())
	}
}

// RequestObserver records reference-data requests. Non-2xx responses count
// as errors labelled with their status code.
func RequestObserver(r metrics.Recorder, log logger.Logger) func(*http.Request, *http.Response, error) {
	if r == nil {
		r = metrics.NopRecorder{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return func(req *http.Request, resp *http.Response, err error) {
		switch {
		case err != nil:
			r.RecordOperation(metrics.OpReferenceRequest, metrics.StatusError)
			r.RecordError(metrics.OpReferenceRequest, string(errors.CategoryNetwork))
		case resp.StatusCode >= http.StatusBadRequest:
			r.RecordOperation(metrics.OpReferenceRequest, metrics.StatusError)
			r.RecordError(metrics.OpReferenceRequest, strconv.Itoa(resp.StatusCode))
		default:
			r.RecordOperation(metrics.OpReferenceRequest, metrics.StatusSuccess)
		}
		log.Trace("reference request", logger.String("url", logger.RedactURL(req.URL.String())))
	}
}

// openIndex connects to Elasticsearch. The memory document store driver keeps
// the index in memory as well.
func (a *App) openIndex() error {
	log := a.central.Module("searchindex")
	if a.Settings.DocStore.Driver == conf.DocStoreMemory {
		log.Warn("memory document store selected, search index kept in memory")
		a.Index = searchindex.NewMemory(a.Settings.Search.ChallengeIndex)
		return nil
	}
	index, err := searchindex.NewElastic(searchindex.ConfigFromSettings(a.Settings.Search), log)
	if err != nil {
		return err
	}
	a.Index = index
	return nil
}

// PhaseNames converts the configured phase names, keyed by the decimal
// legacy phase type id, for the transform engine.
func PhaseNames(in map[string]conf.PhaseName) (map[int64]transform.PhaseName, error) {
	out := make(map[int64]transform.PhaseName, len(in))
	for key, pn := range in {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, errors.New(err).
				Component("app").
				Category(errors.CategoryConfiguration).
				Context("phase_type_id", key).
				Build()
		}
		out[id] = transform.PhaseName{Name: pn.Name, PhaseID: pn.PhaseID}
	}
	return out, nil
}

// Start runs the metrics endpoint, when enabled, until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	if a.endpoint != nil {
		a.endpoint.Start(ctx, &a.wg)
	}
}

// Close releases every component in reverse order of creation. It waits for
// the metrics endpoint, whose context must already be cancelled.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log := a.Log
	if log == nil {
		log = logger.NewNopLogger()
	}
	warn := func(what string, err error) {
		if err != nil {
			log.Warn("close failed", logger.String("component", what), logger.Error(err))
		}
	}

	if a.HTTP != nil {
		a.HTTP.Close()
	}
	if a.ledgerDB != nil {
		warn("ledger", datastore.Close(a.ledgerDB))
	}
	if closer, ok := a.Index.(interface{ Close() error }); ok {
		warn("searchindex", closer.Close())
	}
	if a.Docs != nil {
		warn("docstore", a.Docs.Close(ctx))
	}
	if a.legacyDB != nil {
		warn("legacy", datastore.Close(a.legacyDB))
	}
	a.wg.Wait()
	if a.flush != nil {
		a.flush()
	}
	if a.central != nil {
		_ = a.central.Flush()
		_ = a.central.Close()
	}
}
