// Package telemetry provides opt-in, privacy-filtered error tracking.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/logger"
)

// FlushTimeout bounds how long shutdown waits for queued events.
const FlushTimeout = 2 * time.Second

// ReportedCategories are the error categories forwarded to Sentry. Validation
// and per-document failures stay local; they are expected during a run.
var ReportedCategories = []errors.ErrorCategory{
	errors.CategoryDatabase,
	errors.CategoryLegacyQuery,
	errors.CategoryDocumentStore,
	errors.CategorySearchIndex,
	errors.CategoryLedger,
	errors.CategoryMigration,
	errors.CategoryIntegration,
	errors.CategoryConfiguration,
}

// Options are the process-level values attached to every event.
type Options struct {
	Release string
	RunID   string

	// Transport replaces the HTTP transport, used by tests
	Transport sentry.Transport
}

// Init configures the Sentry client and installs the error reporter. When
// Sentry is disabled it does nothing and the returned flush is a no-op.
func Init(settings conf.SentrySettings, opts Options, log logger.Logger) (flush func(), err error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if !settings.Enabled {
		log.Debug("sentry telemetry is disabled")
		return func() {}, nil
	}

	environment := settings.Environment
	if environment == "" {
		environment = "production"
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          opts.Release,
		Transport:        opts.Transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return func() {}, errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("operation", "sentry-init").
			Build()
	}

	if opts.RunID != "" {
		sentry.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetTag("run_id", opts.RunID)
		})
	}
	errors.SetTelemetryReporter(errors.NewSentryReporter(true, ReportedCategories...))

	log.Info("sentry telemetry enabled",
		logger.String("environment", environment),
		logger.String("release", opts.Release))

	return func() {
		errors.SetTelemetryReporter(nil)
		sentry.Flush(FlushTimeout)
	}, nil
}

// applyPrivacyFilters strips host and user identifying data from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	if event.Request != nil {
		event.Request = nil
	}
	for k := range event.Extra {
		if k != "component" && k != "category" {
			delete(event.Extra, k)
		}
	}
	return event
}
