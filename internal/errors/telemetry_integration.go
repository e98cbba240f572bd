// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"regexp"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter reports built errors of selected categories to Sentry.
// Per-document write failures are expected during a migration and land in
// the error ledger, so only the categories passed to NewSentryReporter are sent.
type SentryReporter struct {
	enabled    bool
	categories map[ErrorCategory]struct{}
}

// NewSentryReporter creates a reporter. An empty category list reports everything.
func NewSentryReporter(enabled bool, categories ...ErrorCategory) *SentryReporter {
	set := make(map[ErrorCategory]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return &SentryReporter{enabled: enabled, categories: set}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// Wants reports whether errors of the category are forwarded
func (sr *SentryReporter) Wants(category ErrorCategory) bool {
	if len(sr.categories) == 0 {
		return true
	}
	_, ok := sr.categories[category]
	return ok
}

// ReportError sends the error to Sentry with credentials scrubbed
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() || !sr.Wants(ee.Category) {
		return
	}

	message := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetFingerprint([]string{ee.Component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Level = levelFor(ee.Category)
		event.Message = message
		event.Exception = []sentry.Exception{{
			Type:  fmt.Sprintf("%s %s", ee.Component, ee.Category),
			Value: message,
		}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

func levelFor(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryHTTP, CategoryReference:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var reporter atomic.Pointer[TelemetryReporter]

// SetTelemetryReporter installs the global reporter; nil disables reporting
func SetTelemetryReporter(r TelemetryReporter) {
	if r == nil {
		reporter.Store(nil)
		return
	}
	reporter.Store(&r)
}

func reportToTelemetry(ee *EnhancedError) {
	p := reporter.Load()
	if p == nil {
		return
	}
	if r := *p; r.IsEnabled() {
		r.ReportError(ee)
	}
}

var (
	queryStringRegex = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	secretRegex      = regexp.MustCompile(`(?i)(bearer\s+|client_secret[=:]|password[=:]|token[=:])\S+`)
)

// scrubMessage removes query strings and credentials before an error leaves the process
func scrubMessage(message string) string {
	scrubbed := queryStringRegex.ReplaceAllString(message, "$1?[REDACTED]")
	return secretRegex.ReplaceAllString(scrubbed, "$1[REDACTED]")
}
