// Package notify sends run summaries through shoutrrr service URLs.
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/logger"
	"github.com/tphakala/challenge-migration/internal/migration"
)

// DefaultTimeout bounds a single delivery to all URLs.
const DefaultTimeout = 10 * time.Second

// Notifier delivers run summaries.
type Notifier struct {
	urls          []string
	sender        *router.ServiceRouter
	onlyOnFailure bool
	host          string
	log           logger.Logger
}

// New builds a notifier from settings. It returns nil without error when no
// URLs are configured; a nil *Notifier ignores every call.
func New(settings conf.NotificationSettings, log logger.Logger) (*Notifier, error) {
	if len(settings.URLs) == 0 {
		return nil, nil
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	sender, err := shoutrrr.CreateSender(settings.URLs...)
	if err != nil {
		return nil, notifyError(err, "create-sender")
	}
	sender.Timeout = DefaultTimeout
	sender.SetLogger(discardLogger())

	host, _ := os.Hostname()
	return &Notifier{
		urls:          slices.Clone(settings.URLs),
		sender:        sender,
		onlyOnFailure: settings.OnlyOnFailure,
		host:          host,
		log:           log,
	}, nil
}

// Send delivers one message to every configured service. The first delivery
// error is returned with credentials redacted.
func (n *Notifier) Send(ctx context.Context, title, message string) error {
	if n == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}
	for _, err := range n.sender.Send(message, &params) {
		if err != nil {
			return notifyError(err, "send")
		}
	}
	n.log.Debug("notification sent", logger.Int("services", len(n.urls)), logger.String("title", title))
	return nil
}

// RunFinished reports the outcome of a command. Successful runs are skipped
// when only failures are reported.
func (n *Notifier) RunFinished(ctx context.Context, command string, summary migration.RunSummary, runErr error) error {
	if n == nil {
		return nil
	}
	failed := runErr != nil || !summary.Succeeded()
	if n.onlyOnFailure && !failed {
		return nil
	}
	return n.Send(ctx, Title(command, failed), Message(n.host, summary, runErr))
}

// Title returns the notification title for a finished command.
func Title(command string, failed bool) string {
	status := "finished"
	if failed {
		status = "failed"
	}
	return fmt.Sprintf("challenge-migration %s %s", command, status)
}

// Message renders a run summary as plain text.
func Message(host string, summary migration.RunSummary, runErr error) string {
	var b strings.Builder
	if host != "" {
		fmt.Fprintf(&b, "host: %s\n", host)
	}
	fmt.Fprintf(&b, "mode: %s\n", summary.Mode)
	fmt.Fprintf(&b, "pages: %d, fetched: %d\n", summary.Pages, summary.Fetched)
	fmt.Fprintf(&b, "created: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Written, summary.Updated, summary.Skipped, summary.Failed)
	if summary.Stale > 0 {
		fmt.Fprintf(&b, "stale ledger ids: %d\n", summary.Stale)
	}
	if summary.LedgerEntries >= 0 {
		fmt.Fprintf(&b, "ledger entries: %d\n", summary.LedgerEntries)
	}
	fmt.Fprintf(&b, "duration: %s", summary.Duration.Round(time.Second))
	if summary.Cancelled {
		b.WriteString("\nrun was cancelled")
	}
	if runErr != nil {
		fmt.Fprintf(&b, "\nerror: %s", logger.RedactSensitiveData(runErr.Error()))
	}
	return b.String()
}

func notifyError(err error, op string) error {
	// service URLs carry tokens, so the message is scrubbed before it leaves
	return errors.New(errors.NewStd(logger.RedactSensitiveData(err.Error()))).
		Component("notify").
		Category(errors.CategoryIntegration).
		Context("operation", op).
		Build()
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
