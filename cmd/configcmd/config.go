// Package configcmd implements commands that print configuration.
package configcmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/logger"
)

const masked = "[REDACTED]"

// Command returns the config command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Show(cmd.OutOrStdout(), settings)
		},
	}, &cobra.Command{
		Use:   "default",
		Short: "Print the default config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := conf.DefaultConfig()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), data)
			return err
		},
	})
	return cmd
}

// Show writes settings as YAML after masking credentials.
func Show(out io.Writer, settings *conf.Settings) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(Masked(settings)); err != nil {
		return err
	}
	return enc.Close()
}

// Masked returns a copy of settings with passwords, secrets and credentials
// in connection strings replaced.
func Masked(settings *conf.Settings) *conf.Settings {
	s := *settings

	s.Legacy.DSN = logger.RedactURL(s.Legacy.DSN)
	s.Ledger.DSN = logger.RedactURL(s.Ledger.DSN)
	s.DocStore.Password = maskNonEmpty(s.DocStore.Password)
	s.Search.Password = maskNonEmpty(s.Search.Password)
	s.Auth.ClientSecret = maskNonEmpty(s.Auth.ClientSecret)
	s.Sentry.DSN = maskNonEmpty(s.Sentry.DSN)

	// service URLs carry their tokens in every part but the scheme
	urls := make([]string, len(s.Notification.URLs))
	for i, u := range s.Notification.URLs {
		scheme, _, ok := strings.Cut(u, "://")
		if !ok {
			urls[i] = masked
			continue
		}
		urls[i] = scheme + "://" + masked
	}
	s.Notification.URLs = urls
	return &s
}

func maskNonEmpty(v string) string {
	if v == "" {
		return ""
	}
	return masked
}
