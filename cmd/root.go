package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/challenge-migration/cmd/configcmd"
	"github.com/tphakala/challenge-migration/cmd/ledger"
	"github.com/tphakala/challenge-migration/cmd/migrate"
	"github.com/tphakala/challenge-migration/cmd/taxonomy"
	"github.com/tphakala/challenge-migration/cmd/types"
	"github.com/tphakala/challenge-migration/cmd/verify"
	"github.com/tphakala/challenge-migration/cmd/version"
	"github.com/tphakala/challenge-migration/internal/buildinfo"
	"github.com/tphakala/challenge-migration/internal/conf"
)

// RootCommand creates and returns the root command. Subcommands share
// settings, which are loaded before any of them runs.
func RootCommand(build *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "challenge-migration",
		Short:         "Migrate legacy challenges into the document store and search index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (default: search ./ and the user config directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	versionCmd := version.Command(build)
	taxonomyCmd := taxonomy.Command()

	rootCmd.AddCommand(
		migrate.Command(settings, build),
		types.Command(settings, build),
		verify.Command(settings, build),
		ledger.Command(settings),
		configcmd.Command(settings),
		taxonomyCmd,
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version and taxonomy work without a config
		if cmd == versionCmd || cmd == taxonomyCmd {
			return nil
		}
		loaded, err := load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("debug") {
			loaded.Debug, _ = cmd.Flags().GetBool("debug")
		}
		*settings = *loaded
		return nil
	}

	return rootCmd
}

func load(configPath string) (*conf.Settings, error) {
	if configPath != "" {
		return conf.LoadFile(configPath)
	}
	return conf.Load()
}
