package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/camf-project/camf-go/cmd/maintain"
	"github.com/camf-project/camf-go/cmd/serve"
	"github.com/camf-project/camf-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "camf",
		Short: "CAMF production archive storage engine",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		maintain.Command(settings),
	)

	return rootCmd
}

// setupFlags sets the global flags shared by every subcommand and binds
// them to viper so they override the config file.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
	cmd.PersistentFlags().StringVar(&settings.Storage.BaseDir, "basedir", settings.Storage.BaseDir, "Root of the archive directory tree")
	cmd.PersistentFlags().StringVar(&settings.Output.SQLite.Path, "db", settings.Output.SQLite.Path, "Path to the SQLite database")

	_ = viper.BindPFlag("debug", cmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("storage.basedir", cmd.PersistentFlags().Lookup("basedir"))
	_ = viper.BindPFlag("output.sqlite.path", cmd.PersistentFlags().Lookup("db"))
}
