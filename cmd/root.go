package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TheCacophonyProject/Full-Noise/cmd/query"
	"github.com/TheCacophonyProject/Full-Noise/cmd/report"
	"github.com/TheCacophonyProject/Full-Noise/cmd/server"
	"github.com/TheCacophonyProject/Full-Noise/internal/conf"
	"github.com/TheCacophonyProject/Full-Noise/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "fullnoise",
		Short:   "Full-Noise visit aggregation CLI",
		Long:    "Full-Noise groups wildlife sensor recordings into visits, matches audio bait playbacks to them, and serves or exports the results.",
		Version: fmt.Sprintf("%s (built %s)", settings.Version, settings.BuildDate),
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// Runs after flag parsing, so settings.Debug is final here.
			if settings.Debug {
				logging.SetLevel(slog.LevelDebug)
			}
			// Every command except the server writes its results to
			// stdout, so their diagnostics go through the text logger
			// on stderr instead of the JSON default.
			if cmd.Name() != "server" {
				slog.SetDefault(logging.HumanReadable())
			}
		},
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		query.Command(settings),
		report.Command(settings),
		server.Command(settings),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	// The config flag is consumed in main before viper loads; it is declared
	// here so cobra accepts and documents it.
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (default searches the standard config directories)")

	cobra.CheckErr(viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")))
}
