// Package commands implements the newhome CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "newhome",
	Short: "Harvests new-home listings and serves the price catalog",
	Long: `newhome periodically harvests floor plans and move-in-ready homes from
homebuilder websites, journals every price change, and serves the current
catalog to the front end.

Examples:
  # Run the API and the hourly harvester
  newhome serve

  # One harvest cycle against a local SQLite file
  DB_DRIVER=sqlite newhome harvest --once

  # Only the Highland Homes sources
  ENABLED_EXTRACTORS=highland newhome harvest --once

  # Catalog summary and CSV dump
  newhome stats
  newhome export --csv out/catalog.csv`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ./newhome.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("db-driver", "", "database driver: postgres or sqlite")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("db_driver", rootCmd.PersistentFlags().Lookup("db-driver"))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
