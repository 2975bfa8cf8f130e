package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "themis",
	Short: "Themis - admission control and usage metering engine",
	Long: `Themis is the admission-control and usage-metering engine embedded in a
multi-tenant API server.

It answers two questions per incoming action:
  - Rate limiting: is this action currently allowed, under user-scoped and
    project-scoped sliding-window limits?
  - Metering: should a billing/usage event be emitted for it this calendar
    period, honoring a one-time free trial?

Decisions are derived from a shared persistent action log, so multiple
server processes converge without shared memory or distributed locking.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
