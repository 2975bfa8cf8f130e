package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/themis/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the server.

Examples:
  # Validate the default config file
  themis validate

  # Validate a specific file
  themis validate --config /etc/themis/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		fmt.Printf("Configuration %s is valid\n", cfgFile)
		fmt.Printf("  store backend:    %s\n", cfg.Store.Backend)
		fmt.Printf("  user limits:      %d actions\n", len(cfg.Limits.User))
		fmt.Printf("  project limits:   %d actions\n", len(cfg.Limits.Project))
		fmt.Printf("  metering enabled: %v\n", cfg.Metering.Enabled)
		fmt.Printf("  billing enabled:  %v\n", cfg.Billing.Enabled)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
