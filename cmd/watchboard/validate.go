package main

import (
	"fmt"

	"github.com/jpalmerr/watchboard/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a Watchboard configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  watchboard validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// the builder re-checks diagnostics levels
	if _, err := config.Options(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	title := cfg.Title
	if title == "" {
		title = "Watchboard"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Title:     %s\n", title)
	fmt.Fprintf(out, "  Port:      %d\n", cfg.Port)
	fmt.Fprintf(out, "  Headless:  %t\n", cfg.Headless)
	fmt.Fprintf(out, "  Threshold: %s\n", cfg.Scheduler.Threshold.Duration())
	fmt.Fprintf(out, "  Frame:     %s\n", cfg.Scheduler.Frame.Duration())
	fmt.Fprintf(out, "  Modules:   %d allowed, %d denied\n", len(cfg.Modules.Allow), len(cfg.Modules.Deny))

	return nil
}
