// Package main is the entry point for the watchboard CLI.
//
// Watchboard is usually embedded in a host program as a library. The
// binary serves a dashboard of its own runtime, which is handy for trying
// out the UI and for checking configuration files.
//
// Usage:
//
//	watchboard serve -c config.yaml    # Start the dashboard
//	watchboard validate -c config.yaml # Validate configuration
//	watchboard version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "watchboard",
	Short: "A live debug dashboard for Go programs",
	Long: `Watchboard discovers annotated members of your types and keeps a
live dashboard of their values, refreshed from a frame-driven loop and
streamed to the browser with Server-Sent Events.

The standalone binary monitors its own runtime (memory, GC, goroutines).

Quick start:
  1. Run: watchboard serve
  2. Open http://localhost:8080 in your browser

Example config:
  title: Runtime
  port: 8080
  scheduler:
    threshold: 100ms`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already prints the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this watchboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "watchboard %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
