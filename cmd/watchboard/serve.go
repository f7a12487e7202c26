package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/watchboard"
	"github.com/jpalmerr/watchboard/config"
	"github.com/jpalmerr/watchboard/internal/selfmon"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// serveCmd starts the Watchboard dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the Watchboard dashboard server.

The server will:
  - Load configuration from the YAML file, if one is given
  - Discover the runtime monitors and start the update loop
  - Serve the dashboard UI on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  watchboard serve
  watchboard serve -c config.yaml --port 9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file")
	serveCmd.Flags().IntP("port", "p", 0, "override the configured port")
}

// loadConfig reads the file named by the config flag, or returns the
// defaults when the flag is empty.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return config.Parse(nil)
	}
	return config.Load(configFile)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(os.Stderr, cfg.Diagnostics.Level())

	opts, err := config.Options(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		opts = append(opts, watchboard.WithPort(port))
	}

	selfmon.Version = version
	monitors, err := selfmon.Options(&selfmon.Sampler{})
	if err != nil {
		return fmt.Errorf("failed to build runtime monitors: %w", err)
	}
	opts = append(opts, monitors...)
	opts = append(opts, watchboard.WithLogger(logger))

	wb, err := watchboard.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create Watchboard: %w", err)
	}

	logger.Info("starting server",
		"port", wb.Port(),
		"refresh_threshold", wb.RefreshThreshold().String(),
	)

	// cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, wb, logger)
}

// serve runs wb until ctx is cancelled, bounding the shutdown.
func serve(ctx context.Context, wb *watchboard.Watchboard, logger *slog.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- wb.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
