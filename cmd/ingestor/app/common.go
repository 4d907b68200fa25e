package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tradelens/ingestor/internal/config"
	"github.com/tradelens/ingestor/internal/telemetry"
)

// loadConfig reads and validates the file named by the --config flag.
// Failures are configuration errors.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, configError(fmt.Errorf("failed to get config flag: %w", err))
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, configError(fmt.Errorf("failed to load configuration: %w", err))
	}

	slog.Debug("Loaded configuration", "path", path, "tasks", len(cfg.Tasks))
	return cfg, nil
}

// setupTelemetry creates the telemetry providers configured in cfg and
// returns a function shutting them down
func setupTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, func(), error) {
	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return nil, nil, configError(fmt.Errorf("failed to initialize telemetry: %w", err))
	}

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to shut down telemetry", "error", err)
		}
	}
	return tel, shutdown, nil
}
