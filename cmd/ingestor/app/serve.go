package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	ingestor "github.com/tradelens/ingestor/internal/app"
	"github.com/tradelens/ingestor/internal/runner"
	"github.com/tradelens/ingestor/internal/summary"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tasks on a schedule and serve the HTTP API",
		Long: `Serve runs every enabled task on start and then once per schedule.interval.
The HTTP API reports task status and the last run, and accepts ad-hoc runs:

  GET  /health, /readiness, /version
  GET  /v1/status, /v1/status/{task}
  GET  /v1/runs/last
  POST /v1/runs   {"tasks": ["ohlcv"], "dryRun": false}`,
		RunE: runServe,
	}

	cmd.Flags().String("address", ":8080", "Address to listen on")
	cmd.Flags().String("config", "", configFlagHelp)
	cmd.Flags().Duration("shutdown-timeout", defaultGracefulTimeout, "Time allowed for in-flight requests on shutdown")

	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return configError(fmt.Errorf("failed to get address flag: %w", err))
	}
	shutdownTimeout, err := cmd.Flags().GetDuration("shutdown-timeout")
	if err != nil {
		return configError(fmt.Errorf("failed to get shutdown-timeout flag: %w", err))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, err := summary.ParseFormat(cfg.Summary.Format)
	if err != nil {
		return configError(err)
	}

	tel, shutdownTelemetry, err := setupTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	app, err := ingestor.NewIngestorApp(ctx,
		ingestor.WithConfig(cfg),
		ingestor.WithAddress(address),
		ingestor.WithMeterProvider(tel.MeterProvider()),
		ingestor.WithTracerProvider(tel.TracerProvider()),
		ingestor.WithSummaryHandler(summaryHandler(cmd.OutOrStdout(), format)),
	)
	if err != nil {
		return configError(fmt.Errorf("failed to build application: %w", err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		if stopErr := app.Stop(shutdownTimeout); stopErr != nil {
			slog.Error("Failed to stop application", "error", stopErr)
		}
		return err
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	if err := app.Stop(shutdownTimeout); err != nil {
		return err
	}
	return <-errCh
}

// summaryHandler writes every finished run to out
func summaryHandler(out io.Writer, format summary.Format) func(context.Context, *runner.RunSummary) {
	emitter := summary.New(out, summary.WithFormat(format))
	return func(ctx context.Context, s *runner.RunSummary) {
		emitter.Emit(ctx, s)
	}
}
