package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	ingestor "github.com/tradelens/ingestor/internal/app"
	"github.com/tradelens/ingestor/internal/config"
	"github.com/tradelens/ingestor/internal/runner"
	"github.com/tradelens/ingestor/internal/summary"
	"github.com/tradelens/ingestor/internal/tasks"
)

const (
	telemetryShutdownTimeout = 10 * time.Second
	pushTimeout              = 10 * time.Second
	lockFileName             = "ingestor.lock"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured ingestion tasks once",
		Long: `Run resolves the window of every selected task, executes the tasks and
records their outcome in the status store.

Exit codes:
  0  every invoked task succeeded or was skipped
  1  at least one task failed
  2  configuration error
  3  another run holds the lock

Examples:
  # Run every enabled task
  ingestor run --config config.yaml

  # Show which windows two tasks would fetch without running them
  ingestor run --config config.yaml --tasks snaptrade,ohlcv --dry-run`,
		RunE: runRun,
	}

	cmd.Flags().String("config", "", configFlagHelp)
	cmd.Flags().StringSlice("tasks", nil, "Comma separated task names to run (default: all enabled tasks)")
	cmd.Flags().Bool("dry-run", false, "Resolve windows and report what would run without invoking tasks")
	cmd.Flags().Int("concurrency", 0, "Number of tasks run at once (default: schedule.concurrency, or 1)")
	cmd.Flags().String("format", "", "Summary format: text, json or yaml (default: summary.format)")
	cmd.Flags().Duration("timeout", 0, "Abort the run after this long (0 means no limit)")
	cmd.Flags().String("lock-file", "", "Lock file guarding against concurrent runs (default: next to the status store)")

	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
	return cmd
}

// runFlags are the parsed flags of the run command
type runFlags struct {
	tasks       []string
	dryRun      bool
	concurrency int
	format      string
	timeout     time.Duration
	lockFile    string
}

func parseRunFlags(cmd *cobra.Command) (*runFlags, error) {
	f := &runFlags{}
	var err error
	if f.tasks, err = cmd.Flags().GetStringSlice("tasks"); err != nil {
		return nil, err
	}
	if f.dryRun, err = cmd.Flags().GetBool("dry-run"); err != nil {
		return nil, err
	}
	if f.concurrency, err = cmd.Flags().GetInt("concurrency"); err != nil {
		return nil, err
	}
	if f.format, err = cmd.Flags().GetString("format"); err != nil {
		return nil, err
	}
	if f.timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if f.lockFile, err = cmd.Flags().GetString("lock-file"); err != nil {
		return nil, err
	}
	if f.concurrency < 0 {
		return nil, fmt.Errorf("concurrency cannot be negative: %d", f.concurrency)
	}
	if f.timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative: %s", f.timeout)
	}
	return f, nil
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags, err := parseRunFlags(cmd)
	if err != nil {
		return configError(err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	formatName := flags.format
	if formatName == "" {
		formatName = cfg.Summary.Format
	}
	format, err := summary.ParseFormat(formatName)
	if err != nil {
		return configError(err)
	}

	// Dry runs never write the status store, so they may overlap a real run
	if !flags.dryRun {
		unlock, err := acquireLock(lockPath(cfg, flags.lockFile))
		if err != nil {
			return err
		}
		defer unlock()
	}

	tel, shutdownTelemetry, err := setupTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	components, err := ingestor.BuildComponents(ctx,
		ingestor.WithConfig(cfg),
		ingestor.WithConcurrency(flags.concurrency),
		ingestor.WithMeterProvider(tel.MeterProvider()),
		ingestor.WithTracerProvider(tel.TracerProvider()),
	)
	if err != nil {
		return configError(err)
	}
	defer components.Close()

	if flags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.timeout)
		defer cancel()
	}

	var result *runner.RunSummary
	if flags.dryRun {
		result, err = components.Coordinator.DryRun(ctx, flags.tasks)
	} else {
		result, err = components.Coordinator.Run(ctx, flags.tasks)
	}
	if err != nil {
		if tasks.IsConfigurationError(err) {
			return configError(err)
		}
		return err
	}

	code := summary.New(cmd.OutOrStdout(), summary.WithFormat(format)).Emit(ctx, result)

	if !flags.dryRun {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		if err := tel.Pusher().Push(pushCtx); err != nil {
			slog.WarnContext(ctx, "Failed to push run metrics", "error", err)
		}
		cancel()
	}

	if code != ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}

// lockPath returns the configured lock file, or one next to the status store
func lockPath(cfg *config.Config, flag string) string {
	if flag != "" {
		return flag
	}
	return filepath.Join(filepath.Dir(cfg.GetStatusStorePath()), lockFileName)
}

// acquireLock takes an exclusive lock on path without waiting. A lock held
// by another process yields an ExitLockHeld error.
func acquireLock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, configError(fmt.Errorf("failed to create lock directory: %w", err))
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, configError(fmt.Errorf("failed to lock %s: %w", path, err))
	}
	if !locked {
		return nil, &ExitError{Code: ExitLockHeld, Err: fmt.Errorf("another run holds the lock %s", path)}
	}

	slog.Debug("Acquired run lock", "path", path)
	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release run lock", "path", path, "error", err)
		}
	}, nil
}
