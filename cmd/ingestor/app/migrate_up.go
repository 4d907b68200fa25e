package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tradelens/ingestor/database"
)

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		Long: `Apply all pending database migrations to bring the schema up to date.
The connection parameters are read from the database section of the config file.`,
		RunE: runMigrateUp,
	}
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	connString, target, err := migrationTarget(cmd)
	if err != nil {
		return err
	}

	ok, err := confirm(cmd, fmt.Sprintf("About to apply migrations to %s. Continue?", target))
	if err != nil {
		return err
	}
	if !ok {
		slog.InfoContext(ctx, "Migration cancelled by user")
		return nil
	}

	slog.InfoContext(ctx, "Applying database migrations", "target", target)
	if err := database.MigrateUp(connString); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	displayMigrationVersion(cmd, connString)
	return nil
}
