package app

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/spf13/cobra"

	"github.com/tradelens/ingestor/database"
)

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Migrate the database down",
		Long: `Migrate the database schema down by reverting migrations.
WARNING: This operation can drop the task status and every ingested record.

Examples:
  # Migrate down by 1 step
  ingestor migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way
  ingestor migrate down --config config.yaml --yes`,
		RunE: runMigrateDown,
	}
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if numSteps > math.MaxInt32 {
		return configError(fmt.Errorf("number of steps exceeds maximum allowed value"))
	}

	connString, target, err := migrationTarget(cmd)
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf("WARNING: This will migrate %s down %d step(s) and may result in data loss. Continue?",
		target, numSteps)
	if numSteps == 0 {
		prompt = fmt.Sprintf("WARNING: This will migrate %s down ALL steps and drop every table. Continue?", target)
	}

	ok, err := confirm(cmd, prompt)
	if err != nil {
		return err
	}
	if !ok {
		slog.InfoContext(ctx, "Migration cancelled by user")
		return nil
	}

	slog.WarnContext(ctx, "Reverting database migrations", "target", target, "steps", numSteps)
	if err := database.MigrateDown(connString, int(numSteps)); err != nil { // #nosec G115 -- bounded above
		return fmt.Errorf("migration failed: %w", err)
	}

	displayMigrationVersion(cmd, connString)
	return nil
}
