// Package app provides the command line interface of the ingestor.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tradelens/ingestor/internal/versions"
)

// Process exit codes
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitLockHeld = 3
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatText = "text"

	configFlagHelp = "Path to configuration file (YAML format, required)"
)

// ExitError carries the process exit code of a failed command. An ExitError
// without Err only sets the code; the command already reported the failure.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// configError marks err as a configuration problem detected at startup
func configError(err error) error {
	return &ExitError{Code: ExitConfig, Err: err}
}

// ExitCode maps the error returned by a command to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// IsQuiet reports whether err has already been reported to the user
func IsQuiet(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Err == nil
}

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "ingestor",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Short:             "Incremental multi-source ingestion orchestrator",
		Long: `ingestor runs the configured ingestion tasks, derives the time window each
task fetches from its last successful run, and records the outcome so the next
run continues where this one stopped.`,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newStatusCmd(),
		newTasksCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}

			info := versions.GetVersionInfo()
			out := cmd.OutOrStdout()
			switch format {
			case formatJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			case formatYAML:
				return yaml.NewEncoder(out).Encode(info)
			case formatText, "":
				_, err := fmt.Fprintln(out, info.String())
				return err
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
		},
	}
	cmd.Flags().String("format", formatText, "Output format (text, json or yaml)")
	return cmd
}
