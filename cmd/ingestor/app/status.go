package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tradelens/ingestor/internal/app/storage"
	"github.com/tradelens/ingestor/internal/config"
	"github.com/tradelens/ingestor/internal/status"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last recorded run of every task",
		RunE:  runStatus,
	}

	cmd.Flags().String("config", "", configFlagHelp)
	cmd.Flags().String("format", formatText, "Output format (text, json or yaml)")

	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return configError(fmt.Errorf("failed to get format flag: %w", err))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	factory, err := storage.NewStorageFactory(ctx, cfg, storage.WithoutMigrations())
	if err != nil {
		return configError(err)
	}
	defer factory.Cleanup()

	store, err := factory.CreateStatusStore(ctx)
	if err != nil {
		return configError(err)
	}

	statuses, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load task status: %w", err)
	}

	return renderStatus(cmd.OutOrStdout(), format, statusRows(cfg, statuses))
}

// statusRow is one line of the status report
type statusRow struct {
	Task string `json:"task" yaml:"task"`
	// Configured is false for records of tasks no longer in the configuration
	Configured          bool       `json:"configured" yaml:"configured"`
	LastRunAt           *time.Time `json:"last_run,omitempty" yaml:"lastRun,omitempty"`
	Success             bool       `json:"success" yaml:"success"`
	LastSuccessAt       *time.Time `json:"last_success,omitempty" yaml:"lastSuccess,omitempty"`
	LastError           string     `json:"last_error,omitempty" yaml:"lastError,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures" yaml:"consecutiveFailures"`
}

func newStatusRow(name string, configured bool, st *status.TaskStatus) statusRow {
	row := statusRow{Task: name, Configured: configured}
	if st != nil {
		row.LastRunAt = st.LastRunAt
		row.Success = st.Success
		row.LastSuccessAt = st.LastSuccessAt
		row.LastError = st.LastError
		row.ConsecutiveFailures = st.ConsecutiveFailures
	}
	return row
}

// statusRows lists the configured tasks in file order followed by any other
// recorded task in lexical order
func statusRows(cfg *config.Config, statuses map[string]*status.TaskStatus) []statusRow {
	rows := make([]statusRow, 0, len(cfg.Tasks)+len(statuses))
	seen := make(map[string]bool, len(cfg.Tasks))

	for _, t := range cfg.Tasks {
		seen[t.Name] = true
		rows = append(rows, newStatusRow(t.Name, true, statuses[t.Name]))
	}
	for _, name := range status.SortedNames(statuses) {
		if seen[name] || statuses[name] == nil {
			continue
		}
		rows = append(rows, newStatusRow(name, false, statuses[name]))
	}
	return rows
}

func renderStatus(w io.Writer, format string, rows []statusRow) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	case formatText, "":
	default:
		return configError(fmt.Errorf("unsupported format %q", format))
	}

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		task := r.Task
		if !r.Configured {
			task += " (unconfigured)"
		}
		result := "-"
		if r.LastRunAt != nil {
			result = "failure"
			if r.Success {
				result = "success"
			}
		}
		data = append(data, []string{
			task,
			formatTime(r.LastRunAt),
			result,
			formatTime(r.LastSuccessAt),
			strconv.Itoa(r.ConsecutiveFailures),
			r.LastError,
		})
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Task", "Last run", "Result", "Last success", "Failures", "Last error"})
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
