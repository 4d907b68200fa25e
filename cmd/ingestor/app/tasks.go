package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tradelens/ingestor/internal/config"
	"github.com/tradelens/ingestor/internal/sources"
	"github.com/tradelens/ingestor/internal/window"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the configured tasks and their window policies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return configError(fmt.Errorf("failed to get format flag: %w", err))
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rows, err := taskRows(cfg)
			if err != nil {
				return configError(err)
			}
			return renderTasks(cmd.OutOrStdout(), format, rows)
		},
	}

	cmd.Flags().String("config", "", configFlagHelp)
	cmd.Flags().String("format", formatText, "Output format (text, json or yaml)")

	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
	return cmd
}

type taskRow struct {
	Name     string `json:"name" yaml:"name"`
	Source   string `json:"source" yaml:"source"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Policy   string `json:"policy" yaml:"policy"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

func taskRows(cfg *config.Config) ([]taskRow, error) {
	rows := make([]taskRow, 0, len(cfg.Tasks))
	for i := range cfg.Tasks {
		tc := &cfg.Tasks[i]

		var policy window.Policy
		var err error
		if tc.Policy != nil {
			policy, err = tc.Policy.Build()
		} else {
			policy, err = sources.DefaultPolicy(tc.Source)
		}
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", tc.Name, err)
		}

		rows = append(rows, taskRow{
			Name:     tc.Name,
			Source:   tc.Source,
			Enabled:  tc.IsEnabled(),
			Policy:   policy.String(),
			Endpoint: tc.Endpoint,
		})
	}
	return rows, nil
}

func renderTasks(w io.Writer, format string, rows []taskRow) error {
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
		data = append(data, []string{r.Name, r.Source, strconv.FormatBool(r.Enabled), r.Policy, r.Endpoint})
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Name", "Source", "Enabled", "Policy", "Endpoint"})
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
