// Package summary reports the result of a run to a writer and the log.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/tradelens/ingestor/internal/runner"
)

// Format is the rendering of a run summary
type Format string

const (
	// FormatText renders a table followed by a totals line
	FormatText Format = "text"
	// FormatJSON renders one JSON document
	FormatJSON Format = "json"
	// FormatYAML renders one YAML document
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. An empty name selects FormatText.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported summary format %q (expected text, json or yaml)", s)
	}
}

// RenderFunc renders a summary in the given format
type RenderFunc func(w io.Writer, format Format, s *runner.RunSummary) error

// Emitter writes run summaries. It never fails: when rendering breaks it falls
// back to one plain line per task.
type Emitter struct {
	out    io.Writer
	format Format
	logger *slog.Logger
	render RenderFunc
}

// Option is a function that configures the emitter
type Option func(*Emitter)

// WithFormat sets the output format
func WithFormat(format Format) Option {
	return func(e *Emitter) {
		e.format = format
	}
}

// WithLogger sets the logger receiving one record per task
func WithLogger(logger *slog.Logger) Option {
	return func(e *Emitter) {
		e.logger = logger
	}
}

// WithRenderFunc replaces the renderer
func WithRenderFunc(render RenderFunc) Option {
	return func(e *Emitter) {
		e.render = render
	}
}

// New creates an emitter writing to out
func New(out io.Writer, opts ...Option) *Emitter {
	e := &Emitter{
		out:    out,
		format: FormatText,
		render: Render,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Emit logs and writes the summary and returns its exit code
func (e *Emitter) Emit(ctx context.Context, s *runner.RunSummary) int {
	if s == nil {
		e.logger.WarnContext(ctx, "No run summary to emit")
		return runner.ExitOK
	}

	e.logResults(ctx, s)

	var buf bytes.Buffer
	if err := e.safeRender(&buf, s); err != nil {
		e.logger.WarnContext(ctx, "Failed to render run summary, using plain output",
			"format", e.format, "error", err)
		buf.Reset()
		writeFallback(&buf, s)
	}

	if _, err := e.out.Write(buf.Bytes()); err != nil {
		e.logger.ErrorContext(ctx, "Failed to write run summary", "error", err)
	}

	return s.ExitCode
}

func (e *Emitter) safeRender(w io.Writer, s *runner.RunSummary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panicked: %v", r)
		}
	}()
	return e.render(w, e.format, s)
}

func (e *Emitter) logResults(ctx context.Context, s *runner.RunSummary) {
	for _, r := range s.Results {
		attrs := []any{
			"run_id", s.RunID,
			"task", r.TaskName,
			"outcome", r.Outcome,
			"attempts", r.Attempts,
			"duration", r.Duration(),
			"window", r.Window.String(),
		}
		if r.Items != nil {
			attrs = append(attrs, "items", *r.Items)
		}
		if r.Detail != "" {
			attrs = append(attrs, "detail", r.Detail)
		}

		level := slog.LevelInfo
		if r.Outcome == runner.OutcomeFailure {
			level = slog.LevelError
		}
		e.logger.Log(ctx, level, "Task result", attrs...)
	}
}

// Render writes s to w in the given format
func Render(w io.Writer, format Format, s *runner.RunSummary) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		return renderText(w, s)
	default:
		return fmt.Errorf("unsupported summary format %q", format)
	}
}

func renderText(w io.Writer, s *runner.RunSummary) error {
	rows := make([][]string, 0, len(s.Results))
	for _, r := range s.Results {
		rows = append(rows, []string{
			r.TaskName,
			string(r.Outcome),
			strconv.Itoa(r.Attempts),
			formatItems(r.Items),
			r.Window.String(),
			r.Duration().Round(time.Millisecond).String(),
			r.Detail,
		})
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Task", "Outcome", "Attempts", "Items", "Window", "Duration", "Detail"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	mode := "run"
	if s.DryRun {
		mode = "dry run"
	}
	_, err := fmt.Fprintf(w, "%s %s %s: %d succeeded, %d failed, %d skipped (exit %d)\n",
		mode, s.RunID, s.Outcome,
		s.Count(runner.OutcomeSuccess), s.Count(runner.OutcomeFailure), s.Count(runner.OutcomeSkipped),
		s.ExitCode,
	)
	return err
}

// writeFallback writes one line per task in registration order
func writeFallback(w io.Writer, s *runner.RunSummary) {
	for _, r := range s.Results {
		_, _ = fmt.Fprintf(w, "task=%s outcome=%s detail=%s\n", r.TaskName, r.Outcome, strconv.Quote(r.Detail))
	}
}

func formatItems(items *int64) string {
	if items == nil {
		return "-"
	}
	return strconv.FormatInt(*items, 10)
}
