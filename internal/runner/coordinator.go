// Package runner executes selected tasks over their resolved windows and
// records the outcome in the status store.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tradelens/ingestor/internal/otel"
	"github.com/tradelens/ingestor/internal/status"
	"github.com/tradelens/ingestor/internal/tasks"
	"github.com/tradelens/ingestor/internal/telemetry"
	"github.com/tradelens/ingestor/internal/window"
)

const (
	// maxAttempts is the first attempt plus one immediate retry
	maxAttempts = 2

	// DefaultSaveTimeout bounds the status save at the end of a run
	DefaultSaveTimeout = 30 * time.Second

	// TracerName is the name of the tracer used for run and task spans
	TracerName = "github.com/tradelens/ingestor/runner"
)

// Coordinator runs tasks from a registry against a status store
type Coordinator struct {
	registry    *tasks.Registry
	store       status.Store
	clock       func() time.Time
	concurrency int
	saveTimeout time.Duration

	metrics *telemetry.RunMetrics
	tracer  trace.Tracer
}

// Option is a function that configures the coordinator
type Option func(*Coordinator)

// WithClock sets the clock used to capture the run's reference time
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

// WithConcurrency sets how many tasks may execute at once. Values below 2 run
// tasks sequentially.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		c.concurrency = n
	}
}

// WithSaveTimeout bounds the status save, which still runs when the run
// context has been cancelled
func WithSaveTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.saveTimeout = d
	}
}

// WithRunMetrics sets the metrics recorded for each run
func WithRunMetrics(metrics *telemetry.RunMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = metrics
	}
}

// WithTracer sets the tracer used for run and task spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

// New creates a coordinator over registry and store
func New(registry *tasks.Registry, store status.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:    registry,
		store:       store,
		clock:       time.Now,
		concurrency: 1,
		saveTimeout: DefaultSaveTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run executes the selected tasks, or every registered task when selected is
// empty, and saves their statuses once all of them have finished. The returned
// error is non-nil only for configuration errors, in which case no task ran.
func (c *Coordinator) Run(ctx context.Context, selected []string) (*RunSummary, error) {
	return c.run(ctx, selected, false)
}

// DryRun resolves the windows of the selected tasks and reports what a run
// would do without invoking any task or saving any status.
func (c *Coordinator) DryRun(ctx context.Context, selected []string) (*RunSummary, error) {
	return c.run(ctx, selected, true)
}

type plannedTask struct {
	descriptor tasks.Descriptor
	window     window.Window
}

func (c *Coordinator) run(ctx context.Context, selected []string, dryRun bool) (*RunSummary, error) {
	descriptors, err := c.registry.Select(selected)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := slog.With("run_id", runID)

	ctx, span := otel.StartSpan(ctx, c.tracer, "runner.Run",
		trace.WithAttributes(otel.AttrRunID.String(runID), otel.AttrRunDryRun.Bool(dryRun)),
	)
	defer span.End()

	statuses, err := c.store.Load(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Failed to load task status, treating every task as never run", "error", err)
		statuses = nil
	}
	if statuses == nil {
		statuses = make(map[string]*status.TaskStatus)
	}

	now := c.clock().UTC()

	plan := make([]plannedTask, 0, len(descriptors))
	for _, d := range descriptors {
		w, err := window.Resolve(d.Policy, status.LastSuccess(statuses, d.Name), now)
		if err != nil {
			otel.RecordError(span, err)
			return nil, &tasks.ConfigurationError{Task: d.Name, Err: err}
		}
		plan = append(plan, plannedTask{descriptor: d, window: w})
	}

	logger.InfoContext(ctx, "Starting run",
		"tasks", len(plan),
		"dry_run", dryRun,
		"concurrency", c.concurrency,
	)

	summary := &RunSummary{
		RunID:     runID,
		StartedAt: now,
		DryRun:    dryRun,
		Results:   c.executeAll(ctx, logger, plan, dryRun),
	}

	if !dryRun {
		next := mergeStatuses(statuses, summary.Results, now)
		// Outlives a cancelled run so finished tasks keep their status
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.saveTimeout)
		err := c.store.Save(saveCtx, next)
		cancel()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to save task status", "error", err)
			otel.RecordError(span, err)
			summary.StatusError = err.Error()
		}
	}

	summary.FinishedAt = c.clock().UTC()
	summary.finalize()

	c.metrics.RecordRun(ctx, string(summary.Outcome), dryRun, summary.Count(OutcomeFailure))
	if summary.Outcome == OutcomeFailure {
		otel.RecordError(span, fmt.Errorf("%d task(s) failed", summary.Count(OutcomeFailure)))
	}

	logger.InfoContext(ctx, "Run finished",
		"outcome", summary.Outcome,
		"succeeded", summary.Count(OutcomeSuccess),
		"failed", summary.Count(OutcomeFailure),
		"skipped", summary.Count(OutcomeSkipped),
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)

	return summary, nil
}

// executeAll runs the plan and returns results in plan order
func (c *Coordinator) executeAll(ctx context.Context, logger *slog.Logger, plan []plannedTask, dryRun bool) []RunResult {
	results := make([]RunResult, len(plan))

	if c.concurrency < 2 || len(plan) < 2 {
		for i, p := range plan {
			results[i] = c.execute(ctx, logger, p, dryRun)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, p := range plan {
		g.Go(func() error {
			results[i] = c.execute(ctx, logger, p, dryRun)
			return nil
		})
	}
	// Task errors are captured in results, never returned to the group
	_ = g.Wait()

	return results
}

// execute runs a single task with one immediate retry. It never returns an
// error: every failure is captured in the result.
func (c *Coordinator) execute(ctx context.Context, logger *slog.Logger, p plannedTask, dryRun bool) RunResult {
	name := p.descriptor.Name
	logger = logger.With("task", name)

	result := RunResult{
		TaskName:  name,
		Window:    p.window,
		StartedAt: c.clock().UTC(),
	}

	if p.window.IsEmpty() {
		result.Outcome = OutcomeSkipped
		result.Detail = p.window.Reason
		result.FinishedAt = result.StartedAt
		logger.InfoContext(ctx, "Skipping task", "reason", p.window.Reason)
		c.metrics.RecordTask(ctx, name, string(OutcomeSkipped), 0, false, nil)
		return result
	}

	if dryRun {
		result.Outcome = OutcomeSkipped
		result.WouldRun = true
		result.Detail = "would run over " + p.window.String()
		result.FinishedAt = result.StartedAt
		return result
	}

	ctx, span := otel.StartSpan(ctx, c.tracer, "runner.task",
		trace.WithAttributes(
			otel.AttrTaskName.String(name),
			otel.AttrWindowKind.String(string(p.window.Kind)),
		),
	)
	defer span.End()
	if !p.window.Start.IsZero() {
		span.SetAttributes(
			otel.AttrWindowStart.String(p.window.Start.Format(time.RFC3339)),
			otel.AttrWindowEnd.String(p.window.End.Format(time.RFC3339)),
		)
	}

	attempts := 0
	operation := func() (tasks.Outcome, error) {
		attempts++
		out, err := invoke(ctx, p.descriptor.Run, p.window)
		if err != nil {
			return out, &TaskExecutionError{Task: name, Attempt: attempts, Err: err}
		}
		return out, nil
	}

	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(maxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, _ time.Duration) {
			logger.WarnContext(ctx, "Task attempt failed, retrying", "error", err)
		}),
	)

	result.FinishedAt = c.clock().UTC()
	result.Attempts = attempts
	result.Retried = attempts > 1
	span.SetAttributes(otel.AttrTaskAttempt.Int(attempts))

	if err != nil {
		result.Outcome = OutcomeFailure
		result.Detail = failureMessage(err)
		otel.RecordError(span, err)
		logger.ErrorContext(ctx, "Task failed",
			"attempts", attempts,
			"duration", result.Duration(),
			"error", result.Detail,
		)
	} else {
		result.Outcome = OutcomeSuccess
		result.Items = out.Items
		result.Detail = out.Detail
		if out.Items != nil {
			span.SetAttributes(otel.AttrItemCount.Int64(*out.Items))
		}
		logger.InfoContext(ctx, "Task succeeded",
			"attempts", attempts,
			"duration", result.Duration(),
			"items", itemsAttr(out.Items),
		)
	}
	span.SetAttributes(otel.AttrTaskOutcome.String(string(result.Outcome)))

	c.metrics.RecordTask(ctx, name, string(result.Outcome), result.Duration(), result.Retried, result.Items)
	return result
}

// invoke calls fn and converts a panic into an error
func invoke(ctx context.Context, fn tasks.Func, w window.Window) (out tasks.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx, w)
}

// failureMessage returns the task's own error message, without the attempt wrapper
func failureMessage(err error) string {
	var execErr *TaskExecutionError
	if errors.As(err, &execErr) && execErr.Err != nil {
		return execErr.Err.Error()
	}
	return err.Error()
}

// mergeStatuses applies results to a copy of the loaded statuses. Skipped tasks
// keep their previous record. A success is recorded at now, the end of the
// window every task in the run was resolved against.
func mergeStatuses(loaded map[string]*status.TaskStatus, results []RunResult, now time.Time) map[string]*status.TaskStatus {
	next := status.CloneAll(loaded)
	for _, r := range results {
		switch r.Outcome {
		case OutcomeSuccess:
			next[r.TaskName] = next[r.TaskName].RecordSuccess(r.TaskName, r.StartedAt, now)
		case OutcomeFailure:
			next[r.TaskName] = next[r.TaskName].RecordFailure(r.TaskName, r.StartedAt, r.Detail)
		case OutcomeSkipped:
		}
	}
	return next
}

func itemsAttr(items *int64) any {
	if items == nil {
		return nil
	}
	return *items
}
