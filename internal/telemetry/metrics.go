// Package telemetry provides OpenTelemetry instrumentation for the ingestor.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// RunMetricsMeterName is the name used for the run coordinator meter
	RunMetricsMeterName = "github.com/tradelens/ingestor/runner"
)

// RunMetrics holds the OpenTelemetry instruments recorded by the run coordinator
type RunMetrics struct {
	taskDuration metric.Float64Histogram
	taskItems    metric.Int64Counter
	taskRetries  metric.Int64Counter
	runsTotal    metric.Int64Counter
	runFailures  metric.Int64Counter
}

// NewRunMetrics creates a new RunMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewRunMetrics(provider metric.MeterProvider) (*RunMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RunMetricsMeterName)

	taskDuration, err := meter.Float64Histogram(
		"ingestor_task_duration_seconds",
		metric.WithDescription("Duration of task executions in seconds, retries included"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900),
	)
	if err != nil {
		return nil, err
	}

	taskItems, err := meter.Int64Counter(
		"ingestor_task_items_total",
		metric.WithDescription("Number of items processed by successful tasks"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	taskRetries, err := meter.Int64Counter(
		"ingestor_task_retries_total",
		metric.WithDescription("Number of task retries after a failed first attempt"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	runsTotal, err := meter.Int64Counter(
		"ingestor_runs_total",
		metric.WithDescription("Number of coordinator runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runFailures, err := meter.Int64Counter(
		"ingestor_run_task_failures_total",
		metric.WithDescription("Number of failed tasks across runs"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	return &RunMetrics{
		taskDuration: taskDuration,
		taskItems:    taskItems,
		taskRetries:  taskRetries,
		runsTotal:    runsTotal,
		runFailures:  runFailures,
	}, nil
}

// RecordTask records the duration and outcome of one task execution
func (m *RunMetrics) RecordTask(
	ctx context.Context, task, outcome string, duration time.Duration, retried bool, items *int64,
) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("task", task),
		attribute.String("outcome", outcome),
	)
	m.taskDuration.Record(ctx, duration.Seconds(), attrs)

	taskAttr := metric.WithAttributes(attribute.String("task", task))
	if retried {
		m.taskRetries.Add(ctx, 1, taskAttr)
	}
	if items != nil && *items > 0 {
		m.taskItems.Add(ctx, *items, taskAttr)
	}
}

// RecordRun records a finished run and the number of failed tasks in it
func (m *RunMetrics) RecordRun(ctx context.Context, outcome string, dryRun bool, failed int) {
	if m == nil {
		return
	}

	m.runsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("dry_run", dryRun),
	))
	if failed > 0 {
		m.runFailures.Add(ctx, int64(failed))
	}
}
