package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecorder(t *testing.T) (*tracetest.InMemoryExporter, trace.Tracer) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter, tp.Tracer("test")
}

func TestStartSpan_NilTracer(t *testing.T) {
	t.Parallel()

	ctx, span := StartSpan(context.Background(), nil, "runner.Run")
	require.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid(), "nil tracer yields a no-op span")
	assert.NotPanics(t, func() { span.End() })
}

func TestStartSpan_TaskSpanIsChildOfRunSpan(t *testing.T) {
	t.Parallel()

	exporter, tracer := newRecorder(t)

	ctx, run := StartSpan(context.Background(), tracer, "runner.Run",
		trace.WithAttributes(AttrRunID.String("run-1"), AttrRunDryRun.Bool(false)),
	)
	_, task := StartSpan(ctx, tracer, "runner.task",
		trace.WithAttributes(AttrTaskName.String("ohlcv"), AttrWindowKind.String("day")),
	)
	task.SetAttributes(AttrTaskAttempt.Int(2), AttrItemCount.Int64(40))
	task.End()
	run.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	taskSpan, runSpan := spans[0], spans[1]

	assert.Equal(t, "runner.task", taskSpan.Name)
	assert.Equal(t, runSpan.SpanContext.SpanID(), taskSpan.Parent.SpanID())

	attrs := map[string]any{}
	for _, kv := range taskSpan.Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "ohlcv", attrs["task.name"])
	assert.Equal(t, int64(2), attrs["task.attempt"])
	assert.Equal(t, int64(40), attrs["result.items"])
}

func TestRecordError(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { RecordError(nil, errors.New("boom")) })

	exporter, tracer := newRecorder(t)

	_, clean := tracer.Start(context.Background(), "clean")
	RecordError(clean, nil)
	clean.End()

	_, failed := tracer.Start(context.Background(), "failed")
	RecordError(failed, errors.New("connection refused"))
	failed.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Empty(t, spans[0].Events)

	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, "operation failed", spans[1].Status.Description)
	require.NotEmpty(t, spans[1].Events)
	assert.Equal(t, "exception", spans[1].Events[0].Name)
}
