// Package otel provides OpenTelemetry span helpers for the ingestor.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by the run and task spans.
const (
	AttrRunID       = attribute.Key("run.id")
	AttrRunDryRun   = attribute.Key("run.dry_run")
	AttrTaskName    = attribute.Key("task.name")
	AttrTaskAttempt = attribute.Key("task.attempt")
	AttrTaskOutcome = attribute.Key("task.outcome")
	AttrWindowKind  = attribute.Key("window.kind")
	AttrWindowStart = attribute.Key("window.start")
	AttrWindowEnd   = attribute.Key("window.end")
	AttrItemCount   = attribute.Key("result.items")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the
// span already in ctx, which is a no-op when tracing is disabled.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span as failed.
// The status description stays generic; the error itself is kept as a span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
