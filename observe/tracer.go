package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// PipelineMeta identifies a pipeline and the operation it guards.
type PipelineMeta struct {
	Name      string // Pipeline name (required)
	Operation string // Operation being guarded, e.g. "GET /slow" (optional)
	Version   string // Configuration version (optional)
}

// SpanName returns the deterministic span name for this pipeline.
// Format: pipeline.exec.<name>
func (m PipelineMeta) SpanName() string {
	return "pipeline.exec." + m.Name
}

// Validate checks that the metadata is usable.
func (m PipelineMeta) Validate() error {
	if m.Name == "" {
		return ErrMissingPipelineName
	}
	return nil
}

func (m PipelineMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("pipeline.name", m.Name),
	}
	if m.Operation != "" {
		attrs = append(attrs, attribute.String("pipeline.operation", m.Operation))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with pipeline-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a pipeline execution.
	StartSpan(ctx context.Context, meta PipelineMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with pipeline metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta PipelineMeta) (context.Context, trace.Span) {
	attrs := meta.attributes()
	if meta.Version != "" {
		attrs = append(attrs, attribute.String("pipeline.version", meta.Version))
	}
	attrs = append(attrs, attribute.Bool("pipeline.error", false))

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("pipeline.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta PipelineMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
