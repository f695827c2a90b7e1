package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/toolpipe/resilience"
)

// Telemetry turns pipeline events into spans, metrics and logs.
//
// Contract:
//   - Concurrency: safe for concurrent use by many executions.
//   - Context: span events are added to the span active in the event context,
//     so executions wrapped with Trace get per-attempt events.
//   - Errors: never influences the execution it observes.
type Telemetry struct {
	meta    PipelineMeta
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewTelemetry creates a Telemetry listener for one pipeline.
func NewTelemetry(meta PipelineMeta, tracer Tracer, metrics Metrics, logger Logger) *Telemetry {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = &noopMetrics{}
	}
	if logger == nil {
		logger = &noopLogger{}
	}
	return &Telemetry{
		meta:    meta,
		tracer:  tracer,
		metrics: metrics,
		logger:  logger.WithPipeline(meta),
	}
}

// TelemetryFromObserver creates a Telemetry listener backed by obs.
// This is a convenience function for common use cases.
func TelemetryFromObserver(obs Observer, meta PipelineMeta) (*Telemetry, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewTelemetry(meta, NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Logger returns the pipeline-scoped logger.
func (t *Telemetry) Logger() Logger {
	return t.logger
}

// Trace runs fn inside a span for one pipeline execution.
func (t *Telemetry) Trace(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, span := t.tracer.StartSpan(ctx, t.meta)
	err := fn(ctx)
	t.tracer.EndSpan(span, err)
	return err
}

// OnEvent implements resilience.Listener.
func (t *Telemetry) OnEvent(ctx context.Context, e resilience.Event) {
	fields := []Field{
		{Key: "execution.id", Value: e.ExecutionID},
	}
	span := trace.SpanFromContext(ctx)

	switch e.Kind {
	case resilience.EventExecutionStarted:
		t.logger.Debug(ctx, "pipeline execution started", fields...)

	case resilience.EventAttemptFailed:
		kind := resilience.KindOf(e.Err)
		t.metrics.RecordAttemptFailure(ctx, t.meta, kind)
		span.AddEvent("attempt.failed", trace.WithAttributes(
			attribute.Int("attempt", e.Attempt),
			attribute.String("fault.kind", kind.String()),
			attribute.String("error", errString(e.Err)),
		))
		t.logger.Debug(ctx, "attempt failed", append(fields,
			Field{Key: "attempt", Value: e.Attempt},
			Field{Key: "fault.kind", Value: kind.String()},
			Field{Key: "duration_ms", Value: ms(e.Duration)},
			Field{Key: "error", Value: e.Err},
		)...)

	case resilience.EventTimeout:
		t.metrics.RecordTimeout(ctx, t.meta)
		span.AddEvent("attempt.timeout", trace.WithAttributes(attribute.Int("attempt", e.Attempt)))
		t.logger.Warn(ctx, "attempt timed out", append(fields,
			Field{Key: "attempt", Value: e.Attempt},
			Field{Key: "duration_ms", Value: ms(e.Duration)},
		)...)

	case resilience.EventRetry:
		t.metrics.RecordRetry(ctx, t.meta, e.Delay)
		span.AddEvent("retry", trace.WithAttributes(
			attribute.Int("attempt", e.Attempt),
			attribute.Int64("delay_ms", e.Delay.Milliseconds()),
		))
		t.logger.Debug(ctx, "retrying", append(fields,
			Field{Key: "attempt", Value: e.Attempt},
			Field{Key: "delay_ms", Value: ms(e.Delay)},
			Field{Key: "error", Value: e.Err},
		)...)

	case resilience.EventCallbackFailed:
		t.logger.Warn(ctx, "retry callback failed", append(fields,
			Field{Key: "attempt", Value: e.Attempt},
			Field{Key: "error", Value: e.Err},
		)...)

	case resilience.EventAbandonedPanic:
		t.logger.Error(ctx, "abandoned attempt panicked", append(fields,
			Field{Key: "attempt", Value: e.Attempt},
			Field{Key: "error", Value: e.Err},
		)...)

	case resilience.EventExecutionCompleted:
		t.metrics.RecordExecution(ctx, t.meta, e.Duration, e.Err)
		fields = append(fields,
			Field{Key: "duration_ms", Value: ms(e.Duration)},
			Field{Key: "outcome", Value: OutcomeLabel(e.Err)},
		)
		if e.Err != nil {
			t.logger.Error(ctx, "pipeline execution failed", append(fields, Field{Key: "error", Value: e.Err})...)
		} else {
			t.logger.Info(ctx, "pipeline execution completed", fields...)
		}
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Ensure Telemetry implements resilience.Listener
var _ resilience.Listener = (*Telemetry)(nil)
