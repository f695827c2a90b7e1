package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/toolpipe/resilience"
)

// Metrics records pipeline execution metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records a completed execution with its final error.
	RecordExecution(ctx context.Context, meta PipelineMeta, duration time.Duration, err error)

	// RecordAttemptFailure records a failed attempt by fault kind.
	RecordAttemptFailure(ctx context.Context, meta PipelineMeta, kind resilience.FaultKind)

	// RecordRetry records a scheduled retry and its backoff delay.
	RecordRetry(ctx context.Context, meta PipelineMeta, delay time.Duration)

	// RecordTimeout records an attempt that exceeded its deadline.
	RecordTimeout(ctx context.Context, meta PipelineMeta)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	totalCount    metric.Int64Counter
	errorCount    metric.Int64Counter
	durationHist  metric.Float64Histogram
	attemptFailed metric.Int64Counter
	retryCount    metric.Int64Counter
	backoffHist   metric.Float64Histogram
	timeoutCount  metric.Int64Counter
}

// NewMetrics creates a Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.totalCount, err = meter.Int64Counter(
		"pipeline.exec.total",
		metric.WithDescription("Total number of pipeline executions"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.errorCount, err = meter.Int64Counter(
		"pipeline.exec.errors",
		metric.WithDescription("Total number of failed pipeline executions"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.durationHist, err = meter.Float64Histogram(
		"pipeline.exec.duration_ms",
		metric.WithDescription("Pipeline execution duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.attemptFailed, err = meter.Int64Counter(
		"pipeline.attempt.failures",
		metric.WithDescription("Failed attempts by fault kind"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, err
	}

	if m.retryCount, err = meter.Int64Counter(
		"pipeline.retry.total",
		metric.WithDescription("Total number of scheduled retries"),
		metric.WithUnit("{retry}"),
	); err != nil {
		return nil, err
	}

	if m.backoffHist, err = meter.Float64Histogram(
		"pipeline.retry.backoff_ms",
		metric.WithDescription("Backoff delay before a retry in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.timeoutCount, err = meter.Int64Counter(
		"pipeline.timeout.total",
		metric.WithDescription("Total number of attempt timeouts"),
		metric.WithUnit("{timeout}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// Outcome labels for pipeline.exec.* metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeFault     = "fault"
	OutcomeExhausted = "exhausted"
	OutcomeCancelled = "cancelled"
)

// OutcomeLabel maps an execution's final error to a low-cardinality label.
func OutcomeLabel(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case resilience.IsCancelled(err):
		return OutcomeCancelled
	case errors.Is(err, resilience.ErrRetryBudgetExhausted):
		return OutcomeExhausted
	default:
		return OutcomeFault
	}
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta PipelineMeta, duration time.Duration, err error) {
	attrs := append(meta.attributes(), attribute.String("pipeline.outcome", OutcomeLabel(err)))
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordAttemptFailure(ctx context.Context, meta PipelineMeta, kind resilience.FaultKind) {
	attrs := append(meta.attributes(), attribute.String("fault.kind", kind.String()))
	m.attemptFailed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordRetry(ctx context.Context, meta PipelineMeta, delay time.Duration) {
	opt := metric.WithAttributes(meta.attributes()...)
	m.retryCount.Add(ctx, 1, opt)
	m.backoffHist.Record(ctx, float64(delay.Milliseconds()), opt)
}

func (m *metricsImpl) RecordTimeout(ctx context.Context, meta PipelineMeta) {
	m.timeoutCount.Add(ctx, 1, metric.WithAttributes(meta.attributes()...))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordExecution(context.Context, PipelineMeta, time.Duration, error) {}

func (m *noopMetrics) RecordAttemptFailure(context.Context, PipelineMeta, resilience.FaultKind) {}

func (m *noopMetrics) RecordRetry(context.Context, PipelineMeta, time.Duration) {}

func (m *noopMetrics) RecordTimeout(context.Context, PipelineMeta) {}
