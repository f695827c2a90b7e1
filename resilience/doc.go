// Package resilience provides a composable resilience pipeline for
// asynchronous operations.
//
// A Pipeline wraps an operation with cross-cutting fault-tolerance
// strategies and runs the composition as one unit per call. Pipelines are
// built once, never mutated, and are safe to share between goroutines.
//
// # Strategies
//
//   - Timeout: bounds a single attempt. When the deadline elapses the attempt
//     context is cancelled and a FaultTimeout fault is returned.
//
//   - Retry: re-invokes the inner stage while the Classifier deems the fault
//     retryable, waiting a constant, linear or exponential backoff between
//     attempts. MaxRetryAttempts counts retries, not total attempts.
//
// Further strategies plug in through StrategyFactory.
//
// # Usage
//
// Strategies nest in the order they are added, first added outermost. Adding
// the retry before the timeout gives every attempt its own fresh deadline:
//
//	p, err := resilience.NewBuilder().
//	    AddRetry(resilience.RetryConfig{
//	        MaxRetryAttempts: 5,
//	        Delay:            time.Second,
//	        Backoff:          resilience.BackoffConstant,
//	        ShouldHandle:     resilience.DefaultClassifier,
//	    }).
//	    AddTimeout(resilience.TimeoutConfig{Timeout: time.Second}).
//	    Build()
//	if err != nil {
//	    return err // errors.Is(err, resilience.ErrConfiguration)
//	}
//
//	resp, err := resilience.Do(ctx, p, func(ctx context.Context) (*http.Response, error) {
//	    return callExternalService(ctx)
//	})
//
// # Faults
//
// Faults carry an explicit FaultKind. Timeouts synthesized by the pipeline
// are FaultTimeout and reach the classifier like any operation fault, so
// DefaultClassifier retries them without special cases. Cancellation of the
// caller's context is never classified or retried: it surfaces immediately as
// an error matching ErrCancelled.
//
// # Events
//
// The pipeline does not log. It emits Events to a Listener set on the
// Builder; see the observe package for a telemetry-backed listener.
package resilience
