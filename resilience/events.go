package resilience

import (
	"context"
	"time"
)

// EventKind identifies a pipeline event.
type EventKind int

const (
	// EventExecutionStarted is emitted once when Execute begins.
	EventExecutionStarted EventKind = iota
	// EventAttemptFailed is emitted after each failed attempt.
	EventAttemptFailed
	// EventTimeout is emitted when an attempt deadline elapses.
	EventTimeout
	// EventRetry is emitted before the backoff wait of each retry.
	EventRetry
	// EventCallbackFailed is emitted when an OnRetry callback errors or panics.
	EventCallbackFailed
	// EventExecutionCompleted is emitted once when Execute returns.
	EventExecutionCompleted
	// EventAbandonedPanic is emitted when an operation abandoned by its
	// timeout panics. It may arrive after EventExecutionCompleted.
	EventAbandonedPanic
)

// String returns the string representation of the kind.
func (k EventKind) String() string {
	switch k {
	case EventExecutionStarted:
		return "execution_started"
	case EventAttemptFailed:
		return "attempt_failed"
	case EventTimeout:
		return "timeout"
	case EventRetry:
		return "retry"
	case EventCallbackFailed:
		return "callback_failed"
	case EventExecutionCompleted:
		return "execution_completed"
	case EventAbandonedPanic:
		return "abandoned_panic"
	default:
		return "unknown"
	}
}

// Event is a structured notification emitted by the pipeline. Events are
// fire-and-forget: listeners cannot influence the execution.
type Event struct {
	Kind        EventKind
	Pipeline    string
	ExecutionID string
	Strategy    string

	// Attempt is the 0-based attempt the event refers to.
	Attempt int

	// Err is the fault for failure, timeout and retry events, and the final
	// error (if any) for EventExecutionCompleted.
	Err error

	// Delay is the backoff delay for EventRetry.
	Delay time.Duration

	// Duration is the attempt duration, or the total duration for
	// EventExecutionCompleted.
	Duration time.Duration
}

// Listener receives pipeline events.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: listeners must not block; panics are recovered and dropped.
type Listener interface {
	OnEvent(ctx context.Context, e Event)
}

// ListenerFunc adapts a function to a Listener.
type ListenerFunc func(ctx context.Context, e Event)

// OnEvent calls f.
func (f ListenerFunc) OnEvent(ctx context.Context, e Event) {
	f(ctx, e)
}

// MultiListener fans events out to several listeners.
type MultiListener []Listener

// OnEvent delivers e to every listener in order.
func (m MultiListener) OnEvent(ctx context.Context, e Event) {
	for _, l := range m {
		emit(ctx, l, e)
	}
}

type noopListener struct{}

func (noopListener) OnEvent(context.Context, Event) {}

// emit delivers e to l, dropping any panic.
func emit(ctx context.Context, l Listener, e Event) {
	if l == nil {
		return
	}
	defer func() { _ = recover() }()
	l.OnEvent(ctx, e)
}
