package resilience

import "context"

type contextKey int

const (
	executionKey contextKey = iota
	attemptKey
)

type executionInfo struct {
	id       string
	pipeline string
	listener Listener
}

func withExecution(ctx context.Context, info *executionInfo) context.Context {
	return context.WithValue(ctx, executionKey, info)
}

func executionFromContext(ctx context.Context) *executionInfo {
	info, _ := ctx.Value(executionKey).(*executionInfo)
	return info
}

// ExecutionIDFromContext returns the ID of the pipeline execution running ctx.
// Returns empty string outside of a pipeline execution.
func ExecutionIDFromContext(ctx context.Context) string {
	if info := executionFromContext(ctx); info != nil {
		return info.id
	}
	return ""
}

// AttemptFromContext returns the 0-based retry attempt running ctx.
// ok is false when no retry strategy encloses the call.
func AttemptFromContext(ctx context.Context) (attempt int, ok bool) {
	attempt, ok = ctx.Value(attemptKey).(int)
	return attempt, ok
}

func withAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey, attempt)
}

// event fills the execution fields of e and emits it.
func event(ctx context.Context, e Event) {
	info := executionFromContext(ctx)
	if info == nil {
		return
	}
	e.ExecutionID = info.id
	e.Pipeline = info.pipeline
	emit(ctx, info.listener, e)
}
