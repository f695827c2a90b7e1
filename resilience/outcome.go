package resilience

import "context"

// Operation is a unit of work invoked once per attempt. It must be safe to
// invoke again from scratch and should return promptly once ctx is done.
type Operation[T any] func(ctx context.Context) (T, error)

// Outcome is the result of a single attempt or of a whole execution.
// A nil Err is the success variant.
type Outcome struct {
	Value any
	Err   error
}

// Success creates a successful outcome.
func Success(v any) Outcome {
	return Outcome{Value: v}
}

// Failure creates a failed outcome.
func Failure(err error) Outcome {
	return Outcome{Err: err}
}

// Failed reports whether the outcome carries a fault.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Kind returns the fault kind of a failed outcome.
func (o Outcome) Kind() FaultKind {
	return KindOf(o.Err)
}

// Stage is one layer of a composed pipeline. The innermost stage is the
// caller's operation.
type Stage func(ctx context.Context) Outcome
