package resilience

import "context"

// Strategy is one cross-cutting behavior wrapping an inner stage.
//
// Contract:
//   - Concurrency: Execute is called concurrently by independent executions
//     and must not share mutable state between them.
//   - Context: implementations must observe ctx at every wait and report
//     cancellation with ErrCancelled.
//   - Errors: configuration problems are reported by the factory at build
//     time, never by Execute.
type Strategy interface {
	// Name identifies the strategy in events.
	Name() string

	// Execute runs next, applying the strategy's behavior.
	Execute(ctx context.Context, next Stage) Outcome
}

// StrategyFactory validates a strategy configuration and creates the
// strategy. RetryConfig and TimeoutConfig implement it; new strategies plug
// into a Builder through AddStrategy.
type StrategyFactory interface {
	NewStrategy(env StrategyEnv) (Strategy, error)
}

// StrategyEnv carries pipeline-wide collaborators to strategy factories.
type StrategyEnv struct {
	Clock Clock
}

func (env StrategyEnv) clock() Clock {
	if env.Clock == nil {
		return SystemClock
	}
	return env.Clock
}
