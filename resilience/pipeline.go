package resilience

import (
	"context"

	"github.com/google/uuid"
)

// Builder assembles a Pipeline. Strategies nest in the order they are
// added: the first added is outermost.
type Builder struct {
	name      string
	factories []StrategyFactory
	listener  Listener
	clock     Clock
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithName sets the pipeline name reported in events.
func (b *Builder) WithName(name string) *Builder {
	b.name = name
	return b
}

// WithListener sets the listener receiving pipeline events.
func (b *Builder) WithListener(l Listener) *Builder {
	b.listener = l
	return b
}

// WithClock sets the clock used for backoff waits and durations.
func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

// AddRetry adds a retry strategy.
func (b *Builder) AddRetry(config RetryConfig) *Builder {
	return b.AddStrategy(config)
}

// AddTimeout adds a per-attempt timeout strategy.
func (b *Builder) AddTimeout(config TimeoutConfig) *Builder {
	return b.AddStrategy(config)
}

// AddStrategy adds a strategy created by factory at Build time.
func (b *Builder) AddStrategy(factory StrategyFactory) *Builder {
	b.factories = append(b.factories, factory)
	return b
}

// Build validates every configuration and composes the pipeline. All
// configuration faults surface here, never during execution.
func (b *Builder) Build() (*Pipeline, error) {
	clock := b.clock
	if clock == nil {
		clock = SystemClock
	}
	listener := b.listener
	if listener == nil {
		listener = noopListener{}
	}

	env := StrategyEnv{Clock: clock}
	strategies := make([]Strategy, 0, len(b.factories))
	for _, f := range b.factories {
		if f == nil {
			return nil, configError("pipeline", "strategy", "is nil")
		}
		s, err := f.NewStrategy(env)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}

	return &Pipeline{
		name:       b.name,
		strategies: strategies,
		listener:   listener,
		clock:      clock,
		run:        compose(strategies),
	}, nil
}

// compose folds strategies into one callable, first strategy outermost.
func compose(strategies []Strategy) func(ctx context.Context, op Stage) Outcome {
	run := func(ctx context.Context, op Stage) Outcome {
		return op(ctx)
	}
	for i := len(strategies) - 1; i >= 0; i-- {
		s, inner := strategies[i], run
		run = func(ctx context.Context, op Stage) Outcome {
			return s.Execute(ctx, func(ctx context.Context) Outcome {
				return inner(ctx, op)
			})
		}
	}
	return run
}

// Pipeline is an immutable composition of strategies. It is safe for
// concurrent use: each execution keeps its own state.
type Pipeline struct {
	name       string
	strategies []Strategy
	listener   Listener
	clock      Clock
	run        func(ctx context.Context, op Stage) Outcome
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.name
}

// Strategies returns the strategy names, outermost first.
func (p *Pipeline) Strategies() []string {
	names := make([]string, len(p.strategies))
	for i, s := range p.strategies {
		names[i] = s.Name()
	}
	return names
}

// ExecuteOutcome runs op through the pipeline and returns the terminal
// outcome. Cancellation of ctx yields an outcome whose error matches
// ErrCancelled.
func (p *Pipeline) ExecuteOutcome(ctx context.Context, op Stage) Outcome {
	if op == nil {
		return Failure(ErrNilOperation)
	}

	ctx = withExecution(ctx, &executionInfo{
		id:       uuid.NewString(),
		pipeline: p.name,
		listener: p.listener,
	})

	start := p.clock.Now()
	event(ctx, Event{Kind: EventExecutionStarted})

	var o Outcome
	if ctx.Err() != nil {
		o = Failure(cancelled(context.Cause(ctx)))
	} else {
		o = p.run(ctx, op)
	}

	event(ctx, Event{
		Kind:     EventExecutionCompleted,
		Err:      o.Err,
		Duration: p.clock.Now().Sub(start),
	})
	return o
}

// Execute runs op through the pipeline.
func (p *Pipeline) Execute(ctx context.Context, op func(context.Context) error) error {
	if op == nil {
		return ErrNilOperation
	}
	return p.ExecuteOutcome(ctx, func(ctx context.Context) Outcome {
		return Failure(op(ctx))
	}).Err
}

// Do runs a value-returning operation through p.
func Do[T any](ctx context.Context, p *Pipeline, op Operation[T]) (T, error) {
	var zero T
	if op == nil {
		return zero, ErrNilOperation
	}

	o := p.ExecuteOutcome(ctx, func(ctx context.Context) Outcome {
		v, err := op(ctx)
		if err != nil {
			return Failure(err)
		}
		return Success(v)
	})
	if o.Err != nil {
		return zero, o.Err
	}

	v, _ := o.Value.(T)
	return v, nil
}
