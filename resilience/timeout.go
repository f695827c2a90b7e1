package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// TimeoutConfig configures the per-attempt timeout.
type TimeoutConfig struct {
	// Timeout is the maximum duration of a single attempt. Must be positive.
	Timeout time.Duration
}

// Validate checks the configuration.
func (c TimeoutConfig) Validate() error {
	if c.Timeout <= 0 {
		return configError("timeout", "Timeout", "must be positive")
	}
	return nil
}

// NewStrategy implements StrategyFactory.
func (c TimeoutConfig) NewStrategy(env StrategyEnv) (Strategy, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Timeout{config: c, clock: env.clock()}, nil
}

// Timeout bounds the duration of the stage it wraps.
type Timeout struct {
	config TimeoutConfig
	clock  Clock
}

// NewTimeout creates a timeout strategy.
func NewTimeout(config TimeoutConfig) (*Timeout, error) {
	s, err := config.NewStrategy(StrategyEnv{})
	if err != nil {
		return nil, err
	}
	return s.(*Timeout), nil
}

// Name returns "timeout".
func (t *Timeout) Name() string {
	return "timeout"
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}

type stageResult struct {
	outcome  Outcome
	panicked bool
	panicVal any
}

const (
	attemptRunning int32 = iota
	attemptFinished
	attemptAbandoned
)

// attemptRun hands a result from the operation goroutine to Execute.
// Whichever side moves state first owns the result: the goroutine by
// finishing, Execute by abandoning at the deadline.
type attemptRun struct {
	state atomic.Int32
	done  chan stageResult
}

func newAttemptRun() *attemptRun {
	return &attemptRun{done: make(chan stageResult, 1)}
}

// Execute races next against the attempt deadline and ctx.
//
// When the deadline wins, the attempt context is cancelled and Execute stops
// waiting; an operation that ignores its context keeps running in the
// background and its result is discarded. A result produced at the deadline
// wins over the timeout. A panic from an abandoned operation is reported as
// EventAbandonedPanic, possibly after the execution has completed.
func (t *Timeout) Execute(ctx context.Context, next Stage) Outcome {
	if ctx.Err() != nil {
		return Failure(cancelled(context.Cause(ctx)))
	}

	attemptCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	start := t.clock.Now()
	run := newAttemptRun()

	go func() {
		var res stageResult
		defer func() {
			if r := recover(); r != nil {
				res = stageResult{panicked: true, panicVal: r}
			}
			if run.state.CompareAndSwap(attemptRunning, attemptFinished) {
				run.done <- res
				return
			}
			if res.panicked {
				t.abandonedPanic(ctx, res.panicVal)
			}
		}()
		res.outcome = next(attemptCtx)
	}()

	return t.await(ctx, attemptCtx, run, start)
}

func (t *Timeout) await(ctx, attemptCtx context.Context, run *attemptRun, start time.Time) Outcome {
	select {
	case res := <-run.done:
		return t.finish(ctx, attemptCtx, res, start)
	case <-attemptCtx.Done():
		if !run.state.CompareAndSwap(attemptRunning, attemptAbandoned) {
			// Finished at the deadline; the send is already underway.
			return t.finish(ctx, attemptCtx, <-run.done, start)
		}
		if ctx.Err() != nil {
			return Failure(cancelled(context.Cause(ctx)))
		}
		return t.timedOut(ctx, start)
	}
}

func (t *Timeout) finish(ctx, attemptCtx context.Context, res stageResult, start time.Time) Outcome {
	if res.panicked {
		panic(res.panicVal)
	}
	return t.settle(ctx, attemptCtx, res.outcome, start)
}

func (t *Timeout) abandonedPanic(ctx context.Context, v any) {
	attempt, _ := AttemptFromContext(ctx)
	event(ctx, Event{
		Kind:     EventAbandonedPanic,
		Strategy: t.Name(),
		Attempt:  attempt,
		Err:      fmt.Errorf("resilience: abandoned attempt panicked: %v", v),
	})
}

// settle maps an operation error caused by the deadline or by external
// cancellation to the corresponding pipeline fault.
func (t *Timeout) settle(ctx, attemptCtx context.Context, o Outcome, start time.Time) Outcome {
	if !o.Failed() {
		return o
	}
	if ctx.Err() != nil {
		return Failure(cancelled(context.Cause(ctx)))
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && errors.Is(o.Err, context.DeadlineExceeded) {
		return t.timedOut(ctx, start)
	}
	return o
}

func (t *Timeout) timedOut(ctx context.Context, start time.Time) Outcome {
	attempt, _ := AttemptFromContext(ctx)
	fault := TimeoutFault(nil)
	event(ctx, Event{
		Kind:     EventTimeout,
		Strategy: t.Name(),
		Attempt:  attempt,
		Err:      fault,
		Duration: t.clock.Now().Sub(start),
	})
	return Failure(fault)
}
