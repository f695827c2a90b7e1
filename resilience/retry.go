package resilience

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxRetryAttempts is the number of retries after the initial attempt.
	// Total attempts never exceed MaxRetryAttempts+1. Zero disables retries.
	MaxRetryAttempts int

	// Delay is the base backoff delay. Zero retries immediately.
	Delay time.Duration

	// MaxDelay caps the backoff delay. Zero means no cap.
	MaxDelay time.Duration

	// Backoff is the backoff strategy.
	// Default: BackoffConstant
	Backoff BackoffStrategy

	// Multiplier is the growth factor for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Jitter adds up to 25% randomness to each delay.
	Jitter bool

	// KeepHistory records every attempt's fault on RetryExhaustedError.
	KeepHistory bool

	// ShouldHandle decides which outcomes are retried.
	// Default: DefaultClassifier
	ShouldHandle Classifier

	// OnRetry is called before each backoff wait. Its error or panic is
	// reported as EventCallbackFailed and otherwise ignored.
	OnRetry func(ctx context.Context, args RetryArgs) error
}

// RetryArgs describes an upcoming retry.
type RetryArgs struct {
	// Attempt is the 0-based attempt that just failed.
	Attempt int
	// Err is the fault of that attempt.
	Err error
	// Delay is the backoff wait before the next attempt.
	Delay time.Duration
	// Elapsed is the time spent since the first attempt started.
	Elapsed time.Duration
}

// DefaultRetryConfig returns 3 retries with a constant 2s delay that retry
// transport faults and timeouts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetryAttempts: 3,
		Delay:            2 * time.Second,
		Backoff:          BackoffConstant,
		Multiplier:       2.0,
		ShouldHandle:     DefaultClassifier,
	}
}

// Validate checks the configuration.
func (c RetryConfig) Validate() error {
	switch {
	case c.MaxRetryAttempts < 0:
		return configError("retry", "MaxRetryAttempts", "must not be negative")
	case c.Delay < 0:
		return configError("retry", "Delay", "must not be negative")
	case c.MaxDelay < 0:
		return configError("retry", "MaxDelay", "must not be negative")
	case c.Multiplier != 0 && c.Multiplier < 1:
		return configError("retry", "Multiplier", "must be at least 1")
	case c.Backoff < BackoffConstant || c.Backoff > BackoffExponential:
		return configError("retry", "Backoff", fmt.Sprintf("unknown strategy %d", int(c.Backoff)))
	}
	return nil
}

// NewStrategy implements StrategyFactory.
func (c RetryConfig) NewStrategy(env StrategyEnv) (Strategy, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.ShouldHandle == nil {
		c.ShouldHandle = DefaultClassifier
	}
	return &Retry{config: c, clock: env.clock()}, nil
}

// Retry re-invokes the stage it wraps until success, a non-retryable fault,
// budget exhaustion or cancellation.
type Retry struct {
	config RetryConfig
	clock  Clock
}

// NewRetry creates a retry strategy.
func NewRetry(config RetryConfig) (*Retry, error) {
	s, err := config.NewStrategy(StrategyEnv{})
	if err != nil {
		return nil, err
	}
	return s.(*Retry), nil
}

// Name returns "retry".
func (r *Retry) Name() string {
	return "retry"
}

// Config returns the retry configuration with defaults applied.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// retryState is owned by one Execute call.
type retryState struct {
	attempt int
	start   time.Time
	history []error
}

// Execute runs next with retry logic.
func (r *Retry) Execute(ctx context.Context, next Stage) Outcome {
	state := retryState{start: r.clock.Now()}

	for {
		attemptStart := r.clock.Now()
		o := next(withAttempt(ctx, state.attempt))

		if !o.Failed() {
			return o
		}
		if ctx.Err() != nil {
			return Failure(cancelled(context.Cause(ctx)))
		}
		if IsCancelled(o.Err) {
			return o
		}

		event(ctx, Event{
			Kind:     EventAttemptFailed,
			Strategy: r.Name(),
			Attempt:  state.attempt,
			Err:      o.Err,
			Duration: r.clock.Now().Sub(attemptStart),
		})
		if r.config.KeepHistory {
			state.history = append(state.history, o.Err)
		}

		retryable, err := r.classify(o)
		if err != nil {
			return Failure(err)
		}
		if !retryable {
			return o
		}
		if state.attempt >= r.config.MaxRetryAttempts {
			return Failure(&RetryExhaustedError{
				Attempts: state.attempt + 1,
				Last:     o.Err,
				History:  state.history,
			})
		}

		delay := r.Delay(state.attempt)
		r.notify(ctx, RetryArgs{
			Attempt: state.attempt,
			Err:     o.Err,
			Delay:   delay,
			Elapsed: r.clock.Now().Sub(state.start),
		})

		if err := r.clock.Sleep(ctx, delay); err != nil {
			return Failure(cancelled(context.Cause(ctx)))
		}
		state.attempt++
	}
}

// Delay returns the backoff delay after the given 0-based attempt.
func (r *Retry) Delay(attempt int) time.Duration {
	delay := BackoffDelay(r.config.Backoff, r.config.Delay, r.config.Multiplier, r.config.MaxDelay, attempt)
	if r.config.Jitter {
		delay = withJitter(delay)
	}
	return delay
}

// classify applies ShouldHandle, turning a panic into a configuration fault.
func (r *Retry) classify(o Outcome) (retryable bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			retryable = false
			err = &ConfigurationError{
				Strategy: r.Name(),
				Field:    "ShouldHandle",
				Reason:   "panicked",
				Err:      fmt.Errorf("%v", p),
			}
		}
	}()
	return r.config.ShouldHandle(o), nil
}

func (r *Retry) notify(ctx context.Context, args RetryArgs) {
	event(ctx, Event{
		Kind:     EventRetry,
		Strategy: r.Name(),
		Attempt:  args.Attempt,
		Err:      args.Err,
		Delay:    args.Delay,
		Duration: args.Elapsed,
	})

	if r.config.OnRetry == nil {
		return
	}
	if err := r.callOnRetry(ctx, args); err != nil {
		event(ctx, Event{
			Kind:     EventCallbackFailed,
			Strategy: r.Name(),
			Attempt:  args.Attempt,
			Err:      err,
		})
	}
}

func (r *Retry) callOnRetry(ctx context.Context, args RetryArgs) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("resilience: OnRetry panicked: %v", p)
		}
	}()
	return r.config.OnRetry(ctx, args)
}
