package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errConnReset = errors.New("connection reset by peer")

// recordingClock records backoff waits without sleeping.
type recordingClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *recordingClock) Now() time.Time {
	return time.Now()
}

func (c *recordingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *recordingClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// eventRecorder is a Listener collecting events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) OnEvent(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) Kinds() []EventKind {
	events := r.Events()
	kinds := make([]EventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

func failingStage(attempts *int, err error) Stage {
	return func(ctx context.Context) Outcome {
		*attempts++
		return Failure(err)
	}
}

func mustRetry(t interface{ Fatalf(string, ...any) }, config RetryConfig, clock Clock) *Retry {
	s, err := config.NewStrategy(StrategyEnv{Clock: clock})
	if err != nil {
		t.Fatalf("NewStrategy() error = %v", err)
	}
	return s.(*Retry)
}
