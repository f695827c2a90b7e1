package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/toolpipe/resilience"
)

// JobPhase is the lifecycle position of a tracked job.
type JobPhase int

const (
	JobPending JobPhase = iota
	JobRunning
	JobSucceeded
	JobFailed
	// JobCancelled means the run was stopped by shutdown before it finished.
	JobCancelled
)

func (p JobPhase) String() string {
	switch p {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	case JobCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// JobSnapshot is a point-in-time copy of a tracker's state.
type JobSnapshot struct {
	Phase      JobPhase
	Retries    int
	Timeouts   int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// JobTracker records the progress of a one-shot job executed through a
// resilience pipeline and reports it as a Checker:
//
//   - succeeded on the first attempt: healthy
//   - pending, running, cancelled, or succeeded after retries: degraded
//   - failed: unhealthy
type JobTracker struct {
	name string

	mu    sync.RWMutex
	state JobSnapshot
}

// NewJobTracker creates a tracker in the pending phase.
func NewJobTracker(name string) *JobTracker {
	return &JobTracker{name: name}
}

// Name returns the checker name.
func (j *JobTracker) Name() string {
	return j.name
}

// Start marks the job as running and resets counters from any earlier run.
func (j *JobTracker) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = JobSnapshot{Phase: JobRunning, StartedAt: time.Now()}
}

// Finish records the terminal result of the run. A cancellation is not a
// failure and moves the job to JobCancelled.
func (j *JobTracker) Finish(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.state.FinishedAt = time.Now()
	j.state.Err = err
	switch {
	case err == nil:
		j.state.Phase = JobSucceeded
	case resilience.IsCancelled(err):
		j.state.Phase = JobCancelled
	default:
		j.state.Phase = JobFailed
	}
}

// Snapshot returns a copy of the current state.
func (j *JobTracker) Snapshot() JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// OnEvent implements resilience.Listener.
func (j *JobTracker) OnEvent(_ context.Context, e resilience.Event) {
	switch e.Kind {
	case resilience.EventRetry:
		j.mu.Lock()
		j.state.Retries++
		j.mu.Unlock()
	case resilience.EventTimeout:
		j.mu.Lock()
		j.state.Timeouts++
		j.mu.Unlock()
	}
}

// Check implements Checker.
func (j *JobTracker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	s := j.Snapshot()
	details := map[string]any{
		"phase":    s.Phase.String(),
		"retries":  s.Retries,
		"timeouts": s.Timeouts,
	}
	if !s.FinishedAt.IsZero() {
		details["finished_at"] = s.FinishedAt.UTC().Format(time.RFC3339)
	}

	switch s.Phase {
	case JobPending:
		return Degraded("job has not started").WithDetails(details)
	case JobRunning:
		return Degraded("job is running").WithDetails(details)
	case JobCancelled:
		return Degraded("job was cancelled").WithDetails(details)
	case JobFailed:
		return Unhealthy("job failed", fmt.Errorf("%w: %w", ErrCheckFailed, s.Err)).WithDetails(details)
	}

	if s.Retries > 0 {
		return Degraded(fmt.Sprintf("job succeeded after %d retries", s.Retries)).WithDetails(details)
	}
	return Healthy("job succeeded").WithDetails(details)
}

var (
	_ Checker             = (*JobTracker)(nil)
	_ resilience.Listener = (*JobTracker)(nil)
)
