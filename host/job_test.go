package host

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/toolpipe/health"
	"github.com/jonwraymond/toolpipe/httpop"
	"github.com/jonwraymond/toolpipe/observe"
	"github.com/jonwraymond/toolpipe/resilience"
)

type jobFixture struct {
	startDelay time.Duration
	retryDelay time.Duration
}

func (f jobFixture) newJob(t *testing.T, op Operation) (*Job, *bytes.Buffer) {
	t.Helper()
	retryDelay := f.retryDelay
	if retryDelay == 0 {
		retryDelay = time.Millisecond
	}

	tracker := health.NewJobTracker("job")
	p, err := resilience.NewBuilder().
		WithName("job").
		WithListener(tracker).
		AddRetry(resilience.RetryConfig{MaxRetryAttempts: 2, Delay: retryDelay}).
		AddTimeout(resilience.TimeoutConfig{Timeout: time.Second}).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	logs := &bytes.Buffer{}
	job, err := NewJob(JobOptions{
		StartDelay: f.startDelay,
		Pipeline:   p,
		Operation:  op,
		Tracker:    tracker,
		Logger:     observe.NewLoggerWithWriter("debug", logs),
	})
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}
	return job, logs
}

func TestNewJob_Validation(t *testing.T) {
	if _, err := NewJob(JobOptions{}); err == nil {
		t.Error("NewJob() without a pipeline should fail")
	}

	p, err := resilience.NewBuilder().WithName("named").Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, err := NewJob(JobOptions{Pipeline: p}); err == nil {
		t.Error("NewJob() without an operation should fail")
	}

	job, err := NewJob(JobOptions{Pipeline: p, Operation: func(context.Context) (*httpop.Response, error) { return nil, nil }})
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}
	if got := job.Tracker().Name(); got != "named" {
		t.Errorf("Tracker().Name() = %q, want the pipeline name", got)
	}
}

func TestJob_Success(t *testing.T) {
	calls := 0
	job, logs := jobFixture{}.newJob(t, func(context.Context) (*httpop.Response, error) {
		calls++
		if calls == 1 {
			return nil, resilience.TransportFault(errors.New("connection reset"))
		}
		return &httpop.Response{StatusCode: 200, Body: []byte(`{"healthy":true}`)}, nil
	})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	snap := job.Tracker().Snapshot()
	if snap.Phase != health.JobSucceeded || snap.Retries != 1 {
		t.Errorf("snapshot = %+v, want succeeded after 1 retry", snap)
	}
	out := logs.String()
	for _, want := range []string{`"msg":"response received"`, `"body":"{\"healthy\":true}"`} {
		if !strings.Contains(out, want) {
			t.Errorf("logs missing %s:\n%s", want, out)
		}
	}
	if strings.Contains(out, "job crashed") {
		t.Errorf("successful job logged a crash:\n%s", out)
	}
}

func TestJob_FailureIsCaught(t *testing.T) {
	job, logs := jobFixture{}.newJob(t, func(context.Context) (*httpop.Response, error) {
		return nil, resilience.TransportFault(errors.New("connection refused"))
	})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, failures never escape Run", err)
	}

	snap := job.Tracker().Snapshot()
	if snap.Phase != health.JobFailed {
		t.Errorf("phase = %v, want failed", snap.Phase)
	}
	if !errors.Is(snap.Err, resilience.ErrRetryBudgetExhausted) {
		t.Errorf("Err = %v, want ErrRetryBudgetExhausted", snap.Err)
	}
	if !strings.Contains(logs.String(), `"msg":"job crashed"`) {
		t.Errorf("logs missing crash entry:\n%s", logs)
	}
}

func TestJob_PanicIsCaught(t *testing.T) {
	job, logs := jobFixture{}.newJob(t, func(context.Context) (*httpop.Response, error) {
		panic("nil map write")
	})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	snap := job.Tracker().Snapshot()
	if snap.Phase != health.JobFailed || snap.Err == nil || !strings.Contains(snap.Err.Error(), "nil map write") {
		t.Errorf("snapshot = %+v, want failed with the panic value", snap)
	}
	if !strings.Contains(logs.String(), `"msg":"job crashed"`) {
		t.Errorf("logs missing crash entry:\n%s", logs)
	}
}

func TestJob_CancelledDuringStartDelay(t *testing.T) {
	called := false
	job, _ := jobFixture{startDelay: time.Minute}.newJob(t, func(context.Context) (*httpop.Response, error) {
		called = true
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := job.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
	if called {
		t.Error("operation ran despite cancellation during the start delay")
	}
	if got := job.Tracker().Snapshot().Phase; got != health.JobPending {
		t.Errorf("phase = %v, want pending", got)
	}
}

func TestJob_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failed := make(chan struct{})
	job, logs := jobFixture{retryDelay: time.Hour}.newJob(t, func(context.Context) (*httpop.Response, error) {
		close(failed)
		return nil, resilience.TransportFault(errors.New("connection refused"))
	})

	done := make(chan error, 1)
	go func() { done <- job.Run(ctx) }()

	<-failed
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	snap := job.Tracker().Snapshot()
	if snap.Phase != health.JobCancelled {
		t.Errorf("phase = %v, want cancelled", snap.Phase)
	}
	if !resilience.IsCancelled(snap.Err) {
		t.Errorf("Err = %v, want ErrCancelled", snap.Err)
	}
	out := logs.String()
	if !strings.Contains(out, `"msg":"job cancelled"`) || !strings.Contains(out, `"level":"info"`) {
		t.Errorf("logs missing info-level cancellation:\n%s", out)
	}
	if strings.Contains(out, "job crashed") {
		t.Errorf("cancellation logged as a crash:\n%s", out)
	}
}
