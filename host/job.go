package host

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/toolpipe/health"
	"github.com/jonwraymond/toolpipe/httpop"
	"github.com/jonwraymond/toolpipe/observe"
	"github.com/jonwraymond/toolpipe/resilience"
)

// Operation is what a Job executes once through its pipeline.
type Operation = resilience.Operation[*httpop.Response]

// JobOptions configures a Job.
type JobOptions struct {
	// StartDelay is waited before the single execution.
	StartDelay time.Duration

	Pipeline  *resilience.Pipeline
	Operation Operation

	// Telemetry, when set, wraps the execution in a span.
	Telemetry *observe.Telemetry

	// Tracker records the job's progress for health checks.
	Tracker *health.JobTracker

	Logger observe.Logger
}

// Job performs one guarded call after a startup delay.
type Job struct {
	opts JobOptions
}

// NewJob creates a job.
func NewJob(opts JobOptions) (*Job, error) {
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("host: job requires a pipeline")
	}
	if opts.Operation == nil {
		return nil, fmt.Errorf("host: job requires an operation")
	}
	if opts.Tracker == nil {
		opts.Tracker = health.NewJobTracker(opts.Pipeline.Name())
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	return &Job{opts: opts}, nil
}

// Tracker returns the job's health tracker.
func (j *Job) Tracker() *health.JobTracker {
	return j.opts.Tracker
}

// Run waits for the start delay, then executes the operation once through
// the pipeline. Failures and panics are logged and recorded, never returned,
// so a crashing job does not stop the host. A shutdown during the execution
// is logged as a cancellation, not a crash. Run returns ctx's error only
// when cancelled before the execution starts.
func (j *Job) Run(ctx context.Context) error {
	if err := resilience.SystemClock.Sleep(ctx, j.opts.StartDelay); err != nil {
		return err
	}

	j.opts.Tracker.Start()
	err := j.execute(ctx)
	j.opts.Tracker.Finish(err)
	switch {
	case err == nil:
	case resilience.IsCancelled(err):
		j.opts.Logger.Info(ctx, "job cancelled", observe.Field{Key: "error", Value: err})
	default:
		j.opts.Logger.Error(ctx, "job crashed", observe.Field{Key: "error", Value: err})
	}
	return nil
}

func (j *Job) execute(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("host: job panicked: %v", r)
		}
	}()

	run := func(ctx context.Context) error {
		resp, err := resilience.Do(ctx, j.opts.Pipeline, j.opts.Operation)
		if err != nil {
			return err
		}
		j.opts.Logger.Info(ctx, "response received",
			observe.Field{Key: "status", Value: resp.StatusCode},
			observe.Field{Key: "request_id", Value: resp.RequestID},
		)
		j.opts.Logger.Debug(ctx, "response content", observe.Field{Key: "body", Value: string(resp.Body)})
		return nil
	}

	if j.opts.Telemetry != nil {
		return j.opts.Telemetry.Trace(ctx, run)
	}
	return run(ctx)
}
