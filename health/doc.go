// Package health reports the health of a pipeline host.
//
// A Checker reports a Status: Healthy, Degraded or Unhealthy. An Aggregator
// runs a set of checkers concurrently and folds their results into one
// overall status, which the HTTP handlers expose as probes.
//
// # Job Health
//
// JobTracker follows the one-shot job a host runs through its resilience
// pipeline. It is both a resilience.Listener, counting retries of the run,
// and a Checker:
//
//	tracker := health.NewJobTracker("startup-call")
//	agg := health.NewAggregator()
//	agg.Register(tracker.Name(), tracker)
//
//	tracker.Start()
//	err := pipeline.Execute(ctx, op) // pipeline built WithListener(tracker)
//	tracker.Finish(err)
//
// # HTTP Endpoints
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg) // /healthz, /readyz, /health
package health
