// Package observe provides observability primitives for resilience pipelines.
//
// It is a pure instrumentation library: pipelines emit structured events and
// Telemetry turns them into OpenTelemetry spans and metrics plus JSON logs.
// Nothing here influences how an execution proceeds.
package observe
