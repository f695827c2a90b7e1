// Package host runs the demo service: an HTTP server with a fast and a slow
// endpoint, and a one-shot job that calls the server through a resilience
// pipeline shortly after startup.
package host
