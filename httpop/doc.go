// Package httpop turns HTTP calls into resilience operations.
//
// A Client issues requests relative to a base URL and maps failures onto
// resilience fault kinds so the default classifier retries what is worth
// retrying:
//
//   - connection, DNS, TLS and body read errors: transport fault
//   - 5xx and 429 responses: transport fault
//   - other non-2xx responses: non-retryable fault
//   - the http.Client's own timeout (short-timeout mode): non-retryable fault
//   - cancellation or deadline of the attempt context: passed through for
//     the pipeline to settle
package httpop
