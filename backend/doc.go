// Package backend issues requests to a model.Model provider with a bounded
// exponential retry policy, an optional client-side rate limit, metrics and
// tracing.
//
// Failures are classified by HTTP status into TransientBackendError
// (retried) and FatalBackendError (surfaced immediately). A call that
// already streamed partial output is never retried.
package backend
