// Package observability holds the Prometheus metrics and OpenTelemetry
// tracing helpers shared by the runner, backend caller, tool registry and
// sync bridge. A nil *Metrics is valid and records nothing.
package observability
