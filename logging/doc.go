// Package logging provides a minimal logging interface and adapters for studymesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the runner, flows, tools and backend caller use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter over log/slog, with secret attributes redacted
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	r := runner.New(func(o *runner.Options) { o.Logger = logger })
//
// Messages use dot separated event names ("tool.call.start") followed by
// key/value pairs.
package logging
