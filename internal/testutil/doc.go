// Package testutil holds builders shared by package tests: events,
// sessions, run and tool contexts, and a concurrency-safe event recorder.
// Not for production use.
package testutil
