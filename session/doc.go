// Package session houses implementations of core.SessionStore.
//
// InMemoryStore keeps one active session per user for the lifetime of the
// process. Sessions are never evicted; a long-running process grows with
// the number of distinct users it has served.
package session
