package core

import "context"

// Runner defines the orchestration contract for executing an agent within
// the caller's per-user session.
//
// Semantics & Guarantees:
//   - Event Ordering: events of a single run are delivered in the order the
//     agent pipeline produced them.
//   - Channel Lifecycle: the events channel is closed after the run completes
//     (success, error or cancellation). The error channel carries at most one
//     terminal error then closes (buffered size 1).
//   - Serialization: runs for the same user never overlap; runs for
//     different users proceed independently.
//   - Partial Events: partial fragments are streamed but never persisted.
type Runner interface {
	// Run starts agent for userID with message as input. It returns the id of
	// the session the run is bound to, the event stream and the terminal error
	// channel. The immediate error covers startup failures such as a
	// reentrant call for a user whose lock the caller already holds.
	Run(ctx context.Context, agent Agent, userID, message string) (string, <-chan Event, <-chan error, error)
}
