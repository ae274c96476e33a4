// Package runner implements the orchestration layer: given an agent, a user
// and a message it resolves the user's session, serializes the run against
// other runs of the same user, executes the agent and streams its events
// back while persisting every non-partial event to the session history.
//
// Runs for different users proceed independently. A run started from a
// call chain that already holds the user's session lock fails immediately
// with core.ErrReentrancyViolation instead of deadlocking.
package runner
