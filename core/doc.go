// Package core provides the foundational domain types and interfaces shared by
// every studymesh package:
//
//   - Agent (leaf or composite unit of work) and AgentInfo
//   - Event, Content and Parts (the streamed invocation result)
//   - Session and SessionStore (one conversation per user)
//   - RunContext / ToolContext (scoped execution & tool access)
//   - RoundLimiter and the reentrancy markers used by the sync bridge
//
// Implementation concerns (storage, backends, concrete agents) live in their
// own packages and depend on core, never the other way round.
package core
