package core

// Agent defines the interface implemented by every unit of work: leaf model
// agents as well as parallel and sequential composites.
//
// Agents are immutable after construction and may be shared read-only between
// several parents (for example when the same agent is exposed as a tool by
// more than one composite), so Run must not mutate the receiver.
//
// Run executes the agent within runCtx, emitting events through
// runCtx.Emit. A nil return means the agent produced its final answer as one
// or more final events.
type Agent interface {
	Name() string
	Description() string
	// SubAgents returns every agent this agent can invoke: composite children
	// and agent-tool targets. It is used for graph validation.
	SubAgents() []Agent
	Run(runCtx *RunContext) error
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes implementation (e.g. "model", "parallel").
type AgentInfo struct{ Name, Type string }

// Typed is optionally implemented by agents to report their implementation kind.
type Typed interface {
	Type() string
}

// InfoOf returns the AgentInfo describing a.
func InfoOf(a Agent) AgentInfo {
	info := AgentInfo{Name: a.Name(), Type: "custom"}
	if t, ok := a.(Typed); ok {
		info.Type = t.Type()
	}
	return info
}
