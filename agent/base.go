package agent

import (
	"fmt"

	"github.com/hupe1980/studymesh/core"
)

// BaseAgent bundles the identity shared by every agent implementation.
// Embed it in concrete agents and supply Run to satisfy core.Agent.
type BaseAgent struct {
	name        string
	description string
	subAgents   []core.Agent
}

// NewBaseAgent constructs a BaseAgent. An empty description is replaced by a
// generated one.
func NewBaseAgent(name, description string, subAgents ...core.Agent) BaseAgent {
	if description == "" {
		description = fmt.Sprintf("Agent %s", name)
	}
	return BaseAgent{
		name:        name,
		description: description,
		subAgents:   subAgents,
	}
}

// Name returns the unique agent name.
func (b *BaseAgent) Name() string { return b.name }

// Description returns the text a parent model uses to select this agent.
func (b *BaseAgent) Description() string { return b.description }

// SubAgents returns a copy of the agents this agent can invoke.
func (b *BaseAgent) SubAgents() []core.Agent {
	out := make([]core.Agent, len(b.subAgents))
	copy(out, b.subAgents)
	return out
}

// FindAgent performs a depth-first search below root for an agent named
// name. Returns nil if no match is found.
func FindAgent(root core.Agent, name string) core.Agent {
	seen := make(map[string]bool)

	var walk func(a core.Agent) core.Agent
	walk = func(a core.Agent) core.Agent {
		if a.Name() == name {
			return a
		}
		if seen[a.Name()] {
			return nil
		}
		seen[a.Name()] = true
		for _, child := range a.SubAgents() {
			if found := walk(child); found != nil {
				return found
			}
		}
		return nil
	}

	return walk(root)
}
