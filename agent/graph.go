package agent

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/tool"
)

// Kind selects the agent implementation of a Definition.
type Kind string

const (
	KindModel      Kind = "model"
	KindParallel   Kind = "parallel"
	KindSequential Kind = "sequential"
)

var (
	// ErrCycleDetected is matched by every *CycleError.
	ErrCycleDetected = errors.New("agent graph cycle detected")
	// ErrUnknownAgent is returned when a definition references an undefined agent.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrUnknownTool is returned when a definition references an unregistered tool.
	ErrUnknownTool = errors.New("unknown tool")
)

// CycleError reports an agent that transitively includes itself. Path
// starts and ends with the same agent name.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.Path, " -> "))
}

// Is matches ErrCycleDetected.
func (e *CycleError) Is(target error) bool { return target == ErrCycleDetected }

// Definition declares one agent of a graph. For model agents Children are
// exposed as agent tools; for composites they are the members, in order.
type Definition struct {
	Name        string   `yaml:"name" json:"name"`
	Kind        Kind     `yaml:"kind" json:"kind"`
	Description string   `yaml:"description" json:"description"`
	Instruction string   `yaml:"instruction" json:"instruction,omitempty"`
	Children    []string `yaml:"children" json:"children,omitempty"`
	Tools       []string `yaml:"tools" json:"tools,omitempty"`
	Model       string   `yaml:"model" json:"model,omitempty"`
}

// GraphOptions configures BuildGraph.
type GraphOptions struct {
	// ModelFor returns the backend of a model definition. Required when the
	// graph contains model agents.
	ModelFor func(def Definition) (model.Model, error)
	// Tools resolves Definition.Tools by name.
	Tools map[string]tool.Tool
	// ModelOptions are applied to every ModelAgent before the definition's
	// own description, instruction and tools.
	ModelOptions []func(o *ModelAgentOptions)
	// MaxConcurrency bounds every ParallelAgent (0: unbounded).
	MaxConcurrency int
	// ParallelOptions and SequentialOptions are applied to every composite
	// of that kind.
	ParallelOptions   []func(o *ParallelAgentOptions)
	SequentialOptions []func(o *SequentialAgentOptions)
}

// Graph is a constructed, validated set of agents addressable by name.
type Graph struct {
	agents map[string]core.Agent
	order  []string
}

// Agent returns the agent named name.
func (g *Graph) Agent(name string) (core.Agent, bool) {
	a, ok := g.agents[name]
	return a, ok
}

// Names returns the agent names in construction order (children first).
func (g *Graph) Names() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// ValidateDefinitions checks names, kinds and references and rejects
// cycles. It constructs nothing.
func ValidateDefinitions(defs []Definition) error {
	_, err := indexDefinitions(defs)
	return err
}

// BuildGraph validates defs and constructs every agent, children before
// parents. An agent referenced by several parents is constructed once and
// shared.
func BuildGraph(defs []Definition, optFns ...func(o *GraphOptions)) (*Graph, error) {
	opts := GraphOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	index, err := indexDefinitions(defs)
	if err != nil {
		return nil, err
	}

	g := &Graph{agents: make(map[string]core.Agent, len(defs))}

	var build func(name string) (core.Agent, error)
	build = func(name string) (core.Agent, error) {
		if a, ok := g.agents[name]; ok {
			return a, nil
		}

		def := index[name]
		children := make([]core.Agent, 0, len(def.Children))
		for _, childName := range def.Children {
			child, err := build(childName)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}

		a, err := buildAgent(def, children, &opts)
		if err != nil {
			return nil, err
		}

		g.agents[name] = a
		g.order = append(g.order, name)

		return a, nil
	}

	for _, def := range defs {
		if _, err := build(def.Name); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func buildAgent(def Definition, children []core.Agent, opts *GraphOptions) (core.Agent, error) {
	switch def.Kind {
	case KindParallel:
		return NewParallelAgent(def.Name, children, append(opts.ParallelOptions, func(o *ParallelAgentOptions) {
			o.Description = def.Description
			if opts.MaxConcurrency > 0 {
				o.MaxConcurrency = opts.MaxConcurrency
			}
		})...)
	case KindSequential:
		return NewSequentialAgent(def.Name, children, append(opts.SequentialOptions, func(o *SequentialAgentOptions) {
			o.Description = def.Description
		})...)
	default:
		if opts.ModelFor == nil {
			return nil, fmt.Errorf("agent %s: no model factory configured", def.Name)
		}
		m, err := opts.ModelFor(def)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", def.Name, err)
		}

		tools := make([]tool.Tool, 0, len(def.Tools))
		for _, toolName := range def.Tools {
			t, ok := opts.Tools[toolName]
			if !ok {
				return nil, fmt.Errorf("agent %s: %w: %s", def.Name, ErrUnknownTool, toolName)
			}
			tools = append(tools, t)
		}

		return NewModelAgent(def.Name, m, append(opts.ModelOptions, func(o *ModelAgentOptions) {
			o.Description = def.Description
			if def.Instruction != "" {
				o.Instruction = NewInstructionFromText(def.Instruction)
			}
			o.Tools = append(o.Tools, tools...)
			o.SubAgents = append(o.SubAgents, children...)
		})...)
	}
}

func indexDefinitions(defs []Definition) (map[string]Definition, error) {
	index := make(map[string]Definition, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			return nil, errors.New("agent definition without name")
		}
		if _, dup := index[def.Name]; dup {
			return nil, fmt.Errorf("duplicate agent definition %s", def.Name)
		}
		switch def.Kind {
		case KindModel:
		case KindParallel, KindSequential:
			if len(def.Children) == 0 {
				return nil, fmt.Errorf("agent %s: %s agent needs children", def.Name, def.Kind)
			}
		default:
			return nil, fmt.Errorf("agent %s: unknown kind %q", def.Name, def.Kind)
		}
		index[def.Name] = def
	}

	for _, def := range defs {
		for _, child := range def.Children {
			if _, ok := index[child]; !ok {
				return nil, fmt.Errorf("agent %s: %w: %s", def.Name, ErrUnknownAgent, child)
			}
		}
	}

	names := make([]string, 0, len(index))
	for name := range index {
		names = append(names, name)
	}
	sort.Strings(names)

	edges := func(name string) []string { return index[name].Children }
	for _, name := range names {
		if path := findCycle(name, edges); path != nil {
			return nil, &CycleError{Path: path}
		}
	}

	return index, nil
}

// DetectCycle walks the agents reachable from root through SubAgents and
// returns a *CycleError if any agent transitively includes itself.
func DetectCycle(root core.Agent) error {
	byName := make(map[string]core.Agent)

	var collect func(a core.Agent)
	collect = func(a core.Agent) {
		if _, ok := byName[a.Name()]; ok {
			return
		}
		byName[a.Name()] = a
		for _, c := range a.SubAgents() {
			collect(c)
		}
	}
	collect(root)

	edges := func(name string) []string {
		subs := byName[name].SubAgents()
		out := make([]string, len(subs))
		for i, s := range subs {
			out[i] = s.Name()
		}
		return out
	}

	if path := findCycle(root.Name(), edges); path != nil {
		return &CycleError{Path: path}
	}
	return nil
}

// findCycle runs a depth-first search from start and returns the first
// cycle found as a closed path, or nil.
func findCycle(start string, edges func(string) []string) []string {
	const (
		white = iota
		grey
		black
	)

	color := make(map[string]int)
	var stack []string

	var visit func(n string) []string
	visit = func(n string) []string {
		color[n] = grey
		stack = append(stack, n)
		for _, next := range edges(n) {
			switch color[next] {
			case grey:
				for i, s := range stack {
					if s == next {
						return append(append([]string{}, stack[i:]...), next)
					}
				}
			case white:
				if path := visit(next); path != nil {
					return path
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return nil
	}

	return visit(start)
}
