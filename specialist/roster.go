package specialist

import (
	"errors"
	"maps"

	"github.com/hupe1980/studymesh/agent"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/tool"
)

// BuildOptions configures Build.
type BuildOptions struct {
	Deps Deps
	// ModelFor returns the backend of each model definition.
	ModelFor func(def agent.Definition) (model.Model, error)
	// ExtraTools are offered next to the built-in function tools. An extra
	// tool with a built-in name replaces it.
	ExtraTools []tool.Tool
	// Graph options are passed to agent.BuildGraph.
	Graph []func(o *agent.GraphOptions)
}

// Build constructs the agent graph of defs with the specialist tools bound
// to opts.Deps. With no definitions the built-in catalog is used.
func Build(defs []agent.Definition, optFns ...func(o *BuildOptions)) (*agent.Graph, error) {
	opts := BuildOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ModelFor == nil {
		return nil, errors.New("specialist: a model factory is required")
	}
	if len(defs) == 0 {
		defs = DefaultDefinitions()
	}

	tools := Tools(opts.Deps)
	extra := make(map[string]tool.Tool, len(opts.ExtraTools))
	for _, t := range opts.ExtraTools {
		extra[t.Name()] = t
	}
	maps.Copy(tools, extra)

	return agent.BuildGraph(defs, append([]func(o *agent.GraphOptions){
		func(o *agent.GraphOptions) {
			o.ModelFor = opts.ModelFor
			o.Tools = tools
		},
	}, opts.Graph...)...)
}
