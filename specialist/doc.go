// Package specialist holds the productivity planner's roster: the function
// tools the specialists call, the built-in agent catalog and the helpers
// that turn specialist answers into planner records.
//
// Build wires a catalog into an agent graph:
//
//	graph, err := specialist.Build(nil, func(o *specialist.BuildOptions) {
//	  o.Deps = specialist.Deps{Store: store}
//	  o.ModelFor = func(agent.Definition) (model.Model, error) { return gemini, nil }
//	})
//	orchestrator, _ := graph.Agent(specialist.Orchestrator)
package specialist
