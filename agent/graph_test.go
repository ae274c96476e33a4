package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/tool"
)

func mockModelFor(Definition) (model.Model, error) {
	return model.NewMockModel("mock", "mock"), nil
}

func TestValidateDefinitions_CycleIffCycle(t *testing.T) {
	tests := []struct {
		name  string
		defs  []Definition
		cycle bool
	}{
		{
			name: "tree",
			defs: []Definition{
				{Name: "root", Kind: KindModel, Children: []string{"sprint"}},
				{Name: "sprint", Kind: KindParallel, Children: []string{"a", "b"}},
				{Name: "a", Kind: KindModel},
				{Name: "b", Kind: KindModel},
			},
		},
		{
			name: "diamond shares a child",
			defs: []Definition{
				{Name: "root", Kind: KindSequential, Children: []string{"left", "right"}},
				{Name: "left", Kind: KindParallel, Children: []string{"shared"}},
				{Name: "right", Kind: KindParallel, Children: []string{"shared"}},
				{Name: "shared", Kind: KindModel},
			},
		},
		{
			name:  "self reference",
			defs:  []Definition{{Name: "loop", Kind: KindModel, Children: []string{"loop"}}},
			cycle: true,
		},
		{
			name: "indirect",
			defs: []Definition{
				{Name: "a", Kind: KindSequential, Children: []string{"b"}},
				{Name: "b", Kind: KindParallel, Children: []string{"c"}},
				{Name: "c", Kind: KindModel, Children: []string{"a"}},
			},
			cycle: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDefinitions(tt.defs)
			if tt.cycle {
				require.ErrorIs(t, err, ErrCycleDetected)
				var ce *CycleError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, ce.Path[0], ce.Path[len(ce.Path)-1])
				return
			}
			assert.NoError(t, err)

			_, err = BuildGraph(tt.defs, func(o *GraphOptions) { o.ModelFor = mockModelFor })
			assert.NoError(t, err)
		})
	}
}

func TestBuildGraph_CycleBeforeConstruction(t *testing.T) {
	calls := 0
	_, err := BuildGraph([]Definition{
		{Name: "a", Kind: KindModel, Children: []string{"b"}},
		{Name: "b", Kind: KindModel, Children: []string{"a"}},
	}, func(o *GraphOptions) {
		o.ModelFor = func(Definition) (model.Model, error) {
			calls++
			return model.NewMockModel("mock", "mock"), nil
		}
	})

	assert.ErrorIs(t, err, ErrCycleDetected)
	assert.Zero(t, calls)
}

func TestBuildGraph_SharesAgentsAndResolvesTools(t *testing.T) {
	datetime := tool.NewFunctionTool("get_current_datetime", "", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return "now", nil
	})

	g, err := BuildGraph([]Definition{
		{Name: "orchestrator", Kind: KindModel, Children: []string{"task_planner", "study_sprint"}},
		{Name: "study_sprint", Kind: KindParallel, Children: []string{"task_planner", "research_agent"}},
		{Name: "task_planner", Kind: KindModel, Tools: []string{"get_current_datetime"}, Description: "plans"},
		{Name: "research_agent", Kind: KindModel},
	}, func(o *GraphOptions) {
		o.ModelFor = mockModelFor
		o.Tools = map[string]tool.Tool{"get_current_datetime": datetime}
	})
	require.NoError(t, err)

	planner, ok := g.Agent("task_planner")
	require.True(t, ok)
	assert.Equal(t, "plans", planner.Description())

	sprint, _ := g.Agent("study_sprint")
	assert.Same(t, planner, sprint.SubAgents()[0])

	orchestrator, _ := g.Agent("orchestrator")
	ma := orchestrator.(*ModelAgent)
	_, err = ma.Registry().Resolve("study_sprint")
	assert.NoError(t, err)

	names := g.Names()
	assert.Equal(t, "orchestrator", names[len(names)-1])
	assert.NoError(t, DetectCycle(orchestrator))
	assert.Same(t, planner, FindAgent(orchestrator, "task_planner"))
}

func TestBuildGraph_Errors(t *testing.T) {
	_, err := BuildGraph([]Definition{{Name: "a", Kind: KindModel, Children: []string{"ghost"}}},
		func(o *GraphOptions) { o.ModelFor = mockModelFor })
	assert.ErrorIs(t, err, ErrUnknownAgent)

	_, err = BuildGraph([]Definition{{Name: "a", Kind: KindModel, Tools: []string{"ghost"}}},
		func(o *GraphOptions) { o.ModelFor = mockModelFor })
	assert.ErrorIs(t, err, ErrUnknownTool)

	_, err = BuildGraph([]Definition{{Name: "a", Kind: "loop"}})
	assert.Error(t, err)

	_, err = BuildGraph([]Definition{{Name: "a", Kind: KindModel}, {Name: "a", Kind: KindModel}})
	assert.Error(t, err)
}

// cyclicAgent lets a test build a graph the constructors would refuse.
type cyclicAgent struct {
	BaseAgent
	next *cyclicAgent
}

func (c *cyclicAgent) SubAgents() []core.Agent {
	if c.next == nil {
		return nil
	}
	return []core.Agent{c.next}
}

func (c *cyclicAgent) Run(*core.RunContext) error { return nil }

func TestDetectCycle(t *testing.T) {
	a := &cyclicAgent{BaseAgent: NewBaseAgent("a", "")}
	b := &cyclicAgent{BaseAgent: NewBaseAgent("b", "")}
	a.next = b
	assert.NoError(t, DetectCycle(a))

	b.next = a
	err := DetectCycle(a)
	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"a", "b", "a"}, ce.Path)
}
