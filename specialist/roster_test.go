package specialist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/studymesh/agent"
	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/runner"
	"github.com/hupe1980/studymesh/tool"
)

// mockModels hands out one MockModel per definition name.
type mockModels struct {
	mu     sync.Mutex
	models map[string]*model.MockModel
}

func (m *mockModels) For(def agent.Definition) (model.Model, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.models == nil {
		m.models = make(map[string]*model.MockModel)
	}
	mm, ok := m.models[def.Name]
	if !ok {
		mm = model.NewMockModel(def.Name+"-mock", "mock")
		m.models[def.Name] = mm
	}
	return mm, nil
}

func (m *mockModels) get(name string) *model.MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.models[name]
}

func TestDefaultDefinitions(t *testing.T) {
	defs := DefaultDefinitions()

	byName := make(map[string]agent.Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	for _, name := range []string{TaskPlanner, ResearchAgent, ProgressAnalyst, ContentCreator, DeadlineParser, Orchestrator} {
		assert.Equal(t, agent.KindModel, byName[name].Kind, name)
	}
	assert.Equal(t, agent.KindParallel, byName[StudySprint].Kind)
	assert.Equal(t, []string{TaskPlanner, ResearchAgent}, byName[StudySprint].Children)
	assert.Equal(t, agent.KindSequential, byName[WeeklyShowcase].Kind)
	assert.Equal(t, []string{ProgressAnalyst, ContentCreator}, byName[WeeklyShowcase].Children)
	assert.Contains(t, byName[DeadlineParser].Instruction, `"deadline_date": "YYYY-MM-DD"`)
}

func TestParseCatalog(t *testing.T) {
	defs, err := ParseCatalog([]byte(`
agents:
  - name: helper
    description: answers questions
  - name: pair
    kind: parallel
    children: [helper]
`))
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, agent.KindModel, defs[0].Kind, "kind defaults to model")

	_, err = ParseCatalog([]byte("agents: []"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("agents: [name: broken"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte(`
agents:
  - name: a
    kind: sequential
    children: [b]
  - name: b
    kind: parallel
    children: [a]
`))
	assert.ErrorIs(t, err, agent.ErrCycleDetected)
}

func TestBuild_DefaultCatalog(t *testing.T) {
	models := &mockModels{}
	graph, err := Build(nil, func(o *BuildOptions) { o.ModelFor = models.For })
	require.NoError(t, err)

	orch, ok := graph.Agent(Orchestrator)
	require.True(t, ok)
	require.NoError(t, agent.DetectCycle(orch))

	ma, ok := orch.(*agent.ModelAgent)
	require.True(t, ok)
	for _, name := range []string{ToolCurrentDatetime, TaskPlanner, DeadlineParser, StudySprint, WeeklyShowcase} {
		_, err := ma.Registry().Resolve(name)
		assert.NoError(t, err, name)
	}

	sprint, _ := graph.Agent(StudySprint)
	assert.IsType(t, &agent.ParallelAgent{}, sprint)
	showcase, _ := graph.Agent(WeeklyShowcase)
	assert.IsType(t, &agent.SequentialAgent{}, showcase)

	planner1, _ := graph.Agent(TaskPlanner)
	assert.Same(t, planner1, sprint.SubAgents()[0], "shared child is built once")
}

func TestBuild_RequiresModelFactory(t *testing.T) {
	_, err := Build(nil)
	assert.Error(t, err)
}

func TestBuild_ExtraToolReplacesBuiltin(t *testing.T) {
	models := &mockModels{}
	custom := tool.NewFunctionTool(ToolArxivAbstract, "custom search", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return "custom", nil
	})

	graph, err := Build(nil, func(o *BuildOptions) {
		o.ModelFor = models.For
		o.ExtraTools = []tool.Tool{custom}
	})
	require.NoError(t, err)

	research, _ := graph.Agent(ResearchAgent)
	got, err := research.(*agent.ModelAgent).Registry().Resolve(ToolArxivAbstract)
	require.NoError(t, err)
	assert.Equal(t, "custom search", got.Description())
}

func TestBuild_UnknownTool(t *testing.T) {
	models := &mockModels{}
	_, err := Build([]agent.Definition{{Name: "x", Kind: agent.KindModel, Tools: []string{"does_not_exist"}}},
		func(o *BuildOptions) { o.ModelFor = models.For })
	assert.ErrorIs(t, err, agent.ErrUnknownTool)
}

func TestOrchestrator_DelegatesToDeadlineParser(t *testing.T) {
	models := &mockModels{}
	graph, err := Build(nil, func(o *BuildOptions) { o.ModelFor = models.For })
	require.NoError(t, err)

	parserJSON := `{"title":"AI Fellowship","deadline_date":"2026-12-01","description":"Research stipend","requirements":["CV"],"category":"scholarship","priority":4}`
	models.get(DeadlineParser).Enqueue(model.MockTurn{Response: model.TextResponse(parserJSON)})
	models.get(Orchestrator).Enqueue(
		model.MockTurn{Response: model.ToolCallResponse(core.FunctionCall{
			ID:        "call_parse",
			Name:      DeadlineParser,
			Arguments: `{"request":"AI Fellowship closes Dec 1 2026, send CV"}`,
		})},
		model.MockTurn{Response: model.TextResponse("Saved: AI Fellowship due 2026-12-01.")},
	)

	orch, _ := graph.Agent(Orchestrator)
	r := runner.New(func(o *runner.Options) {
		o.Profile = func(context.Context, string) (map[string]any, error) {
			return map[string]any{"name": "Alice"}, nil
		}
	})

	_, events, errs, err := r.Run(context.Background(), orch, "alice", "Track this fellowship for me")
	require.NoError(t, err)
	text, all, err := runner.Collect(context.Background(), events, errs)
	require.NoError(t, err)
	assert.Equal(t, "Saved: AI Fellowship due 2026-12-01.", text)

	var parserResult string
	for _, ev := range all {
		for _, fr := range ev.GetFunctionResponses() {
			if fr.Name == DeadlineParser {
				parserResult, _ = fr.Response.(string)
			}
		}
	}
	d, err := ParseDeadline(parserResult, "alice")
	require.NoError(t, err)
	assert.Equal(t, "AI Fellowship", d.Title)

	orchReqs := models.get(Orchestrator).Requests()
	require.Len(t, orchReqs, 2)
	assert.Contains(t, orchReqs[0].Instructions, "You are helping Alice.")

	parserReqs := models.get(DeadlineParser).Requests()
	require.Len(t, parserReqs, 1)
	assert.Equal(t, "AI Fellowship closes Dec 1 2026, send CV", parserReqs[0].Contents[len(parserReqs[0].Contents)-1].Text())
}

func TestOrchestrator_NestedFailureIsReportedToModel(t *testing.T) {
	models := &mockModels{}
	graph, err := Build(nil, func(o *BuildOptions) {
		o.ModelFor = models.For
		o.Graph = append(o.Graph, func(g *agent.GraphOptions) {
			g.ModelOptions = append(g.ModelOptions, func(m *agent.ModelAgentOptions) {
				m.Retry.MaxAttempts = 1
			})
		})
	})
	require.NoError(t, err)

	models.get(ResearchAgent).Enqueue(model.MockTurn{Err: errors.New("quota exceeded")})
	models.get(Orchestrator).Enqueue(
		model.MockTurn{Response: model.ToolCallResponse(core.FunctionCall{Name: ResearchAgent, Arguments: `{"request":"papers on RAG"}`})},
		model.MockTurn{Response: model.TextResponse("Research is unavailable right now.")},
	)

	orch, _ := graph.Agent(Orchestrator)
	r := runner.New()
	_, events, errs, err := r.Run(context.Background(), orch, "alice", "find papers")
	require.NoError(t, err)
	text, all, err := runner.Collect(context.Background(), events, errs)
	require.NoError(t, err)
	assert.Equal(t, "Research is unavailable right now.", text)

	var nestedErr string
	for _, ev := range all {
		for _, fr := range ev.GetFunctionResponses() {
			if fr.Name == ResearchAgent {
				nestedErr = fr.Error
			}
		}
	}
	assert.Contains(t, nestedErr, "quota exceeded")
}
