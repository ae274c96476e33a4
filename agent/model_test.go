package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/studymesh/backend"
	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/flow"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/observability"
	"github.com/hupe1980/studymesh/tool"
)

func TestModelAgent_Defaults(t *testing.T) {
	a, err := NewModelAgent("task_planner", model.NewMockModel("mock", "mock"))
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxToolRounds, a.MaxToolRounds())
	assert.Equal(t, 20, a.MaxHistoryMessages())
	assert.Equal(t, backend.DefaultRetryPolicy(), a.Caller().Policy())
	assert.Equal(t, "model", a.Type())

	text, err := a.ResolveInstructions(nil)
	require.NoError(t, err)
	assert.Equal(t, "You are task_planner, a helpful AI assistant.", text)

	err = a.Registry().Register(tool.NewFunctionTool("late", "", nil, nil))
	assert.ErrorIs(t, err, tool.ErrRegistrySealed)
}

func TestModelAgent_ConstructionErrors(t *testing.T) {
	_, err := NewModelAgent("", model.NewMockModel("mock", "mock"))
	assert.Error(t, err)

	_, err = NewModelAgent("a", nil)
	assert.Error(t, err)

	dup := tool.NewFunctionTool("x", "", nil, nil)
	_, err = NewModelAgent("a", model.NewMockModel("mock", "mock"), func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{dup, dup}
	})
	assert.Error(t, err)

	_, err = NewModelAgent("a", model.NewMockModel("mock", "mock"), func(o *ModelAgentOptions) {
		o.Retry = backend.RetryPolicy{}
	})
	assert.Error(t, err)
}

func TestModelAgent_DelegatesToSubAgent(t *testing.T) {
	research := newScripted("research_agent", 0, func(in string) (string, error) {
		return "3 papers about " + in, nil
	})

	m := model.NewMockModel("mock", "mock").Enqueue(
		model.MockTurn{Response: model.ToolCallResponse(core.FunctionCall{
			ID: "c1", Name: "research_agent", Arguments: `{"request":"spaced repetition"}`,
		})},
		model.MockTurn{Response: model.TextResponse("Read these 3 papers.")},
	)
	metrics := observability.NewMetrics("test")

	orchestrator, err := NewModelAgent("productivity_orchestrator", m, func(o *ModelAgentOptions) {
		o.SubAgents = []core.Agent{research}
		o.Metrics = metrics
	})
	require.NoError(t, err)
	assert.Len(t, orchestrator.SubAgents(), 1)

	col := &collector{}
	require.NoError(t, orchestrator.Run(newRunContext(orchestrator, "find study research", col)))

	assert.Equal(t, "spaced repetition", research.lastInput())
	assert.Equal(t, "Read these 3 papers.", core.FinalText(col.all()))

	responses := col.all()[1].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "3 papers about spaced repetition", responses[0].Response)
}

func TestModelAgent_NestedFailureIsReportedToModel(t *testing.T) {
	broken := newScripted("content_creator", 0, func(string) (string, error) {
		return "", errors.New("backend down")
	})
	m := model.NewMockModel("mock", "mock").Enqueue(
		model.MockTurn{Response: model.ToolCallResponse(core.FunctionCall{
			ID: "c1", Name: "content_creator", Arguments: `{"request":"post"}`,
		})},
		model.MockTurn{Response: model.TextResponse("The writer is unavailable.")},
	)

	a, err := NewModelAgent("orchestrator", m, func(o *ModelAgentOptions) { o.SubAgents = []core.Agent{broken} })
	require.NoError(t, err)

	col := &collector{}
	require.NoError(t, a.Run(newRunContext(a, "write a post", col)))

	fr := col.all()[1].GetFunctionResponses()[0]
	assert.Contains(t, fr.Error, tool.CodeNestedAgentError)
	assert.Contains(t, fr.Error, "backend down")
}

func TestModelAgent_NestedInvalidArgumentsAreReportedToModel(t *testing.T) {
	strict := tool.NewFunctionTool("strict", "", map[string]any{
		"type":       "object",
		"properties": map[string]any{"x": map[string]any{"type": "string"}},
		"required":   []string{"x"},
	}, func(*core.ToolContext, map[string]any) (any, error) { return "ok", nil })

	childModel := model.NewMockModel("child", "mock").Enqueue(
		model.MockTurn{Response: model.ToolCallResponse(core.FunctionCall{ID: "s1", Name: "strict", Arguments: `{}`})},
	)
	child, err := NewModelAgent("child", childModel, func(o *ModelAgentOptions) { o.Tools = []tool.Tool{strict} })
	require.NoError(t, err)

	parentModel := model.NewMockModel("parent", "mock").Enqueue(
		model.MockTurn{Response: model.ToolCallResponse(core.FunctionCall{
			ID: "c1", Name: "child", Arguments: `{"request":"do it"}`,
		})},
		model.MockTurn{Response: model.TextResponse("adapted")},
	)
	parent, err := NewModelAgent("parent", parentModel, func(o *ModelAgentOptions) { o.SubAgents = []core.Agent{child} })
	require.NoError(t, err)

	col := &collector{}
	require.NoError(t, parent.Run(newRunContext(parent, "start", col)))

	assert.Equal(t, 2, parentModel.Calls())
	assert.Equal(t, "adapted", core.FinalText(col.all()))

	fr := col.all()[1].GetFunctionResponses()[0]
	assert.Contains(t, fr.Error, tool.CodeNestedAgentError)
	assert.Contains(t, fr.Error, tool.CodeInvalidArguments)
}

func TestModelAgent_RoundLimit(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	for i := 0; i < 3; i++ {
		m.Enqueue(model.MockTurn{Response: model.ToolCallResponse(core.FunctionCall{Name: "ping", Arguments: "{}"})})
	}
	ping := tool.NewFunctionTool("ping", "", nil, func(*core.ToolContext, map[string]any) (any, error) { return "pong", nil })

	a, err := NewModelAgent("looper", m, func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{ping}
		o.MaxToolRounds = 2
	})
	require.NoError(t, err)

	err = a.Run(newRunContext(a, "loop", &collector{}))
	assert.ErrorIs(t, err, flow.ErrMaxToolRounds)
}

func TestModelAgent_InsideParallelComposite(t *testing.T) {
	mk := func(name, answer string) core.Agent {
		m := model.NewMockModel(name, "mock").Enqueue(model.MockTurn{Response: model.TextResponse(answer)})
		a, err := NewModelAgent(name, m)
		require.NoError(t, err)
		return a
	}

	p, err := NewParallelAgent("study_sprint", []core.Agent{mk("task_planner", "Plan A"), mk("research_agent", "Paper B")})
	require.NoError(t, err)

	col := &collector{}
	require.NoError(t, p.Run(newRunContext(p, "exam prep", col)))
	assert.Equal(t, "[task_planner]\nPlan A\n\n[research_agent]\nPaper B", core.FinalText(col.all()))
}
