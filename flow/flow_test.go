package flow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/studymesh/backend"
	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/tool"
)

type testAgent struct {
	name        string
	instruction string
	caller      *backend.Caller
	registry    *tool.Registry
	maxHistory  int
	maxRounds   int
	streaming   bool
}

func (a *testAgent) Name() string { return a.name }
func (a *testAgent) Caller() *backend.Caller { return a.caller }
func (a *testAgent) ResolveInstructions(*core.RunContext) (string, error) { return a.instruction, nil }
func (a *testAgent) Registry() *tool.Registry { return a.registry }
func (a *testAgent) MaxHistoryMessages() int { return a.maxHistory }
func (a *testAgent) MaxToolRounds() int { return a.maxRounds }
func (a *testAgent) IsStreamingEnabled() bool { return a.streaming }

type eventSink struct {
	mu     sync.Mutex
	events []core.Event
}

func (s *eventSink) emit(ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *eventSink) all() []core.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Event(nil), s.events...)
}

func newAgent(m model.Model, tools ...tool.Tool) *testAgent {
	reg := tool.NewRegistry()
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			panic(err)
		}
	}
	reg.Seal()
	return &testAgent{
		name:        "task_planner",
		instruction: "You help {{ .name | default \"the user\" }} plan.",
		caller:      backend.NewCaller(m),
		registry:    reg,
		maxRounds:   10,
	}
}

func newRunContext(sink *eventSink, input string, history ...core.Event) *core.RunContext {
	sess := core.NewSession("productivity_planner", "u1", "session_0000abcd")
	sess.SetState("name", "Ada")
	return core.NewRunContext(context.Background(), sess, "run-1", core.AgentInfo{Name: "task_planner"},
		core.NewTextContent("user", input), history, sink.emit, nil)
}

func datetimeTool() tool.Tool {
	return tool.NewFunctionTool("get_current_datetime", "Current local time", nil,
		func(*core.ToolContext, map[string]any) (any, error) {
			return "2025-01-06 09:00:00", nil
		})
}

func TestLLMFlow_TextAnswer(t *testing.T) {
	m := model.NewMockModel("mock", "mock").Enqueue(model.MockTurn{Response: model.TextResponse("Plan: study at 9")})
	a := newAgent(m, datetimeTool())
	sink := &eventSink{}

	require.NoError(t, NewLLMFlow(a, nil).Run(newRunContext(sink, "plan my day")))

	events := sink.all()
	require.Len(t, events, 1)
	assert.True(t, events[0].IsFinalResponse())
	assert.Equal(t, "Plan: study at 9", events[0].Text())
	assert.Equal(t, "run-1", events[0].InvocationID)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "You help Ada plan.", reqs[0].Instructions)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "get_current_datetime", reqs[0].Tools[0].Function.Name)
}

func TestLLMFlow_ToolRoundTrip(t *testing.T) {
	m := model.NewMockModel("mock", "mock").Enqueue(
		model.MockTurn{Response: model.ToolCallResponse(core.FunctionCall{Name: "get_current_datetime", Arguments: "{}"})},
		model.MockTurn{Response: model.TextResponse("It is Monday morning.")},
	)
	sink := &eventSink{}

	require.NoError(t, NewLLMFlow(newAgent(m, datetimeTool()), nil).Run(newRunContext(sink, "what time is it")))

	events := sink.all()
	require.Len(t, events, 3)

	calls := events[0].GetFunctionCalls()
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].ID)

	responses := events[1].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, calls[0].ID, responses[0].ID)
	assert.Equal(t, "2025-01-06 09:00:00", responses[0].Response)
	assert.Empty(t, responses[0].Error)

	assert.Equal(t, "It is Monday morning.", events[2].Text())

	second := m.Requests()[1]
	require.Len(t, second.Contents, 3)
	assert.Equal(t, "assistant", second.Contents[1].Role)
	assert.Equal(t, "tool", second.Contents[2].Role)
}

func TestLLMFlow_UnknownToolIsReportedToModel(t *testing.T) {
	m := model.NewMockModel("mock", "mock").Enqueue(
		model.MockTurn{Response: model.ToolCallResponse(core.FunctionCall{ID: "c1", Name: "book_flight", Arguments: "{}"})},
		model.MockTurn{Response: model.TextResponse("I cannot book flights.")},
	)
	sink := &eventSink{}

	require.NoError(t, NewLLMFlow(newAgent(m), nil).Run(newRunContext(sink, "book a flight")))

	events := sink.all()
	require.Len(t, events, 3)
	responses := events[1].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Error, "book_flight")
	assert.Contains(t, responses[0].Error, tool.CodeExecutionError)
	assert.Equal(t, "I cannot book flights.", events[2].Text())
}

func TestLLMFlow_ExecutionErrorContinuesRound(t *testing.T) {
	failing := tool.NewFunctionTool("get_study_logs", "", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, errors.New("logs unavailable")
	})
	m := model.NewMockModel("mock", "mock").Enqueue(
		model.MockTurn{Response: model.ToolCallResponse(core.FunctionCall{ID: "c1", Name: "get_study_logs", Arguments: "{}"})},
		model.MockTurn{Response: model.TextResponse("No logs yet.")},
	)
	sink := &eventSink{}

	require.NoError(t, NewLLMFlow(newAgent(m, failing), nil).Run(newRunContext(sink, "how did I do")))
	assert.Contains(t, sink.all()[1].GetFunctionResponses()[0].Error, "logs unavailable")
}

func TestLLMFlow_InvalidArgumentsAreFatal(t *testing.T) {
	strict := tool.NewFunctionTool("fetch_user_calendar", "",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"days_ahead": map[string]any{"type": "integer"}},
			"required":   []string{"days_ahead"},
		},
		func(*core.ToolContext, map[string]any) (any, error) { return nil, nil })
	m := model.NewMockModel("mock", "mock").Enqueue(
		model.MockTurn{Response: model.ToolCallResponse(core.FunctionCall{ID: "c1", Name: "fetch_user_calendar", Arguments: `{"days_ahead":"soon"}`})},
	)

	err := NewLLMFlow(newAgent(m, strict), nil).Run(newRunContext(&eventSink{}, "what's next"))
	assert.ErrorIs(t, err, tool.ErrInvalidArguments)
	assert.Equal(t, 1, m.Calls())
}

func TestLLMFlow_MaxToolRounds(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	for i := 0; i < 5; i++ {
		m.Enqueue(model.MockTurn{Response: model.ToolCallResponse(core.FunctionCall{Name: "get_current_datetime", Arguments: "{}"})})
	}
	a := newAgent(m, datetimeTool())
	a.maxRounds = 3

	err := NewLLMFlow(a, nil).Run(newRunContext(&eventSink{}, "loop"))
	assert.ErrorIs(t, err, ErrMaxToolRounds)
	assert.Equal(t, 4, m.Calls())
}

func TestLLMFlow_BackendErrorIsReturned(t *testing.T) {
	m := model.NewMockModel("mock", "mock").Enqueue(model.MockTurn{Err: model.NewStatusError("mock", 401, errors.New("bad key"))})

	err := NewLLMFlow(newAgent(m), nil).Run(newRunContext(&eventSink{}, "hi"))
	assert.ErrorIs(t, err, backend.ErrFatal)
}

func TestLLMFlow_StreamingPartials(t *testing.T) {
	m := model.NewMockModel("mock", "mock").Enqueue(model.MockTurn{
		Partials: []string{"Focus ", "on maths."},
		Response: model.TextResponse("Focus on maths."),
	})
	a := newAgent(m)
	a.streaming = true
	sink := &eventSink{}

	require.NoError(t, NewLLMFlow(a, nil).Run(newRunContext(sink, "tips")))

	events := sink.all()
	require.Len(t, events, 3)
	assert.True(t, events[0].IsPartial())
	assert.True(t, events[1].IsPartial())
	assert.Equal(t, "Focus on maths.", core.FinalText(events))
}
