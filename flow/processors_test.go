package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/internal/testutil"
	"github.com/hupe1980/studymesh/model"
)

func historyEvent(role, text string) core.Event {
	ev := core.NewEvent("old-run", role)
	c := core.NewTextContent(role, text)
	ev.Content = &c
	return ev
}

func TestContentsProcessor_BoundedHistory(t *testing.T) {
	partial := historyEvent("assistant", "half")
	yes := true
	partial.Partial = &yes

	history := []core.Event{
		historyEvent("user", "first question"),
		historyEvent("assistant", "first answer"),
		partial,
		historyEvent("user", "second question"),
		historyEvent("assistant", "second answer"),
	}

	a := newAgent(model.NewMockModel("mock", "mock"))
	a.maxHistory = 3

	req := model.Request{}
	rc := newRunContext(&eventSink{}, "third question", history...)
	require.NoError(t, NewContentsProcessor().ProcessRequest(rc, &req, a))

	require.Len(t, req.Contents, 3)
	assert.Equal(t, "second question", req.Contents[0].Text())
	assert.Equal(t, "second answer", req.Contents[1].Text())
	assert.Equal(t, "third question", req.Contents[2].Text())
}

func TestContentsProcessor_UnboundedHistory(t *testing.T) {
	history := []core.Event{
		historyEvent("user", "q"),
		historyEvent("assistant", "a"),
	}

	req := model.Request{}
	rc := newRunContext(&eventSink{}, "next", history...)
	require.NoError(t, NewContentsProcessor().ProcessRequest(rc, &req, newAgent(model.NewMockModel("mock", "mock"))))

	assert.Len(t, req.Contents, 3)
}

func TestContentsProcessor_WindowStartsAtUserTurn(t *testing.T) {
	b := testutil.NewEventBuilder
	history := []core.Event{
		b().Author("user").UserText("when is my exam?").Build(),
		b().Author("task_planner").FunctionCall("call_1", "fetch_user_calendar", `{"days_ahead":7}`).Build(),
		b().Author("task_planner").FunctionResponse("call_1", "fetch_user_calendar", "Thu: ML exam", nil).Build(),
		b().Author("task_planner").AssistantText("Thursday.").Final().Build(),
	}
	history = append(history, testutil.Exchange("task_planner", "and after that?", "Nothing scheduled.")...)
	history = append(history, b().Author("task_planner").AssistantText("boom").Error("backend failed").Build())

	a := newAgent(model.NewMockModel("mock", "mock"))
	a.maxHistory = 5

	req := model.Request{}
	rc := testutil.NewRunContext("plan it", func(o *testutil.RunContextOptions) { o.History = history })
	require.NoError(t, NewContentsProcessor().ProcessRequest(rc, &req, a))

	require.Len(t, req.Contents, 3)
	assert.Equal(t, "and after that?", req.Contents[0].Text())
	assert.Equal(t, "Nothing scheduled.", req.Contents[1].Text())
	assert.Equal(t, "plan it", req.Contents[2].Text())
}

func TestInstructionsProcessor_RendersState(t *testing.T) {
	a := newAgent(model.NewMockModel("mock", "mock"))
	a.instruction = "Hello {{ .name }}"

	req := model.Request{}
	require.NoError(t, NewInstructionsProcessor().ProcessRequest(newRunContext(&eventSink{}, "hi"), &req, a))
	assert.Equal(t, "Hello Ada", req.Instructions)
}

func TestToolsProcessor_NoToolsLeavesRequestEmpty(t *testing.T) {
	req := model.Request{}
	require.NoError(t, NewToolsProcessor().ProcessRequest(nil, &req, newAgent(model.NewMockModel("mock", "mock"))))
	assert.Empty(t, req.Tools)
}
