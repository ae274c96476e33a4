package studymesh

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/studymesh/agent"
	"github.com/hupe1980/studymesh/config"
	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/planner/sqlite"
	"github.com/hupe1980/studymesh/specialist"
)

func newModelAgent(t *testing.T, name string, m model.Model, optFns ...func(o *agent.ModelAgentOptions)) *agent.ModelAgent {
	t.Helper()
	a, err := agent.NewModelAgent(name, m, optFns...)
	require.NoError(t, err)
	return a
}

func TestStudyMesh_RegisterAndRunSync(t *testing.T) {
	mesh := New()
	helper := newModelAgent(t, "helper", model.NewMockModel("mock", "mock"), func(o *agent.ModelAgentOptions) {
		o.Description = "answers questions"
	})
	require.NoError(t, mesh.Register(helper))
	require.NoError(t, mesh.Register(helper), "registering the same instance twice is a no-op")

	other := newModelAgent(t, "helper", model.NewMockModel("mock", "mock"))
	assert.Error(t, mesh.Register(other))

	text, err := mesh.RunSync(context.Background(), "helper", "alice", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hi", text)

	_, err = mesh.RunSync(context.Background(), "nobody", "alice", "hi")
	assert.ErrorIs(t, err, ErrAgentNotFound)

	agents := mesh.Agents()
	require.Len(t, agents, 1)
	assert.Equal(t, AgentSummary{Name: "helper", Type: "model", Description: "answers questions"}, agents[0])
}

func TestStudyMesh_Invoke(t *testing.T) {
	mesh := New()
	require.NoError(t, mesh.Register(newModelAgent(t, "helper", model.NewMockModel("mock", "mock"))))

	sessionID, events, errs, err := mesh.Invoke(context.Background(), "helper", "bob", "ping")
	require.NoError(t, err)
	assert.Regexp(t, `^session_[0-9a-f]{8}$`, sessionID)

	var got []core.Event
	for ev := range events {
		got = append(got, ev)
	}
	require.NoError(t, <-errs)
	assert.Equal(t, "Mock response to: ping", core.FinalText(got))

	history, err := mesh.SessionStore().History(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestStudyMesh_SessionReusedAcrossRunSync(t *testing.T) {
	mesh := New()
	m := model.NewMockModel("mock", "mock")
	require.NoError(t, mesh.Register(newModelAgent(t, "helper", m)))

	_, err := mesh.RunSync(context.Background(), "helper", "alice", "first")
	require.NoError(t, err)
	_, err = mesh.RunSync(context.Background(), "helper", "alice", "second")
	require.NoError(t, err)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	texts := make([]string, 0, len(reqs[1].Contents))
	for _, c := range reqs[1].Contents {
		texts = append(texts, c.Text())
	}
	assert.Equal(t, []string{"first", "Mock response to: first", "second"}, texts)
}

func TestNewFromConfig_MockProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Provider = config.ProviderMock
	cfg.Database.Path = filepath.Join(t.TempDir(), "planner.db")

	app, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, &sqlite.Store{}, app.Planner)

	names := make([]string, 0)
	for _, a := range app.Agents() {
		names = append(names, a.Name)
	}
	assert.ElementsMatch(t, []string{
		specialist.TaskPlanner, specialist.ResearchAgent, specialist.ProgressAnalyst,
		specialist.ContentCreator, specialist.DeadlineParser, specialist.StudySprint,
		specialist.WeeklyShowcase, specialist.Orchestrator,
	}, names)

	text, err := app.RunSync(context.Background(), specialist.Orchestrator, "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hello", text)

	text, err = app.RunSync(context.Background(), specialist.StudySprint, "alice", "calculus")
	require.NoError(t, err)
	assert.Equal(t, "[task_planner]\nMock response to: calculus\n\n[research_agent]\nMock response to: calculus", text)
}

func TestNewFromConfig_UnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Provider = "llama"

	_, err := NewFromConfig(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(context.Background(), config.ModelConfig{Provider: config.ProviderOpenAI, Name: "gpt-4o-mini", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.NotNil(t, m)

	m, err = NewModel(context.Background(), config.ModelConfig{Provider: config.ProviderAnthropic, APIKey: "test"})
	require.NoError(t, err)
	assert.NotNil(t, m)

	_, err = NewModel(context.Background(), config.ModelConfig{Provider: "unknown"})
	assert.Error(t, err)
}
