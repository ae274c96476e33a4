package core

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type stubAgent struct {
	name string
	run  func(rc *RunContext) error
}

func (a *stubAgent) Name() string        { return a.name }
func (a *stubAgent) Description() string { return "stub" }
func (a *stubAgent) SubAgents() []Agent  { return nil }
func (a *stubAgent) Type() string        { return "stub" }
func (a *stubAgent) Run(rc *RunContext) error {
	return a.run(rc)
}

func newTestRunContext(ctx context.Context, emit EmitFunc) *RunContext {
	sess := NewSession("app", "u1", "session_abc")
	sess.SetState("name", "Ada")
	return NewRunContext(ctx, sess, "run-1", AgentInfo{Name: "root", Type: "model"},
		NewTextContent("user", "plan my week"), nil, emit, nil)
}

func TestRunContext_EmitStampsRunAndBranch(t *testing.T) {
	var got []Event
	rc := newTestRunContext(context.Background(), func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	rc.Branch = "root.child"

	if err := rc.Emit(NewMessageEvent("root", "x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].InvocationID != "run-1" || got[0].Branch != "root.child" {
		t.Fatalf("event not stamped: %+v", got)
	}
	if rc.Input() != "plan my week" {
		t.Fatalf("Input = %q", rc.Input())
	}
}

func TestRunContext_EmitAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := newTestRunContext(ctx, func(Event) error { return nil })
	cancel()

	if err := rc.Emit(NewMessageEvent("root", "x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunContext_NewChildIsolatesSession(t *testing.T) {
	rc := newTestRunContext(context.Background(), nil)
	child := &stubAgent{name: "task_planner"}

	cc := rc.NewChild(child, "sub request", nil)

	if cc.Branch != "root.task_planner" || cc.Depth != 1 {
		t.Fatalf("unexpected branch/depth: %q %d", cc.Branch, cc.Depth)
	}
	if cc.SessionID != "session_abc/root.task_planner" {
		t.Fatalf("unexpected child session id %q", cc.SessionID)
	}
	if v, _ := cc.GetState("name"); v != "Ada" {
		t.Fatal("child should inherit state facts")
	}
	cc.Session.SetState("name", "Bob")
	if v, _ := rc.GetState("name"); v != "Ada" {
		t.Fatal("child state writes must not leak into the parent")
	}
	if cc.Agent.Type != "stub" || cc.Input() != "sub request" {
		t.Fatalf("unexpected child info: %+v", cc.Agent)
	}
}

func TestBuildBranchPath(t *testing.T) {
	cases := []struct{ parent, child, want string }{
		{"", "a", "a"},
		{"a", "", "a"},
		{"a", "b", "a.b"},
	}
	for _, c := range cases {
		if got := BuildBranchPath(c.parent, c.child); got != c.want {
			t.Errorf("BuildBranchPath(%q,%q)=%q want %q", c.parent, c.child, got, c.want)
		}
	}
}

func TestRunNested_ForwardsPartialsAndCapturesFinal(t *testing.T) {
	var (
		mu        sync.Mutex
		forwarded []Event
	)
	rc := newTestRunContext(context.Background(), func(ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		forwarded = append(forwarded, ev)
		return nil
	})

	partial := true
	child := &stubAgent{name: "research_agent", run: func(c *RunContext) error {
		frag := NewMessageEvent(c.Agent.Name, "thinking")
		frag.Partial = &partial
		if err := c.Emit(frag); err != nil {
			return err
		}
		return c.Emit(NewMessageEvent(c.Agent.Name, "echo: "+c.Input()))
	}}

	res, err := RunNested(rc, child, "summarize")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Output != "echo: summarize" {
		t.Fatalf("Output = %q", res.Output)
	}
	if len(forwarded) != 1 || !forwarded[0].IsPartial() || forwarded[0].Branch != "root.research_agent" {
		t.Fatalf("only the tagged partial should be forwarded: %+v", forwarded)
	}
	if len(res.Events) != 1 {
		t.Fatalf("expected one captured event, got %d", len(res.Events))
	}
}

func TestRunNested_PropagatesError(t *testing.T) {
	rc := newTestRunContext(context.Background(), nil)
	boom := errors.New("boom")
	child := &stubAgent{name: "x", run: func(*RunContext) error { return boom }}

	_, err := RunNested(rc, child, "in")
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
