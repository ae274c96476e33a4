package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/logging"
)

// EventRecorder collects emitted events. Safe for concurrent use.
type EventRecorder struct {
	mu     sync.Mutex
	events []core.Event
}

// Emit implements core.EmitFunc.
func (r *EventRecorder) Emit(ev core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}

// RunContextOptions configures NewRunContext.
type RunContextOptions struct {
	Context  context.Context
	Session  *core.Session
	RunID    string
	Agent    core.AgentInfo
	History  []core.Event
	Recorder *EventRecorder
	Logger   logging.Logger
}

// NewRunContext builds a run context for input. Defaults: background
// context, a session for "u1", run id "run-1" and a discarding emitter.
func NewRunContext(input string, optFns ...func(o *RunContextOptions)) *core.RunContext {
	opts := RunContextOptions{
		Context: context.Background(),
		RunID:   "run-1",
		Agent:   core.AgentInfo{Name: "agent", Type: "model"},
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Session == nil {
		opts.Session = NewSessionBuilder("u1").Build()
	}

	emit := func(core.Event) error { return nil }
	if opts.Recorder != nil {
		emit = opts.Recorder.Emit
	}

	return core.NewRunContext(opts.Context, opts.Session, opts.RunID, opts.Agent,
		core.NewTextContent("user", input), opts.History, emit, opts.Logger)
}

// NewToolContext builds a tool context for userID with call id "call-1".
func NewToolContext(userID string, optFns ...func(o *RunContextOptions)) *core.ToolContext {
	rc := NewRunContext("", append([]func(o *RunContextOptions){func(o *RunContextOptions) {
		o.Session = NewSessionBuilder(userID).Build()
	}}, optFns...)...)
	return core.NewToolContext(rc, "call-1")
}
