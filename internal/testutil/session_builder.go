package testutil

import (
	"github.com/hupe1980/studymesh/core"
)

// SessionBuilder constructs sessions fluently.
//
//	sess := testutil.NewSessionBuilder("u1").State("name", "Ada").Events(ev1, ev2).Build()
type SessionBuilder struct {
	app    string
	userID string
	id     string
	state  map[string]any
	events []core.Event
}

// NewSessionBuilder creates a builder for userID in the
// "productivity_planner" app with id "session_test".
func NewSessionBuilder(userID string) *SessionBuilder {
	return &SessionBuilder{
		app:    "productivity_planner",
		userID: userID,
		id:     "session_test",
		state:  map[string]any{},
	}
}

// App sets the application name.
func (b *SessionBuilder) App(app string) *SessionBuilder { b.app = app; return b }

// ID sets the session id.
func (b *SessionBuilder) ID(id string) *SessionBuilder { b.id = id; return b }

// State sets a state key.
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Events appends history events.
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns the session.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.app, b.userID, b.id)
	s.ApplyStateDelta(b.state)
	for _, ev := range b.events {
		s.AddEvent(ev)
	}
	return s
}
