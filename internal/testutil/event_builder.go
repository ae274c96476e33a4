package testutil

import (
	"github.com/hupe1980/studymesh/core"
)

// EventBuilder constructs events fluently.
//
//	ev := testutil.NewEventBuilder().Author("task_planner").Invocation("run-1").AssistantText("Plan: study at 9").Final().Build()
type EventBuilder struct {
	author        string
	invocationID  string
	id            string
	branch        string
	role          string
	textParts     []string
	funcCalls     []core.FunctionCall
	funcResponses []core.FunctionResponse
	partial       *bool
	turnComplete  *bool
	errorMessage  *string
}

// NewEventBuilder creates a builder with author "agent".
func NewEventBuilder() *EventBuilder { return &EventBuilder{author: "agent"} }

// Author sets the event author.
func (b *EventBuilder) Author(a string) *EventBuilder { b.author = a; return b }

// Invocation sets the run id.
func (b *EventBuilder) Invocation(id string) *EventBuilder { b.invocationID = id; return b }

// ID overrides the generated event id.
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// Branch sets the branch path.
func (b *EventBuilder) Branch(br string) *EventBuilder { b.branch = br; return b }

// Partial marks the event as a streaming fragment.
func (b *EventBuilder) Partial() *EventBuilder { t := true; b.partial = &t; return b }

// Final marks the event as the completed turn.
func (b *EventBuilder) Final() *EventBuilder { t := true; b.turnComplete = &t; return b }

// Error sets the error message.
func (b *EventBuilder) Error(msg string) *EventBuilder { b.errorMessage = &msg; return b }

// UserText appends a text part and sets the role to user.
func (b *EventBuilder) UserText(t string) *EventBuilder {
	b.role = "user"
	b.textParts = append(b.textParts, t)
	return b
}

// AssistantText appends a text part and sets the role to assistant.
func (b *EventBuilder) AssistantText(t string) *EventBuilder {
	b.role = "assistant"
	b.textParts = append(b.textParts, t)
	return b
}

// FunctionCall appends a function call with JSON arguments.
func (b *EventBuilder) FunctionCall(id, name, args string) *EventBuilder {
	b.role = "assistant"
	b.funcCalls = append(b.funcCalls, core.FunctionCall{ID: id, Name: name, Arguments: args})
	return b
}

// FunctionResponse appends a tool result; a non-nil err fills Error.
func (b *EventBuilder) FunctionResponse(id, name string, result any, err error) *EventBuilder {
	b.role = "tool"
	fr := core.FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	b.funcResponses = append(b.funcResponses, fr)
	return b
}

// Build returns the event.
func (b *EventBuilder) Build() core.Event {
	ev := core.NewEvent(b.invocationID, b.author)
	if b.id != "" {
		ev.ID = b.id
	}
	ev.Branch = b.branch
	ev.Partial = b.partial
	ev.TurnComplete = b.turnComplete
	ev.ErrorMessage = b.errorMessage

	parts := make([]core.Part, 0, len(b.textParts)+len(b.funcCalls)+len(b.funcResponses))
	for _, t := range b.textParts {
		parts = append(parts, core.TextPart{Text: t})
	}
	for _, fc := range b.funcCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}
	for _, fr := range b.funcResponses {
		parts = append(parts, core.FunctionResponsePart{FunctionResponse: fr})
	}
	if len(parts) > 0 {
		role := b.role
		if role == "" {
			role = "assistant"
		}
		ev.Content = &core.Content{Role: role, Parts: parts}
	}
	return ev
}

// Exchange returns a user message followed by a final assistant answer,
// the shape one completed run leaves in a session.
func Exchange(author, question, answer string) []core.Event {
	return []core.Event{
		NewEventBuilder().Author("user").UserText(question).Build(),
		NewEventBuilder().Author(author).AssistantText(answer).Final().Build(),
	}
}
