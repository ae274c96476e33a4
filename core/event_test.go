package core

import (
	"errors"
	"testing"
)

func TestEvent_ConstructorsAndMethods(t *testing.T) {
	e := NewEvent("run-1", "planner")
	if e.Author != "planner" || e.InvocationID != "run-1" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	msg := NewMessageEvent("planner", "hello world")
	if msg.Content == nil || msg.Content.Role != "assistant" || msg.Text() != "hello world" {
		t.Fatalf("NewMessageEvent malformed: %+v", msg)
	}

	user := NewUserMessageEvent("run-1", "hi")
	if user.Content == nil || user.Content.Role != "user" || user.Author != "user" {
		t.Fatalf("NewUserMessageEvent malformed: %+v", user)
	}

	call := NewFunctionCallEvent("planner", "get_study_logs", `{"days":7}`)
	calls := call.GetFunctionCalls()
	if len(calls) != 1 || calls[0].Name != "get_study_logs" || calls[0].Arguments != `{"days":7}` {
		t.Fatalf("GetFunctionCalls extraction failed: %+v", calls)
	}

	ok := NewFunctionResponseEvent("planner", "call-1", "get_study_logs", 42, nil)
	resps := ok.GetFunctionResponses()
	if len(resps) != 1 || resps[0].Response.(int) != 42 || resps[0].Error != "" {
		t.Fatalf("function response extraction failed: %+v", resps)
	}

	failed := NewFunctionResponseEvent("planner", "call-2", "get_study_logs", nil, errors.New("boom"))
	if failed.GetFunctionResponses()[0].Error != "boom" {
		t.Fatalf("expected error message in function response: %+v", failed)
	}
}

func TestEvent_IsFinalResponse(t *testing.T) {
	if !NewMessageEvent("a", "x").IsFinalResponse() {
		t.Error("plain message should be final")
	}

	partial := true
	p := NewMessageEvent("a", "x")
	p.Partial = &partial
	if p.IsFinalResponse() {
		t.Error("partial event should not be final")
	}

	if NewFunctionCallEvent("a", "f", "").IsFinalResponse() {
		t.Error("event with function call should not be final")
	}
	if NewFunctionResponseEvent("a", "1", "f", nil, nil).IsFinalResponse() {
		t.Error("event with function response should not be final")
	}
}

func TestFinalText(t *testing.T) {
	partial := true
	frag := NewMessageEvent("a", "frag")
	frag.Partial = &partial

	errMsg := "backend down"
	failed := NewMessageEvent("a", "ignored")
	failed.ErrorMessage = &errMsg

	events := []Event{
		NewUserMessageEvent("r", "question"),
		frag,
		NewFunctionCallEvent("a", "f", "{}"),
		NewMessageEvent("a", "answer"),
		failed,
	}

	if got := FinalText(events); got != "answer" {
		t.Fatalf("FinalText = %q, want %q", got, "answer")
	}
}
