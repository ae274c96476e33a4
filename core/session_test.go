package core

import "testing"

func TestSession_ApplyStateDeltaAndClone(t *testing.T) {
	s := NewSession("productivity_planner", "u1", "session_00000001")

	s.ApplyStateDelta(map[string]any{"name": "Ada", "focus": "ml"})
	if v, ok := s.GetState("name"); !ok || v.(string) != "Ada" {
		t.Fatalf("state not applied: %+v", s.State)
	}

	clone := s.Clone()
	if clone == s {
		t.Error("Clone should be a different pointer")
	}

	clone.SetState("extra", 2)
	if _, exists := s.GetState("extra"); exists {
		t.Error("original should not have clone's new key")
	}

	snap := s.StateSnapshot()
	snap["name"] = "changed"
	if v, _ := s.GetState("name"); v != "Ada" {
		t.Error("snapshot must not alias session state")
	}
}

func TestSession_AddEventAndHistory(t *testing.T) {
	s := NewSession("app", "u1", "s1")

	partial := true
	frag := NewMessageEvent("planner", "fr")
	frag.Partial = &partial

	s.AddEvent(NewUserMessageEvent("r1", "hi"))
	s.AddEvent(frag)
	s.AddEvent(NewMessageEvent("planner", "hello"))

	if s.Len() != 3 {
		t.Fatalf("expected 3 events, got %d", s.Len())
	}

	all := s.GetEvents()
	all[0].Author = "changed"
	if s.GetEvents()[0].Author != "user" {
		t.Error("events slice should be copied on read")
	}

	history := s.GetConversationHistory()
	if len(history) != 2 {
		t.Fatalf("expected partials to be filtered, got %d events", len(history))
	}
	if history[0].Content.Role != "user" || history[1].Text() != "hello" {
		t.Fatalf("unexpected history order: %+v", history)
	}
}
