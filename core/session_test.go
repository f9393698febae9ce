package core

import "testing"

func TestSession_AddMessageAndClone(t *testing.T) {
	s := NewSession("s1")
	s.AddMessage(NewUserMessage("hi"), NewAssistantMessage("hello"))

	if s.Len() != 2 {
		t.Fatalf("expected 2 messages, got %d", s.Len())
	}

	clone := s.Clone()
	if clone == s {
		t.Error("Clone should be a different pointer")
	}

	clone.AddMessage(NewUserMessage("more"))
	if s.Len() != 2 {
		t.Error("Original should not see clone's new message")
	}
}

func TestSession_HistoryIsCopied(t *testing.T) {
	call := ToolCall{ID: "c1", Type: ToolCallTypeFunction, Function: ToolCallFunction{Name: "echo", Arguments: "{}"}}
	s := NewSession("s2")
	s.AddMessage(NewAssistantMessage("", call), NewToolMessage("c1", "echo", "ok"))

	history := s.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	history[0].ToolCalls[0].Function.Name = "changed"
	if s.History()[0].ToolCalls[0].Function.Name != "echo" {
		t.Error("history should be copied on read")
	}
	if history[1].Role != RoleTool || history[1].ToolCallID != "c1" {
		t.Errorf("unexpected tool message: %+v", history[1])
	}
}

func TestSession_AddMessageNoop(t *testing.T) {
	s := NewSession("s3")
	before := s.Updated
	s.AddMessage()
	if !s.Updated.Equal(before) {
		t.Error("empty AddMessage should not touch Updated")
	}
}
