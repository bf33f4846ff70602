package model

import "testing"

func TestNewMessage(t *testing.T) {
	msg := NewMessage(RoleUser, "hello")

	if msg.ID == "" {
		t.Error("expected a generated id")
	}
	if msg.Role != RoleUser || msg.Content != "hello" {
		t.Errorf("message = %+v", msg)
	}
	if msg.CreatedAt.IsZero() {
		t.Error("expected a creation timestamp")
	}

	other := NewMessage(RoleUser, "hello")
	if other.ID == msg.ID {
		t.Error("ids must be unique")
	}
}

func TestMessageCloneIsDeep(t *testing.T) {
	msg := NewMessage(RoleAssistant, "answer")
	msg.ToolCalls = []ToolCall{{ID: "call_1", Name: "lookup"}}

	clone := msg.Clone()
	clone.ToolCalls[0].Name = "mutated"

	if msg.ToolCalls[0].Name != "lookup" {
		t.Error("clone shares tool call storage with the original")
	}
}

func TestUsageZero(t *testing.T) {
	if !(Usage{}).Zero() {
		t.Error("empty usage should be zero")
	}
	if (Usage{PromptTokens: 1}).Zero() {
		t.Error("usage with prompt tokens is not zero")
	}
	if (Usage{TotalTokens: 5}).Zero() {
		t.Error("usage with total tokens is not zero")
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	session := NewSession(SessionTypeChat)
	session.Messages = []Message{NewMessage(RoleUser, "hi")}

	clone := session.Clone()
	clone.Messages[0].Content = "mutated"
	clone.Messages = append(clone.Messages, NewMessage(RoleUser, "extra"))

	if session.Messages[0].Content != "hi" {
		t.Error("clone shares message storage with the original")
	}
	if len(session.Messages) != 1 {
		t.Error("appending to a clone grew the original")
	}
}

func TestFirstUserMessage(t *testing.T) {
	session := NewSession(SessionTypeChat)
	if session.FirstUserMessage() != nil {
		t.Error("expected nil for an empty session")
	}

	session.Messages = []Message{
		{Role: RoleSystem, Content: "preamble"},
		{Role: RoleUser, Content: "the question"},
		{Role: RoleUser, Content: "a later one"},
	}

	first := session.FirstUserMessage()
	if first == nil || first.Content != "the question" {
		t.Errorf("FirstUserMessage = %+v", first)
	}
}
