package chat

import (
	"fmt"
	"strings"
	"testing"

	"aide/model"
)

func userMsg(content string) model.Message {
	return model.Message{Role: model.RoleUser, Content: content}
}

func assistantMsg(content string) model.Message {
	return model.Message{Role: model.RoleAssistant, Content: content}
}

func TestBuildShape(t *testing.T) {
	b := NewHistoryBuilder()

	history := []model.Message{
		userMsg("hi"),
		assistantMsg("hello"),
	}

	out := b.Build(history, "how are you?", "Name: Sam")

	if len(out) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(out))
	}
	if out[0].Role != model.RoleSystem {
		t.Errorf("first message role = %s, want system", out[0].Role)
	}
	if !strings.Contains(out[0].Content, "Name: Sam") {
		t.Errorf("system preamble missing user context: %q", out[0].Content)
	}
	if out[len(out)-1].Role != model.RoleUser || out[len(out)-1].Content != "how are you?" {
		t.Errorf("last message = %+v, want the new user message", out[len(out)-1])
	}
}

func TestBuildEmptyContextUsesPlaceholder(t *testing.T) {
	b := NewHistoryBuilder()

	out := b.Build(nil, "hello", "")

	if !strings.Contains(out[0].Content, noContextPlaceholder) {
		t.Errorf("system preamble = %q, want it to contain %q", out[0].Content, noContextPlaceholder)
	}
}

func TestBuildFiltersUnfinishedAssistant(t *testing.T) {
	b := NewHistoryBuilder()

	history := []model.Message{
		userMsg("first"),
		assistantMsg(""), // open placeholder, must never be replayed
	}

	out := b.Build(history, "second", "")

	for _, m := range out {
		if m.Role == model.RoleAssistant && m.Content == "" {
			t.Fatal("empty assistant placeholder leaked into the request")
		}
	}
	if len(out) != 3 {
		t.Errorf("expected [system, user, user], got %d messages", len(out))
	}
}

func TestBuildFiltersStoredSystemMessages(t *testing.T) {
	b := NewHistoryBuilder()

	history := []model.Message{
		{Role: model.RoleSystem, Content: "stale preamble"},
		userMsg("hi"),
	}

	out := b.Build(history, "again", "")

	systemCount := 0
	for _, m := range out {
		if m.Role == model.RoleSystem {
			systemCount++
		}
	}
	if systemCount != 1 {
		t.Errorf("expected exactly one system message, got %d", systemCount)
	}
	if out[0].Content == "stale preamble" {
		t.Error("stored system message replaced the fresh preamble")
	}
}

func TestBuildWindowing(t *testing.T) {
	b := NewHistoryBuilder()
	b.Window = 4

	var history []model.Message
	for i := 0; i < 10; i++ {
		history = append(history, userMsg(fmt.Sprintf("u%d", i)))
		history = append(history, assistantMsg(fmt.Sprintf("a%d", i)))
	}

	out := b.Build(history, "latest", "")

	// system + window + new user message
	if len(out) != 1+4+1 {
		t.Fatalf("expected 6 messages, got %d", len(out))
	}

	// The window keeps the most recent messages in original order
	wantWindow := []string{"u8", "a8", "u9", "a9"}
	for i, want := range wantWindow {
		if got := out[1+i].Content; got != want {
			t.Errorf("window[%d] = %q, want %q", i, got, want)
		}
	}
}

func TestBuildDuplicateUserTextStillAppended(t *testing.T) {
	b := NewHistoryBuilder()

	history := []model.Message{userMsg("again")}
	out := b.Build(history, "again", "")

	// Both the stored copy and the new user message must be present
	userCount := 0
	for _, m := range out {
		if m.Role == model.RoleUser && m.Content == "again" {
			userCount++
		}
	}
	if userCount != 2 {
		t.Errorf("expected 2 user copies of the text, got %d", userCount)
	}
}
