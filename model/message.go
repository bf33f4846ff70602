package model

import (
	"time"

	"github.com/google/uuid"
)

// Message roles. Every message in a session carries exactly one of these.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Usage holds token accounting for one assistant turn. Zero means the backend
// has not reported that field yet (no backend reports a genuine count of zero).
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Zero reports whether no field of the snapshot has been set.
func (u Usage) Zero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}

// ToolCall is one tool invocation requested by the assistant. Arguments is the
// raw JSON string exactly as the backend streamed it, fragment by fragment.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Completed bool   `json:"completed,omitempty"`
}

// Message represents a chat message in a conversation.
//
// A user message is finalized at creation. An assistant message starts as an
// empty placeholder and grows append-only while its stream is open; once the
// stream completes or fails the message is frozen.
type Message struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	Model     string     `json:"model,omitempty"`
	Provider  string     `json:"provider,omitempty"`
	LatencyMS int64      `json:"latency_ms,omitempty"`
	Usage     Usage      `json:"usage,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// NewMessage creates a message with a fresh id and timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Clone returns a deep copy. Observers read snapshots while the owning engine
// keeps mutating the original during streaming, so shared slices are not safe.
func (m Message) Clone() Message {
	out := m
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(out.ToolCalls, m.ToolCalls)
	}
	return out
}
