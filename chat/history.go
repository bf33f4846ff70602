package chat

import (
	"fmt"

	"aide/model"
)

// DefaultHistoryWindow is the number of recent session messages replayed into
// a backend request. Observed default; configurable on HistoryBuilder.
const DefaultHistoryWindow = 15

// systemPromptTemplate is the fixed preamble template. The single %s slot is
// filled with the user context (or the placeholder below when none exists).
const systemPromptTemplate = `You are a personal assistant. Be concise, direct, and helpful. Use the tools available to you when they can answer the user's request better than you can from memory.

What you know about the user:
%s`

// noContextPlaceholder substitutes for the user context when the context
// provider returns nothing.
const noContextPlaceholder = "Nothing yet."

// HistoryBuilder assembles the role-tagged message list sent to a backend:
// exactly one system preamble first, a bounded window of recent history, and
// the new user message last.
type HistoryBuilder struct {
	Window      int
	Template    string
	Placeholder string
}

// NewHistoryBuilder returns a builder with the default window and template.
func NewHistoryBuilder() *HistoryBuilder {
	return &HistoryBuilder{
		Window:      DefaultHistoryWindow,
		Template:    systemPromptTemplate,
		Placeholder: noContextPlaceholder,
	}
}

// Build produces [system, ...window, user(userText)].
//
// The window holds the most recent messages in original order, excluding any
// assistant message whose content is still empty: an unfinished placeholder
// must never be replayed into a new request. That filter is a correctness
// requirement, not an optimization. The new user message is always appended
// last, even when it duplicates the most recent stored message.
func (b *HistoryBuilder) Build(history []model.Message, userText, userContext string) []model.Message {
	if userContext == "" {
		userContext = b.Placeholder
	}
	system := model.Message{
		Role:    model.RoleSystem,
		Content: fmt.Sprintf(b.Template, userContext),
	}

	window := make([]model.Message, 0, len(history))
	for _, m := range history {
		if m.Role == model.RoleAssistant && m.Content == "" {
			continue
		}
		if m.Role == model.RoleSystem {
			continue
		}
		window = append(window, m)
	}
	if b.Window > 0 && len(window) > b.Window {
		window = window[len(window)-b.Window:]
	}

	out := make([]model.Message, 0, len(window)+2)
	out = append(out, system)
	out = append(out, window...)
	out = append(out, model.Message{Role: model.RoleUser, Content: userText})
	return out
}
