// Package chat implements the streaming response assembler: the delta
// accumulator that rebuilds a complete assistant message from incremental
// backend events, the backend strategy selector, the conversation history
// builder, and the send engine that orchestrates one turn at a time over an
// in-memory session.
package chat

import (
	"sort"
	"strings"

	"aide/model"
)

// toolCallBuilder holds the partial state of one tool call keyed by its
// stream index. id and name may arrive on a later delta than the first
// arguments fragment.
type toolCallBuilder struct {
	id        string
	name      string
	args      strings.Builder
	completed bool
}

// Accumulator merges the ordered delta sequence for one in-flight assistant
// message into a consistent running state. It has no knowledge of transport
// and is not safe for concurrent use; the engine serializes access.
//
// The tool-call builder table lives only as long as the accumulator itself:
// the engine discards the whole accumulator when the turn finalizes, so the
// table can never outlive the in-flight call it was created for.
type Accumulator struct {
	msg      model.Message
	builders map[int]*toolCallBuilder
}

// NewAccumulator starts accumulation from the given placeholder message.
func NewAccumulator(placeholder model.Message) *Accumulator {
	return &Accumulator{
		msg:      placeholder,
		builders: make(map[int]*toolCallBuilder),
	}
}

// ApplyText appends a text fragment. Empty fragments are a no-op, so the
// accumulator is safe to invoke once per network event unconditionally.
func (a *Accumulator) ApplyText(fragment string) {
	if fragment == "" {
		return
	}
	a.msg.Content += fragment
}

// ApplyToolCall merges a tool-call fragment at the given stream index,
// creating the builder slot on first sight. A known id or name is never
// overwritten by an empty one; argsFragment is appended in arrival order.
func (a *Accumulator) ApplyToolCall(index int, id, name, argsFragment string, completed bool) {
	b := a.builders[index]
	if b == nil {
		b = &toolCallBuilder{}
		a.builders[index] = b
	}
	if id != "" {
		b.id = id
	}
	if name != "" {
		b.name = name
	}
	b.args.WriteString(argsFragment)
	if completed {
		b.completed = true
	}
	a.rebuildToolCalls()
}

// rebuildToolCalls regenerates the message's tool-call list sorted by stream
// index. Rebuilding on every delta is cheap for realistic tool-call counts
// and makes final ordering independent of event interleaving across indices.
func (a *Accumulator) rebuildToolCalls() {
	indices := make([]int, 0, len(a.builders))
	for idx := range a.builders {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	calls := make([]model.ToolCall, 0, len(indices))
	for _, idx := range indices {
		b := a.builders[idx]
		calls = append(calls, model.ToolCall{
			ID:        b.id,
			Name:      b.name,
			Arguments: b.args.String(),
			Completed: b.completed,
		})
	}
	a.msg.ToolCalls = calls
}

// ApplyUsage merges a usage snapshot. Only the fields the delta carries are
// updated; the effective total is the first present value in the priority
// order incoming total, existing total, incoming completion, incoming prompt.
func (a *Accumulator) ApplyUsage(u model.Usage) {
	cur := a.msg.Usage
	if u.PromptTokens != 0 {
		cur.PromptTokens = u.PromptTokens
	}
	if u.CompletionTokens != 0 {
		cur.CompletionTokens = u.CompletionTokens
	}
	switch {
	case u.TotalTokens != 0:
		cur.TotalTokens = u.TotalTokens
	case cur.TotalTokens != 0:
		// keep
	case u.CompletionTokens != 0:
		cur.TotalTokens = u.CompletionTokens
	case u.PromptTokens != 0:
		cur.TotalTokens = u.PromptTokens
	}
	a.msg.Usage = cur
}

// Message returns a snapshot of the current accumulated state.
func (a *Accumulator) Message() model.Message {
	return a.msg.Clone()
}
