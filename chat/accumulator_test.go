package chat

import (
	"testing"

	"aide/model"
)

func newTestAccumulator() *Accumulator {
	return NewAccumulator(model.NewMessage(model.RoleAssistant, ""))
}

func TestApplyTextChunkingInvariance(t *testing.T) {
	// The assembled content must depend only on fragment order, never on
	// how the transport happened to split it.
	tests := []struct {
		name      string
		fragments []string
		expected  string
	}{
		{
			name:      "single fragment",
			fragments: []string{"The answer is 4."},
			expected:  "The answer is 4.",
		},
		{
			name:      "character at a time",
			fragments: []string{"T", "h", "e", " ", "a", "n", "s", "w", "e", "r"},
			expected:  "The answer",
		},
		{
			name:      "uneven splits",
			fragments: []string{"The ans", "wer is", " 4."},
			expected:  "The answer is 4.",
		},
		{
			name:      "empty fragments are no-ops",
			fragments: []string{"", "Hello", "", " world", ""},
			expected:  "Hello world",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := newTestAccumulator()
			for _, f := range tt.fragments {
				acc.ApplyText(f)
			}

			if got := acc.Message().Content; got != tt.expected {
				t.Errorf("content = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestApplyToolCallAssembly(t *testing.T) {
	acc := newTestAccumulator()

	// id and name arrive on the first delta, arguments trickle in after
	acc.ApplyToolCall(0, "call_1", "lookup", "", false)
	acc.ApplyToolCall(0, "", "", `{"q":`, false)
	acc.ApplyToolCall(0, "", "", `"x"}`, false)
	acc.ApplyToolCall(0, "", "", "", true)

	calls := acc.Message().ToolCalls
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(calls))
	}

	tc := calls[0]
	if tc.ID != "call_1" {
		t.Errorf("id = %q, want %q", tc.ID, "call_1")
	}
	if tc.Name != "lookup" {
		t.Errorf("name = %q, want %q", tc.Name, "lookup")
	}
	if tc.Arguments != `{"q":"x"}` {
		t.Errorf("arguments = %q, want %q", tc.Arguments, `{"q":"x"}`)
	}
	if !tc.Completed {
		t.Error("expected tool call to be completed")
	}
}

func TestApplyToolCallIDNeverClobbered(t *testing.T) {
	acc := newTestAccumulator()

	acc.ApplyToolCall(0, "call_1", "lookup", "", false)
	// Later deltas carry empty id/name; the known values must survive
	acc.ApplyToolCall(0, "", "", `{}`, true)

	tc := acc.Message().ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "lookup" {
		t.Errorf("got id=%q name=%q, want id=%q name=%q", tc.ID, tc.Name, "call_1", "lookup")
	}
}

func TestApplyToolCallInterleavedIndices(t *testing.T) {
	acc := newTestAccumulator()

	// Two concurrent tool calls with interleaved fragments; index 1 shows
	// up before index 0 finishes
	acc.ApplyToolCall(0, "call_a", "search", `{"query":`, false)
	acc.ApplyToolCall(1, "call_b", "weather", `{"city":`, false)
	acc.ApplyToolCall(0, "", "", `"go"}`, true)
	acc.ApplyToolCall(1, "", "", `"oslo"}`, true)

	calls := acc.Message().ToolCalls
	if len(calls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(calls))
	}

	// Output order follows stream index, not completion order
	if calls[0].Name != "search" || calls[1].Name != "weather" {
		t.Errorf("order = [%s, %s], want [search, weather]", calls[0].Name, calls[1].Name)
	}
	if calls[0].Arguments != `{"query":"go"}` {
		t.Errorf("call 0 arguments = %q", calls[0].Arguments)
	}
	if calls[1].Arguments != `{"city":"oslo"}` {
		t.Errorf("call 1 arguments = %q", calls[1].Arguments)
	}
}

func TestApplyUsageMerge(t *testing.T) {
	tests := []struct {
		name     string
		deltas   []model.Usage
		expected model.Usage
	}{
		{
			name: "prompt then completion",
			deltas: []model.Usage{
				{PromptTokens: 120},
				{CompletionTokens: 45},
			},
			expected: model.Usage{PromptTokens: 120, CompletionTokens: 45, TotalTokens: 45},
		},
		{
			name: "explicit total wins over derived",
			deltas: []model.Usage{
				{PromptTokens: 120},
				{PromptTokens: 120, CompletionTokens: 45, TotalTokens: 165},
			},
			expected: model.Usage{PromptTokens: 120, CompletionTokens: 45, TotalTokens: 165},
		},
		{
			name: "existing total survives partial delta",
			deltas: []model.Usage{
				{TotalTokens: 200},
				{CompletionTokens: 45},
			},
			expected: model.Usage{CompletionTokens: 45, TotalTokens: 200},
		},
		{
			name: "omitted fields are preserved",
			deltas: []model.Usage{
				{PromptTokens: 100, CompletionTokens: 30, TotalTokens: 130},
				{CompletionTokens: 31},
			},
			expected: model.Usage{PromptTokens: 100, CompletionTokens: 31, TotalTokens: 130},
		},
		{
			name: "same snapshot twice is idempotent",
			deltas: []model.Usage{
				{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
				{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			},
			expected: model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := newTestAccumulator()
			for _, u := range tt.deltas {
				acc.ApplyUsage(u)
			}

			if got := acc.Message().Usage; got != tt.expected {
				t.Errorf("usage = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestMessageReturnsSnapshot(t *testing.T) {
	acc := newTestAccumulator()
	acc.ApplyToolCall(0, "call_1", "lookup", `{}`, true)

	snap := acc.Message()
	snap.ToolCalls[0].Name = "mutated"

	if acc.Message().ToolCalls[0].Name != "lookup" {
		t.Error("mutating a snapshot leaked into the accumulator")
	}
}
