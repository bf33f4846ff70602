package model

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Backend abstracts one LLM backend (gateway, Anthropic, Ollama) using
// provider-agnostic types from the model layer.
//
// This interface is defined in the model package (not provider package) to
// avoid import cycles: backend implementations can import model, and the chat
// engine can use the Backend interface without importing the provider package.
type Backend interface {
	// Stream sends the conversation and delivers incremental deltas to the
	// handler. It returns nil after the backend signals completion, or the
	// stream error. Handler callbacks may fire from the transport's goroutine;
	// serialization is the caller's responsibility.
	Stream(ctx context.Context, messages []Message, tools []mcptypes.Tool, handler StreamHandler) error

	// Complete sends the conversation as a single synchronous call and
	// returns the finished assistant message with no intermediate deltas.
	Complete(ctx context.Context, messages []Message, tools []mcptypes.Tool) (Message, error)

	// Name returns the backend id ("gateway", "anthropic", "ollama").
	Name() string

	// Model returns the currently selected model name.
	Model() string

	// SetModel changes the active model.
	SetModel(model string)

	// ListModels returns available models for this backend.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error
}

// StreamHandler receives the incremental deltas of one in-flight assistant
// message. All three backends are adapted to this same shape.
type StreamHandler interface {
	// TextDelta appends a text fragment. Fragments arrive in order and may
	// be empty.
	TextDelta(fragment string)

	// ToolCallDelta merges a tool-call fragment at the given stream index.
	// id and name may be empty on fragments after the one that introduced
	// them; argsFragment is appended to the running arguments string.
	ToolCallDelta(index int, id, name, argsFragment string, completed bool)

	// UsageDelta merges a token-usage snapshot. Zero fields are absent.
	UsageDelta(usage Usage)
}

// ModelInfo describes one selectable model of a backend.
type ModelInfo struct {
	Name         string // display name (vendor prefix stripped for gateway models)
	InternalName string // full API name (e.g. "meta-llama/llama-3.2-90b")
	Size         int64
	Provider     string // backend id this model belongs to
}

// ContextProvider supplies the free-text user context substituted into the
// system preamble, called once per send.
type ContextProvider interface {
	UserContext(ctx context.Context) string
}

// Sink persists messages and sessions. Calls are best-effort: failures are
// surfaced as warnings and never block turn progress.
type Sink interface {
	SaveMessage(ctx context.Context, sessionID string, msg Message) error
	SaveSession(ctx context.Context, session *Session) error
}
