package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionType distinguishes plain chat sessions from other conversation kinds.
type SessionType string

const (
	SessionTypeChat       SessionType = "chat"
	SessionTypeTranscript SessionType = "transcript"
)

// DefaultSessionTitle is used until a title is derived from the first exchange.
const DefaultSessionTitle = "New Chat"

// Session is an ordered conversation. Messages is both creation order and
// read order; it is mutated only by the owning engine while a send is in
// flight and must never be aliased by readers.
type Session struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Type      SessionType `json:"type"`
	Messages  []Message   `json:"messages"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewSession creates an empty chat session with a generic title.
func NewSession(kind SessionType) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		Title:     DefaultSessionTitle,
		Type:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the session suitable for concurrent readers.
func (s *Session) Clone() *Session {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	return &out
}

// FirstUserMessage returns the first user message, or nil if none exists yet.
func (s *Session) FirstUserMessage() *Message {
	for i := range s.Messages {
		if s.Messages[i].Role == RoleUser {
			return &s.Messages[i]
		}
	}
	return nil
}
