// Package storage persists sessions and messages in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"aide/model"
)

// SessionMetadata is a lightweight view of a session for listing
type SessionMetadata struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Store handles session and message persistence
type Store struct {
	db      *sql.DB
	dataDir string
}

// NewStore opens (or creates) the database under dataDir
func NewStore(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "aide.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, dataDir: dataDir}

	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'chat',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		model TEXT,
		provider TEXT,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		tool_calls TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveMessage inserts or updates a single message. New messages get the next
// sequence number within their session; replacing an existing message keeps
// its position.
func (s *Store) SaveMessage(ctx context.Context, sessionID string, msg model.Message) error {
	toolCalls, err := marshalToolCalls(msg.ToolCalls)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO messages (id, session_id, seq, role, content, model, provider, latency_ms, prompt_tokens, completion_tokens, total_tokens, tool_calls, created_at)
	VALUES (?, ?, (SELECT COALESCE(MAX(seq)+1, 0) FROM messages WHERE session_id = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		content = excluded.content,
		model = excluded.model,
		provider = excluded.provider,
		latency_ms = excluded.latency_ms,
		prompt_tokens = excluded.prompt_tokens,
		completion_tokens = excluded.completion_tokens,
		total_tokens = excluded.total_tokens,
		tool_calls = excluded.tool_calls
	`

	_, err = s.db.ExecContext(ctx, query,
		msg.ID,
		sessionID,
		sessionID,
		string(msg.Role),
		msg.Content,
		msg.Model,
		msg.Provider,
		msg.LatencyMS,
		msg.Usage.PromptTokens,
		msg.Usage.CompletionTokens,
		msg.Usage.TotalTokens,
		toolCalls,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// SaveSession upserts the session row and all of its messages in one
// transaction. Message order follows the slice order.
func (s *Store) SaveSession(ctx context.Context, session *model.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO sessions (id, title, type, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		type = excluded.type,
		updated_at = excluded.updated_at
	`,
		session.ID,
		session.Title,
		string(session.Type),
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	for i, msg := range session.Messages {
		toolCalls, err := marshalToolCalls(msg.ToolCalls)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, seq, role, content, model, provider, latency_ms, prompt_tokens, completion_tokens, total_tokens, tool_calls, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			seq = excluded.seq,
			content = excluded.content,
			model = excluded.model,
			provider = excluded.provider,
			latency_ms = excluded.latency_ms,
			prompt_tokens = excluded.prompt_tokens,
			completion_tokens = excluded.completion_tokens,
			total_tokens = excluded.total_tokens,
			tool_calls = excluded.tool_calls
		`,
			msg.ID,
			session.ID,
			i,
			string(msg.Role),
			msg.Content,
			msg.Model,
			msg.Provider,
			msg.LatencyMS,
			msg.Usage.PromptTokens,
			msg.Usage.CompletionTokens,
			msg.Usage.TotalTokens,
			toolCalls,
			msg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}

	return tx.Commit()
}

// LoadSession loads a session and its messages in order
func (s *Store) LoadSession(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	var sessionType string

	err := s.db.QueryRowContext(ctx, `
	SELECT id, title, type, created_at, updated_at FROM sessions WHERE id = ?
	`, id).Scan(&session.ID, &session.Title, &sessionType, &session.CreatedAt, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	session.Type = model.SessionType(sessionType)

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, role, content, model, provider, latency_ms, prompt_tokens, completion_tokens, total_tokens, tool_calls, created_at
	FROM messages
	WHERE session_id = ?
	ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg model.Message
		var role string
		var toolCalls sql.NullString

		err := rows.Scan(
			&msg.ID,
			&role,
			&msg.Content,
			&msg.Model,
			&msg.Provider,
			&msg.LatencyMS,
			&msg.Usage.PromptTokens,
			&msg.Usage.CompletionTokens,
			&msg.Usage.TotalTokens,
			&toolCalls,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		msg.Role = role
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to parse tool calls: %w", err)
			}
		}

		session.Messages = append(session.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &session, nil
}

// ListSessions returns metadata for all sessions, newest first
func (s *Store) ListSessions(ctx context.Context) ([]SessionMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT s.id, s.title, s.type, s.created_at, s.updated_at,
		(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
	FROM sessions s
	ORDER BY s.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionMetadata
	for rows.Next() {
		var meta SessionMetadata
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.Type, &meta.CreatedAt, &meta.UpdatedAt, &meta.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, meta)
	}

	return sessions, rows.Err()
}

// DeleteSession removes a session and its messages
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return tx.Commit()
}

// RenameSession updates the title of a session
func (s *Store) RenameSession(ctx context.Context, id string, newTitle string) error {
	result, err := s.db.ExecContext(ctx, `
	UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?
	`, newTitle, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s not found", id)
	}

	return nil
}

// SaveCurrentSessionID saves the ID of the current session
func (s *Store) SaveCurrentSessionID(id string) error {
	path := filepath.Join(s.dataDir, "current_session.id")
	return os.WriteFile(path, []byte(id), 0600)
}

// LoadCurrentSessionID loads the ID of the last active session
func (s *Store) LoadCurrentSessionID() (string, error) {
	path := filepath.Join(s.dataDir, "current_session.id")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func marshalToolCalls(calls []model.ToolCall) (string, error) {
	if len(calls) == 0 {
		return "", nil
	}
	data, err := json.Marshal(calls)
	if err != nil {
		return "", fmt.Errorf("failed to serialize tool calls: %w", err)
	}
	return string(data), nil
}
