package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MessageMatch represents a search result across sessions
type MessageMatch struct {
	SessionID    string
	SessionTitle string
	Role         string
	Content      string
	Preview      string
	Timestamp    time.Time
}

// Search finds messages containing the query, case-insensitive, across all
// sessions. System messages are excluded. Results come back newest first.
func (s *Store) Search(ctx context.Context, query string) ([]MessageMatch, error) {
	if query == "" {
		return []MessageMatch{}, nil
	}

	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	rows, err := s.db.QueryContext(ctx, `
	SELECT m.session_id, s.title, m.role, m.content, m.created_at
	FROM messages m
	JOIN sessions s ON s.id = m.session_id
	WHERE m.role != 'system' AND lower(m.content) LIKE ? ESCAPE '\'
	ORDER BY m.created_at DESC
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var matches []MessageMatch
	for rows.Next() {
		var m MessageMatch
		if err := rows.Scan(&m.SessionID, &m.SessionTitle, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}

		m.Preview = m.Content
		if len(m.Preview) > 100 {
			m.Preview = m.Preview[:100] + "..."
		}

		matches = append(matches, m)
	}

	return matches, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
