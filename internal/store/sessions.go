package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Sessions holds the current startup idea per client session. A session is
// a web cookie value or a "<backend>:<chat>" messenger key.

func (s *Store) initSessions() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session    TEXT PRIMARY KEY,
			idea       TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

// Idea returns the session's idea, or "" when none was set.
func (s *Store) Idea(ctx context.Context, session string) (string, error) {
	var idea string
	err := s.db.QueryRowContext(ctx, `SELECT idea FROM sessions WHERE session = ?`, session).Scan(&idea)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil // no idea yet, not an error
	}
	if err != nil {
		return "", fmt.Errorf("query idea: %w", err)
	}
	return idea, nil
}

// SetIdea replaces the session's idea.
func (s *Store) SetIdea(ctx context.Context, session, idea string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session, idea, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(session) DO UPDATE SET idea = excluded.idea, updated_at = datetime('now')`,
		session, idea,
	)
	if err != nil {
		return fmt.Errorf("set idea: %w", err)
	}
	return nil
}

// Sessions lists every session that has an idea, most recently updated
// first.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session FROM sessions ORDER BY updated_at DESC, session ASC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ClearSession removes the idea and every transcript of a session, so the
// next message starts completely fresh.
func (s *Store) ClearSession(ctx context.Context, session string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear session: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session = ?`, session); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session = ?`, session); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return tx.Commit()
}
