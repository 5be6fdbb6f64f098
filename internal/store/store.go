// Package store persists startup ideas and conversation transcripts in
// SQLite. A Store satisfies both agent.IdeaStore and agent.HistoryStore.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/leandrotocalini/boardroom/internal/agent"
)

type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite store at the given path.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	st := &Store{db: db}

	if err := st.initSessions(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	if err := st.initTurns(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create turns table: %w", err)
	}

	return st, nil
}

func (s *Store) initTurns() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			seq       INTEGER PRIMARY KEY AUTOINCREMENT,
			id        TEXT NOT NULL UNIQUE,
			session   TEXT NOT NULL,
			view      TEXT NOT NULL,
			sender    TEXT NOT NULL,
			agent     TEXT NOT NULL DEFAULT '',
			content   TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS turns_by_view ON turns (session, view, seq)`)
	return err
}

// Append adds turn to the end of the log for key. Re-appending a turn with
// an ID that is already stored is a no-op.
func (s *Store) Append(ctx context.Context, key agent.HistoryKey, turn agent.Turn) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO turns (id, session, view, sender, agent, content, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, key.Session, string(key.View), string(turn.Sender), string(turn.Agent), turn.Content,
		turn.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// Turns returns the log for key in append order.
func (s *Store) Turns(ctx context.Context, key agent.HistoryKey) ([]agent.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, agent, content, timestamp FROM turns WHERE session = ? AND view = ? ORDER BY seq ASC`,
		key.Session, string(key.View),
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []agent.Turn
	for rows.Next() {
		var (
			t      agent.Turn
			sender string
			id     string
			ts     string
		)
		if err := rows.Scan(&t.ID, &sender, &id, &t.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Sender = agent.Sender(sender)
		t.Agent = agent.Identity(id)
		if t.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse turn timestamp %q: %w", ts, err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
