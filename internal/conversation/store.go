// Package conversation persists ideas and transcripts as plain JSON files
// with crash-safe writes. It is the "file" storage driver; the default
// driver is the SQLite store.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/leandrotocalini/boardroom/internal/agent"
)

const ideaFile = "idea.json"

// FileStore keeps one directory per session under its base directory:
//
//	<base>/<session>/idea.json
//	<base>/<session>/<view>.json
//
// Session keys are path-escaped. Every write goes to a temporary file that
// is then renamed over the target, so a crash never corrupts an existing
// file.
type FileStore struct {
	dir    string
	logger *slog.Logger

	mu sync.Mutex // serialises every write; they share <path>.tmp names
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the structured logger for the store.
func WithLogger(l *slog.Logger) Option {
	return func(s *FileStore) {
		s.logger = l
	}
}

// NewFileStore creates a store rooted at dir. The directory is created on
// first write.
func NewFileStore(dir string, opts ...Option) *FileStore {
	s := &FileStore{
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the base directory of the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// FilePath returns the transcript file for key.
func (s *FileStore) FilePath(key agent.HistoryKey) string {
	return filepath.Join(s.sessionDir(key.Session), string(key.View)+".json")
}

func (s *FileStore) sessionDir(session string) string {
	name := url.PathEscape(session)
	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}
	return filepath.Join(s.dir, name)
}

type ideaRecord struct {
	Idea string `json:"idea"`
}

// Idea returns the session's idea, or "" when none was set.
func (s *FileStore) Idea(_ context.Context, session string) (string, error) {
	var rec ideaRecord
	ok, err := readJSON(filepath.Join(s.sessionDir(session), ideaFile), &rec)
	if err != nil || !ok {
		return "", err
	}
	return rec.Idea, nil
}

// SetIdea replaces the session's idea.
func (s *FileStore) SetIdea(_ context.Context, session, idea string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(filepath.Join(s.sessionDir(session), ideaFile), ideaRecord{Idea: idea})
}

// Turns returns the transcript for key. A transcript that was never written
// is empty.
func (s *FileStore) Turns(_ context.Context, key agent.HistoryKey) ([]agent.Turn, error) {
	var turns []agent.Turn
	if _, err := readJSON(s.FilePath(key), &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

// Append adds turn to the transcript for key. A turn whose ID is already
// present is not written again.
func (s *FileStore) Append(ctx context.Context, key agent.HistoryKey, turn agent.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, err := s.Turns(ctx, key)
	if err != nil {
		return err
	}
	for _, t := range turns {
		if t.ID == turn.ID {
			return nil
		}
	}
	turns = append(turns, turn)

	path := s.FilePath(key)
	if err := writeJSON(path, turns); err != nil {
		return err
	}
	s.logger.Debug("saved conversation", "path", path, "turns", len(turns))
	return nil
}

// ClearSession removes the idea and every transcript of a session.
func (s *FileStore) ClearSession(_ context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(s.sessionDir(session)); err != nil {
		return fmt.Errorf("remove session directory: %w", err)
	}
	return nil
}

// readJSON decodes path into dest. It reports false, nil when the file does
// not exist or is empty.
func readJSON(path string, dest any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// writeJSON writes v to path using crash-safe writes:
//  1. Write JSON to a temporary file (<path>.tmp)
//  2. Rename the temporary file to the target path (atomic on POSIX)
//
// The parent directory is created if it does not exist.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create conversation directory: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // best effort cleanup
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
