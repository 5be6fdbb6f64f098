package conversation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leandrotocalini/boardroom/internal/agent"
)

var (
	_ agent.HistoryStore = (*FileStore)(nil)
	_ agent.IdeaStore    = (*FileStore)(nil)
)

func TestFileStore_IdeaRoundtrip(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	idea, err := store.Idea(ctx, "web:abc")
	if err != nil || idea != "" {
		t.Fatalf("unset idea = %q, %v", idea, err)
	}

	if err := store.SetIdea(ctx, "web:abc", "Meal kits for \"busy\" parents"); err != nil {
		t.Fatalf("SetIdea: %v", err)
	}
	idea, err = store.Idea(ctx, "web:abc")
	if err != nil {
		t.Fatalf("Idea: %v", err)
	}
	if idea != "Meal kits for \"busy\" parents" {
		t.Errorf("idea = %q", idea)
	}
}

func TestFileStore_ConcurrentSetIdea(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8*50)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if err := store.SetIdea(ctx, "web:x", "idea from tab"); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("SetIdea: %v", err)
	}
	idea, err := store.Idea(ctx, "web:x")
	if err != nil || idea != "idea from tab" {
		t.Errorf("Idea = %q, %v", idea, err)
	}
}

func TestFileStore_AppendAndTurns(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()
	key := agent.HistoryKey{Session: "slack:C123", View: agent.CTO}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	want := []agent.Turn{
		agent.NewUserTurn("Which database?", at),
		agent.NewAgentTurn(agent.CTO, "🐘 PostgreSQL", at.Add(time.Second)),
	}
	for _, turn := range want {
		if err := store.Append(ctx, key, turn); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := store.Turns(ctx, key)
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d turns, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Content != want[i].Content || got[i].Agent != want[i].Agent {
			t.Errorf("turn[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFileStore_AppendSkipsDuplicateID(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()
	key := agent.HistoryKey{Session: "s", View: agent.CFO}

	turn := agent.NewUserTurn("once", time.Now())
	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, key, turn); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := store.Turns(ctx, key)
	if len(got) != 1 {
		t.Errorf("expected 1 turn, got %d", len(got))
	}
}

func TestFileStore_TurnsNonExistent(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing"))

	turns, err := store.Turns(context.Background(), agent.HistoryKey{Session: "s", View: agent.CMO})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if turns != nil {
		t.Errorf("expected nil turns, got %v", turns)
	}
}

func TestFileStore_LoadInvalidJSON(t *testing.T) {
	store := NewFileStore(t.TempDir())
	key := agent.HistoryKey{Session: "s", View: agent.CMO}

	path := store.FilePath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Turns(context.Background(), key); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestFileStore_CrashSafeWrite(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()
	key := agent.HistoryKey{Session: "s", View: agent.Architect}

	if err := store.Append(ctx, key, agent.NewUserTurn("first", time.Now())); err != nil {
		t.Fatal(err)
	}

	// A stale temp file from an interrupted write must not affect reads.
	path := store.FilePath(key)
	if err := os.WriteFile(path+".tmp", []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	turns, err := store.Turns(ctx, key)
	if err != nil {
		t.Fatalf("Turns: %v", err)
	}
	if len(turns) != 1 || turns[0].Content != "first" {
		t.Errorf("unexpected turns: %+v", turns)
	}

	if err := store.Append(ctx, key, agent.NewUserTurn("second", time.Now())); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away by the next write")
	}
}

func TestFileStore_JSONFormat(t *testing.T) {
	store := NewFileStore(t.TempDir())
	key := agent.HistoryKey{Session: "s", View: agent.CTO}

	if err := store.Append(context.Background(), key, agent.NewUserTurn("hi", time.Now())); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(store.FilePath(key))
	if err != nil {
		t.Fatal(err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("file is not a JSON array: %v", err)
	}
	if raw[0]["sender"] != "user" {
		t.Errorf("sender = %v", raw[0]["sender"])
	}
	if _, ok := raw[0]["agent"]; ok {
		t.Error("user turns should omit the agent field")
	}
}

func TestFileStore_SessionKeysAreEscaped(t *testing.T) {
	base := t.TempDir()
	store := NewFileStore(base)
	key := agent.HistoryKey{Session: "whatsapp:../../etc", View: agent.CTO}

	if err := store.Append(context.Background(), key, agent.NewUserTurn("x", time.Now())); err != nil {
		t.Fatal(err)
	}
	rel, err := filepath.Rel(base, store.FilePath(key))
	if err != nil || filepath.Dir(rel) == ".." || rel[:2] == ".." {
		t.Errorf("transcript escaped the base directory: %q", rel)
	}
}

func TestFileStore_ClearSession(t *testing.T) {
	store := NewFileStore(t.TempDir())
	ctx := context.Background()
	key := agent.HistoryKey{Session: "s", View: agent.CTO}

	store.SetIdea(ctx, "s", "idea")
	store.Append(ctx, key, agent.NewUserTurn("q", time.Now()))

	if err := store.ClearSession(ctx, "s"); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	idea, _ := store.Idea(ctx, "s")
	turns, _ := store.Turns(ctx, key)
	if idea != "" || len(turns) != 0 {
		t.Errorf("session not cleared: idea=%q turns=%d", idea, len(turns))
	}
}
