package agent

import "context"

// Generator sends a prompt to a hosted language model and returns the raw
// reply text. Failures are reported as *ProviderError.
// The gemini and openrouter clients satisfy this interface.
type Generator interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
}

// HistoryStore is the append-only conversation log. Turns come back in the
// order they were appended.
type HistoryStore interface {
	Append(ctx context.Context, key HistoryKey, turn Turn) error
	Turns(ctx context.Context, key HistoryKey) ([]Turn, error)
}

// IdeaStore holds the single current startup description of each session.
type IdeaStore interface {
	// Idea returns "" with a nil error when the session has no idea yet.
	Idea(ctx context.Context, session string) (string, error)
	SetIdea(ctx context.Context, session, idea string) error
}
