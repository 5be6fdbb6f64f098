// Package advisor runs the conversation loop of the boardroom: it keeps the
// startup idea of each session, builds a persona prompt for every question,
// asks the language model and stores the formatted reply in the advisor's
// transcript.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/budget"
	"github.com/leandrotocalini/boardroom/internal/format"
	"github.com/leandrotocalini/boardroom/internal/prompt"
)

// Apology replaces the reply of an advisor whose model call failed.
const Apology = "Sorry, I encountered an error. Please try again."

// OverBudget replaces the reply of an advisor when the daily spending limit
// has been reached.
const OverBudget = "Today's budget for advice is used up. Please try again tomorrow."

// ErrResetUnsupported is returned by Reset when the backing store cannot
// forget a session.
var ErrResetUnsupported = errors.New("store does not support clearing sessions")

// Store is the persistence the service needs: transcripts and ideas.
// Both store.Store (SQLite) and conversation.FileStore satisfy it.
type Store interface {
	agent.HistoryStore
	agent.IdeaStore
}

// sessionClearer is implemented by stores that can drop a whole session.
type sessionClearer interface {
	ClearSession(ctx context.Context, session string) error
}

// Budget gates model calls on estimated spend. *budget.Tracker satisfies it.
type Budget interface {
	Allow() error
}

// Reply is the outcome of one question to one advisor.
type Reply struct {
	Agent    agent.Identity `json:"agent"`
	Turn     agent.Turn     `json:"turn"`
	Failed   bool           `json:"failed,omitempty"` // Turn holds the apology
	Duration time.Duration  `json:"duration"`
}

// Service answers questions on behalf of the four advisors.
type Service struct {
	gen     agent.Generator
	store   Store
	models  func(agent.Identity) string
	timeout time.Duration
	budget  Budget
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a structured logger for the service.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithModels sets the model lookup used for each advisor.
func WithModels(fn func(agent.Identity) string) Option {
	return func(s *Service) {
		s.models = fn
	}
}

// WithTimeout bounds each model call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithBudget refuses model calls once b reports the limit is spent.
func WithBudget(b Budget) Option {
	return func(s *Service) {
		s.budget = b
	}
}

// WithClock overrides the time source for turn timestamps (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a Service that asks gen and records turns in store.
func New(gen agent.Generator, store Store, opts ...Option) *Service {
	s := &Service{
		gen:    gen,
		store:  store,
		models: func(agent.Identity) string { return "gemini-2.5-pro" },
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetIdea stores the startup description of a session, replacing any
// previous one.
func (s *Service) SetIdea(ctx context.Context, session, idea string) error {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return prompt.ErrEmptyIdea
	}
	if err := s.store.SetIdea(ctx, session, idea); err != nil {
		return fmt.Errorf("set idea: %w", err)
	}
	s.logger.Info("startup idea set", "session", session, "len", len(idea))
	return nil
}

// Idea returns the startup description of a session, or "" if none is set.
func (s *Service) Idea(ctx context.Context, session string) (string, error) {
	idea, err := s.store.Idea(ctx, session)
	if err != nil {
		return "", fmt.Errorf("get idea: %w", err)
	}
	return idea, nil
}

// Ask sends message to one advisor and records both turns in the advisor's
// transcript. A failed model call is not an error: the reply carries the
// apology and Failed is set.
func (s *Service) Ask(ctx context.Context, session string, id agent.Identity, message string) (Reply, error) {
	if !id.Valid() {
		return Reply{}, fmt.Errorf("ask: %w: %q", agent.ErrUnknownAgent, id)
	}
	if strings.TrimSpace(message) == "" {
		return Reply{}, fmt.Errorf("ask: %w", prompt.ErrEmptyMessage)
	}
	idea, err := s.requireIdea(ctx, session)
	if err != nil {
		return Reply{}, err
	}
	return s.ask(ctx, session, id, idea, message)
}

// Board asks every advisor the same question concurrently. One advisor's
// failure never stops the others. Replies come back in agent.All order.
func (s *Service) Board(ctx context.Context, session, message string) ([]Reply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("board: %w", prompt.ErrEmptyMessage)
	}
	idea, err := s.requireIdea(ctx, session)
	if err != nil {
		return nil, err
	}

	ids := agent.All()
	replies := make([]Reply, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			r, err := s.ask(ctx, session, id, idea, message)
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			replies[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}

	failed := 0
	for _, r := range replies {
		if r.Failed {
			failed++
		}
	}
	s.logger.Info("boardroom answered", "session", session, "advisors", len(replies), "failed", failed)
	return replies, nil
}

// History returns the transcript of one advisor view, oldest first.
func (s *Service) History(ctx context.Context, session string, id agent.Identity) ([]agent.Turn, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("history: %w: %q", agent.ErrUnknownAgent, id)
	}
	turns, err := s.store.Turns(ctx, agent.HistoryKey{Session: session, View: id})
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return turns, nil
}

// Reset forgets the idea and every transcript of a session.
func (s *Service) Reset(ctx context.Context, session string) error {
	c, ok := s.store.(sessionClearer)
	if !ok {
		return ErrResetUnsupported
	}
	if err := c.ClearSession(ctx, session); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	s.logger.Info("session reset", "session", session)
	return nil
}

// Model returns the model configured for id.
func (s *Service) Model(id agent.Identity) string {
	return s.models(id)
}

func (s *Service) requireIdea(ctx context.Context, session string) (string, error) {
	idea, err := s.Idea(ctx, session)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(idea) == "" {
		return "", agent.ErrNoIdea
	}
	return idea, nil
}

func (s *Service) ask(ctx context.Context, session string, id agent.Identity, idea, message string) (Reply, error) {
	key := agent.HistoryKey{Session: session, View: id}
	if err := s.store.Append(ctx, key, agent.NewUserTurn(message, s.now())); err != nil {
		return Reply{}, fmt.Errorf("append user turn: %w", err)
	}

	p, err := prompt.BuildPrompt(id, idea, message)
	if err != nil {
		return Reply{}, err
	}

	model := s.models(id)
	if s.budget != nil {
		if err := s.budget.Allow(); err != nil {
			s.logger.Warn("advisor call skipped", "agent", id, "session", session, "error", err)
			reply := Reply{Agent: id, Turn: agent.NewAgentTurn(id, OverBudget, s.now()), Failed: true}
			if err := s.store.Append(ctx, key, reply.Turn); err != nil {
				return Reply{}, fmt.Errorf("append agent turn: %w", err)
			}
			return reply, nil
		}
	}

	start := time.Now()
	text, err := s.generate(budget.WithCall(ctx, budget.Call{Session: session, Agent: id}), p, model)
	duration := time.Since(start)

	reply := Reply{Agent: id, Duration: duration}
	switch {
	case err == nil:
		reply.Turn = agent.NewAgentTurn(id, format.Response(text, id), s.now())
		s.logger.Info("advisor replied", "agent", id, "model", model, "duration", duration)
	case agent.IsProviderError(err):
		s.logger.Error("advisor call failed", "agent", id, "model", model, "error", err, "duration", duration)
		reply.Turn = agent.NewAgentTurn(id, Apology, s.now())
		reply.Failed = true
	default:
		return Reply{}, fmt.Errorf("generate: %w", err)
	}

	if err := s.store.Append(ctx, key, reply.Turn); err != nil {
		return Reply{}, fmt.Errorf("append agent turn: %w", err)
	}
	return reply, nil
}

func (s *Service) generate(ctx context.Context, p, model string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.gen.Generate(ctx, p, model)
}
