package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leandrotocalini/boardroom/internal/advisor"
	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/messenger"
	"github.com/leandrotocalini/boardroom/internal/prompt"
	"github.com/leandrotocalini/boardroom/internal/router"
)

// Advisors is the part of advisor.Service the bot drives.
type Advisors interface {
	SetIdea(ctx context.Context, session, idea string) error
	Idea(ctx context.Context, session string) (string, error)
	Ask(ctx context.Context, session string, id agent.Identity, message string) (advisor.Reply, error)
	Board(ctx context.Context, session, message string) ([]advisor.Reply, error)
	Reset(ctx context.Context, session string) error
}

// Sender delivers replies to a chat.
type Sender interface {
	Send(ctx context.Context, out messenger.Outgoing) (string, error)
	SetTyping(ctx context.Context, chat string, on bool) error
}

// Bot handles chat messages for every backend.
type Bot struct {
	advisors     Advisors
	out          Sender
	prefix       string
	defaultAgent agent.Identity
	redactor     *router.Redactor
	logger       *slog.Logger

	mu     sync.Mutex
	active map[string]agent.Identity // session -> advisor answering plain text
}

// Option configures a Bot.
type Option func(*Bot)

// WithPrefix sets the command prefix (default "!").
func WithPrefix(p string) Option {
	return func(b *Bot) {
		if p != "" {
			b.prefix = p
		}
	}
}

// WithDefaultAgent sets the advisor that answers plain messages until a chat
// picks another with !use.
func WithDefaultAgent(id agent.Identity) Option {
	return func(b *Bot) {
		if id.Valid() {
			b.defaultAgent = id
		}
	}
}

// WithRedactor replaces the outbound redactor.
func WithRedactor(r *router.Redactor) Option {
	return func(b *Bot) {
		b.redactor = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = l
	}
}

// New creates a bot answering through out.
func New(advisors Advisors, out Sender, opts ...Option) *Bot {
	b := &Bot{
		advisors:     advisors,
		out:          out,
		prefix:       "!",
		defaultAgent: agent.CTO,
		redactor:     router.NewRedactor(),
		logger:       slog.Default(),
		active:       make(map[string]agent.Identity),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Handle processes one incoming message. It has the router.Handler
// signature so a router.Registry can call it per chat.
func (b *Bot) Handle(ctx context.Context, msg messenger.Message) {
	session := router.SessionKey(msg)
	log := b.logger.With("session", session, "message_id", msg.ID)

	cmd, err := Parse(b.prefix, msg.Content)
	if err != nil {
		b.reply(ctx, msg, nil, fmt.Sprintf("%v. Type %shelp for the commands.", err, b.prefix))
		return
	}

	switch cmd.Kind {
	case KindHelp:
		b.reply(ctx, msg, nil, helpText(b.prefix))

	case KindIdea:
		b.handleIdea(ctx, msg, session, cmd.Text)

	case KindUse:
		b.setActive(session, cmd.Agent)
		p := agent.ProfileOf(cmd.Agent)
		b.reply(ctx, msg, nil, fmt.Sprintf("Now talking to %s %s.", p.Icon, p.Name))

	case KindReset:
		if err := b.advisors.Reset(ctx, session); err != nil {
			log.Error("reset failed", "error", err)
			b.reply(ctx, msg, nil, b.errorText(err))
			return
		}
		b.mu.Lock()
		delete(b.active, session)
		b.mu.Unlock()
		b.reply(ctx, msg, nil, "🧹 Session cleared. Set a new idea with "+b.prefix+"idea.")

	case KindBoard:
		b.typing(ctx, msg, true)
		replies, err := b.advisors.Board(ctx, session, cmd.Text)
		b.typing(ctx, msg, false)
		if err != nil {
			log.Error("board failed", "error", err)
			b.reply(ctx, msg, nil, b.errorText(err))
			return
		}
		for _, r := range replies {
			b.sendReply(ctx, msg, r)
		}

	case KindAsk, KindChat:
		id := cmd.Agent
		if cmd.Kind == KindChat {
			id = b.activeAgent(session)
		}
		b.typing(ctx, msg, true)
		r, err := b.advisors.Ask(ctx, session, id, cmd.Text)
		b.typing(ctx, msg, false)
		if err != nil {
			log.Error("ask failed", "agent", id, "error", err)
			b.reply(ctx, msg, nil, b.errorText(err))
			return
		}
		b.sendReply(ctx, msg, r)
	}
}

func (b *Bot) handleIdea(ctx context.Context, msg messenger.Message, session, text string) {
	if text == "" {
		idea, err := b.advisors.Idea(ctx, session)
		if err != nil {
			b.reply(ctx, msg, nil, b.errorText(err))
			return
		}
		if idea == "" {
			b.reply(ctx, msg, nil, b.errorText(agent.ErrNoIdea))
			return
		}
		b.reply(ctx, msg, nil, "💡 Current idea: "+idea)
		return
	}
	if err := b.advisors.SetIdea(ctx, session, text); err != nil {
		b.reply(ctx, msg, nil, b.errorText(err))
		return
	}
	b.reply(ctx, msg, nil, "💡 Idea saved. Ask away, or try "+b.prefix+"board for everyone's take.")
}

// activeAgent returns the advisor answering plain messages in session.
func (b *Bot) activeAgent(session string) agent.Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.active[session]; ok {
		return id
	}
	return b.defaultAgent
}

func (b *Bot) setActive(session string, id agent.Identity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active[session] = id
}

// errorText is the user-facing message for a failed command.
func (b *Bot) errorText(err error) string {
	switch {
	case errors.Is(err, agent.ErrNoIdea):
		return "No idea set yet. Start with " + b.prefix + "idea <describe your startup>."
	case errors.Is(err, prompt.ErrEmptyIdea):
		return "The idea can't be empty."
	case errors.Is(err, prompt.ErrEmptyMessage):
		return "Ask a question after the command."
	case errors.Is(err, advisor.ErrResetUnsupported):
		return "Reset isn't supported by the configured storage."
	default:
		return advisor.Apology
	}
}

func (b *Bot) sendReply(ctx context.Context, msg messenger.Message, r advisor.Reply) {
	p := agent.ProfileOf(r.Agent)
	b.reply(ctx, msg, &p, r.Turn.Content)
}

// reply answers in the chat (and thread) msg came from.
func (b *Bot) reply(ctx context.Context, msg messenger.Message, as *agent.Profile, text string) {
	_, err := b.out.Send(ctx, messenger.Outgoing{
		Backend:  msg.Backend,
		Chat:     msg.Chat,
		ThreadID: msg.ThreadID,
		Text:     b.redactor.Redact(text),
		As:       as,
	})
	if err != nil {
		b.logger.Error("send reply failed", "backend", msg.Backend, "chat", msg.Chat, "error", err)
	}
}

func (b *Bot) typing(ctx context.Context, msg messenger.Message, on bool) {
	if err := b.out.SetTyping(ctx, msg.Chat, on); err != nil {
		b.logger.Debug("typing indicator failed", "error", err)
	}
}
