// Package agent defines the advisor identities, conversation turns and the
// collaborator interfaces (LLM, history, idea persistence) shared by the
// prompt builder, the response formatter and the advisor service.
package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is one of the four fixed advisor personas. It selects both the
// prompt template and the formatting rule-set.
type Identity string

const (
	CTO       Identity = "cto"
	CMO       Identity = "cmo"
	CFO       Identity = "cfo"
	Architect Identity = "architect"
)

// All returns the identities in display order.
func All() []Identity {
	return []Identity{CTO, CMO, CFO, Architect}
}

// Valid reports whether id is one of the four defined identities.
func (id Identity) Valid() bool {
	switch id {
	case CTO, CMO, CFO, Architect:
		return true
	default:
		return false
	}
}

func (id Identity) String() string {
	return string(id)
}

// Parse converts user input ("CTO", " architect ") to an Identity.
func Parse(s string) (Identity, error) {
	id := Identity(strings.ToLower(strings.TrimSpace(s)))
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAgent, s)
	}
	return id, nil
}

// Profile is the display metadata for an advisor.
type Profile struct {
	ID          Identity `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
}

// ProfileOf returns the display metadata for id. Unknown identities get a
// generic profile.
func ProfileOf(id Identity) Profile {
	switch id {
	case CTO:
		return Profile{ID: id, Name: "CTO Bot", Description: "Tech stacks, MVPs, architecture and development roadmaps", Icon: "🧠"}
	case CMO:
		return Profile{ID: id, Name: "CMO Bot", Description: "Branding, growth strategies, user acquisition and engagement", Icon: "📣"}
	case CFO:
		return Profile{ID: id, Name: "CFO Bot", Description: "Pricing models, monetization, fundraising and financial planning", Icon: "📈"}
	case Architect:
		return Profile{ID: id, Name: "Architect Bot", Description: "Scalable folder structures for web and mobile applications", Icon: "🌳"}
	default:
		return Profile{ID: id, Name: "AI Agent", Description: "General advice", Icon: "🤖"}
	}
}

// Sender identifies who produced a turn.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// Turn is a single message in a conversation. Turns are never mutated after
// creation; the history log that holds them is append-only.
type Turn struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Agent     Identity  `json:"agent,omitempty"` // empty for user turns
}

// NewUserTurn creates a turn for a message typed by the user.
func NewUserTurn(content string, at time.Time) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    SenderUser,
		Timestamp: at,
	}
}

// NewAgentTurn creates a turn for a reply produced by an advisor.
func NewAgentTurn(id Identity, content string, at time.Time) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    SenderAgent,
		Timestamp: at,
		Agent:     id,
	}
}

// HistoryKey addresses one append-only log: a client session and the advisor
// view the turns were exchanged in.
type HistoryKey struct {
	Session string
	View    Identity
}
