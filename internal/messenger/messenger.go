// Package messenger defines the interface for chat backends (Slack,
// WhatsApp) that carry the boardroom bot. The bot talks to this interface
// and doesn't know which backend a message came from.
package messenger

import (
	"context"
	"errors"
	"regexp"

	"github.com/leandrotocalini/boardroom/internal/agent"
)

var errNotConnected = errors.New("not connected")

// ConnectionState represents the connection status of a messenger backend.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateLoggedOut
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateLoggedOut:
		return "logged out"
	default:
		return "unknown"
	}
}

// Message represents an incoming message from any backend.
type Message struct {
	ID       string // Backend-specific message ID
	Backend  string // Name() of the backend that received it
	From     string // Sender identifier
	Chat     string // Chat/channel identifier
	ThreadID string // Slack thread, empty for WhatsApp
	Content  string
	IsGroup  bool
}

// Outgoing is a reply to send.
type Outgoing struct {
	Backend  string // target backend; empty means every connected backend
	Chat     string
	ThreadID string
	Text     string
	// As posts the message under an advisor's name where the backend
	// supports it. Nil posts as the bot itself.
	As *agent.Profile
}

// MessageHandler is a callback for incoming messages.
type MessageHandler func(Message)

// ConnectionHandler is a callback for connection state changes.
type ConnectionHandler func(ConnectionState)

// Messenger is the interface that messaging backends must implement.
type Messenger interface {
	Name() string

	Connect(ctx context.Context) error
	Disconnect()
	State() ConnectionState

	OnMessage(handler MessageHandler)
	OnConnectionEvent(handler ConnectionHandler)

	// Send delivers a message and returns its backend ID.
	Send(ctx context.Context, out Outgoing) (string, error)
	// SetTyping shows or clears a typing indicator where supported.
	SetTyping(ctx context.Context, chat string, on bool) error
}

var boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)

// ChatMarkup converts the markdown emphasis used in advisor replies to the
// single-asterisk bold understood by Slack mrkdwn and WhatsApp.
func ChatMarkup(text string) string {
	return boldPattern.ReplaceAllString(text, "*$1*")
}
