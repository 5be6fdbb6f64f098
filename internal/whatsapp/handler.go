package whatsapp

import (
	"context"
	"fmt"
	"time"

	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

// Message is an incoming text message.
type Message struct {
	ID        string
	From      string // JID of sender
	Chat      string // JID of chat (group or personal)
	Content   string
	Timestamp time.Time
	IsFromMe  bool
	IsGroup   bool
}

// MessageHandler is a callback function for new messages.
type MessageHandler func(Message)

// OnMessage registers a handler for incoming text messages.
func (c *Client) OnMessage(handler MessageHandler) {
	c.wac.AddEventHandler(func(evt interface{}) {
		if v, ok := evt.(*events.Message); ok {
			if msg, ok := parseMessage(v); ok {
				handler(msg)
			}
		}
	})
}

// parseMessage extracts the text of a message. Messages we sent ourselves
// and media without a caption are skipped.
func parseMessage(evt *events.Message) (Message, bool) {
	info := evt.Info
	if info.IsFromMe || evt.Message == nil {
		return Message{}, false
	}

	msg := Message{
		ID:        info.ID,
		From:      info.Sender.String(),
		Chat:      info.Chat.String(),
		Timestamp: info.Timestamp,
		IsGroup:   info.IsGroup,
	}

	m := evt.Message
	switch {
	case m.Conversation != nil:
		msg.Content = m.GetConversation()
	case m.ExtendedTextMessage != nil:
		msg.Content = m.GetExtendedTextMessage().GetText()
	case m.ImageMessage != nil && m.GetImageMessage().GetCaption() != "":
		msg.Content = m.GetImageMessage().GetCaption()
	case m.DocumentMessage != nil && m.GetDocumentMessage().GetCaption() != "":
		msg.Content = m.GetDocumentMessage().GetCaption()
	default:
		return Message{}, false
	}
	return msg, true
}

// SendMessage sends a text message to a chat and returns its ID.
func (c *Client) SendMessage(ctx context.Context, chatJID, text string) (string, error) {
	if !c.IsConnected() {
		return "", fmt.Errorf("not connected to WhatsApp")
	}
	jid, err := types.ParseJID(chatJID)
	if err != nil {
		return "", fmt.Errorf("invalid JID: %w", err)
	}

	resp, err := c.wac.SendMessage(ctx, jid, &waProto.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send whatsapp message: %w", err)
	}
	return resp.ID, nil
}

// SendPresence sends a "composing" or "paused" chat presence indicator.
func (c *Client) SendPresence(ctx context.Context, chatJID string, composing bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("not connected to WhatsApp")
	}
	jid, err := types.ParseJID(chatJID)
	if err != nil {
		return fmt.Errorf("invalid JID: %w", err)
	}

	state := types.ChatPresencePaused
	if composing {
		state = types.ChatPresenceComposing
	}
	return c.wac.SendChatPresence(ctx, jid, state, "")
}

// MarkRead sends a read receipt for a message.
func (c *Client) MarkRead(ctx context.Context, chatJID, senderJID, messageID string) error {
	if !c.IsConnected() {
		return fmt.Errorf("not connected to WhatsApp")
	}
	chat, err := types.ParseJID(chatJID)
	if err != nil {
		return fmt.Errorf("invalid chat JID: %w", err)
	}
	sender, err := types.ParseJID(senderJID)
	if err != nil {
		return fmt.Errorf("invalid sender JID: %w", err)
	}
	return c.wac.MarkRead(ctx, []types.MessageID{messageID}, time.Now(), chat, sender)
}
