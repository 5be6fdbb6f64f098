package messenger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/leandrotocalini/boardroom/internal/whatsapp"
)

// WhatsAppAdapter wraps whatsapp.Client to implement the Messenger interface.
type WhatsAppAdapter struct {
	opts     whatsapp.Options
	groupJID string // only this chat is served when set
	recent   *recentIDs

	mu          sync.RWMutex
	client      *whatsapp.Client
	msgHandler  MessageHandler
	connHandler ConnectionHandler
}

// NewWhatsApp creates a WhatsApp messenger. Call Connect to establish the
// connection; an unpaired device prints a QR code first.
func NewWhatsApp(opts whatsapp.Options, groupJID string) *WhatsAppAdapter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &WhatsAppAdapter{
		opts:     opts,
		groupJID: groupJID,
		recent:   newRecentIDs(recentCapacity, recentTTL, nil),
	}
}

func (w *WhatsAppAdapter) Name() string {
	return "whatsapp"
}

func (w *WhatsAppAdapter) Connect(ctx context.Context) error {
	client, err := whatsapp.Connect(ctx, w.opts)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.client = client
	w.mu.Unlock()

	client.OnMessage(w.dispatch)
	client.OnConnectionEvent(func(state whatsapp.ConnectionState) {
		w.mu.RLock()
		handler := w.connHandler
		w.mu.RUnlock()
		if handler != nil {
			handler(mapWAState(state))
		}
	})
	return nil
}

func (w *WhatsAppAdapter) dispatch(msg whatsapp.Message) {
	if w.groupJID != "" && msg.Chat != w.groupJID {
		return
	}
	if !w.recent.firstTime(msg.ID) {
		w.opts.Logger.Debug("duplicate whatsapp message skipped", "id", msg.ID)
		return
	}
	w.mu.RLock()
	handler := w.msgHandler
	client := w.client
	w.mu.RUnlock()
	if handler == nil {
		return
	}
	if client != nil {
		go func() {
			if err := client.MarkRead(context.Background(), msg.Chat, msg.From, msg.ID); err != nil {
				w.opts.Logger.Debug("whatsapp mark read failed", "error", err)
			}
		}()
	}
	handler(Message{
		ID:      msg.ID,
		Backend: w.Name(),
		From:    msg.From,
		Chat:    msg.Chat,
		Content: msg.Content,
		IsGroup: msg.IsGroup,
	})
}

func (w *WhatsAppAdapter) Disconnect() {
	if c := w.getClient(); c != nil {
		c.Disconnect()
	}
}

func (w *WhatsAppAdapter) State() ConnectionState {
	c := w.getClient()
	if c == nil {
		return StateDisconnected
	}
	return mapWAState(c.State())
}

func (w *WhatsAppAdapter) OnMessage(handler MessageHandler) {
	w.mu.Lock()
	w.msgHandler = handler
	w.mu.Unlock()
}

func (w *WhatsAppAdapter) OnConnectionEvent(handler ConnectionHandler) {
	w.mu.Lock()
	w.connHandler = handler
	w.mu.Unlock()
}

// Send posts out.Text. WhatsApp has no per-message sender names, so an
// advisor reply is headed by the advisor's icon and name.
func (w *WhatsAppAdapter) Send(ctx context.Context, out Outgoing) (string, error) {
	c := w.getClient()
	if c == nil {
		return "", errNotConnected
	}
	return c.SendMessage(ctx, out.Chat, whatsAppText(out))
}

func (w *WhatsAppAdapter) SetTyping(ctx context.Context, chat string, on bool) error {
	c := w.getClient()
	if c == nil {
		return errNotConnected
	}
	return c.SendPresence(ctx, chat, on)
}

func (w *WhatsAppAdapter) getClient() *whatsapp.Client {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.client
}

func whatsAppText(out Outgoing) string {
	text := ChatMarkup(out.Text)
	if out.As != nil {
		text = out.As.Icon + " *" + out.As.Name + "*\n\n" + text
	}
	return text
}

func mapWAState(s whatsapp.ConnectionState) ConnectionState {
	switch s {
	case whatsapp.StateConnected:
		return StateConnected
	case whatsapp.StateReconnecting:
		return StateReconnecting
	case whatsapp.StateLoggedOut:
		return StateLoggedOut
	case whatsapp.StateConnecting:
		return StateConnecting
	default:
		return StateDisconnected
	}
}
