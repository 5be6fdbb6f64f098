package messenger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// MultiMessenger wraps multiple Messenger backends. Messages from any backend
// are forwarded to the handler. A reply goes back to the backend named in
// Outgoing.Backend. If one backend fails to connect, the others keep running.
type MultiMessenger struct {
	backends []Messenger

	connMu    sync.RWMutex
	connState ConnectionState
}

// NewMulti creates a multi-messenger.
func NewMulti(backends ...Messenger) *MultiMessenger {
	return &MultiMessenger{
		backends:  backends,
		connState: StateDisconnected,
	}
}

// Backends returns the wrapped backends.
func (m *MultiMessenger) Backends() []Messenger {
	return m.backends
}

func (m *MultiMessenger) Connect(ctx context.Context) error {
	var connected int
	var errs []error

	for _, b := range m.backends {
		if err := b.Connect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		connected++
	}

	m.updateState()
	if connected == 0 && len(m.backends) > 0 {
		return fmt.Errorf("all backends failed to connect: %w", errors.Join(errs...))
	}
	return nil
}

func (m *MultiMessenger) Disconnect() {
	for _, b := range m.backends {
		b.Disconnect()
	}
	m.connMu.Lock()
	m.connState = StateDisconnected
	m.connMu.Unlock()
}

func (m *MultiMessenger) State() ConnectionState {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connState
}

// OnMessage registers handler on every backend. Messages are stamped with
// the name of the backend they came from.
func (m *MultiMessenger) OnMessage(handler MessageHandler) {
	for _, b := range m.backends {
		name := b.Name()
		b.OnMessage(func(msg Message) {
			msg.Backend = name
			handler(msg)
		})
	}
}

func (m *MultiMessenger) OnConnectionEvent(handler ConnectionHandler) {
	for _, b := range m.backends {
		b.OnConnectionEvent(func(state ConnectionState) {
			m.updateState()
			handler(state)
		})
	}
}

func (m *MultiMessenger) Send(ctx context.Context, out Outgoing) (string, error) {
	var lastID string
	var lastErr error
	sent := false
	for _, b := range m.backends {
		if out.Backend != "" && b.Name() != out.Backend {
			continue
		}
		if b.State() != StateConnected {
			continue
		}
		id, err := b.Send(ctx, out)
		if err != nil {
			lastErr = err
			continue
		}
		lastID, sent = id, true
	}
	if !sent {
		if lastErr != nil {
			return "", lastErr
		}
		return "", fmt.Errorf("send to %q: %w", out.Backend, errNotConnected)
	}
	return lastID, nil
}

func (m *MultiMessenger) SetTyping(ctx context.Context, chat string, on bool) error {
	for _, b := range m.backends {
		if b.State() == StateConnected {
			b.SetTyping(ctx, chat, on)
		}
	}
	return nil
}

func (m *MultiMessenger) Name() string {
	names := make([]string, len(m.backends))
	for i, b := range m.backends {
		names[i] = b.Name()
	}
	return strings.Join(names, "+")
}

// Status reports each backend's connection state by name.
func (m *MultiMessenger) Status() map[string]string {
	out := make(map[string]string, len(m.backends))
	for _, b := range m.backends {
		out[strings.ToLower(b.Name())] = b.State().String()
	}
	return out
}

// updateState sets overall state to Connected if ANY backend is connected.
func (m *MultiMessenger) updateState() {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	for _, b := range m.backends {
		if b.State() == StateConnected {
			m.connState = StateConnected
			return
		}
	}
	m.connState = StateDisconnected
}
