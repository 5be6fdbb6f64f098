// Package whatsapp connects the boardroom bot to WhatsApp as a linked
// device through whatsmeow. The device session is stored in SQLite next to
// the project configuration.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	_ "github.com/mattn/go-sqlite3"
)

// ConnectionState represents the current WhatsApp connection state.
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
		return "logged_out"
	default:
		return "unknown"
	}
}

// ConnectionEventHandler is called when the connection state changes.
type ConnectionEventHandler func(state ConnectionState)

// Options configures Connect.
type Options struct {
	SessionPath string // directory holding session.db
	DeviceName  string // shown under WhatsApp > Linked Devices

	// QROut receives the pairing QR code as terminal art. Defaults to stderr.
	QROut io.Writer
	// QRFile, when set, also receives the QR code as a PNG.
	QRFile string

	Logger *slog.Logger
}

// Client is a connected WhatsApp linked device.
type Client struct {
	wac    *whatsmeow.Client
	logger *slog.Logger

	connMu      sync.RWMutex
	connState   ConnectionState
	onConnEvent ConnectionEventHandler
}

func init() {
	// Reconnect after 30s of keepalive failures instead of the default 3 minutes.
	whatsmeow.KeepAliveMaxFailTime = 30 * time.Second
}

// Connect opens the device session and connects. A device that has never
// been paired prints a QR code and waits until it is scanned or ctx ends.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.QROut == nil {
		opts.QROut = os.Stderr
	}
	if opts.DeviceName != "" {
		store.SetOSInfo(opts.DeviceName, [3]uint32{1, 0, 0})
	}
	if err := os.MkdirAll(opts.SessionPath, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	dbPath := filepath.Join(opts.SessionPath, "session.db")
	container, err := sqlstore.New(ctx, "sqlite3", "file:"+dbPath+"?_foreign_keys=on", waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("open whatsapp session store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load whatsapp device: %w", err)
	}

	c := &Client{
		wac:       whatsmeow.NewClient(device, waLog.Noop),
		logger:    opts.Logger,
		connState: StateConnecting,
	}
	c.registerConnectionEvents()

	if c.wac.Store.ID == nil {
		if err := c.pair(ctx, opts); err != nil {
			return nil, err
		}
		return c, nil
	}

	if err := c.wac.Connect(); err != nil {
		return nil, fmt.Errorf("connect whatsapp: %w", err)
	}
	if err := c.waitConnected(ctx, 30*time.Second); err != nil {
		c.wac.Disconnect()
		return nil, err
	}
	c.logger.Info("connected to WhatsApp", "jid", c.JID().String())
	return c, nil
}

func (c *Client) pair(ctx context.Context, opts Options) error {
	qrChan, err := c.wac.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get qr channel: %w", err)
	}
	if err := c.wac.Connect(); err != nil {
		return fmt.Errorf("connect whatsapp: %w", err)
	}

	for evt := range qrChan {
		switch evt.Event {
		case "code":
			if err := writeQR(opts.QROut, opts.QRFile, evt.Code); err != nil {
				c.logger.Warn("render qr code", "error", err)
			}
		case "success":
			c.logger.Info("whatsapp device paired")
			// Best effort: the Connected event may still be on its way.
			_ = c.waitConnected(ctx, 30*time.Second)
			return nil
		default:
			if evt.Error != nil {
				return fmt.Errorf("whatsapp pairing: %w", evt.Error)
			}
			if evt.Event == "timeout" {
				return errors.New("whatsapp pairing timed out")
			}
		}
	}
	return errors.New("whatsapp pairing ended without success")
}

// writeQR prints code as a scannable QR block and optionally saves a PNG.
func writeQR(out io.Writer, pngPath, code string) error {
	q, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}
	fmt.Fprintln(out, "Scan with WhatsApp > Settings > Linked Devices > Link a Device:")
	fmt.Fprintln(out, q.ToSmallString(false))
	if pngPath != "" {
		if err := q.WriteFile(512, pngPath); err != nil {
			return fmt.Errorf("write qr png: %w", err)
		}
		fmt.Fprintf(out, "QR code also saved to %s\n", pngPath)
	}
	return nil
}

func (c *Client) waitConnected(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for !c.wac.IsConnected() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("whatsapp connection timed out after %s", timeout)
		case <-tick.C:
		}
	}
	return nil
}

// registerConnectionEvents sets up whatsmeow event handlers for connection lifecycle.
func (c *Client) registerConnectionEvents() {
	c.wac.AddEventHandler(func(evt interface{}) {
		switch evt.(type) {
		case *events.Connected:
			c.setState(StateConnected)
			// Without "available" presence WhatsApp treats the linked device
			// as offline and ignores typing indicators and read receipts.
			_ = c.wac.SendPresence(context.Background(), types.PresenceAvailable)
		case *events.Disconnected:
			// whatsmeow reconnects on its own; Connected fires when back.
			if c.State() != StateLoggedOut {
				c.setState(StateReconnecting)
			}
		case *events.KeepAliveTimeout:
			if c.State() == StateConnected {
				c.setState(StateReconnecting)
			}
		case *events.KeepAliveRestored:
			c.setState(StateConnected)
		case *events.LoggedOut, *events.StreamReplaced:
			c.setState(StateLoggedOut)
		}
	})
}

// OnConnectionEvent registers a handler for connection state changes.
func (c *Client) OnConnectionEvent(handler ConnectionEventHandler) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.onConnEvent = handler
}

func (c *Client) setState(state ConnectionState) {
	c.connMu.Lock()
	old := c.connState
	c.connState = state
	handler := c.onConnEvent
	c.connMu.Unlock()

	if old != state {
		c.logger.Info("whatsapp connection", "from", old.String(), "to", state.String())
		if handler != nil {
			handler(state)
		}
	}
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connState
}

// Disconnect closes the WhatsApp connection.
func (c *Client) Disconnect() {
	if c.wac != nil {
		c.wac.Disconnect()
	}
}

// IsConnected returns whether the client is currently connected.
func (c *Client) IsConnected() bool {
	return c.wac != nil && c.wac.IsConnected()
}

// JID returns the account's JID, or the zero JID before pairing.
func (c *Client) JID() types.JID {
	if c.wac.Store.ID == nil {
		return types.JID{}
	}
	return *c.wac.Store.ID
}
