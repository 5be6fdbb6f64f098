// Package logging provides the slog.Handler used by the boardroom
// binaries: a compact stderr printer that colours output on a terminal,
// keeps the most recent entries in a ring buffer, and streams new entries
// to subscribers (the web log view).
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// ANSI escape codes
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiGray   = "\033[90m"
)

// Entry is one recorded log line.
type Entry struct {
	Time    time.Time  `json:"time"`
	Level   slog.Level `json:"level"`
	Message string     `json:"message"` // message followed by key=value attrs
}

// sink is shared by a handler and every handler derived from it through
// WithAttrs/WithGroup.
type sink struct {
	out   io.Writer
	color bool

	mu      sync.Mutex
	entries []Entry
	maxSize int

	// Subscribers for real-time log streaming
	subMu sync.Mutex
	subs  map[chan Entry]struct{}
}

// Handler implements slog.Handler.
type Handler struct {
	sink   *sink
	level  slog.Leveler
	prefix string // pre-rendered attrs from WithAttrs
	group  string
}

// Option configures a Handler.
type Option func(*Handler)

// WithWriter replaces stderr as the output. Colour is disabled unless the
// writer is a terminal.
func WithWriter(w io.Writer) Option {
	return func(h *Handler) {
		h.sink.out = w
		h.sink.color = isTerminal(w)
	}
}

// WithLevel sets the minimum level printed and recorded.
func WithLevel(l slog.Leveler) Option {
	return func(h *Handler) {
		h.level = l
	}
}

// New creates a handler that keeps the last maxSize entries.
func New(maxSize int, opts ...Option) *Handler {
	h := &Handler{
		sink: &sink{
			out:     os.Stderr,
			color:   isTerminal(os.Stderr),
			entries: make([]Entry, 0, maxSize),
			maxSize: maxSize,
			subs:    make(map[chan Entry]struct{}),
		},
		level: slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	b.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})

	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	entry := Entry{Time: t, Level: r.Level, Message: b.String()}
	h.sink.record(entry)
	return h.sink.print(entry)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, a := range attrs {
		writeAttr(&b, h.group, a)
	}
	cp := *h
	cp.prefix = b.String()
	return &cp
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	if cp.group != "" {
		cp.group += "." + name
	} else {
		cp.group = name
	}
	return &cp
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, key, ga)
		}
		return
	}
	val := a.Value.String()
	if strings.ContainsAny(val, " \t\n\"") {
		val = fmt.Sprintf("%q", val)
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(val)
}

func (s *sink) record(entry Entry) {
	// Store in ring buffer
	s.mu.Lock()
	if s.maxSize > 0 {
		if len(s.entries) >= s.maxSize {
			s.entries = s.entries[1:]
		}
		s.entries = append(s.entries, entry)
	}
	s.mu.Unlock()

	// Notify subscribers (non-blocking)
	s.subMu.Lock()
	for ch := range s.subs {
		select {
		case ch <- entry:
		default:
		}
	}
	s.subMu.Unlock()
}

func (s *sink) print(entry Entry) error {
	ts := entry.Time.Format("15:04:05")
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.color {
		_, err := fmt.Fprintf(s.out, "%s %s %s\n", ts, entry.Level.String(), entry.Message)
		return err
	}

	msg := entry.Message
	switch {
	case entry.Level >= slog.LevelError:
		msg = ansiBold + ansiRed + msg + ansiReset
	case entry.Level >= slog.LevelWarn:
		msg = ansiYellow + msg + ansiReset
	case entry.Level < slog.LevelInfo:
		msg = ansiDim + msg + ansiReset
	}
	_, err := fmt.Fprintf(s.out, "%s %s\n", ansiGray+ts+ansiReset, msg)
	return err
}

// Entries returns a copy of all stored log entries.
func (h *Handler) Entries() []Entry {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	cp := make([]Entry, len(h.sink.entries))
	copy(cp, h.sink.entries)
	return cp
}

// Subscribe returns a channel that receives new log entries in real time.
// Entries are dropped for a subscriber that falls behind.
func (h *Handler) Subscribe() chan Entry {
	ch := make(chan Entry, 64)
	h.sink.subMu.Lock()
	h.sink.subs[ch] = struct{}{}
	h.sink.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel.
func (h *Handler) Unsubscribe(ch chan Entry) {
	h.sink.subMu.Lock()
	delete(h.sink.subs, ch)
	h.sink.subMu.Unlock()
	close(ch)
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return l, nil
}
