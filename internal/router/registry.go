// Package router fans chat messages out to one worker goroutine per chat and
// scrubs credentials from outbound replies.
package router

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/leandrotocalini/boardroom/internal/messenger"
)

const (
	// defaultInactivityTimeout is how long a chat worker lives without messages.
	defaultInactivityTimeout = 5 * time.Minute

	// defaultInboxSize is the buffered channel capacity per chat worker.
	defaultInboxSize = 16
)

// Handler processes a single message. ctx is cancelled when the registry is
// closed and its grace period runs out.
type Handler func(ctx context.Context, msg messenger.Message)

// SessionKey is the conversation key of the chat a message arrived in.
func SessionKey(msg messenger.Message) string {
	return msg.Backend + ":" + msg.Chat
}

// Registry manages goroutine-per-chat workers. Messages of one chat are
// handled in arrival order; different chats run concurrently, up to the
// configured limit. Workers exit after an inactivity timeout and respawn on
// the next message.
type Registry struct {
	mu      sync.Mutex
	workers map[string]*chatWorker
	closed  bool

	handler Handler
	logger  *slog.Logger

	inactivityTimeout time.Duration
	inboxSize         int
	slots             chan struct{} // nil means unlimited

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the registry.
type Option func(*Registry)

// WithInactivityTimeout sets the worker inactivity timeout.
func WithInactivityTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.inactivityTimeout = d
	}
}

// WithInboxSize sets the buffered channel capacity per worker.
func WithInboxSize(n int) Option {
	return func(r *Registry) {
		r.inboxSize = n
	}
}

// WithMaxConcurrent caps how many chats are handled at the same time.
// Zero or less means no cap.
func WithMaxConcurrent(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.slots = make(chan struct{}, n)
		} else {
			r.slots = nil
		}
	}
}

// WithLogger sets the logger for the registry.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New creates a registry that hands every dispatched message to handler.
func New(handler Handler, opts ...Option) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		workers:           make(map[string]*chatWorker),
		handler:           handler,
		logger:            slog.Default(),
		inactivityTimeout: defaultInactivityTimeout,
		inboxSize:         defaultInboxSize,
		ctx:               ctx,
		cancel:            cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch queues msg on its chat's worker, spawning the worker if needed.
// It reports false when the message was dropped because the registry is
// closed or the chat's inbox is full.
func (r *Registry) Dispatch(msg messenger.Message) bool {
	key := SessionKey(msg)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	w, ok := r.workers[key]
	if !ok {
		w = r.spawnLocked(key)
	}

	select {
	case w.inbox <- msg:
		return true
	default:
		r.logger.Warn("chat worker inbox full, dropping message",
			"chat", key,
			"message_id", msg.ID,
		)
		return false
	}
}

// ActiveChats returns the number of running chat workers.
func (r *Registry) ActiveChats() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// Close stops accepting messages and waits for workers to drain their
// inboxes. If ctx ends first, in-flight handlers are cancelled and ctx's
// error is returned.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		for key, w := range r.workers {
			close(w.inbox)
			delete(r.workers, key)
		}
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}

func (r *Registry) spawnLocked(key string) *chatWorker {
	w := &chatWorker{
		key:   key,
		inbox: make(chan messenger.Message, r.inboxSize),
		reg:   r,
	}
	r.workers[key] = w
	r.wg.Add(1)
	go w.run()
	r.logger.Debug("chat worker spawned", "chat", key)
	return w
}

// retire removes an idle worker. It refuses while messages are queued so
// that nothing dispatched before the timeout is lost.
func (r *Registry) retire(w *chatWorker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.workers[w.key] != w {
		// Closed: drain until the inbox is closed.
		return false
	}
	if len(w.inbox) > 0 {
		return false
	}
	delete(r.workers, w.key)
	return true
}

// chatWorker processes the messages of a single chat.
type chatWorker struct {
	key   string
	inbox chan messenger.Message
	reg   *Registry
}

func (w *chatWorker) run() {
	defer w.reg.wg.Done()

	timer := time.NewTimer(w.reg.inactivityTimeout)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-w.inbox:
			if !ok {
				return
			}
			w.process(msg)
			timer.Reset(w.reg.inactivityTimeout)

		case <-timer.C:
			if w.reg.retire(w) {
				w.reg.logger.Debug("chat worker exiting due to inactivity", "chat", w.key)
				return
			}
			timer.Reset(w.reg.inactivityTimeout)
		}
	}
}

// process runs the handler, holding a concurrency slot when a cap is set.
func (w *chatWorker) process(msg messenger.Message) {
	ctx := w.reg.ctx
	if slots := w.reg.slots; slots != nil {
		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
		case <-ctx.Done():
			return
		}
	}

	defer func() {
		if r := recover(); r != nil {
			w.reg.logger.Error("panic in message handler",
				"chat", w.key,
				"message_id", msg.ID,
				"panic", r,
			)
		}
	}()

	w.reg.handler(ctx, msg)
}
