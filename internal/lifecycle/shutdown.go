// Package lifecycle runs the boardroom server until it is asked to stop and
// then winds it down: HTTP server, chat backends, chat workers and storage,
// in the order they were registered.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const defaultGracePeriod = 10 * time.Second

// Hook is called during shutdown. Name is for logging.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Manager coordinates signal handling and ordered shutdown hooks.
type Manager struct {
	grace   time.Duration
	signals []os.Signal
	logger  *slog.Logger
	started time.Time

	mu       sync.Mutex
	hooks    []Hook
	shutdown bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithGracePeriod bounds how long shutdown hooks may take in total.
func WithGracePeriod(d time.Duration) Option {
	return func(m *Manager) {
		m.grace = d
	}
}

// WithSignals replaces the signals that trigger shutdown (SIGINT, SIGTERM).
func WithSignals(sig ...os.Signal) Option {
	return func(m *Manager) {
		m.signals = sig
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// New creates a lifecycle manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		grace:   defaultGracePeriod,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		logger:  slog.Default(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnShutdown registers a hook. Hooks run in registration order.
func (m *Manager) OnShutdown(name string, fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, Hook{Name: name, Fn: fn})
}

// Run calls mainFn with a context that is cancelled on a shutdown signal or
// when ctx ends, then runs the shutdown hooks. A main function that stops
// because of that cancellation is a clean exit. Other main errors and hook
// errors are returned.
func (m *Manager) Run(ctx context.Context, mainFn func(ctx context.Context) error) error {
	runCtx, stop := signal.NotifyContext(ctx, m.signals...)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- mainFn(runCtx)
	}()

	var mainErr error
	select {
	case <-runCtx.Done():
		m.logger.Info("shutting down",
			"reason", context.Cause(runCtx),
			"uptime", m.Uptime().Round(time.Second).String(),
		)
		stop()
		select {
		case mainErr = <-errCh:
		case <-time.After(m.grace):
			m.logger.Warn("main function did not stop within grace period")
		}
		if errors.Is(mainErr, context.Canceled) {
			mainErr = nil
		}

	case mainErr = <-errCh:
		if mainErr != nil {
			m.logger.Error("main function failed", "error", mainErr)
		}
	}

	hookCtx, cancel := context.WithTimeout(context.Background(), m.grace)
	defer cancel()
	return errors.Join(mainErr, m.Shutdown(hookCtx))
}

// Shutdown runs every hook once, even when an earlier one fails, and returns
// the joined hook errors. Later calls do nothing.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	hooks := make([]Hook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	var errs []error
	for _, hook := range hooks {
		m.logger.Debug("running shutdown hook", "name", hook.Name)
		if err := hook.Fn(ctx); err != nil {
			m.logger.Error("shutdown hook failed", "name", hook.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", hook.Name, err))
		}
	}

	m.logger.Info("shutdown complete", "uptime", m.Uptime().Round(time.Second).String())
	return errors.Join(errs...)
}

// Uptime returns how long the manager has existed.
func (m *Manager) Uptime() time.Duration {
	return time.Since(m.started)
}
