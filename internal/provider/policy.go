package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(context.Context, time.Duration)

// Sleep is the production sleep function; it respects context cancellation.
func Sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Settings configures a Policy.
type Settings struct {
	Logger *slog.Logger
	Sleep  SleepFunc // for testing
}

// Policy runs provider calls behind a per-model circuit breaker and retries
// classified, retryable failures with exponential backoff + jitter.
type Policy[T any] struct {
	provider string
	logger   *slog.Logger
	sleepFn  SleepFunc

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[T]
}

// NewPolicy creates a policy for the named provider.
func NewPolicy[T any](providerName string, s Settings) *Policy[T] {
	p := &Policy[T]{
		provider: providerName,
		logger:   s.Logger,
		sleepFn:  s.Sleep,
		breakers: make(map[string]*gobreaker.CircuitBreaker[T]),
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.sleepFn == nil {
		p.sleepFn = Sleep
	}
	return p
}

// Execute calls fn for model. It handles retries and circuit breaking
// transparently.
func (p *Policy[T]) Execute(ctx context.Context, model string, fn func(context.Context) (T, error)) (T, error) {
	cb := p.breaker(model)

	res, err := cb.Execute(func() (T, error) {
		return p.withRetry(ctx, model, fn)
	})
	if err != nil {
		var zero T
		// Wrap gobreaker sentinel errors for clarity.
		if errors.Is(err, gobreaker.ErrOpenState) {
			return zero, &ClassifiedError{
				Provider: p.provider,
				Type:     ErrProviderOverloaded,
				Message:  fmt.Sprintf("circuit breaker open for model %s", model),
			}
		}
		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, &ClassifiedError{
				Provider: p.provider,
				Type:     ErrRateLimit,
				Message:  fmt.Sprintf("circuit breaker half-open, too many probes for model %s", model),
			}
		}
		return zero, err
	}
	return res, nil
}

// withRetry executes fn with retry logic.
func (p *Policy[T]) withRetry(ctx context.Context, model string, fn func(context.Context) (T, error)) (T, error) {
	for attempt := 0; ; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}

		var classified *ClassifiedError
		if !errors.As(err, &classified) {
			// Non-classified error (e.g., context canceled).
			return res, err
		}

		if !classified.Retryable() || attempt >= classified.MaxRetries() {
			return res, classified
		}

		delay := retryDelay(classified, attempt)

		p.logger.Warn("retrying provider request",
			"provider", p.provider,
			"model", model,
			"error_type", classified.Type.String(),
			"attempt", attempt+1,
			"delay", delay,
		)

		p.sleepFn(ctx, delay)
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}
}

// retryDelay calculates the delay before the next retry attempt.
// Uses exponential backoff + jitter. For rate limits, respects Retry-After.
func retryDelay(err *ClassifiedError, attempt int) time.Duration {
	if err.Type == ErrRateLimit && err.RetryAfter > 0 {
		return jitter(err.RetryAfter)
	}

	// Exponential backoff: 1s, 2s, 4s, 8s, 16s
	base := time.Second * time.Duration(1<<uint(attempt))
	if base > 16*time.Second {
		base = 16 * time.Second
	}
	return jitter(base)
}

// jitter applies random jitter: delay * (0.5 + rand.Float64()).
func jitter(d time.Duration) time.Duration {
	factor := 0.5 + rand.Float64() // [0.5, 1.5)
	return time.Duration(float64(d) * factor)
}

// breaker returns the circuit breaker for the given model, creating one if
// it doesn't exist. Per-model breakers isolate failures.
func (p *Policy[T]) breaker(model string) *gobreaker.CircuitBreaker[T] {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cb, ok := p.breakers[model]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        p.provider + "-" + model,
		MaxRequests: 1,                // Allow 1 probe request in half-open state
		Interval:    0,                // Don't clear counts in closed state
		Timeout:     30 * time.Second, // Time to wait before probing after open
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Info("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) {
				return true
			}
			return !countsAsFailure(err)
		},
	})

	p.breakers[model] = cb
	return cb
}
