// Package provider holds what the LLM clients share: error
// classification, retry with exponential backoff and jitter, and per-model
// circuit breakers.
package provider

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrorType classifies LLM API errors for appropriate retry/handling strategy.
type ErrorType int

const (
	ErrRateLimit          ErrorType = iota // HTTP 429
	ErrProviderOverloaded                  // HTTP 502, 503, open breaker
	ErrContextTooLong                      // HTTP 400 + context_length_exceeded
	ErrContentFiltered                     // HTTP 400 + content_filter, blocked prompt
	ErrAuth                                // HTTP 401, 403
	ErrMalformedResponse                   // JSON parse failure, empty reply
	ErrTimeout                             // Request deadline exceeded, network failure
	ErrUnknown                             // Anything else
)

// String returns the human-readable name of the error type.
func (e ErrorType) String() string {
	switch e {
	case ErrRateLimit:
		return "rate_limit"
	case ErrProviderOverloaded:
		return "provider_overloaded"
	case ErrContextTooLong:
		return "context_length_exceeded"
	case ErrContentFiltered:
		return "content_filter"
	case ErrAuth:
		return "auth_error"
	case ErrMalformedResponse:
		return "malformed_response"
	case ErrTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps an API error with its classification and metadata.
type ClassifiedError struct {
	Provider   string
	Type       ErrorType
	StatusCode int
	Message    string
	RetryAfter time.Duration // Only set for rate limit errors
}

func (e *ClassifiedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s %s (HTTP %d): %s (retry after %s)", e.Provider, e.Type, e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("%s %s (HTTP %d): %s", e.Provider, e.Type, e.StatusCode, e.Message)
}

// Retryable returns true if this error type supports automatic retry.
func (e *ClassifiedError) Retryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrProviderOverloaded, ErrTimeout, ErrMalformedResponse, ErrContextTooLong:
		return true
	default:
		return false
	}
}

// MaxRetries returns the maximum number of retries for this error type.
func (e *ClassifiedError) MaxRetries() int {
	switch e.Type {
	case ErrRateLimit:
		return 5
	case ErrProviderOverloaded:
		return 5
	case ErrContextTooLong:
		return 1
	case ErrMalformedResponse:
		return 3
	case ErrTimeout:
		return 1
	default:
		return 0
	}
}

// countsAsFailure reports whether err should move a circuit breaker towards
// open. Client-side problems (auth, content filter, prompt too long) are
// not provider failures.
func countsAsFailure(err error) bool {
	var classified *ClassifiedError
	if !errors.As(err, &classified) {
		return true
	}
	switch classified.Type {
	case ErrAuth, ErrContentFiltered, ErrContextTooLong:
		return false
	default:
		return true
	}
}

// Classify maps an HTTP status and error text to a ClassifiedError.
func Classify(providerName string, status int, code, msg string, retryAfter time.Duration) *ClassifiedError {
	e := &ClassifiedError{Provider: providerName, StatusCode: status, Message: msg}
	switch {
	case status == 429:
		e.Type = ErrRateLimit
		e.RetryAfter = retryAfter
	case status == 502 || status == 503:
		e.Type = ErrProviderOverloaded
	case status == 401 || status == 403:
		e.Type = ErrAuth
	case status == 400:
		e.Type = classifyBadRequest(code + " " + msg)
	case status == 504:
		e.Type = ErrTimeout
	default:
		e.Type = ErrUnknown
	}
	return e
}

// classifyBadRequest further classifies HTTP 400 errors by examining the
// error code and message.
func classifyBadRequest(text string) ErrorType {
	combined := strings.ToLower(text)

	if strings.Contains(combined, "context_length_exceeded") ||
		strings.Contains(combined, "maximum context length") ||
		strings.Contains(combined, "too many tokens") {
		return ErrContextTooLong
	}

	if strings.Contains(combined, "content_filter") ||
		strings.Contains(combined, "content_policy") ||
		strings.Contains(combined, "flagged") {
		return ErrContentFiltered
	}

	return ErrUnknown
}

// ParseRetryAfter parses the Retry-After header value as seconds.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}
