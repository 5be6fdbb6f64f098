package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAgent is returned for an identity outside the four-value set.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrNoIdea is returned when a question is asked before the session has
	// a startup idea.
	ErrNoIdea = errors.New("no startup idea set")
)

// ProviderError wraps any transport or API failure of an LLM call.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err (or anything it wraps) is a
// ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
