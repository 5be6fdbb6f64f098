// Package prompt builds the prompt sent to the language model for each
// advisor persona.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leandrotocalini/boardroom/internal/agent"
)

var (
	ErrEmptyIdea    = errors.New("startup idea is empty")
	ErrEmptyMessage = errors.New("user message is empty")
)

// Request is the transient input of Build.
type Request struct {
	Agent       agent.Identity
	StartupIdea string
	UserMessage string
}

// Build assembles the prompt for a request.
// Pure function: same inputs → same output.
//
// The idea and the message are embedded verbatim; blank values are rejected
// rather than trimmed.
func Build(req Request) (string, error) {
	p, ok := personas[req.Agent]
	if !ok {
		return "", fmt.Errorf("build prompt: %w: %q", agent.ErrUnknownAgent, req.Agent)
	}
	if strings.TrimSpace(req.StartupIdea) == "" {
		return "", fmt.Errorf("build prompt: %w", ErrEmptyIdea)
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		return "", fmt.Errorf("build prompt: %w", ErrEmptyMessage)
	}
	return p.render(req.StartupIdea, req.UserMessage), nil
}

// BuildPrompt is shorthand for Build with positional arguments.
func BuildPrompt(id agent.Identity, startupIdea, userMessage string) (string, error) {
	return Build(Request{Agent: id, StartupIdea: startupIdea, UserMessage: userMessage})
}

func (p persona) render(idea, message string) string {
	var b strings.Builder

	b.WriteString(p.preamble)
	b.WriteString("\n\n")

	if p.tree {
		b.WriteString("Based on the following startup idea, generate a logical and scalable folder structure. Present it in a clear, tree-like format.\n\n")
		fmt.Fprintf(&b, "Startup Idea: %s\n\n", idea)
		fmt.Fprintf(&b, "User question: \"%s\"\n\n", message)
		b.WriteString(treeInstructions)
		b.WriteString("\n\n")
		writeFocus(&b, "Focus on:", p.focus)
		b.WriteString("\n")
		b.WriteString(p.closing)
		return b.String()
	}

	fmt.Fprintf(&b, "The user's startup idea is:\n\"%s\"\n\n", idea)
	fmt.Fprintf(&b, "Please respond as their %s. Be helpful, specific, and actionable in your %s advice. Focus on:\n", p.role, p.domain)
	writeFocus(&b, "", p.focus)
	fmt.Fprintf(&b, "\nUser question: \"%s\"\n\n", message)
	b.WriteString(p.closing)
	return b.String()
}

func writeFocus(b *strings.Builder, title string, focus []string) {
	if title != "" {
		b.WriteString(title)
		b.WriteString("\n")
	}
	for _, f := range focus {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
}
