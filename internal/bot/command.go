// Package bot turns chat messages into advisor conversations: it parses the
// !commands, tracks each chat's active advisor and posts the replies back
// under the advisors' names.
package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/router"
)

// Kind identifies a chat command.
type Kind int

const (
	KindChat  Kind = iota // plain text for the active advisor
	KindHelp              // !help
	KindIdea              // !idea [text]
	KindAsk               // !cto <question>, or "@cto <question>"
	KindUse               // !use <agent>
	KindBoard             // !board <question>
	KindReset             // !reset
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingText    = errors.New("missing text")
)

// Command is a parsed chat message.
type Command struct {
	Kind  Kind
	Agent agent.Identity // KindAsk and KindUse
	Text  string
}

// Parse interprets text. Messages that do not start with prefix are plain
// chat unless they open with an @advisor mention.
func Parse(prefix, text string) (Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, prefix) {
		if id, rest, ok := router.Mention(text); ok {
			if rest == "" {
				return Command{}, fmt.Errorf("@%s: %w", id, ErrMissingText)
			}
			return Command{Kind: KindAsk, Agent: id, Text: rest}, nil
		}
		return Command{Kind: KindChat, Text: text}, nil
	}

	name, rest, _ := strings.Cut(strings.TrimPrefix(text, prefix), " ")
	name = strings.ToLower(name)
	rest = strings.TrimSpace(rest)

	switch name {
	case "help":
		return Command{Kind: KindHelp}, nil
	case "idea":
		return Command{Kind: KindIdea, Text: rest}, nil
	case "reset":
		return Command{Kind: KindReset}, nil
	case "board":
		if rest == "" {
			return Command{}, fmt.Errorf("%sboard: %w", prefix, ErrMissingText)
		}
		return Command{Kind: KindBoard, Text: rest}, nil
	case "use":
		id, err := agent.Parse(rest)
		if err != nil {
			return Command{}, fmt.Errorf("%suse: %w", prefix, err)
		}
		return Command{Kind: KindUse, Agent: id}, nil
	}

	if id, err := agent.Parse(name); err == nil {
		if rest == "" {
			return Command{}, fmt.Errorf("%s%s: %w", prefix, id, ErrMissingText)
		}
		return Command{Kind: KindAsk, Agent: id, Text: rest}, nil
	}
	return Command{}, fmt.Errorf("%w: %s%s", ErrUnknownCommand, prefix, name)
}

// helpText lists the commands with the configured prefix.
func helpText(prefix string) string {
	var b strings.Builder
	b.WriteString("*Boardroom commands*\n\n")
	fmt.Fprintf(&b, "%sidea <description> - set your startup idea (%sidea alone shows it)\n", prefix, prefix)
	for _, id := range agent.All() {
		p := agent.ProfileOf(id)
		fmt.Fprintf(&b, "%s%s <question> - ask %s %s\n", prefix, id, p.Icon, p.Name)
	}
	fmt.Fprintf(&b, "%suse <advisor> - pick who answers plain messages\n", prefix)
	fmt.Fprintf(&b, "%sboard <question> - ask every advisor at once\n", prefix)
	fmt.Fprintf(&b, "%sreset - forget the idea and all conversations\n", prefix)
	fmt.Fprintf(&b, "%shelp - show this message\n\n", prefix)
	b.WriteString("Start a message with @cto, @cmo, @cfo or @architect to address one advisor.")
	return b.String()
}
