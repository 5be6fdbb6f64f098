package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/bot"
	"github.com/leandrotocalini/boardroom/internal/messenger"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the advisors in the terminal",
	Long: `Interactive session. Commands start with "/": /idea, /cto, /cmo, /cfo,
/architect, /use, /board, /reset, /help. Plain lines go to the active
advisor. Ctrl+D or /quit exits.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

const chatPrefix = "/"

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	in, out, restore, err := chatIO(cmd)
	if err != nil {
		return err
	}
	defer restore()

	sender := &terminalSender{out: out, render: newRenderer(cmd.OutOrStdout())}
	b := bot.New(a.svc, sender,
		bot.WithPrefix(chatPrefix),
		bot.WithDefaultAgent(agent.Identity(a.cfg.Project.Bot.DefaultAgent)),
		bot.WithLogger(logger),
	)

	idea, err := a.svc.Idea(ctx, cliSession())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "🏛️  Boardroom %s, provider %s. Type /help for commands.\n", version, a.cfg.Project.Provider)
	if idea == "" {
		fmt.Fprintln(out, "Start with /idea <describe your startup>.")
	} else {
		fmt.Fprintf(out, "💡 %s\n", idea)
	}

	for {
		line, err := in()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case chatPrefix + "quit", chatPrefix + "exit":
			return nil
		}
		b.Handle(ctx, messenger.Message{Backend: "cli", Chat: session, Content: line})
		if ctx.Err() != nil {
			return nil
		}
	}
}

// chatIO returns a line reader and the writer for replies. On a terminal
// x/term provides line editing and history; otherwise stdin is read line by
// line.
func chatIO(cmd *cobra.Command) (func() (string, error), io.Writer, func(), error) {
	stdin, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(stdin.Fd())) {
		sc := bufio.NewScanner(cmd.InOrStdin())
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		read := func() (string, error) {
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return "", err
				}
				return "", io.EOF
			}
			return sc.Text(), nil
		}
		return read, cmd.OutOrStdout(), func() {}, nil
	}

	fd := int(stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("raw mode: %w", err)
	}
	rw := struct {
		io.Reader
		io.Writer
	}{stdin, cmd.OutOrStdout()}
	t := term.NewTerminal(rw, "you › ")
	if w, h, err := term.GetSize(fd); err == nil {
		t.SetSize(w, h)
	}
	return t.ReadLine, t, func() { term.Restore(fd, oldState) }, nil
}

// terminalSender prints bot replies, rendering advisor markdown.
type terminalSender struct {
	mu     sync.Mutex
	out    io.Writer
	render func(string) string
}

func (s *terminalSender) Send(_ context.Context, m messenger.Outgoing) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.As == nil {
		_, err := fmt.Fprintln(s.out, m.Text)
		return "", err
	}
	_, err := fmt.Fprintf(s.out, "%s %s\n%s", m.As.Icon, m.As.Name, s.render(m.Text))
	return "", err
}

func (s *terminalSender) SetTyping(_ context.Context, _ string, on bool) error {
	if !on {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.out, "… thinking")
	return err
}
