package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leandrotocalini/boardroom/internal/advisor"
	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/render"
)

var plainOutput bool

var askCmd = &cobra.Command{
	Use:   "ask <agent> <message...>",
	Short: "Ask one advisor (cto, cmo, cfo, architect)",
	Example: `  boardroom idea "A marketplace for private tutors"
  boardroom ask cfo "How should we price the first year?"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := agent.Parse(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		r, err := a.svc.Ask(cmd.Context(), cliSession(), id, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		printReply(cmd.OutOrStdout(), r)
		return nil
	},
}

var boardCmd = &cobra.Command{
	Use:   "board <message...>",
	Short: "Ask every advisor at once",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		replies, err := a.svc.Board(cmd.Context(), cliSession(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		for _, r := range replies {
			printReply(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

var ideaCmd = &cobra.Command{
	Use:   "idea [description...]",
	Short: "Show or set the startup idea",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		if len(args) == 0 {
			idea, err := a.svc.Idea(cmd.Context(), cliSession())
			if err != nil {
				return err
			}
			if idea == "" {
				return agent.ErrNoIdea
			}
			fmt.Fprintln(out, idea)
			return nil
		}
		if err := a.svc.SetIdea(cmd.Context(), cliSession(), strings.Join(args, " ")); err != nil {
			return err
		}
		fmt.Fprintln(out, "💡 Idea saved.")
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <agent>",
	Short: "Print the conversation with one advisor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := agent.Parse(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		turns, err := a.svc.History(cmd.Context(), cliSession(), id)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(turns) == 0 {
			fmt.Fprintln(out, "No messages yet.")
			return nil
		}
		renderer := newRenderer(out)
		for _, t := range turns {
			if t.Sender == agent.SenderUser {
				fmt.Fprintf(out, "🙋 You (%s)\n%s\n\n", t.Timestamp.Local().Format("Jan 2 15:04"), t.Content)
				continue
			}
			p := agent.ProfileOf(id)
			fmt.Fprintf(out, "%s %s\n%s\n", p.Icon, p.Name, renderer(t.Content))
		}
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the idea and every conversation of the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.svc.Reset(cmd.Context(), cliSession()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "🧹 Session cleared.")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false, "print replies as raw markdown")
}

func printReply(out io.Writer, r advisor.Reply) {
	p := agent.ProfileOf(r.Agent)
	status := ""
	if r.Failed {
		status = " ⚠️"
	}
	fmt.Fprintf(out, "%s %s%s\n%s\n", p.Icon, p.Name, status, newRenderer(out)(r.Turn.Content))
}

// newRenderer returns a markdown renderer for out: styled on a terminal,
// plain ASCII when piped, untouched with --plain.
func newRenderer(out io.Writer) func(string) string {
	if plainOutput {
		return func(s string) string { return s + "\n" }
	}
	width, color := 80, false
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		color = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			width = min(w-4, 120)
		}
	}
	t, err := render.NewTerminal(width, color)
	if err != nil {
		logger.Warn("terminal renderer unavailable", "error", err)
		return func(s string) string { return s + "\n" }
	}
	return t.Render
}
