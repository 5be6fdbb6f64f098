package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/budget"
	"github.com/leandrotocalini/boardroom/internal/config"
	"github.com/leandrotocalini/boardroom/internal/format"
	"github.com/leandrotocalini/boardroom/internal/prompt"
)

var (
	promptIdea string
	initForce  bool
	usageDays  int
)

var promptCmd = &cobra.Command{
	Use:   "prompt <agent> <message...>",
	Short: "Print the prompt an advisor would be sent (no LLM call)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := agent.Parse(args[0])
		if err != nil {
			return err
		}
		p, err := prompt.BuildPrompt(id, promptIdea, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

var formatCmd = &cobra.Command{
	Use:   "format <agent>",
	Short: "Format a raw model reply from stdin as that advisor would (no LLM call)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := agent.Parse(args[0])
		if err != nil {
			return err
		}
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		_, err = io.WriteString(cmd.OutOrStdout(), format.Response(string(raw), id))
		return err
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and print the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(workDir, globalDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "project root:  %s\n", cfg.Root)
		fmt.Fprintf(out, "provider:      %s\n", cfg.Project.Provider)
		for _, id := range agent.All() {
			fmt.Fprintf(out, "model %-9s %s\n", string(id)+":", cfg.Project.Models.For(id))
		}
		fmt.Fprintf(out, "storage:       %s (%s)\n", cfg.Project.Storage.Driver, cfg.StoragePath())
		fmt.Fprintf(out, "web:           http://%s\n", cfg.Project.Web.Addr)
		fmt.Fprintf(out, "slack:         %s\n", enabled(cfg.Project.Slack.ChannelID != ""))
		fmt.Fprintf(out, "whatsapp:      %s\n", enabled(cfg.Project.WhatsApp.Enabled))
		fmt.Fprintf(out, "daily budget:  %s\n", budgetLimit(cfg.Project.Limits.DailyBudgetUSD))
		fmt.Fprintln(out, "✅ configuration is valid")
		return nil
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show token usage and estimated spend per day",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(workDir, globalDir)
		if err != nil {
			return err
		}
		limit := cfg.Project.Limits.DailyBudgetUSD
		tr := budget.New(budget.WithFile(config.UsagePath(cfg.Root)), budget.WithDailyLimit(limit))
		if err := tr.Load(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		days := tr.Days()
		if len(days) == 0 {
			fmt.Fprintln(out, "No usage recorded yet.")
			return nil
		}
		if usageDays > 0 && len(days) > usageDays {
			days = days[:usageDays]
		}
		for _, d := range days {
			fmt.Fprint(out, budget.FormatDay(d, limit))
		}
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .boardroom/config.json in the project directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(workDir)
		if err != nil {
			return err
		}
		if config.Exists(root) && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", filepath.Join(config.Dir(root), "config.json"))
		}
		cfg := config.Default()
		if err := config.SaveProject(root, &cfg); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✅ wrote %s\n", filepath.Join(config.Dir(root), "config.json"))
		fmt.Fprintln(out, "Put your API key in ~/.boardroom/config.json or set GEMINI_API_KEY.")
		return nil
	},
}

func init() {
	promptCmd.Flags().StringVar(&promptIdea, "idea", "", "startup idea to build the prompt with (required)")
	promptCmd.MarkFlagRequired("idea")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config")
	usageCmd.Flags().IntVar(&usageDays, "days", 7, "number of days to show (0 = all)")
}

func budgetLimit(usd float64) string {
	if usd <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("$%.2f", usd)
}

func enabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
