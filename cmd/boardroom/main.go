// Command boardroom runs the AI co-founder advisors: a web app, Slack and
// WhatsApp bots, and terminal commands.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leandrotocalini/boardroom/internal/advisor"
	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/budget"
	"github.com/leandrotocalini/boardroom/internal/config"
	"github.com/leandrotocalini/boardroom/internal/conversation"
	"github.com/leandrotocalini/boardroom/internal/logging"
	"github.com/leandrotocalini/boardroom/internal/provider"
	"github.com/leandrotocalini/boardroom/internal/provider/gemini"
	"github.com/leandrotocalini/boardroom/internal/provider/openrouter"
	"github.com/leandrotocalini/boardroom/internal/store"
)

const version = "0.3.0"

// logBufferSize is how many log entries the web log view can show.
const logBufferSize = 500

var (
	workDir   string
	globalDir string
	logLevel  string
	session   string

	logs   *logging.Handler
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "boardroom",
	Short: "Boardroom - AI co-founders for your startup idea",
	Long: `Boardroom gives your startup idea four AI advisors:

  🧠 CTO Bot        tech stacks, MVPs, architecture and roadmaps
  📣 CMO Bot        branding, growth and user acquisition
  📈 CFO Bot        pricing, monetization and fundraising
  🌳 Architect Bot  folder structures for web and mobile apps

Run "boardroom serve" for the web app and chat bots, or "boardroom chat"
for a terminal session.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logs = logging.New(logBufferSize, logging.WithWriter(cmd.ErrOrStderr()), logging.WithLevel(level))
		logger = slog.New(logs)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", ".", "project directory (searched upwards for .boardroom/)")
	rootCmd.PersistentFlags().StringVar(&globalDir, "global-dir", "", "global config directory (default ~/.boardroom)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&session, "session", "s", "default", "conversation session for terminal commands")

	rootCmd.AddCommand(
		serveCmd,
		askCmd,
		chatCmd,
		boardCmd,
		ideaCmd,
		historyCmd,
		resetCmd,
		usageCmd,
		promptCmd,
		formatCmd,
		validateCmd,
		initCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is the wired advisor service plus what it was built from.
type app struct {
	cfg      *config.Config
	svc      *advisor.Service
	usage    *budget.Tracker
	provider string
	close    func() error
}

// newApp loads the configuration and wires provider, storage and service.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(workDir, globalDir)
	if err != nil {
		return nil, err
	}

	usage := budget.New(
		budget.WithDailyLimit(cfg.Project.Limits.DailyBudgetUSD),
		budget.WithFile(config.UsagePath(cfg.Root)),
		budget.WithLogger(logger),
	)
	if err := usage.Load(); err != nil {
		logger.Warn("ignoring usage file", "error", err)
	}

	gen, err := newGenerator(ctx, cfg, usage.Observe)
	if err != nil {
		return nil, err
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	svc := advisor.New(gen, st,
		advisor.WithLogger(logger),
		advisor.WithModels(cfg.Project.Models.For),
		advisor.WithTimeout(time.Duration(cfg.Project.Limits.RequestTimeoutSecs)*time.Second),
		advisor.WithBudget(usage),
	)
	return &app{cfg: cfg, svc: svc, usage: usage, provider: cfg.Project.Provider, close: closeStore}, nil
}

func newGenerator(ctx context.Context, cfg *config.Config, onUsage provider.UsageFunc) (agent.Generator, error) {
	switch cfg.Project.Provider {
	case config.ProviderOpenRouter:
		return openrouter.NewClient(cfg.Global.OpenRouter.APIKey,
			openrouter.WithLogger(logger),
			openrouter.WithUsageFunc(onUsage),
		), nil
	default:
		c, err := gemini.New(ctx, cfg.Global.Gemini.APIKey,
			gemini.WithLogger(logger),
			gemini.WithUsageFunc(onUsage),
		)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return c, nil
	}
}

// openStore opens the configured storage and returns its close function.
func openStore(cfg *config.Config) (advisor.Store, func() error, error) {
	path := cfg.StoragePath()
	if cfg.Project.Storage.Driver == config.StorageFile {
		st := conversation.NewFileStore(path, conversation.WithLogger(logger))
		return st, func() error { return nil }, nil
	}
	if err := os.MkdirAll(config.Dir(cfg.Root), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return st, st.Close, nil
}

// cliSession is the conversation key of terminal commands.
func cliSession() string {
	return "cli:" + session
}
