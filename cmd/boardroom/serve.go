package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/bot"
	"github.com/leandrotocalini/boardroom/internal/config"
	"github.com/leandrotocalini/boardroom/internal/lifecycle"
	"github.com/leandrotocalini/boardroom/internal/messenger"
	"github.com/leandrotocalini/boardroom/internal/router"
	"github.com/leandrotocalini/boardroom/internal/web"
	"github.com/leandrotocalini/boardroom/internal/whatsapp"
)

var (
	serveAddr  string
	serveNoWeb bool
	serveNoBot bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web app and the Slack/WhatsApp bots",
	Long: `Starts the web chat (default http://127.0.0.1:8080) and, when configured,
the Slack bot (slack.channelID plus tokens) and the WhatsApp bot
(whatsapp.enabled). An unpaired WhatsApp device prints a QR code to scan.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides web.addr)")
	serveCmd.Flags().BoolVar(&serveNoWeb, "no-web", false, "do not start the web app")
	serveCmd.Flags().BoolVar(&serveNoBot, "no-bot", false, "do not start the chat bots")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	lc := lifecycle.New(lifecycle.WithLogger(logger))

	var multi *messenger.MultiMessenger
	if !serveNoBot {
		multi = buildMessengers(cmd, a.cfg)
	}

	addr := a.cfg.Project.Web.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	var httpSrv *http.Server
	if !serveNoWeb {
		opts := []web.Option{
			web.WithLogger(logger),
			web.WithLogSource(logs),
			web.WithProvider(a.provider),
			web.WithStatus(a.usage.Status),
		}
		if multi != nil {
			opts = append(opts, web.WithStatus(multi.Status))
		}
		httpSrv = web.New(a.svc, opts...).HTTPServer(addr)
		lc.OnShutdown("http server", httpSrv.Shutdown)
	}

	var registry *router.Registry
	if multi != nil {
		redactor := router.NewRedactor()
		if err := redactor.AddPatterns(a.cfg.Project.Bot.RedactPatterns); err != nil {
			return fmt.Errorf("bot.redactPatterns: %w", err)
		}
		b := bot.New(a.svc, multi,
			bot.WithPrefix(a.cfg.Project.Bot.Prefix),
			bot.WithDefaultAgent(agent.Identity(a.cfg.Project.Bot.DefaultAgent)),
			bot.WithRedactor(redactor),
			bot.WithLogger(logger),
		)
		registry = router.New(b.Handle,
			router.WithMaxConcurrent(a.cfg.Project.Limits.MaxConcurrentChats),
			router.WithLogger(logger),
		)
		multi.OnMessage(func(msg messenger.Message) {
			registry.Dispatch(msg)
		})
		multi.OnConnectionEvent(func(state messenger.ConnectionState) {
			logger.Debug("messenger state changed", "state", state.String())
		})
		lc.OnShutdown("messengers", func(context.Context) error {
			multi.Disconnect()
			return nil
		})
		lc.OnShutdown("chat workers", registry.Close)
	}
	lc.OnShutdown("store", func(context.Context) error { return a.close() })

	return lc.Run(ctx, func(ctx context.Context) error {
		errCh := make(chan error, 1)
		if httpSrv != nil {
			go func() {
				fmt.Fprintf(cmd.OutOrStdout(), "🏛️  Boardroom listening on http://%s\n", addr)
				if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					errCh <- fmt.Errorf("http server: %w", err)
				}
			}()
		}

		// WhatsApp pairing can block on the QR code, so the web app is
		// already up by now.
		if multi != nil {
			if err := multi.Connect(ctx); err != nil {
				return fmt.Errorf("connect messengers: %w", err)
			}
			logger.Info("chat bots connected", "backends", multi.Name())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		}
	})
}

// buildMessengers returns the configured chat backends, or nil when none is.
func buildMessengers(cmd *cobra.Command, cfg *config.Config) *messenger.MultiMessenger {
	var backends []messenger.Messenger

	if cfg.Project.Slack.ChannelID != "" {
		backends = append(backends, messenger.NewSlack(
			cfg.Global.Slack.BotToken,
			cfg.Global.Slack.AppToken,
			messenger.WithSlackChannel(cfg.Project.Slack.ChannelID),
			messenger.WithSlackLogger(logger),
		))
	}

	if cfg.Project.WhatsApp.Enabled {
		backends = append(backends, messenger.NewWhatsApp(whatsapp.Options{
			SessionPath: config.SessionPath(cfg.Root),
			DeviceName:  cfg.Project.WhatsApp.DeviceName,
			QROut:       cmd.OutOrStdout(),
			QRFile:      filepath.Join(config.Dir(cfg.Root), "whatsapp-qr.png"),
			Logger:      logger,
		}, cfg.Project.WhatsApp.GroupJID))
	}

	if len(backends) == 0 {
		return nil
	}
	return messenger.NewMulti(backends...)
}
