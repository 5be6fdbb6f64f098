package messenger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/leandrotocalini/boardroom/internal/agent"
)

// slackIcons are the icon emoji advisors post with.
var slackIcons = map[agent.Identity]string{
	agent.CTO:       ":brain:",
	agent.CMO:       ":mega:",
	agent.CFO:       ":chart_with_upwards_trend:",
	agent.Architect: ":deciduous_tree:",
}

// SlackAdapter implements Messenger using Slack's Socket Mode.
type SlackAdapter struct {
	channelID string // only this channel is served when set
	apiURL    string
	logger    *slog.Logger
	recent    *recentIDs

	api    *slack.Client
	sm     *socketmode.Client
	botUID string // resolved on connect
	cancel context.CancelFunc

	connState ConnectionState
	connMu    sync.RWMutex

	handlerMu   sync.RWMutex
	msgHandler  MessageHandler
	connHandler ConnectionHandler
}

// SlackOption configures a SlackAdapter.
type SlackOption func(*SlackAdapter)

// WithSlackLogger sets the structured logger.
func WithSlackLogger(l *slog.Logger) SlackOption {
	return func(s *SlackAdapter) {
		s.logger = l
	}
}

// WithSlackChannel restricts the bot to one channel.
func WithSlackChannel(id string) SlackOption {
	return func(s *SlackAdapter) {
		s.channelID = id
	}
}

// WithSlackAPIURL points the Web API client elsewhere (for testing).
func WithSlackAPIURL(url string) SlackOption {
	return func(s *SlackAdapter) {
		s.apiURL = url
	}
}

// NewSlack creates a Slack messenger. botToken is the xoxb-... token,
// appToken the xapp-... token. Call Connect to start Socket Mode.
func NewSlack(botToken, appToken string, opts ...SlackOption) *SlackAdapter {
	s := &SlackAdapter{
		logger:    slog.Default(),
		recent:    newRecentIDs(recentCapacity, recentTTL, nil),
		connState: StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	apiOpts := []slack.Option{slack.OptionAppLevelToken(appToken)}
	if s.apiURL != "" {
		apiOpts = append(apiOpts, slack.OptionAPIURL(s.apiURL))
	}
	s.api = slack.New(botToken, apiOpts...)
	return s
}

func (s *SlackAdapter) Name() string {
	return "slack"
}

// Connect resolves the bot's user ID and starts the Socket Mode loop in the
// background. The loop stops on Disconnect or when ctx is cancelled.
func (s *SlackAdapter) Connect(ctx context.Context) error {
	auth, err := s.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	s.botUID = auth.UserID

	s.sm = socketmode.New(s.api)
	s.setState(StateConnecting)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.runSocketMode(runCtx)
	go func() {
		if err := s.sm.RunContext(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("slack socket mode stopped", "error", err)
		}
		s.setState(StateDisconnected)
	}()

	return nil
}

func (s *SlackAdapter) runSocketMode(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-s.sm.Events:
			if !ok {
				return
			}
			s.handleSocketEvent(evt)
		}
	}
}

func (s *SlackAdapter) handleSocketEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		s.setState(StateConnecting)

	case socketmode.EventTypeConnected:
		s.setState(StateConnected)

	case socketmode.EventTypeDisconnect:
		s.setState(StateReconnecting)

	case socketmode.EventTypeConnectionError:
		s.logger.Warn("slack connection error")

	case socketmode.EventTypeEventsAPI:
		if evt.Request != nil {
			s.sm.Ack(*evt.Request)
		}
		if eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent); ok {
			s.handleEventsAPI(eventsAPI)
		}
	}
}

// handleEventsAPI turns a new human message into a Message. Bot messages,
// edits, other channels and redelivered events are dropped.
func (s *SlackAdapter) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	if ev.User == s.botUID || ev.BotID != "" || ev.SubType != "" {
		return
	}
	if s.channelID != "" && ev.Channel != s.channelID {
		return
	}

	eventID := ev.TimeStamp
	if cb, ok := event.Data.(*slackevents.EventsAPICallbackEvent); ok && cb.EventID != "" {
		eventID = cb.EventID
	}
	if !s.recent.firstTime(eventID) {
		s.logger.Debug("duplicate slack event skipped", "event_id", eventID)
		return
	}

	s.handlerMu.RLock()
	handler := s.msgHandler
	s.handlerMu.RUnlock()
	if handler == nil {
		return
	}
	handler(Message{
		ID:       ev.TimeStamp,
		Backend:  s.Name(),
		From:     ev.User,
		Chat:     ev.Channel,
		ThreadID: ev.ThreadTimeStamp,
		Content:  ev.Text,
		IsGroup:  ev.ChannelType != "im",
	})
}

func (s *SlackAdapter) Disconnect() {
	if s.cancel != nil {
		s.cancel()
	}
	s.setState(StateDisconnected)
}

func (s *SlackAdapter) State() ConnectionState {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.connState
}

func (s *SlackAdapter) OnMessage(handler MessageHandler) {
	s.handlerMu.Lock()
	s.msgHandler = handler
	s.handlerMu.Unlock()
}

func (s *SlackAdapter) OnConnectionEvent(handler ConnectionHandler) {
	s.handlerMu.Lock()
	s.connHandler = handler
	s.handlerMu.Unlock()
}

// Send posts out.Text, in out.ThreadID when set. Advisor replies are posted
// under the advisor's name and icon.
func (s *SlackAdapter) Send(ctx context.Context, out Outgoing) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(ChatMarkup(out.Text), false)}
	if out.As != nil {
		opts = append(opts, slack.MsgOptionUsername(out.As.Name))
		if icon, ok := slackIcons[out.As.ID]; ok {
			opts = append(opts, slack.MsgOptionIconEmoji(icon))
		}
	}
	if out.ThreadID != "" {
		opts = append(opts, slack.MsgOptionTS(out.ThreadID))
	}

	_, ts, err := s.api.PostMessageContext(ctx, out.Chat, opts...)
	if err != nil {
		return "", fmt.Errorf("slack send: %w", err)
	}
	return ts, nil
}

// SetTyping is a no-op: Slack has no typing indicator for bots.
func (s *SlackAdapter) SetTyping(context.Context, string, bool) error {
	return nil
}

func (s *SlackAdapter) setState(state ConnectionState) {
	s.connMu.Lock()
	old := s.connState
	s.connState = state
	s.connMu.Unlock()

	if old == state {
		return
	}
	s.logger.Info("slack connection", "from", old.String(), "to", state.String())

	s.handlerMu.RLock()
	handler := s.connHandler
	s.handlerMu.RUnlock()
	if handler != nil {
		handler(state)
	}
}
