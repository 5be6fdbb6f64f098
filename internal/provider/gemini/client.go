// Package gemini is the Google Gemini backend for advisor replies, built on
// the google.golang.org/genai SDK with the shared retry and circuit-breaker
// policy.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/provider"
)

const (
	providerName   = "gemini"
	defaultTimeout = 120 * time.Second
)

// Client generates text with the Gemini API. It satisfies agent.Generator.
type Client struct {
	genai   *genai.Client
	logger  *slog.Logger
	sleepFn provider.SleepFunc
	baseURL string
	http    *http.Client
	onUsage provider.UsageFunc

	policy *provider.Policy[completion]
}

// completion is the text and token usage of one call.
type completion struct {
	text  string
	usage provider.Usage
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a structured logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithSleepFunc overrides the retry sleep function (for testing).
func WithSleepFunc(fn provider.SleepFunc) Option {
	return func(c *Client) {
		c.sleepFn = fn
	}
}

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithUsageFunc reports the token usage of every successful call.
func WithUsageFunc(fn provider.UsageFunc) Option {
	return func(c *Client) {
		c.onUsage = fn
	}
}

// New creates a Gemini client for apiKey.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	c := &Client{
		logger:  slog.Default(),
		sleepFn: provider.Sleep,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.http,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	gc, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c.genai = gc
	c.policy = provider.NewPolicy[completion](providerName, provider.Settings{
		Logger: c.logger,
		Sleep:  c.sleepFn,
	})
	return c, nil
}

// Generate sends prompt as a single user turn and returns the reply text.
// Any failure other than cancellation by the caller is returned as
// *agent.ProviderError.
func (c *Client) Generate(ctx context.Context, prompt, model string) (string, error) {
	out, err := c.policy.Execute(ctx, model, func(ctx context.Context) (completion, error) {
		return c.generateOnce(ctx, prompt, model)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", &agent.ProviderError{Provider: providerName, Model: model, Err: err}
	}
	if c.onUsage != nil {
		c.onUsage(ctx, model, out.usage)
	}
	return out.text, nil
}

func (c *Client) generateOnce(ctx context.Context, prompt, model string) (completion, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.genai.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		if ctx.Err() != nil {
			return completion{}, ctx.Err()
		}
		return completion{}, classify(err)
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return completion{}, &provider.ClassifiedError{
			Provider: providerName,
			Type:     provider.ErrContentFiltered,
			Message:  "prompt blocked: " + string(fb.BlockReason),
		}
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		msg := "response contains no text"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			msg += " (finish reason " + string(resp.Candidates[0].FinishReason) + ")"
		}
		return completion{}, &provider.ClassifiedError{
			Provider: providerName,
			Type:     provider.ErrMalformedResponse,
			Message:  msg,
		}
	}

	out := completion{text: text}
	if u := resp.UsageMetadata; u != nil {
		out.usage = provider.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
		}
		c.logger.Debug("gemini completion",
			"model", model,
			"prompt_tokens", u.PromptTokenCount,
			"completion_tokens", u.CandidatesTokenCount,
		)
	}
	return out, nil
}

// classify maps an SDK error to a ClassifiedError. Errors without an HTTP
// status are treated as network failures.
func classify(err error) *provider.ClassifiedError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.Code)
		}
		return provider.Classify(providerName, apiErr.Code, apiErr.Status, msg, 0)
	}
	return &provider.ClassifiedError{
		Provider: providerName,
		Type:     provider.ErrTimeout,
		Message:  err.Error(),
	}
}
