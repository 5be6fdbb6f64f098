package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/provider"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 120 * time.Second
)

// Client is an HTTP client for the OpenRouter chat completions API.
// It satisfies agent.Generator.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	logger     *slog.Logger
	sleepFn    provider.SleepFunc // for testing
	onUsage    provider.UsageFunc

	policy *provider.Policy[*ChatResponse]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBaseURL overrides the default OpenRouter base URL.
func WithBaseURL(url string) Option {
	return func(cl *Client) {
		cl.baseURL = strings.TrimRight(url, "/")
	}
}

// WithLogger sets a structured logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// WithSleepFunc overrides the retry sleep function (for testing).
func WithSleepFunc(fn provider.SleepFunc) Option {
	return func(cl *Client) {
		cl.sleepFn = fn
	}
}

// WithUsageFunc reports the token usage of every successful Generate call.
func WithUsageFunc(fn provider.UsageFunc) Option {
	return func(cl *Client) {
		cl.onUsage = fn
	}
}

// NewClient creates an OpenRouter client with the given API key and options.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		logger:     slog.Default(),
		sleepFn:    provider.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.policy = provider.NewPolicy[*ChatResponse](providerName, provider.Settings{
		Logger: c.logger,
		Sleep:  c.sleepFn,
	})
	return c
}

// Generate sends prompt as a single user message and returns the reply
// text. Any failure other than cancellation by the caller is returned as
// *agent.ProviderError.
func (c *Client) Generate(ctx context.Context, prompt, model string) (string, error) {
	resp, err := c.ChatCompletion(ctx, ChatRequest{
		Model:    model,
		Messages: []Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", &agent.ProviderError{Provider: providerName, Model: model, Err: err}
	}

	c.logger.Debug("openrouter completion",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	if c.onUsage != nil {
		c.onUsage(ctx, model, provider.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		})
	}
	return resp.TextContent(), nil
}

// ChatCompletion makes a single chat completion request to OpenRouter.
// It handles retries and circuit breaking transparently.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return c.policy.Execute(ctx, req.Model, func(ctx context.Context) (*ChatResponse, error) {
		return c.doRequest(ctx, req)
	})
}

// doRequest performs a single HTTP request and parses the response.
func (c *Client) doRequest(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("X-Title", "Boardroom")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Classify network/timeout errors.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &provider.ClassifiedError{
			Provider: providerName,
			Type:     provider.ErrTimeout,
			Message:  err.Error(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, malformed(fmt.Sprintf("read response body: %v", err))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, malformed(fmt.Sprintf("parse response JSON: %v", err))
	}

	if len(chatResp.Choices) == 0 {
		return nil, malformed("response contains no choices")
	}

	return &chatResp, nil
}
