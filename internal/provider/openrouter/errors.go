package openrouter

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/leandrotocalini/boardroom/internal/provider"
)

const providerName = "openrouter"

// openRouterErrorBody is the JSON error body returned by OpenRouter.
type openRouterErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"` // string or number depending on the upstream
	} `json:"error"`
}

// classifyHTTPError classifies an HTTP response as a specific error type.
func classifyHTTPError(resp *http.Response) *provider.ClassifiedError {
	body, _ := io.ReadAll(resp.Body)

	var errBody openRouterErrorBody
	json.Unmarshal(body, &errBody) //nolint:errcheck // best-effort parse

	msg := errBody.Error.Message
	if msg == "" {
		msg = string(body)
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	code := errBody.Error.Type
	if s, ok := errBody.Error.Code.(string); ok {
		code = s + " " + code
	}

	return provider.Classify(providerName, resp.StatusCode, code, msg,
		provider.ParseRetryAfter(resp.Header.Get("Retry-After")))
}

func malformed(msg string) *provider.ClassifiedError {
	return &provider.ClassifiedError{
		Provider: providerName,
		Type:     provider.ErrMalformedResponse,
		Message:  msg,
	}
}
