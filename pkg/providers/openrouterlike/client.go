// Package openrouterlike implements the openrouter-like provider client
// kind: a single OpenAI-compatible chat-completions endpoint reached
// over plain HTTP, with optional HTTP-Referer/X-Title attribution headers
// and its own retry loop.
package openrouterlike

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"orchestrator/pkg/logx"
	"orchestrator/pkg/providers"
)

const defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	httpClient  *http.Client
	log         *logx.Logger
	retry       providers.RetryPolicy
	url         string
	apiKey      string
	model       string
	httpReferer string
	xTitle      string
}

// New creates an openrouter-like client. apiBase overrides the default
// endpoint; httpReferer and xTitle are optional attribution headers some
// OpenAI-compatible gateways use for per-app routing/accounting.
func New(apiKey, model, apiBase, httpReferer, xTitle string, log *logx.Logger) *Client {
	url := defaultBaseURL
	if apiBase != "" {
		url = apiBase
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		log:         log,
		retry:       providers.DefaultRetryPolicy,
		url:         url,
		apiKey:      apiKey,
		model:       model,
		httpReferer: httpReferer,
		xTitle:      xTitle,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type response struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Chat implements providers.Client.
func (c *Client) Chat(ctx context.Context, messages []providers.Message, temperature float64, maxOutputTokens *int) (providers.Message, error) {
	valid, err := providers.ValidateMessages(messages)
	if err != nil {
		return providers.Message{}, providers.NewError(providers.ErrorKindProtocolError, err.Error())
	}

	return c.retry.Attempt(ctx, c.log, func(_ int) (providers.Message, error) {
		return c.once(ctx, valid, temperature, maxOutputTokens)
	})
}

func (c *Client) once(ctx context.Context, messages []providers.Message, temperature float64, maxOutputTokens *int) (providers.Message, error) {
	reqBody := request{Model: c.model, Messages: toChatMessages(messages), Temperature: temperature, MaxTokens: maxOutputTokens}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return providers.Message{}, providers.NewErrorWithCause(providers.ErrorKindProtocolError, err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return providers.Message{}, providers.NewErrorWithCause(providers.ErrorKindProtocolError, err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.httpReferer != "" {
		req.Header.Set("HTTP-Referer", c.httpReferer)
	}
	if c.xTitle != "" {
		req.Header.Set("X-Title", c.xTitle)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return providers.Message{}, providers.NewErrorWithCause(providers.ErrorKindTransientFailure, err, "network error")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.Message{}, providers.NewErrorWithCause(providers.ErrorKindTransientFailure, err, "read response body")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return providers.Message{}, providers.NewErrorWithStatus(providers.ErrorKindAuthFailed, resp.StatusCode, "authentication failed")
	case resp.StatusCode == http.StatusTooManyRequests:
		return providers.Message{}, providers.NewErrorWithStatus(providers.ErrorKindRateLimited, resp.StatusCode, "rate limit exceeded")
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500:
		return providers.Message{}, providers.NewErrorWithStatus(providers.ErrorKindTransientFailure, resp.StatusCode, "transient server failure")
	}

	var parsed response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return providers.Message{}, providers.NewError(providers.ErrorKindProtocolError, "malformed response body")
	}
	if parsed.Error != nil {
		return providers.Message{}, classifyAPIError(parsed.Error.Code, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK || len(parsed.Choices) == 0 {
		return providers.Message{}, providers.NewErrorWithStatus(providers.ErrorKindProtocolError, resp.StatusCode, "request rejected")
	}

	return providers.Message{Role: providers.RoleAssistant, Content: parsed.Choices[0].Message.Content}, nil
}

func toChatMessages(messages []providers.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func classifyAPIError(code int, message string) *providers.Error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return providers.NewErrorWithStatus(providers.ErrorKindAuthFailed, code, message)
	case code == http.StatusTooManyRequests:
		return providers.NewErrorWithStatus(providers.ErrorKindRateLimited, code, message)
	case code == http.StatusRequestTimeout || code >= 500:
		return providers.NewErrorWithStatus(providers.ErrorKindTransientFailure, code, message)
	default:
		return providers.NewErrorWithStatus(providers.ErrorKindProtocolError, code, fmt.Sprintf("request rejected: %s", message))
	}
}
