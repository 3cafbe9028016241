// Package openailike implements the OpenAI-compatible provider client
// kind: maps the SDK's rate/auth errors onto the uniform taxonomy and
// honors an optional api_base override.
package openailike

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"orchestrator/pkg/providers"
)

// Client wraps the official OpenAI Go SDK to implement providers.Client.
type Client struct {
	sdk   openai.Client
	model string
}

// New creates an OpenAI-compatible client for model, optionally pointed at
// a non-default API base (self-hosted gateways, Azure-style proxies, etc).
func New(apiKey, model, apiBase string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	return &Client{sdk: openai.NewClient(opts...), model: model}
}

// Chat implements providers.Client.
func (c *Client) Chat(ctx context.Context, messages []providers.Message, temperature float64, maxOutputTokens *int) (providers.Message, error) {
	valid, err := providers.ValidateMessages(messages)
	if err != nil {
		return providers.Message{}, providers.NewError(providers.ErrorKindProtocolError, err.Error())
	}

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    toOpenAIMessages(valid),
		Temperature: openai.Float(temperature),
	}
	if maxOutputTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*maxOutputTokens))
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return providers.Message{}, classifyError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return providers.Message{}, providers.NewError(providers.ErrorKindProtocolError, "empty choices in OpenAI-compatible response")
	}

	return providers.Message{
		Role:    providers.RoleAssistant,
		Content: resp.Choices[0].Message.Content,
	}, nil
}

func toOpenAIMessages(messages []providers.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case providers.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case providers.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case providers.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		}
	}
	return out
}

// classifyError maps the OpenAI SDK's errors onto the uniform taxonomy.
func classifyError(err error) *providers.Error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return providers.NewErrorWithStatus(providers.ErrorKindAuthFailed, apiErr.StatusCode, "authentication failed")
		case 408:
			return providers.NewErrorWithStatus(providers.ErrorKindTransientFailure, apiErr.StatusCode, "request timeout")
		case 429:
			return providers.NewErrorWithStatus(providers.ErrorKindRateLimited, apiErr.StatusCode, "rate limit exceeded")
		default:
			if apiErr.StatusCode >= 500 {
				return providers.NewErrorWithStatus(providers.ErrorKindTransientFailure, apiErr.StatusCode, "server error")
			}
			return providers.NewErrorWithStatus(providers.ErrorKindProtocolError, apiErr.StatusCode, "request rejected")
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "connection"), strings.Contains(msg, "eof"), strings.Contains(msg, "reset"):
		return providers.NewErrorWithCause(providers.ErrorKindTransientFailure, err, "network error")
	case strings.Contains(msg, "rate"), strings.Contains(msg, "quota"):
		return providers.NewErrorWithCause(providers.ErrorKindRateLimited, err, "rate limited")
	case strings.Contains(msg, "auth") || strings.Contains(msg, "api key"):
		return providers.NewErrorWithCause(providers.ErrorKindAuthFailed, err, "authentication error")
	default:
		return providers.NewErrorWithCause(providers.ErrorKindProtocolError, err, "unclassified error")
	}
}
