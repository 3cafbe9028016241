// Package anthropiclike implements the anthropic-like provider client
// kind: it calls the Anthropic Messages API through anthropic-sdk-go, with
// an optional base_url override and protocol-version header, and requires
// max_output_tokens on every call. It does not go through the
// OpenAI-compatible transport of package openailike.
package anthropiclike

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"orchestrator/pkg/providers"
)

// Client wraps the Anthropic SDK to implement providers.Client.
type Client struct {
	sdk   anthropic.Client
	model anthropic.Model
}

// New creates an anthropic-like client. apiBase overrides the default
// service endpoint; apiVersion sets the required protocol-version header
// when non-empty (the SDK defaults it otherwise).
func New(apiKey, model, apiBase, apiVersion string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if apiBase != "" {
		opts = append(opts, option.WithBaseURL(apiBase))
	}
	if apiVersion != "" {
		opts = append(opts, option.WithHeader("anthropic-version", apiVersion))
	}
	return &Client{sdk: anthropic.NewClient(opts...), model: anthropic.Model(model)}
}

// Chat implements providers.Client. max_output_tokens is required by this
// client kind; a nil pointer is rejected as a bad prompt rather than
// silently defaulted.
func (c *Client) Chat(ctx context.Context, messages []providers.Message, temperature float64, maxOutputTokens *int) (providers.Message, error) {
	if maxOutputTokens == nil {
		return providers.Message{}, providers.NewError(providers.ErrorKindProtocolError, "anthropic-like client requires max_output_tokens")
	}

	valid, err := providers.ValidateMessages(messages)
	if err != nil {
		return providers.Message{}, providers.NewError(providers.ErrorKindProtocolError, err.Error())
	}

	systemPrompt, turns := splitSystemPrompt(valid)
	if len(turns) == 0 {
		return providers.Message{}, providers.NewError(providers.ErrorKindProtocolError, "no non-system messages to send")
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    turns,
		MaxTokens:   int64(*maxOutputTokens),
		Temperature: anthropic.Float(temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt, Type: "text"}}
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return providers.Message{}, classifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return providers.Message{}, providers.NewError(providers.ErrorKindProtocolError, "empty response from Anthropic API")
	}

	var text strings.Builder
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			text.WriteString(resp.Content[i].AsText().Text)
		}
	}

	return providers.Message{Role: providers.RoleAssistant, Content: text.String()}, nil
}

func splitSystemPrompt(messages []providers.Message) (string, []anthropic.MessageParam) {
	var system []string
	turns := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == providers.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := anthropic.MessageParamRoleUser
		if m.Role == providers.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		turns = append(turns, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)},
		})
	}
	return strings.Join(system, "\n\n"), turns
}

func classifyError(err error) *providers.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return providers.NewErrorWithCause(providers.ErrorKindTransientFailure, err, "request timeout")
	}

	var apiErr *anthropic.Error
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
			return providers.NewErrorWithStatus(providers.ErrorKindProtocolError, apiErr.StatusCode, fmt.Sprintf("request rejected: %v", err))
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "reset"), strings.Contains(msg, "eof"):
		return providers.NewErrorWithCause(providers.ErrorKindTransientFailure, err, "network error")
	case strings.Contains(msg, "rate"), strings.Contains(msg, "quota"):
		return providers.NewErrorWithCause(providers.ErrorKindRateLimited, err, "rate limited")
	case strings.Contains(msg, "auth") || strings.Contains(msg, "key"):
		return providers.NewErrorWithCause(providers.ErrorKindAuthFailed, err, "authentication error")
	default:
		return providers.NewErrorWithCause(providers.ErrorKindProtocolError, err, "unclassified error")
	}
}
