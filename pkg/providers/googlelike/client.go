// Package googlelike implements the google-like provider client
// kind: system prompts are supplied out-of-band as the call's
// SystemInstruction, and a response with zero candidates is classified as
// Blocked. One SDK client is shared across calls; no per-call model
// instance is created.
package googlelike

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"orchestrator/pkg/providers"
)

// Client wraps the Google GenAI SDK to implement providers.Client.
type Client struct {
	apiKey string
	model  string
	client *genai.Client
}

// New creates a google-like client for model. The underlying SDK client is
// created lazily on first use, since construction requires a context.
func New(apiKey, model string) *Client {
	return &Client{apiKey: apiKey, model: model}
}

// Chat implements providers.Client.
func (c *Client) Chat(ctx context.Context, messages []providers.Message, temperature float64, maxOutputTokens *int) (providers.Message, error) {
	valid, err := providers.ValidateMessages(messages)
	if err != nil {
		return providers.Message{}, providers.NewError(providers.ErrorKindProtocolError, err.Error())
	}

	systemPrompt, turns := splitSystemPrompt(valid)

	client, err := c.clientFor(ctx)
	if err != nil {
		return providers.Message{}, providers.NewErrorWithCause(providers.ErrorKindTransientFailure, err, "failed to create Google client")
	}

	temp32 := float32(temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp32}
	if maxOutputTokens != nil {
		cfg.MaxOutputTokens = int32(*maxOutputTokens) //nolint:gosec // caller-bounded
	}
	// The system prompt, when present, travels in this call's config as
	// SystemInstruction; the shared SDK client is used either way.
	if systemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}

	result, err := client.Models.GenerateContent(ctx, c.model, turns, cfg)
	if err != nil {
		return providers.Message{}, classifyError(err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return providers.Message{}, providers.NewError(providers.ErrorKindBlocked, "response blocked: zero candidates returned")
	}

	return providers.Message{Role: providers.RoleAssistant, Content: result.Text()}, nil
}

func (c *Client) clientFor(ctx context.Context) (*genai.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: c.apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

func splitSystemPrompt(messages []providers.Message) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		if m.Role == providers.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := "user"
		if m.Role == providers.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	return strings.Join(system, "\n\n"), contents
}

func classifyError(err error) *providers.Error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "permission"):
		return providers.NewErrorWithCause(providers.ErrorKindAuthFailed, err, "authentication failed")
	case strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "rate"):
		return providers.NewErrorWithCause(providers.ErrorKindRateLimited, err, "rate limit exceeded")
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "unavailable") || strings.Contains(msg, "reset") || strings.Contains(msg, "5"):
		return providers.NewErrorWithCause(providers.ErrorKindTransientFailure, err, "transient failure")
	case strings.Contains(msg, "safety") || strings.Contains(msg, "blocked"):
		return providers.NewErrorWithCause(providers.ErrorKindBlocked, err, "content blocked")
	default:
		return providers.NewErrorWithCause(providers.ErrorKindProtocolError, err, "unclassified error")
	}
}
