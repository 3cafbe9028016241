// Package ollamalike implements the ollama-like provider client kind: a
// locally hosted model server reached over the Ollama chat API, with no
// API key required.
package ollamalike

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"orchestrator/pkg/providers"
)

// Client wraps the Ollama API client to implement providers.Client.
type Client struct {
	sdk   *api.Client
	model string
}

// New creates an ollama-like client against hostURL (e.g.
// "http://localhost:11434"). An invalid hostURL falls back to the default
// local address rather than failing construction.
func New(hostURL, model string) *Client {
	parsed, err := url.Parse(hostURL)
	if err != nil || hostURL == "" {
		parsed, _ = url.Parse("http://localhost:11434") //nolint:errcheck
	}
	return &Client{sdk: api.NewClient(parsed, http.DefaultClient), model: model}
}

// Chat implements providers.Client.
func (c *Client) Chat(ctx context.Context, messages []providers.Message, temperature float64, maxOutputTokens *int) (providers.Message, error) {
	valid, err := providers.ValidateMessages(messages)
	if err != nil {
		return providers.Message{}, providers.NewError(providers.ErrorKindProtocolError, err.Error())
	}

	options := map[string]any{"temperature": temperature}
	if maxOutputTokens != nil {
		options["num_predict"] = *maxOutputTokens
	}

	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(valid),
		Stream:   &stream,
		Options:  options,
	}

	var resp api.ChatResponse
	err = c.sdk.Chat(ctx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	if err != nil {
		return providers.Message{}, classifyError(err)
	}

	return providers.Message{Role: providers.RoleAssistant, Content: resp.Message.Content}, nil
}

func toOllamaMessages(messages []providers.Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, api.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func classifyError(err error) *providers.Error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "unavailable"):
		return providers.NewErrorWithCause(providers.ErrorKindTransientFailure, err, "ollama server not reachable")
	case strings.Contains(msg, "context canceled"), strings.Contains(msg, "timeout"):
		return providers.NewErrorWithCause(providers.ErrorKindTransientFailure, err, "request timed out")
	case strings.Contains(msg, "model") && strings.Contains(msg, "not found"):
		return providers.NewErrorWithCause(providers.ErrorKindProtocolError, err, "model not found")
	default:
		return providers.NewErrorWithCause(providers.ErrorKindProtocolError, err, "ollama API error")
	}
}
