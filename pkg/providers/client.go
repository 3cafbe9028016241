package providers

import "context"

// Client is the uniform contract every provider-client implementation
// satisfies: a single chat(messages, temperature) → reply call, with
// failures reported through the five uniform error kinds in errors.go.
type Client interface {
	Chat(ctx context.Context, messages []Message, temperature float64, maxOutputTokens *int) (Message, error)
}

// ModelInfo describes a single selectable model for a client kind, used by
// the Agent Manager's (providerID, modelID) resolution.
type ModelInfo struct {
	ID              string
	DisplayName     string
	MaxOutputTokens int
}
