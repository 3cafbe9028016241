// Package uiface defines the callback interfaces the engine drives to reach
// whatever UI hosts it. The engine never assumes a concrete UI
// implementation; it only calls through these interfaces.
package uiface

import "context"

// ProgressEvent reports a step of engine progress to the host UI.
type ProgressEvent struct {
	Phase   string
	Message string
	Issue   string
}

// InputPrompter shows a blocking prompt to the operator.
type InputPrompter interface {
	// ShowInputPrompt returns the entered text, or ok=false if the prompt
	// was dismissed without input.
	ShowInputPrompt(ctx context.Context, title string, isPassword bool, message string) (text string, ok bool)
}

// CredentialPrompter mediates credential recovery when a provider client
// reports AuthFailed.
type CredentialPrompter interface {
	// RequestCredentialUpdate asks the operator to supply a new key or to
	// retry with the existing one. newKey is empty when none was supplied.
	RequestCredentialUpdate(ctx context.Context, agentDesc, errorMessage, keyName string) (newKey string, retryNow bool)
}

// ProgressSink receives engine progress notifications.
type ProgressSink interface {
	UpdateProgress(event ProgressEvent)
}

// NetworkRetryAsker asks the operator whether to retry after a network
// failure has exhausted a client's own retry budget.
type NetworkRetryAsker interface {
	RequestNetworkRetry(ctx context.Context, err error) bool
}
