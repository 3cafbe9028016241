// Package hflike implements the huggingface-like provider client
// kind: formats history as "Role: content\n...\nAssistant:", sets
// return_full_text=false and wait_for_model=true, and treats an HTTP 200
// with a "model loading" body as a transient retryable state.
package hflike

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"orchestrator/pkg/logx"
	"orchestrator/pkg/providers"
)

const defaultBaseURL = "https://api-inference.huggingface.co/models"

// Client calls the Hugging Face Inference API's text-generation endpoint.
type Client struct {
	httpClient *http.Client
	log        *logx.Logger
	retry      providers.RetryPolicy
	baseURL    string
	apiKey     string
	model      string
}

// New creates a huggingface-like client for model.
func New(apiKey, model string, log *logx.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
		retry:      providers.DefaultRetryPolicy,
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

type request struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type parameters struct {
	Temperature     float64 `json:"temperature"`
	MaxNewTokens    int     `json:"max_new_tokens,omitempty"`
	ReturnFullText  bool    `json:"return_full_text"`
	WaitForModel    bool    `json:"wait_for_model"`
}

type generatedText struct {
	GeneratedText string `json:"generated_text"`
}

// Chat implements providers.Client.
func (c *Client) Chat(ctx context.Context, messages []providers.Message, temperature float64, maxOutputTokens *int) (providers.Message, error) {
	valid, err := providers.ValidateMessages(messages)
	if err != nil {
		return providers.Message{}, providers.NewError(providers.ErrorKindProtocolError, err.Error())
	}

	prompt := formatHistory(valid)

	return c.retry.Attempt(ctx, c.log, func(_ int) (providers.Message, error) {
		return c.once(ctx, prompt, temperature, maxOutputTokens)
	})
}

// formatHistory renders the conversation as "Role: content\n...\nAssistant:".
func formatHistory(messages []providers.Message) string {
	var b strings.Builder
	for _, m := range messages {
		role := strings.ToUpper(string(m.Role)[:1]) + string(m.Role)[1:]
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	b.WriteString("Assistant:")
	return b.String()
}

func (c *Client) once(ctx context.Context, prompt string, temperature float64, maxOutputTokens *int) (providers.Message, error) {
	params := parameters{Temperature: temperature, ReturnFullText: false, WaitForModel: true}
	if maxOutputTokens != nil {
		params.MaxNewTokens = *maxOutputTokens
	}

	body, err := json.Marshal(request{Inputs: prompt, Parameters: params})
	if err != nil {
		return providers.Message{}, providers.NewErrorWithCause(providers.ErrorKindProtocolError, err, "marshal request")
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return providers.Message{}, providers.NewErrorWithCause(providers.ErrorKindProtocolError, err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

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
	case resp.StatusCode != http.StatusOK:
		return providers.Message{}, providers.NewErrorWithStatus(providers.ErrorKindProtocolError, resp.StatusCode, "request rejected")
	}

	// HTTP 200 can still carry a "model loading" body, which is a
	// retryable transient state rather than a success.
	if isModelLoading(respBody) {
		return providers.Message{}, providers.NewError(providers.ErrorKindTransientFailure, "model is loading")
	}

	var results []generatedText
	if err := json.Unmarshal(respBody, &results); err != nil || len(results) == 0 {
		return providers.Message{}, providers.NewError(providers.ErrorKindProtocolError, "malformed response body")
	}

	return providers.Message{Role: providers.RoleAssistant, Content: results[0].GeneratedText}, nil
}

func isModelLoading(body []byte) bool {
	var loading struct {
		Error         string  `json:"error"`
		EstimatedTime float64 `json:"estimated_time"`
	}
	if err := json.Unmarshal(body, &loading); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(loading.Error), "loading")
}
