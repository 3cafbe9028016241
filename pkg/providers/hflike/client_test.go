package hflike

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/pkg/logx"
	"orchestrator/pkg/providers"
)

func newTestClient(url string) *Client {
	c := New("test-key", "test-model", logx.New("test"))
	c.baseURL = url
	c.retry.InitialDelay = 0
	return c
}

func TestChatFormatsHistoryAndReturnsGeneratedText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Inputs, "System: be terse")
		assert.Contains(t, req.Inputs, "User: hi\n")
		assert.Contains(t, req.Inputs, "Assistant:")
		assert.False(t, req.Parameters.ReturnFullText)
		assert.True(t, req.Parameters.WaitForModel)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]generatedText{{GeneratedText: "hello there"}}) //nolint:errcheck
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	msg, err := client.Chat(context.Background(), []providers.Message{
		{Role: providers.RoleSystem, Content: "be terse"},
		{Role: providers.RoleUser, Content: "hi"},
	}, 0.5, nil)

	require.NoError(t, err)
	assert.Equal(t, "hello there", msg.Content)
}

func TestChatRetriesOnModelLoading(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		if attempts == 1 {
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "Model is currently loading", "estimated_time": 20.0}) //nolint:errcheck
			return
		}
		_ = json.NewEncoder(w).Encode([]generatedText{{GeneratedText: "ready now"}}) //nolint:errcheck
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	msg, err := client.Chat(context.Background(), []providers.Message{{Role: providers.RoleUser, Content: "hi"}}, 0.2, nil)

	require.NoError(t, err)
	assert.Equal(t, "ready now", msg.Content)
	assert.Equal(t, 2, attempts)
}

func TestChatClassifiesRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.retry.MaxRetries = 1
	_, err := client.Chat(context.Background(), []providers.Message{{Role: providers.RoleUser, Content: "hi"}}, 0.2, nil)

	require.Error(t, err)
	assert.True(t, providers.Is(err, providers.ErrorKindRateLimited))
}

func TestChatRejectsEmptyMessages(t *testing.T) {
	client := newTestClient("http://unused")
	_, err := client.Chat(context.Background(), nil, 0.2, nil)
	require.Error(t, err)
}
