package anthropiclike

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/pkg/providers"
)

func TestChatRequiresMaxOutputTokens(t *testing.T) {
	client := New("test-key", "claude-3-5-sonnet", "", "")
	_, err := client.Chat(context.Background(), []providers.Message{{Role: providers.RoleUser, Content: "hi"}}, 0.2, nil)

	require.Error(t, err)
	assert.True(t, providers.Is(err, providers.ErrorKindProtocolError))
}

func TestChatSendsSystemPromptAndParsesTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"hi back"}],"model":"claude-3-5-sonnet","stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	client := New("test-key", "claude-3-5-sonnet", server.URL, "2023-06-01")
	maxTokens := 256
	msg, err := client.Chat(context.Background(), []providers.Message{
		{Role: providers.RoleSystem, Content: "be terse"},
		{Role: providers.RoleUser, Content: "hi"},
	}, 0.2, &maxTokens)

	require.NoError(t, err)
	assert.Equal(t, "hi back", msg.Content)
}

func TestChatRejectsOnlySystemMessages(t *testing.T) {
	client := New("test-key", "claude-3-5-sonnet", "", "")
	maxTokens := 100
	_, err := client.Chat(context.Background(), []providers.Message{{Role: providers.RoleSystem, Content: "be terse"}}, 0.2, &maxTokens)
	require.Error(t, err)
}

func TestSplitSystemPromptMapsRoles(t *testing.T) {
	system, turns := splitSystemPrompt([]providers.Message{
		{Role: providers.RoleSystem, Content: "sys"},
		{Role: providers.RoleUser, Content: "hi"},
		{Role: providers.RoleAssistant, Content: "yo"},
	})

	assert.Equal(t, "sys", system)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", string(turns[0].Role))
	assert.Equal(t, "assistant", string(turns[1].Role))
}
