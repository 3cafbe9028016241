package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/pkg/config"
	"orchestrator/pkg/logx"
)

func TestNewBuildsEachRecognizedClientKind(t *testing.T) {
	log := logx.New("test")
	kinds := []config.ClientKind{
		config.ClientKindOpenAILike,
		config.ClientKindAnthropicLike,
		config.ClientKindGoogleLike,
		config.ClientKindHuggingFace,
		config.ClientKindOllamaLike,
		config.ClientKindOpenRouterLike,
	}

	for _, kind := range kinds {
		cfg := config.ProviderConfig{ID: "test-" + string(kind), ClientKind: kind, KeyID: "TEST_KEY"}
		client, err := New(cfg, "test-model", "test-secret", log)
		require.NoError(t, err, "kind %s", kind)
		assert.NotNil(t, client, "kind %s", kind)
	}
}

func TestNewRejectsUnknownClientKind(t *testing.T) {
	cfg := config.ProviderConfig{ID: "bogus", ClientKind: config.ClientKind("not-a-kind"), KeyID: "TEST_KEY"}
	_, err := New(cfg, "test-model", "test-secret", logx.New("test"))
	require.Error(t, err)
}
