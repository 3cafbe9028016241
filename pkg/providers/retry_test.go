package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptRetriesRateLimitThenSucceeds(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: 0}

	calls := 0
	reply, err := policy.Attempt(context.Background(), nil, func(_ int) (Message, error) {
		calls++
		if calls < 3 {
			return Message{}, NewErrorWithStatus(ErrorKindRateLimited, 429, "too many requests")
		}
		return Message{Role: RoleAssistant, Content: "ok"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Content)
	assert.Equal(t, 3, calls)
}

func TestAttemptTotalAttemptsBoundedByMaxRetries(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: 0}

	calls := 0
	_, err := policy.Attempt(context.Background(), nil, func(_ int) (Message, error) {
		calls++
		return Message{}, NewErrorWithStatus(ErrorKindTransientFailure, 503, "upstream unavailable")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestAttemptSurfacesLastErrorUnchanged(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, InitialDelay: 0}

	rateLimited := NewErrorWithStatus(ErrorKindRateLimited, 429, "quota exceeded")
	_, err := policy.Attempt(context.Background(), nil, func(_ int) (Message, error) {
		return Message{}, rateLimited
	})

	require.Error(t, err)
	assert.True(t, Is(err, ErrorKindRateLimited))
	assert.ErrorIs(t, err, rateLimited)
}

func TestAttemptDoesNotRetryAuthFailed(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: 0}

	calls := 0
	_, err := policy.Attempt(context.Background(), nil, func(_ int) (Message, error) {
		calls++
		return Message{}, NewErrorWithStatus(ErrorKindAuthFailed, 401, "invalid key")
	})

	require.Error(t, err)
	assert.True(t, Is(err, ErrorKindAuthFailed))
	assert.Equal(t, 1, calls)
}

func TestAttemptStopsOnContextCancel(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, InitialDelay: 0}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := policy.Attempt(ctx, nil, func(_ int) (Message, error) {
		calls++
		cancel()
		return Message{}, NewErrorWithStatus(ErrorKindTransientFailure, 500, "boom")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
