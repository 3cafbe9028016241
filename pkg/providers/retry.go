package providers

import (
	"context"
	"math"
	"math/rand"
	"time"

	"orchestrator/pkg/logx"
)

// RetryPolicy is the exponential-backoff-with-jitter discipline used by
// the openrouter-like and huggingface-like client kinds (the ollama-like
// kind does not use it): total attempts bounded by
// MaxRetries, delay InitialDelay·2^(attempt-1) with uniform jitter in
// [0, backoff).
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
}

// DefaultRetryPolicy allows 3 total attempts.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, InitialDelay: 1 * time.Second} //nolint:gochecknoglobals

// Attempt runs call for at most p.MaxRetries total attempts (clamped to at
// least one), sleeping a jittered exponential backoff between attempts
// whenever the returned error is retryable. On exhaustion the last observed
// error is returned unchanged — never masked with a generic message — so a
// rate limit hit on the final attempt surfaces as RateLimited.
func (p RetryPolicy) Attempt(ctx context.Context, log *logx.Logger, call func(attempt int) (Message, error)) (Message, error) {
	attempts := p.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		msg, err := call(attempt)
		if err == nil {
			return msg, nil
		}
		lastErr = err

		kind := KindOf(err)
		if !kind.Retryable() {
			return Message{}, err
		}
		if attempt == attempts {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Message{}, ctxErr
		}

		delay := p.backoff(attempt)
		if log != nil {
			log.Warn("provider call attempt %d failed (%s), retrying in %s: %v", attempt, kind, delay, err)
		}
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return Message{}, lastErr
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := float64(p.InitialDelay) * math.Pow(2, float64(attempt-1))
	jitter := rand.Float64() * base //nolint:gosec // jitter does not need a CSPRNG
	return time.Duration(jitter)
}
