// Package retry implements the generic retry driver shared by the search
// gateway and the embedding client: a pure policy data structure plus a
// driver that honors provider-supplied retry-after signals before falling
// back to exponential back-off with jitter.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"ingestpipe/internal/errkind"
)

// Policy is the data structure described in the design notes:
// {maxAttempts, baseDelay, cap, jitter, honorRetryAfter}.
type Policy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	Cap             time.Duration
	FullJitter      bool
	HonorRetryAfter bool
}

// SearchPolicy is the back-off schedule for the Search Gateway (§4.3):
// exponential starting at 1s, doubling to a 30s cap, at most 8 attempts, no jitter.
func SearchPolicy() Policy {
	return Policy{MaxAttempts: 8, BaseDelay: time.Second, Cap: 30 * time.Second}
}

// EmbeddingPolicy is the back-off schedule for the Embedding Client (§4.4):
// exponential with full jitter, 60s cap, at most 8 attempts.
func EmbeddingPolicy(maxAttempts int, cap time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	if cap <= 0 {
		cap = 60 * time.Second
	}
	return Policy{MaxAttempts: maxAttempts, BaseDelay: time.Second, Cap: cap, FullJitter: true, HonorRetryAfter: true}
}

// RetryAfter is returned by an Attempt func when the upstream signaled a
// rate limit with an explicit wait duration (retry-after-ms / Retry-After).
type RetryAfter struct {
	Wait time.Duration
}

func (RetryAfter) Error() string { return "rate limited: retry-after signaled" }

// Attempt performs one try. It returns the result kind via err: nil on
// success, a *RetryAfter to honor an explicit wait, or any error classified
// by errkind — only errkind.RateLimited and errkind.Transient are retried.
type Attempt[T any] func(ctx context.Context, attemptNum int) (T, error)

// Do runs fn under policy p, retrying on RateLimited/Transient classifications
// or a RetryAfter signal, until MaxAttempts is exhausted or ctx is done.
func Do[T any](ctx context.Context, p Policy, op string, fn Attempt[T]) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := fn(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var ra *RetryAfter
		var wait time.Duration
		switch {
		case errors.As(err, &ra) && p.HonorRetryAfter:
			wait = ra.Wait
		case errkind.Of(err).Retriable():
			wait = backoff(p, attempt)
		default:
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}
		log.Warn().Str("op", op).Int("attempt", attempt).Dur("wait", wait).Err(err).Msg("retrying after error")
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
	return zero, errkind.New(errkind.EmbeddingExhausted, op, lastErr)
}

// backoff computes the delay for the given attempt (1-indexed): baseDelay *
// 2^(attempt-1), capped, with optional full jitter.
func backoff(p Policy, attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Cap {
			d = p.Cap
			break
		}
	}
	if d > p.Cap {
		d = p.Cap
	}
	if p.FullJitter {
		if d <= 0 {
			return 0
		}
		return time.Duration(rand.Int63n(int64(d) + 1))
	}
	return d
}
