package core

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy defines retry behavior for operations that may report ErrBusy
type RetryPolicy struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retry, 1 = one retry)
	MaxRetries int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// BackoffRatio is the multiplier for delay after each retry (e.g., 2.0 for exponential)
	BackoffRatio float64
}

// DefaultRetryPolicy returns the policy used by ConnectWithRetry callers that
// have no better idea
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 50 * time.Microsecond,
		MaxDelay:     5 * time.Millisecond,
		BackoffRatio: 2.0,
	}
}

// NoRetry returns a retry policy with no retries
func NoRetry() RetryPolicy {
	return RetryPolicy{BackoffRatio: 1.0}
}

// calculateDelay calculates the delay for the given retry attempt
// attempt is 0-indexed (0 = first retry, 1 = second retry, etc.)
func (p RetryPolicy) calculateDelay(attempt int) time.Duration {
	if p.InitialDelay == 0 {
		return 0
	}

	delay := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= p.BackoffRatio
	}

	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	return time.Duration(delay)
}

// ConnectWithRetry calls Connect, retrying while it reports ErrBusy.
// Any other error is returned immediately.
func ConnectWithRetry[T any](ctx context.Context, sender, receiver *Endpoint[T], policy RetryPolicy) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = Connect(sender, receiver)
		if err == nil || !errors.Is(err, ErrBusy) || attempt >= policy.MaxRetries {
			return err
		}

		timer := time.NewTimer(policy.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
