package model

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryConfig bounds the exponential backoff around provider calls.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryConfig returns the documented policy: 4 attempts,
// 500ms initial delay, doubling to an 8s cap, with jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  4,
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     8 * time.Second,
	}
}

// withRetry runs op until it succeeds, fails non-retryably, or the
// attempt/time budget is exhausted. Rate-limit and transport failures
// are retried; unauthorized and invalid-response failures are not.
func withRetry(ctx context.Context, cfg RetryConfig, op func() error) error {
	delay := cfg.InitialDelay

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		var merr *Error
		if !errors.As(err, &merr) || !merr.Retryable() || attempt >= cfg.MaxAttempts {
			return err
		}

		wait := delay
		if merr.RetryAfter > 0 {
			wait = merr.RetryAfter
		}
		if wait > cfg.MaxDelay {
			wait = cfg.MaxDelay
		}
		// Jitter up to 25% to avoid thundering herds.
		wait += time.Duration(rand.Int63n(int64(wait)/4 + 1))

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &Error{Kind: ErrTimeout, Message: "retry budget exhausted", Err: err}
			}
			return ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
