/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package retry runs an operation with exponential backoff and jitter,
// retrying only errors its classifier marks as retryable.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/chainguard-dev/clog"
)

// Policy bounds the retry loop.
type Policy struct {
	// MaxRetries is how many times a failed call is retried. 0 disables
	// retrying.
	MaxRetries int
	// BaseBackoff is the delay before the first retry. Each further retry
	// doubles it, capped at MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// MaxJitter is added to each backoff as a uniform random duration in
	// [0, MaxJitter).
	MaxJitter time.Duration
}

// Validate rejects negative bounds.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if p.BaseBackoff < 0 || p.MaxBackoff < 0 || p.MaxJitter < 0 {
		return errors.New("backoff durations cannot be negative")
	}
	return nil
}

// Default is tuned for model API rate limits, which recover on the order of
// seconds rather than milliseconds.
func Default() Policy {
	return Policy{
		MaxRetries:  5,
		BaseBackoff: time.Second,
		MaxBackoff:  60 * time.Second,
		MaxJitter:   500 * time.Millisecond,
	}
}

// Once retries a single time after a short backoff.
func Once() Policy {
	return Policy{
		MaxRetries:  1,
		BaseBackoff: time.Second,
		MaxBackoff:  time.Second,
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, exhausts the
// policy, or the context is canceled.
func Do[T any](ctx context.Context, policy Policy, op string, retryable func(error) bool, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}
		if !retryable(lastErr) {
			return result, lastErr
		}
		if attempt >= policy.MaxRetries {
			break
		}

		backoff := min(policy.BaseBackoff<<attempt, policy.MaxBackoff)
		backoff += jitter(policy.MaxJitter)

		clog.FromContext(ctx).With("operation", op).
			With("attempt", attempt+1).
			With("max_retries", policy.MaxRetries).
			With("backoff", backoff).
			With("error", lastErr.Error()).
			Warn("Transient failure, retrying")

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return result, fmt.Errorf("%s failed after %d retries: %w", op, policy.MaxRetries, lastErr)
}

func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
