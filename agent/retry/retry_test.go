/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func transient(err error) bool { return errors.Is(err, errTransient) }

func fastPolicy(retries int) Policy {
	return Policy{MaxRetries: retries, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(3), "op", transient, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != 42 {
		t.Errorf("Do() = %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), "op", transient, func() (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("Do() error = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoExhaustsPolicy(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(2), "fetch", transient, func() (int, error) {
		calls++
		return 0, errTransient
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if err == nil || !errors.Is(err, errTransient) {
		t.Fatalf("Do() error = %v, want wrapped %v", err, errTransient)
	}
	if !strings.Contains(err.Error(), "fetch failed after 2 retries") {
		t.Errorf("Do() error = %v, want operation name and retry count", err)
	}
}

func TestDoZeroRetriesRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, "op", transient, func() (int, error) {
		calls++
		return 0, errTransient
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err == nil {
		t.Error("Do() succeeded, want error")
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Do(ctx, Policy{MaxRetries: 3, BaseBackoff: time.Minute}, "op", transient, func() (int, error) {
		return 0, errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
	if err := (Policy{MaxRetries: -1}).Validate(); err == nil {
		t.Error("negative retries validated, want error")
	}
	if err := (Policy{BaseBackoff: -time.Second}).Validate(); err == nil {
		t.Error("negative backoff validated, want error")
	}
}
