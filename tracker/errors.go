/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package tracker

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition indicates the tracker's workflow rules disallow the
// requested status transition. The ticket's status is left untouched.
var ErrInvalidTransition = errors.New("invalid ticket transition")

// AuthError indicates the credential provider could not supply a usable token
// for the tracker. It is never retried automatically; the remediation is to
// configure the credential store.
type AuthError struct {
	Name string // symbolic secret name that failed to resolve
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("tracker auth: credential %q unresolved: %v", e.Name, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RemoteError is any non-2xx response from the tracker API.
type RemoteError struct {
	Op   string // operation that failed, e.g. "fetch" or "transition"
	Code int    // HTTP status code
	Body string // response body, truncated
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("tracker %s: remote error %d: %s", e.Op, e.Code, e.Body)
}

// Temporary reports whether the failure is worth retrying by callers with a
// retry policy. Only server-side and throttling responses qualify.
func (e *RemoteError) Temporary() bool {
	return e.Code == 429 || e.Code >= 500
}
