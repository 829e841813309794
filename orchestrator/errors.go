/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"errors"
	"fmt"

	"github.com/loamworks/conveyor/tracker"
)

var (
	// ErrNoCandidateFound means the selection query matched no eligible
	// ticket. Callers treat this as "nothing to do", not as a failure.
	ErrNoCandidateFound = errors.New("no eligible ticket found")

	// ErrEmptyPlan means the planner produced a plan with no intents.
	ErrEmptyPlan = errors.New("planner produced an empty plan")

	// ErrTestsExhausted means the repair budget ran out without a passing
	// test run. The changeset is discarded in full.
	ErrTestsExhausted = errors.New("tests still failing after repair budget exhausted")

	// ErrIncompleteReviewPackage means the package was missing a focus
	// area, a critical file, or testing instructions.
	ErrIncompleteReviewPackage = errors.New("incomplete review package")
)

// StageError is how every workflow failure reaches Run's caller: which
// ticket, which stage, what happened, and what an operator should do.
type StageError struct {
	Stage       State
	Ticket      tracker.ID
	Remediation string
	Err         error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v (remediation: %s)", e.Stage, e.Ticket, e.Err, e.Remediation)
}

func (e *StageError) Unwrap() error { return e.Err }

// TicketFetchError marks a ticket detail fetch that failed even after the
// retry, so callers can distinguish it from a planning or tooling failure.
type TicketFetchError struct {
	ID  tracker.ID
	Err error
}

func (e *TicketFetchError) Error() string {
	return fmt.Sprintf("fetching ticket %s: %v", e.ID, e.Err)
}

func (e *TicketFetchError) Unwrap() error { return e.Err }
