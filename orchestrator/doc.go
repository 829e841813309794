/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package orchestrator drives a ticket through the delivery workflow: pick
// an eligible ticket, read it in full, plan a change, implement and test it
// (with a bounded repair loop), package it for review, open a pull request,
// sync the documentation, and update the ticket.
//
// One work item is in flight at a time and owns its plan, changeset, and
// review package outright; tickets and pull requests are referenced by ID
// only, since the tracker and the forge own those records.
//
// Every failure surfaces to Run's caller as a *StageError naming the ticket,
// the stage that failed, and what an operator should do about it.
package orchestrator
