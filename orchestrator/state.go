/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

// State is a stage of the delivery workflow. A work item moves through the
// states strictly in order, except that Testing may loop back to
// Implementing during repair, and any non-terminal state may fail.
type State string

const (
	Selecting       State = "Selecting"
	Reading         State = "Reading"
	Planning        State = "Planning"
	Implementing    State = "Implementing"
	Testing         State = "Testing"
	ReviewPackaging State = "ReviewPackaging"
	PullRequestOpen State = "PullRequestOpen"
	DocSyncing      State = "DocSyncing"
	TicketUpdating  State = "TicketUpdating"
	Done            State = "Done"
	Failed          State = "Failed"
)

// order is the forward progression of the workflow.
var order = []State{
	Selecting, Reading, Planning, Implementing, Testing,
	ReviewPackaging, PullRequestOpen, DocSyncing, TicketUpdating, Done,
}

// Terminal reports whether no further transitions leave the state.
func (s State) Terminal() bool { return s == Done || s == Failed }

// CanTransition reports whether a work item in state s may move to next.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == Failed {
		return true
	}
	// Repair loop.
	if s == Testing && next == Implementing {
		return true
	}
	for i, st := range order[:len(order)-1] {
		if st == s {
			return order[i+1] == next
		}
	}
	return false
}
