/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import "testing"

func TestStateTransitions(t *testing.T) {
	for _, tc := range []struct {
		from, to State
		want     bool
	}{
		{Selecting, Reading, true},
		{Reading, Planning, true},
		{Planning, Implementing, true},
		{Implementing, Testing, true},
		{Testing, ReviewPackaging, true},
		{Testing, Implementing, true}, // repair loop
		{ReviewPackaging, PullRequestOpen, true},
		{PullRequestOpen, DocSyncing, true},
		{DocSyncing, TicketUpdating, true},
		{TicketUpdating, Done, true},
		{Planning, Failed, true},

		{Selecting, Planning, false}, // skipping stages
		{Implementing, ReviewPackaging, false},
		{Testing, Planning, false},
		{Done, Failed, false}, // terminal
		{Failed, Reading, false},
		{Done, Done, false},
	} {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("CanTransition(%s -> %s) = %t, want %t", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range order[:len(order)-1] {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true", s)
		}
	}
	if !Done.Terminal() || !Failed.Terminal() {
		t.Error("Done and Failed must be terminal")
	}
}
