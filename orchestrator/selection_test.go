/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/loamworks/conveyor/tracker"
)

func ticketFor(num int, priority tracker.Priority, updated time.Time) tracker.Ticket {
	return tracker.Ticket{
		ID:          tracker.ID{Project: "PROJ", Number: num},
		Summary:     "work",
		Description: "something to do",
		Status:      tracker.StatusOpen,
		Priority:    priority,
		Updated:     updated,
	}
}

func TestEligible(t *testing.T) {
	base := ticketFor(1, tracker.PriorityMedium, time.Now())
	if !Eligible(base) {
		t.Error("Eligible(described, unblocked) = false")
	}

	empty := base
	empty.Description = "   \n"
	if Eligible(empty) {
		t.Error("Eligible(blank description) = true")
	}

	blocked := base
	blocked.Links = []tracker.Link{{
		Type:         tracker.LinkIsBlockedBy,
		Target:       tracker.ID{Project: "PROJ", Number: 9},
		TargetStatus: tracker.StatusInProgress,
	}}
	if Eligible(blocked) {
		t.Error("Eligible(blocked by open ticket) = true")
	}

	unblocked := blocked
	unblocked.Links = []tracker.Link{{
		Type:         tracker.LinkIsBlockedBy,
		Target:       tracker.ID{Project: "PROJ", Number: 9},
		TargetStatus: tracker.StatusResolved,
	}}
	if !Eligible(unblocked) {
		t.Error("Eligible(blocker resolved) = false")
	}

	related := base
	related.Links = []tracker.Link{{
		Type:         tracker.LinkRelates,
		Target:       tracker.ID{Project: "PROJ", Number: 9},
		TargetStatus: tracker.StatusOpen,
	}}
	if !Eligible(related) {
		t.Error("Eligible(non-blocking link) = false")
	}
}

func TestCandidatesOrdering(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
	}
	tk := &fakeTickets{tickets: []tracker.Ticket{
		ticketFor(1, tracker.PriorityLow, day(25)),
		ticketFor(2, tracker.PriorityCritical, day(10)),
		ticketFor(3, tracker.PriorityCritical, day(20)),
		ticketFor(4, tracker.PriorityHigh, day(28)),
	}}

	got, err := Candidates(context.Background(), tk, "PROJ")
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}

	var order []int
	for _, c := range got {
		order = append(order, c.ID.Number)
	}
	// Priority first, then most recently updated.
	want := []int{3, 2, 4, 1}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("candidate order mismatch (-want +got):\n%s", diff)
	}
}
