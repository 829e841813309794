/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/loamworks/conveyor/tracker"
)

// Eligible reports whether a ticket may be worked on: it must carry enough
// description to act on and must not be blocked by an unresolved ticket.
func Eligible(t tracker.Ticket) bool {
	return strings.TrimSpace(t.Description) != "" && !t.Blocked()
}

// Candidates returns the eligible open tickets for the project, ordered by
// priority (highest first) and then by most recently updated.
func Candidates(ctx context.Context, tickets Tickets, project string) ([]tracker.Ticket, error) {
	it := tickets.Search(tracker.Query{
		Project:  project,
		Statuses: []tracker.Status{tracker.StatusOpen},
	})
	all, err := tracker.Collect(ctx, it)
	if err != nil {
		return nil, fmt.Errorf("searching %s tickets: %w", project, err)
	}

	eligible := all[:0]
	for _, t := range all {
		if Eligible(t) {
			eligible = append(eligible, t)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		return eligible[i].Updated.After(eligible[j].Updated)
	})
	return eligible, nil
}

// selectTicket picks the top candidate not in skip, or ErrNoCandidateFound.
func selectTicket(ctx context.Context, tickets Tickets, project string, skip map[tracker.ID]bool) (tracker.Ticket, error) {
	candidates, err := Candidates(ctx, tickets, project)
	if err != nil {
		return tracker.Ticket{}, err
	}
	for _, c := range candidates {
		if !skip[c.ID] {
			return c, nil
		}
	}
	return tracker.Ticket{}, ErrNoCandidateFound
}
