/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/waigani/diffparser"

	"github.com/loamworks/conveyor/agent"
	"github.com/loamworks/conveyor/tracker"
)

// ReviewPackage is everything a human reviewer needs to assess the change.
// It is embedded verbatim into the pull request body.
type ReviewPackage struct {
	Summary             string
	FocusAreas          []string
	CriticalFiles       []string
	TestingInstructions string
	Concerns            []string
}

// Complete checks the package's hard invariant: at least one focus area, at
// least one critical file, and non-empty testing instructions.
func (rp ReviewPackage) Complete() error {
	var missing []string
	if len(rp.FocusAreas) == 0 {
		missing = append(missing, "focus areas")
	}
	if len(rp.CriticalFiles) == 0 {
		missing = append(missing, "critical files")
	}
	if strings.TrimSpace(rp.TestingInstructions) == "" {
		missing = append(missing, "testing instructions")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteReviewPackage, strings.Join(missing, ", "))
	}
	return nil
}

// BuildReviewPackage derives the review package from the finished work: the
// ticket and plan provide the summary and focus areas, the changeset's diff
// the critical files, and any findings fixed during the repair loop become
// concerns worth a closer look.
func BuildReviewPackage(ticket tracker.Ticket, plan agent.Plan, cs agent.ChangeSet, passed agent.TestResult, repaired []agent.Finding, testCommand string) (ReviewPackage, error) {
	rp := ReviewPackage{
		Summary: fmt.Sprintf("%s: %s", ticket.ID, ticket.Summary),
		TestingInstructions: fmt.Sprintf("Run `%s` at the repository root; the suite passed in %v during preparation.",
			testCommand, passed.Duration.Round(10*time.Millisecond)),
	}
	if plan.Summary != "" {
		rp.Summary = fmt.Sprintf("%s: %s", ticket.ID, plan.Summary)
	}

	for _, intent := range plan.Intents {
		rp.FocusAreas = append(rp.FocusAreas, fmt.Sprintf("%s (%s): %s", intent.Path, intent.Action, intent.Rationale))
	}

	critical, err := CriticalFiles(cs)
	if err != nil {
		return ReviewPackage{}, err
	}
	rp.CriticalFiles = critical

	for _, f := range repaired {
		rp.Concerns = append(rp.Concerns, fmt.Sprintf("%s failed during preparation and was repaired: %s", f.Test, firstLine(f.Message)))
	}

	return rp, rp.Complete()
}

// CriticalFiles ranks the changeset's files by how much of the diff touches
// them, most churn first. Files the diff does not mention (pure additions in
// a malformed diff, say) fall back to edit order at the end.
func CriticalFiles(cs agent.ChangeSet) ([]string, error) {
	if strings.TrimSpace(cs.Diff) == "" {
		return cs.Files(), nil
	}
	diff, err := diffparser.Parse(cs.Diff)
	if err != nil {
		return nil, fmt.Errorf("parsing changeset diff: %w", err)
	}

	churn := make(map[string]int)
	for _, f := range diff.Files {
		name := f.NewName
		if name == "" {
			name = f.OrigName
		}
		for _, hunk := range f.Hunks {
			for _, line := range hunk.WholeRange.Lines {
				if line.Mode == diffparser.ADDED || line.Mode == diffparser.REMOVED {
					churn[name]++
				}
			}
		}
	}

	files := cs.Files()
	sort.SliceStable(files, func(i, j int) bool {
		return churn[files[i]] > churn[files[j]]
	})
	return files, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
