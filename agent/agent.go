/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loamworks/conveyor/tracker"
)

// Action is what an Intent wants done to its file.
type Action string

const (
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
)

// Intent is a single file-level step of a plan: which file, what to do to
// it, and why.
type Intent struct {
	Path      string `json:"path"`
	Action    Action `json:"action"`
	Rationale string `json:"rationale"`
}

// Validate rejects intents that name no file or an unknown action.
func (i Intent) Validate() error {
	if i.Path == "" {
		return errors.New("intent has no path")
	}
	switch i.Action {
	case ActionCreate, ActionModify, ActionDelete:
		return nil
	default:
		return fmt.Errorf("intent %q has unknown action %q", i.Path, i.Action)
	}
}

// Plan is an ordered list of intents. The order is the order the proposer is
// expected to realize them in.
type Plan struct {
	Summary string   `json:"summary"`
	Intents []Intent `json:"intents"`
}

// Empty reports whether the plan contains no intents.
func (p Plan) Empty() bool { return len(p.Intents) == 0 }

// Edit is one realized intent: the full new content of a file, or its
// removal when Delete is set.
type Edit struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Delete  bool   `json:"delete"`
}

// ChangeSet is the complete proposed change for a work item. Edits apply in
// order. Diff is the unified diff over all edits, used downstream to derive
// the files a reviewer must look at.
type ChangeSet struct {
	Message string `json:"message"`
	Edits   []Edit `json:"edits"`
	Diff    string `json:"diff"`
}

// Empty reports whether the changeset carries no edits.
func (cs ChangeSet) Empty() bool { return len(cs.Edits) == 0 }

// Files returns the paths touched by the changeset, in edit order without
// duplicates.
func (cs ChangeSet) Files() []string {
	seen := make(map[string]bool, len(cs.Edits))
	out := make([]string, 0, len(cs.Edits))
	for _, e := range cs.Edits {
		if !seen[e.Path] {
			seen[e.Path] = true
			out = append(out, e.Path)
		}
	}
	return out
}

// Finding is a distilled test failure handed back to the proposer on the
// next repair iteration.
type Finding struct {
	Test    string `json:"test"`
	Message string `json:"message"`
}

// TestResult is the outcome of running the project's tests against a
// changeset. A timed-out run is a failed run.
type TestResult struct {
	Passed   bool
	Output   string
	Findings []Finding
	Duration time.Duration
}

// Brief is everything a planner gets to see: the ticket being worked and the
// relevant documentation gathered during the reading stage.
type Brief struct {
	Ticket tracker.Ticket
	Docs   []BriefDoc
}

// BriefDoc is one documentation page included in a brief.
type BriefDoc struct {
	Path string
	Body string
}

// Planner turns a brief into an ordered plan.
type Planner interface {
	Plan(ctx context.Context, brief Brief) (Plan, error)
}

// Proposer realizes a plan as a changeset. On repair iterations findings
// from the previous test run are passed in; the first iteration passes none.
type Proposer interface {
	Propose(ctx context.Context, plan Plan, findings []Finding) (ChangeSet, error)
}

// Runner executes the project's tests against a changeset.
type Runner interface {
	Run(ctx context.Context, cs ChangeSet) (TestResult, error)
}

// SupportedModel reports whether the model name routes to a known provider.
// Models starting with "claude-" use the Anthropic SDK, "gemini-" the Google
// one.
func SupportedModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "claude-") || strings.HasPrefix(m, "gemini-")
}
