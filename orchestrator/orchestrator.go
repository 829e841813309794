/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/loamworks/conveyor/agent"
	"github.com/loamworks/conveyor/agent/retry"
	"github.com/loamworks/conveyor/docstore"
	"github.com/loamworks/conveyor/forge"
	"github.com/loamworks/conveyor/tracker"
)

// DefaultRepairBudget is how many repair iterations the testing stage allows
// before giving up on the changeset.
const DefaultRepairBudget = 3

// Tickets is the slice of the tracker client the workflow needs.
type Tickets interface {
	Search(q tracker.Query) tracker.TicketIterator
	Fetch(ctx context.Context, id tracker.ID) (*tracker.Ticket, error)
	Comment(ctx context.Context, id tracker.ID, body string) error
	Transitions(ctx context.Context, id tracker.ID) ([]tracker.Status, error)
	Transition(ctx context.Context, id tracker.ID, target tracker.Status) error
}

// Forge is the slice of the repository client the workflow needs.
type Forge interface {
	EnsureBranch(ctx context.Context, base, head string) error
	PushFiles(ctx context.Context, head, message string, files map[string]string, removals []string) error
	EnsureOpenPullRequest(ctx context.Context, d forge.Descriptor) (forge.Handle, error)
}

// Docs is the slice of the documentation store the workflow needs. Staged
// writes persist only on Commit; Rollback discards them.
type Docs interface {
	Read(path string) (*docstore.Document, error)
	Stage(path, content string) error
	Commit(ctx context.Context, message string) error
	Rollback()
}

// Config carries the per-project workflow settings.
type Config struct {
	// Project is the tracker project key to select tickets from.
	Project string
	// BaseBranch is the branch pull requests target.
	BaseBranch string
	// RepairBudget caps repair iterations; zero means DefaultRepairBudget.
	RepairBudget int
	// TestCommand is quoted into the review package's testing instructions.
	TestCommand string
}

// Orchestrator wires the capabilities together and runs work items.
type Orchestrator struct {
	cfg      Config
	tickets  Tickets
	forge    Forge
	docs     Docs
	planner  agent.Planner
	proposer agent.Proposer
	runner   agent.Runner

	// failed holds tickets whose work item failed this process. They stay
	// excluded from selection so a persistently failing ticket cannot be
	// picked again on the very next run and starve the rest of the queue.
	failed map[tracker.ID]bool
}

// New validates the wiring and builds an orchestrator.
func New(cfg Config, tickets Tickets, fg Forge, docs Docs, planner agent.Planner, proposer agent.Proposer, runner agent.Runner) (*Orchestrator, error) {
	if cfg.Project == "" {
		return nil, errors.New("config needs a project key")
	}
	if cfg.BaseBranch == "" {
		cfg.BaseBranch = "main"
	}
	if cfg.RepairBudget == 0 {
		cfg.RepairBudget = DefaultRepairBudget
	}
	if cfg.RepairBudget < 0 {
		return nil, errors.New("repair budget cannot be negative")
	}
	if tickets == nil || fg == nil || docs == nil {
		return nil, errors.New("tickets, forge, and docs clients are all required")
	}
	if planner == nil || proposer == nil || runner == nil {
		return nil, errors.New("planner, proposer, and runner are all required")
	}
	return &Orchestrator{
		cfg:      cfg,
		tickets:  tickets,
		forge:    fg,
		docs:     docs,
		planner:  planner,
		proposer: proposer,
		runner:   runner,
		failed:   map[tracker.ID]bool{},
	}, nil
}

// WorkItem is the record of one workflow run. The plan, changeset, and
// review package belong to the item alone; the ticket and pull request are
// referenced by ID.
type WorkItem struct {
	State   State
	Ticket  tracker.ID
	Branch  string
	Plan    agent.Plan
	Changes agent.ChangeSet
	Package ReviewPackage
	PR      forge.Handle
}

// advance moves the item forward, enforcing the state machine.
func (w *WorkItem) advance(ctx context.Context, next State) error {
	if !w.State.CanTransition(next) {
		return fmt.Errorf("cannot move from %s to %s", w.State, next)
	}
	clog.FromContext(ctx).With("ticket", w.Ticket).
		With("from", w.State).
		With("to", next).
		Info("Advancing work item")
	w.State = next
	return nil
}

// fail marks the item terminally failed and wraps the cause.
func (w *WorkItem) fail(stage State, remediation string, err error) (*WorkItem, error) {
	w.State = Failed
	return w, &StageError{Stage: stage, Ticket: w.Ticket, Remediation: remediation, Err: err}
}

// Run executes one work item end to end. It returns ErrNoCandidateFound
// unwrapped when there is nothing to do; every other failure is a
// *StageError, and the failed ticket is excluded from selection for the
// lifetime of this orchestrator. Cancellation mid-run rolls back staged
// documentation without excluding the ticket.
func (o *Orchestrator) Run(ctx context.Context) (item *WorkItem, err error) {
	log := clog.FromContext(ctx)
	item = &WorkItem{State: Selecting}

	defer func() {
		if err == nil {
			return
		}
		// Nothing staged survives a failed or canceled run.
		o.docs.Rollback()
		var stageErr *StageError
		if errors.As(err, &stageErr) && !errors.Is(err, context.Canceled) && !item.Ticket.IsZero() {
			o.failed[item.Ticket] = true
		}
	}()

	// Selecting.
	picked, err := selectTicket(ctx, o.tickets, o.cfg.Project, o.failed)
	if err != nil {
		if errors.Is(err, ErrNoCandidateFound) {
			return item, err
		}
		return item.fail(Selecting, "check tracker connectivity and project key", err)
	}
	item.Ticket = picked.ID
	log = log.With("ticket", item.Ticket)
	ctx = clog.WithLogger(ctx, log)

	// Reading: full detail fetch, retried once on transient failure.
	if err := item.advance(ctx, Reading); err != nil {
		return item.fail(Reading, "state machine bug, file a report", err)
	}
	ticket, err := retry.Do(ctx, retry.Once(), "fetch_ticket", transientTrackerError, func() (*tracker.Ticket, error) {
		return o.tickets.Fetch(ctx, item.Ticket)
	})
	if err != nil {
		return item.fail(Reading, "tracker unreachable, retry the run later",
			&TicketFetchError{ID: item.Ticket, Err: err})
	}
	item.Branch = BranchName(*ticket)
	brief := agent.Brief{Ticket: *ticket, Docs: o.gatherDocs(ctx, *ticket)}

	// Planning.
	if err := item.advance(ctx, Planning); err != nil {
		return item.fail(Planning, "state machine bug, file a report", err)
	}
	plan, err := o.planner.Plan(ctx, brief)
	if err != nil {
		return item.fail(Planning, "inspect the model response and rerun", err)
	}
	if plan.Empty() {
		return item.fail(Planning, "refine the ticket description and rerun", ErrEmptyPlan)
	}
	for _, intent := range plan.Intents {
		if err := intent.Validate(); err != nil {
			return item.fail(Planning, "inspect the model response and rerun", err)
		}
	}
	item.Plan = plan

	// Implementing and Testing, with the repair loop between them.
	cs, passed, repaired, err := o.implementAndTest(ctx, item)
	if err != nil {
		return item, err
	}
	item.Changes = cs

	// ReviewPackaging.
	if err := item.advance(ctx, ReviewPackaging); err != nil {
		return item.fail(ReviewPackaging, "state machine bug, file a report", err)
	}
	pkg, err := BuildReviewPackage(*ticket, item.Plan, cs, passed, repaired, o.cfg.TestCommand)
	if err != nil {
		return item.fail(ReviewPackaging, "the changeset lacks reviewable substance, inspect the plan", err)
	}
	item.Package = pkg

	// PullRequestOpen: content first, then the PR keyed by the branch so a
	// rerun updates instead of duplicating.
	if err := item.advance(ctx, PullRequestOpen); err != nil {
		return item.fail(PullRequestOpen, "state machine bug, file a report", err)
	}
	pr, err := o.openPullRequest(ctx, *ticket, item, pkg)
	if err != nil {
		return item.fail(PullRequestOpen, "check forge credentials and branch protection", err)
	}
	item.PR = pr

	// DocSyncing: stage, validate, commit atomically.
	if err := item.advance(ctx, DocSyncing); err != nil {
		return item.fail(DocSyncing, "state machine bug, file a report", err)
	}
	if err := o.syncDocs(ctx, *ticket, item); err != nil {
		return item.fail(DocSyncing, "fix the broken documentation references and rerun", err)
	}

	// TicketUpdating: comment with the PR link, then move the ticket along
	// its allowed path toward Patch Available.
	if err := item.advance(ctx, TicketUpdating); err != nil {
		return item.fail(TicketUpdating, "state machine bug, file a report", err)
	}
	if err := o.updateTicket(ctx, item); err != nil {
		return item.fail(TicketUpdating, "update the ticket manually, the pull request is already open", err)
	}

	if err := item.advance(ctx, Done); err != nil {
		return item.fail(Done, "state machine bug, file a report", err)
	}
	log.With("pr", item.PR.URL).Info("Work item complete")
	return item, nil
}

// implementAndTest realizes the plan, then loops test-and-repair within the
// budget. Any failure discards the changeset in full.
func (o *Orchestrator) implementAndTest(ctx context.Context, item *WorkItem) (agent.ChangeSet, agent.TestResult, []agent.Finding, error) {
	log := clog.FromContext(ctx)
	var none agent.ChangeSet

	var findings []agent.Finding
	var repaired []agent.Finding

	for iteration := 0; ; iteration++ {
		if err := item.advance(ctx, Implementing); err != nil {
			_, ferr := item.fail(Implementing, "state machine bug, file a report", err)
			return none, agent.TestResult{}, nil, ferr
		}
		cs, err := o.proposer.Propose(ctx, item.Plan, findings)
		if err != nil {
			_, ferr := item.fail(Implementing, "inspect the model response and rerun", err)
			return none, agent.TestResult{}, nil, ferr
		}
		if cs.Empty() {
			_, ferr := item.fail(Implementing, "inspect the model response and rerun",
				errors.New("proposer returned an empty changeset"))
			return none, agent.TestResult{}, nil, ferr
		}

		if err := item.advance(ctx, Testing); err != nil {
			_, ferr := item.fail(Testing, "state machine bug, file a report", err)
			return none, agent.TestResult{}, nil, ferr
		}
		result, err := o.runner.Run(ctx, cs)
		if err != nil {
			_, ferr := item.fail(Testing, "check the test command and working tree", err)
			return none, agent.TestResult{}, nil, ferr
		}
		if result.Passed {
			log.With("iterations", iteration).Info("Tests passed")
			return cs, result, repaired, nil
		}

		if iteration >= o.cfg.RepairBudget {
			_, ferr := item.fail(Testing,
				fmt.Sprintf("tests failed %d times, fix the ticket scope or raise the repair budget", iteration+1),
				ErrTestsExhausted)
			return none, agent.TestResult{}, nil, ferr
		}

		findings = result.Findings
		repaired = append(repaired, result.Findings...)
		log.With("iteration", iteration+1).
			With("findings", len(findings)).
			Warn("Tests failed, repairing")
	}
}

// openPullRequest pushes the changeset to the work branch and upserts the
// pull request keyed by that branch.
func (o *Orchestrator) openPullRequest(ctx context.Context, ticket tracker.Ticket, item *WorkItem, pkg ReviewPackage) (forge.Handle, error) {
	body, err := RenderBody(ticket.ID, pkg, item.Changes)
	if err != nil {
		return forge.Handle{}, err
	}

	if err := o.forge.EnsureBranch(ctx, o.cfg.BaseBranch, item.Branch); err != nil {
		return forge.Handle{}, err
	}

	files := make(map[string]string)
	var removals []string
	for _, e := range item.Changes.Edits {
		if e.Delete {
			removals = append(removals, e.Path)
			continue
		}
		files[e.Path] = e.Content
	}
	message := item.Changes.Message
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("%s: %s", ticket.ID, ticket.Summary)
	}
	if err := o.forge.PushFiles(ctx, item.Branch, message, files, removals); err != nil {
		return forge.Handle{}, err
	}

	return o.forge.EnsureOpenPullRequest(ctx, forge.Descriptor{
		Title:  fmt.Sprintf("%s: %s", ticket.ID, ticket.Summary),
		Body:   body,
		Base:   o.cfg.BaseBranch,
		Head:   item.Branch,
		Ticket: ticket.ID,
	})
}

// gatherDocs pulls the documentation relevant to the ticket into the brief:
// the architecture overview if one exists, plus the page for each of the
// ticket's components. Missing pages are skipped, not errors.
func (o *Orchestrator) gatherDocs(ctx context.Context, ticket tracker.Ticket) []agent.BriefDoc {
	paths := []string{"architecture/overview.md"}
	for _, c := range ticket.Components {
		if slug := Slug(c); slug != "" {
			paths = append(paths, fmt.Sprintf("components/%s.md", slug))
		}
	}

	var docs []agent.BriefDoc
	for _, p := range paths {
		d, err := o.docs.Read(p)
		if err != nil {
			if !errors.Is(err, docstore.ErrNotFound) {
				clog.FromContext(ctx).With("path", p).
					With("error", err).
					Warn("Skipping unreadable document")
			}
			continue
		}
		docs = append(docs, agent.BriefDoc{Path: d.Path, Body: d.Body})
	}
	return docs
}

// syncDocs stages the derived documentation and commits it atomically. A
// broken cross-reference aborts the commit with nothing persisted.
func (o *Orchestrator) syncDocs(ctx context.Context, ticket tracker.Ticket, item *WorkItem) error {
	intents := DocIntents(ticket, item.Changes.Files(), item.PR.URL, ticket.Updated)
	if err := stageDocs(o.docs, intents); err != nil {
		return err
	}
	return o.docs.Commit(ctx, fmt.Sprintf("docs: record %s", ticket.ID))
}

// updateTicket comments the PR link and walks the ticket toward Patch
// Available along the tracker's allowed transitions.
func (o *Orchestrator) updateTicket(ctx context.Context, item *WorkItem) error {
	comment := fmt.Sprintf("Change delivered for review: %s", item.PR.URL)
	if err := o.tickets.Comment(ctx, item.Ticket, comment); err != nil {
		return fmt.Errorf("commenting on %s: %w", item.Ticket, err)
	}

	allowed, err := o.tickets.Transitions(ctx, item.Ticket)
	if err != nil {
		return fmt.Errorf("listing transitions for %s: %w", item.Ticket, err)
	}

	// Prefer landing directly on Patch Available; settle for In Progress
	// when the tracker's workflow requires the intermediate hop.
	for _, target := range []tracker.Status{tracker.StatusPatchAvailable, tracker.StatusInProgress} {
		for _, s := range allowed {
			if s != target {
				continue
			}
			if err := o.tickets.Transition(ctx, item.Ticket, target); err != nil {
				return fmt.Errorf("transitioning %s to %s: %w", item.Ticket, target, err)
			}
			if target == tracker.StatusPatchAvailable {
				return nil
			}
			// Took the intermediate hop; try again for Patch Available.
			return o.transitionToPatchAvailable(ctx, item.Ticket)
		}
	}
	return fmt.Errorf("%w: no allowed path from current status toward %s",
		tracker.ErrInvalidTransition, tracker.StatusPatchAvailable)
}

func (o *Orchestrator) transitionToPatchAvailable(ctx context.Context, id tracker.ID) error {
	allowed, err := o.tickets.Transitions(ctx, id)
	if err != nil {
		return fmt.Errorf("listing transitions for %s: %w", id, err)
	}
	for _, s := range allowed {
		if s == tracker.StatusPatchAvailable {
			if err := o.tickets.Transition(ctx, id, s); err != nil {
				return fmt.Errorf("transitioning %s to %s: %w", id, s, err)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s not reachable after In Progress",
		tracker.ErrInvalidTransition, tracker.StatusPatchAvailable)
}

// transientTrackerError marks remote errors worth a single retry: auth and
// validation failures are not transient, 5xx and 429 responses are.
func transientTrackerError(err error) bool {
	var remote *tracker.RemoteError
	return errors.As(err, &remote) && remote.Temporary()
}
