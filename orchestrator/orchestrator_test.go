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
	"testing"
	"time"

	"github.com/loamworks/conveyor/agent"
	"github.com/loamworks/conveyor/docstore"
	"github.com/loamworks/conveyor/forge"
	"github.com/loamworks/conveyor/tracker"
)

// sliceIterator serves a fixed ticket slice.
type sliceIterator struct {
	tickets []tracker.Ticket
	i       int
}

func (it *sliceIterator) Next(_ context.Context) (*tracker.Ticket, error) {
	if it.i >= len(it.tickets) {
		return nil, tracker.ErrDone
	}
	t := it.tickets[it.i]
	it.i++
	return &t, nil
}

type fakeTickets struct {
	tickets []tracker.Ticket

	fetchFailures int // remaining Fetch calls that fail with a 500
	fetchErr      error

	comments    []string
	allowed     []tracker.Status
	transitions []tracker.Status
}

func (f *fakeTickets) Search(_ tracker.Query) tracker.TicketIterator {
	return &sliceIterator{tickets: f.tickets}
}

func (f *fakeTickets) Fetch(_ context.Context, id tracker.ID) (*tracker.Ticket, error) {
	if f.fetchFailures > 0 {
		f.fetchFailures--
		return nil, &tracker.RemoteError{Op: "fetch", Code: 500, Body: "boom"}
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	for _, t := range f.tickets {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, &tracker.RemoteError{Op: "fetch", Code: 404, Body: "not found"}
}

func (f *fakeTickets) Comment(_ context.Context, _ tracker.ID, body string) error {
	f.comments = append(f.comments, body)
	return nil
}

func (f *fakeTickets) Transitions(_ context.Context, _ tracker.ID) ([]tracker.Status, error) {
	return f.allowed, nil
}

func (f *fakeTickets) Transition(_ context.Context, _ tracker.ID, target tracker.Status) error {
	for _, s := range f.allowed {
		if s == target {
			f.transitions = append(f.transitions, target)
			return nil
		}
	}
	return tracker.ErrInvalidTransition
}

type fakeForge struct {
	branches []string
	pushes   int
	creates  map[string]int // head -> count
	urls     map[string]string
}

func newFakeForge() *fakeForge {
	return &fakeForge{creates: make(map[string]int), urls: make(map[string]string)}
}

func (f *fakeForge) EnsureBranch(_ context.Context, _, head string) error {
	f.branches = append(f.branches, head)
	return nil
}

func (f *fakeForge) PushFiles(_ context.Context, _, _ string, _ map[string]string, _ []string) error {
	f.pushes++
	return nil
}

func (f *fakeForge) EnsureOpenPullRequest(_ context.Context, d forge.Descriptor) (forge.Handle, error) {
	if _, open := f.urls[d.Head]; !open {
		f.creates[d.Head]++
		f.urls[d.Head] = fmt.Sprintf("https://forge.example/pull/%d", len(f.urls)+1)
	}
	return forge.Handle{Number: f.creates[d.Head], URL: f.urls[d.Head]}, nil
}

type fakeDocs struct {
	committed map[string]string
	staged    map[string]string
	commitErr error
	commits   int
	rollbacks int
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{committed: make(map[string]string), staged: make(map[string]string)}
}

func (f *fakeDocs) Read(path string) (*docstore.Document, error) {
	content, ok := f.committed[path]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	d, err := docstore.Parse(path, content)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (f *fakeDocs) Stage(path, content string) error {
	if _, err := docstore.Parse(path, content); err != nil {
		return err
	}
	f.staged[path] = content
	return nil
}

func (f *fakeDocs) Commit(_ context.Context, _ string) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	for p, c := range f.staged {
		f.committed[p] = c
	}
	f.staged = make(map[string]string)
	f.commits++
	return nil
}

func (f *fakeDocs) Rollback() {
	f.rollbacks++
	f.staged = make(map[string]string)
}

type scriptedPlanner struct {
	plan  agent.Plan
	err   error
	brief agent.Brief
}

func (s *scriptedPlanner) Plan(_ context.Context, brief agent.Brief) (agent.Plan, error) {
	s.brief = brief
	return s.plan, s.err
}

type scriptedProposer struct {
	cs       agent.ChangeSet
	err      error
	calls    int
	findings [][]agent.Finding
}

func (s *scriptedProposer) Propose(_ context.Context, _ agent.Plan, findings []agent.Finding) (agent.ChangeSet, error) {
	s.calls++
	s.findings = append(s.findings, findings)
	return s.cs, s.err
}

// scriptedRunner fails the first failures runs, then passes.
type scriptedRunner struct {
	failures int
	calls    int
}

func (s *scriptedRunner) Run(_ context.Context, _ agent.ChangeSet) (agent.TestResult, error) {
	s.calls++
	if s.calls <= s.failures {
		return agent.TestResult{
			Findings: []agent.Finding{{Test: "TestSave", Message: fmt.Sprintf("failure %d", s.calls)}},
		}, nil
	}
	return agent.TestResult{Passed: true, Duration: 1200 * time.Millisecond}, nil
}

func sampleTicket() tracker.Ticket {
	return tracker.Ticket{
		ID:          tracker.ID{Project: "PROJ", Number: 101},
		Summary:     "Add a null check",
		Description: "Saving an empty file crashes the editor.",
		Status:      tracker.StatusOpen,
		Priority:    tracker.PriorityHigh,
		Components:  []string{"Editor"},
		Updated:     time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}
}

func samplePlan() agent.Plan {
	return agent.Plan{
		Summary: "Guard the save path against empty buffers",
		Intents: []agent.Intent{
			{Path: "editor/save.go", Action: agent.ActionModify, Rationale: "add the nil guard"},
			{Path: "editor/save_test.go", Action: agent.ActionModify, Rationale: "cover the empty buffer case"},
		},
	}
}

func sampleChangeSet() agent.ChangeSet {
	return agent.ChangeSet{
		Message: "PROJ-101: guard empty buffers on save",
		Edits: []agent.Edit{
			{Path: "editor/save.go", Content: "package editor\n"},
			{Path: "editor/save_test.go", Content: "package editor\n"},
		},
		Diff: "diff --git a/editor/save.go b/editor/save.go\n" +
			"--- a/editor/save.go\n+++ b/editor/save.go\n" +
			"@@ -1,2 +1,3 @@\n context\n+guard\n context\n",
	}
}

type harness struct {
	tickets  *fakeTickets
	forge    *fakeForge
	docs     *fakeDocs
	planner  *scriptedPlanner
	proposer *scriptedProposer
	runner   *scriptedRunner
	orch     *Orchestrator
}

func newHarness(t *testing.T, mutate func(*harness)) *harness {
	t.Helper()
	h := &harness{
		tickets: &fakeTickets{
			tickets: []tracker.Ticket{sampleTicket()},
			allowed: []tracker.Status{tracker.StatusInProgress, tracker.StatusPatchAvailable},
		},
		forge:    newFakeForge(),
		docs:     newFakeDocs(),
		planner:  &scriptedPlanner{plan: samplePlan()},
		proposer: &scriptedProposer{cs: sampleChangeSet()},
		runner:   &scriptedRunner{},
	}
	if mutate != nil {
		mutate(h)
	}
	orch, err := New(Config{
		Project:     "PROJ",
		BaseBranch:  "main",
		TestCommand: "go test ./...",
	}, h.tickets, h.forge, h.docs, h.planner, h.proposer, h.runner)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.orch = orch
	return h
}

func TestRunHappyPath(t *testing.T) {
	h := newHarness(t, nil)

	item, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if item.State != Done {
		t.Errorf("State = %s, want Done", item.State)
	}
	if want := "PROJ-101-add-a-null-check"; item.Branch != want {
		t.Errorf("Branch = %q, want %q", item.Branch, want)
	}
	if h.forge.creates[item.Branch] != 1 {
		t.Errorf("PR creates = %d, want 1", h.forge.creates[item.Branch])
	}
	if h.forge.pushes != 1 {
		t.Errorf("pushes = %d, want 1", h.forge.pushes)
	}
	if item.PR.URL == "" {
		t.Error("PR URL is empty")
	}

	if len(h.tickets.comments) != 1 || !strings.Contains(h.tickets.comments[0], item.PR.URL) {
		t.Errorf("comments = %v, want one carrying the PR link", h.tickets.comments)
	}
	if len(h.tickets.transitions) == 0 ||
		h.tickets.transitions[len(h.tickets.transitions)-1] != tracker.StatusPatchAvailable {
		t.Errorf("transitions = %v, want to end at Patch Available", h.tickets.transitions)
	}

	if h.docs.commits != 1 {
		t.Errorf("doc commits = %d, want 1", h.docs.commits)
	}
	if _, ok := h.docs.committed["changelog/proj-101.md"]; !ok {
		t.Errorf("changelog entry not committed, have %v", keys(h.docs.committed))
	}
	if _, ok := h.docs.committed["components/editor.md"]; !ok {
		t.Errorf("component doc not committed, have %v", keys(h.docs.committed))
	}
}

func TestRunPassesDocsInBrief(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.docs.committed["components/editor.md"] = "---\ntitle: editor\n---\n# Editor\nThe save path.\n"
	})

	if _, err := h.orch.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(h.planner.brief.Docs) != 1 || h.planner.brief.Docs[0].Path != "components/editor.md" {
		t.Errorf("brief docs = %+v, want the editor component page", h.planner.brief.Docs)
	}
}

func TestRunNoCandidates(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.tickets.tickets = nil
	})
	_, err := h.orch.Run(context.Background())
	if !errors.Is(err, ErrNoCandidateFound) {
		t.Errorf("Run() error = %v, want ErrNoCandidateFound", err)
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		t.Error("no-candidate outcome should not be a StageError")
	}
}

func TestRunSkipsBlockedTickets(t *testing.T) {
	blocked := sampleTicket()
	blocked.ID = tracker.ID{Project: "PROJ", Number: 205}
	blocked.Priority = tracker.PriorityCritical
	blocked.Links = []tracker.Link{{
		Type:         tracker.LinkIsBlockedBy,
		Target:       tracker.ID{Project: "PROJ", Number: 9},
		TargetStatus: tracker.StatusOpen,
	}}

	h := newHarness(t, func(h *harness) {
		h.tickets.tickets = []tracker.Ticket{blocked, sampleTicket()}
	})

	item, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if item.Ticket.Number != 101 {
		t.Errorf("selected %s despite the blocker on PROJ-205", item.Ticket)
	}
}

func TestRunRetriesTicketFetchOnce(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.tickets.fetchFailures = 1
	})
	if _, err := h.orch.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v, want transient fetch failure absorbed", err)
	}
}

func TestRunSurfacesTicketFetchError(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.tickets.fetchFailures = 10
	})
	_, err := h.orch.Run(context.Background())

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("Run() error = %v, want *StageError", err)
	}
	if stageErr.Stage != Reading {
		t.Errorf("Stage = %s, want Reading", stageErr.Stage)
	}
	var fetchErr *TicketFetchError
	if !errors.As(err, &fetchErr) {
		t.Errorf("Run() error = %v, want wrapped *TicketFetchError", err)
	}
}

func TestRunEmptyPlan(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.planner.plan = agent.Plan{}
	})
	_, err := h.orch.Run(context.Background())
	if !errors.Is(err, ErrEmptyPlan) {
		t.Errorf("Run() error = %v, want ErrEmptyPlan", err)
	}
}

func TestRunExcludesFailedTickets(t *testing.T) {
	second := sampleTicket()
	second.ID = tracker.ID{Project: "PROJ", Number: 102}
	second.Summary = "Fix the autosave timer"
	second.Priority = tracker.PriorityMedium

	h := newHarness(t, func(h *harness) {
		h.tickets.tickets = []tracker.Ticket{sampleTicket(), second}
		h.planner.plan = agent.Plan{}
	})

	// A failed run leaves the ticket open in the tracker, so selection alone
	// would pick it again. The orchestrator must move on instead of retrying
	// the same ticket forever.
	item, err := h.orch.Run(context.Background())
	if !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("first Run() error = %v, want ErrEmptyPlan", err)
	}
	if item.Ticket.Number != 101 {
		t.Fatalf("first Run() picked %s, want PROJ-101", item.Ticket)
	}

	item, err = h.orch.Run(context.Background())
	if !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("second Run() error = %v, want ErrEmptyPlan", err)
	}
	if item.Ticket.Number != 102 {
		t.Errorf("second Run() picked %s, want PROJ-102 after PROJ-101 failed", item.Ticket)
	}

	if _, err := h.orch.Run(context.Background()); !errors.Is(err, ErrNoCandidateFound) {
		t.Errorf("third Run() error = %v, want ErrNoCandidateFound once both tickets failed", err)
	}
}

func TestRunRepairLoop(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.runner.failures = 2
	})

	item, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if h.proposer.calls != 3 {
		t.Errorf("proposer calls = %d, want 3", h.proposer.calls)
	}
	if len(h.proposer.findings[0]) != 0 {
		t.Errorf("first iteration findings = %v, want none", h.proposer.findings[0])
	}
	if len(h.proposer.findings[1]) != 1 || h.proposer.findings[1][0].Message != "failure 1" {
		t.Errorf("second iteration findings = %v", h.proposer.findings[1])
	}
	if len(item.Package.Concerns) != 2 {
		t.Errorf("Concerns = %v, want both repaired findings surfaced", item.Package.Concerns)
	}
}

func TestRunExhaustsRepairBudget(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.runner.failures = 100
	})

	item, err := h.orch.Run(context.Background())
	if !errors.Is(err, ErrTestsExhausted) {
		t.Fatalf("Run() error = %v, want ErrTestsExhausted", err)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != Testing {
		t.Errorf("error = %v, want StageError at Testing", err)
	}

	// Budget of 3 repairs means four attempts in total.
	if h.proposer.calls != 4 {
		t.Errorf("proposer calls = %d, want 4", h.proposer.calls)
	}
	if !item.Changes.Empty() {
		t.Error("changeset survived an exhausted repair budget")
	}
	if h.forge.pushes != 0 {
		t.Error("changeset was pushed despite failing tests")
	}
	if item.State != Failed {
		t.Errorf("State = %s, want Failed", item.State)
	}
}

func TestRunIsIdempotentOnPullRequests(t *testing.T) {
	h := newHarness(t, nil)

	first, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if first.Branch != second.Branch {
		t.Fatalf("branches differ: %q vs %q", first.Branch, second.Branch)
	}
	if h.forge.creates[first.Branch] != 1 {
		t.Errorf("PR creates = %d, want 1 (second run must update, not duplicate)", h.forge.creates[first.Branch])
	}
	if first.PR.URL != second.PR.URL {
		t.Errorf("PR URLs differ: %q vs %q", first.PR.URL, second.PR.URL)
	}
}

func TestRunDocCommitFailureRollsBack(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.docs.commitErr = &docstore.BrokenLinkError{
			Broken: []docstore.BrokenLink{{From: "changelog/proj-101.md", Ref: "components/missing.md"}},
		}
	})

	_, err := h.orch.Run(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != DocSyncing {
		t.Fatalf("Run() error = %v, want StageError at DocSyncing", err)
	}
	if len(h.docs.committed) != 0 {
		t.Errorf("documents persisted despite the broken link: %v", keys(h.docs.committed))
	}
	if h.docs.rollbacks == 0 {
		t.Error("staged docs were not rolled back after the failure")
	}
}

func TestRunInvalidTicketTransition(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.tickets.allowed = []tracker.Status{tracker.StatusClosed}
	})

	_, err := h.orch.Run(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != TicketUpdating {
		t.Fatalf("Run() error = %v, want StageError at TicketUpdating", err)
	}
	if !errors.Is(err, tracker.ErrInvalidTransition) {
		t.Errorf("Run() error = %v, want wrapped ErrInvalidTransition", err)
	}
	if len(h.tickets.transitions) != 0 {
		t.Errorf("transitions = %v, want status untouched", h.tickets.transitions)
	}
}

func TestRunTakesIntermediateHop(t *testing.T) {
	h := newHarness(t, nil)
	// First Transitions call offers only In Progress; after that hop the
	// tracker allows Patch Available.
	h.tickets.allowed = []tracker.Status{tracker.StatusInProgress}
	hopped := false
	// Wrap via a tickets type that flips the allowed set after the hop.
	h.orch.tickets = &hoppingTickets{fakeTickets: h.tickets, hopped: &hopped}

	item, err := h.orch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if item.State != Done {
		t.Errorf("State = %s, want Done", item.State)
	}
	want := []tracker.Status{tracker.StatusInProgress, tracker.StatusPatchAvailable}
	if len(h.tickets.transitions) != 2 ||
		h.tickets.transitions[0] != want[0] || h.tickets.transitions[1] != want[1] {
		t.Errorf("transitions = %v, want %v", h.tickets.transitions, want)
	}
}

type hoppingTickets struct {
	*fakeTickets
	hopped *bool
}

func (h *hoppingTickets) Transition(ctx context.Context, id tracker.ID, target tracker.Status) error {
	err := h.fakeTickets.Transition(ctx, id, target)
	if err == nil && target == tracker.StatusInProgress {
		*h.hopped = true
		h.fakeTickets.allowed = []tracker.Status{tracker.StatusPatchAvailable}
	}
	return err
}

func TestNewValidation(t *testing.T) {
	tk := &fakeTickets{}
	fg := newFakeForge()
	docs := newFakeDocs()
	pl := &scriptedPlanner{}
	pr := &scriptedProposer{}
	rn := &scriptedRunner{}

	if _, err := New(Config{}, tk, fg, docs, pl, pr, rn); err == nil {
		t.Error("New without project succeeded")
	}
	if _, err := New(Config{Project: "PROJ", RepairBudget: -1}, tk, fg, docs, pl, pr, rn); err == nil {
		t.Error("New with negative budget succeeded")
	}
	if _, err := New(Config{Project: "PROJ"}, nil, fg, docs, pl, pr, rn); err == nil {
		t.Error("New without tickets succeeded")
	}
	if _, err := New(Config{Project: "PROJ"}, tk, fg, docs, nil, pr, rn); err == nil {
		t.Error("New without planner succeeded")
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
