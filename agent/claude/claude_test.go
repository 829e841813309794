/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package claude

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/loamworks/conveyor/agent"
	"github.com/loamworks/conveyor/tracker"
)

type staticCreds map[string]string

func (s staticCreds) Secret(_ context.Context, name string) (string, error) {
	return s[name], nil
}

func TestNewRejectsForeignModels(t *testing.T) {
	src := staticCreds{"anthropic-api-key": "key"}
	if _, err := New(context.Background(), src, "gemini-2.5-pro"); err == nil {
		t.Error("New(gemini model) succeeded, want error")
	}
	if _, err := New(context.Background(), src, "claude-sonnet-4-5"); err != nil {
		t.Errorf("New(claude model) error = %v", err)
	}
}

func TestProposeRejectsEmptyPlan(t *testing.T) {
	a, err := New(context.Background(), staticCreds{"anthropic-api-key": "key"}, "claude-sonnet-4-5")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Propose(context.Background(), agent.Plan{}, nil); err == nil {
		t.Error("Propose(empty plan) succeeded, want error")
	}
}

func TestBindPlanPrompt(t *testing.T) {
	brief := agent.Brief{
		Ticket: tracker.Ticket{
			ID:          tracker.ID{Project: "PROJ", Number: 101},
			Summary:     "Fix crash on save",
			Description: "The editor crashes when saving an empty file.",
			Priority:    2,
			Updated:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
		Docs: []agent.BriefDoc{{Path: "components/editor.md", Body: "# Editor\n"}},
	}

	p, err := bindPlanPrompt(brief)
	if err != nil {
		t.Fatalf("bindPlanPrompt() error = %v", err)
	}
	built, err := p.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, want := range []string{"Fix crash on save", "components/editor.md", "submit_plan"} {
		if !strings.Contains(built, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBindProposePromptFindings(t *testing.T) {
	plan := agent.Plan{Intents: []agent.Intent{{Path: "a.go", Action: agent.ActionModify, Rationale: "r"}}}

	p, err := bindProposePrompt(plan, nil)
	if err != nil {
		t.Fatal(err)
	}
	built, _ := p.Build()
	if !strings.Contains(built, "<findings>\nnone\n</findings>") {
		t.Errorf("first iteration should carry no findings, got:\n%s", built)
	}

	p, err = bindProposePrompt(plan, []agent.Finding{{Test: "TestSave", Message: "nil deref"}})
	if err != nil {
		t.Fatal(err)
	}
	built, _ = p.Build()
	if !strings.Contains(built, "TestSave") || !strings.Contains(built, "nil deref") {
		t.Errorf("findings not bound into prompt:\n%s", built)
	}
}

func TestSchemaFor(t *testing.T) {
	m := schemaFor[agent.Plan]()
	if m["type"] != "object" {
		t.Errorf("schema type = %v, want object", m["type"])
	}
	props, ok := m["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %v", m)
	}
	for _, want := range []string{"summary", "intents"} {
		if _, ok := props[want]; !ok {
			t.Errorf("schema missing property %q", want)
		}
	}
}
