/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIntentValidate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		intent  Intent
		wantErr bool
	}{
		{"valid modify", Intent{Path: "a.go", Action: ActionModify}, false},
		{"valid delete", Intent{Path: "a.go", Action: ActionDelete}, false},
		{"missing path", Intent{Action: ActionCreate}, true},
		{"unknown action", Intent{Path: "a.go", Action: "rename"}, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.intent.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %t", err, tc.wantErr)
			}
		})
	}
}

func TestChangeSetFiles(t *testing.T) {
	cs := ChangeSet{Edits: []Edit{
		{Path: "b.go"},
		{Path: "a.go"},
		{Path: "b.go", Delete: true},
	}}
	want := []string{"b.go", "a.go"}
	if diff := cmp.Diff(want, cs.Files()); diff != "" {
		t.Errorf("Files() mismatch (-want +got):\n%s", diff)
	}
}

func TestSupportedModel(t *testing.T) {
	for model, want := range map[string]bool{
		"claude-sonnet-4-5": true,
		"Claude-opus-4":     true,
		"gemini-2.5-pro":    true,
		"gpt-4o":            false,
		"":                  false,
	} {
		if got := SupportedModel(model); got != want {
			t.Errorf("SupportedModel(%q) = %t, want %t", model, got, want)
		}
	}
}
