/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package prompt

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuild(t *testing.T) {
	p, err := New(`Ticket {{id}} touches:
{{files}}`)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if diff := cmp.Diff(map[string]struct{}{"id": {}, "files": {}}, p.Placeholders()); diff != "" {
		t.Errorf("Placeholders() mismatch (-want +got):\n%s", diff)
	}

	p, err = p.Bind("id", "PROJ-101")
	if err != nil {
		t.Fatalf("Bind(id) error = %v", err)
	}
	p, err = p.BindYAML("files", []string{"a.go", "b.go"})
	if err != nil {
		t.Fatalf("BindYAML(files) error = %v", err)
	}

	got, err := p.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := "Ticket PROJ-101 touches:\n- a.go\n- b.go\n"
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestBuildFailsOnUnbound(t *testing.T) {
	p := MustNew(`{{a}} and {{b}}`)
	p, err := p.Bind("a", "x")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Build(); err == nil || !strings.Contains(err.Error(), "unbound placeholder: b") {
		t.Errorf("Build() error = %v, want unbound placeholder b", err)
	}
}

func TestBindingIsImmutable(t *testing.T) {
	base := MustNew(`hello {{name}}`)

	first, err := base.Bind("name", "one")
	if err != nil {
		t.Fatal(err)
	}
	second, err := base.Bind("name", "two")
	if err != nil {
		t.Fatalf("rebinding from the base prompt failed: %v", err)
	}

	if got, _ := first.Build(); got != "hello one" {
		t.Errorf("first = %q", got)
	}
	if got, _ := second.Build(); got != "hello two" {
		t.Errorf("second = %q", got)
	}

	// The already-bound prompt refuses a second bind.
	if _, err := first.Bind("name", "three"); err == nil {
		t.Error("rebinding a bound placeholder succeeded, want error")
	}
}

func TestBindJSON(t *testing.T) {
	p := MustNew(`{{payload}}`)
	p, err := p.BindJSON("payload", map[string]int{"n": 3})
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Build()
	if err != nil {
		t.Fatal(err)
	}
	if want := "{\n  \"n\": 3\n}"; got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestTemplateErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		tmpl template
	}{
		{"unclosed", `before {{name`},
		{"empty name", `{{}}`},
		{"leading digit", `{{1abc}}`},
		{"spaces inside", `{{two words}}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.tmpl); err == nil {
				t.Errorf("New(%q) succeeded, want error", tc.tmpl)
			}
		})
	}
}

func TestUnknownPlaceholder(t *testing.T) {
	p := MustNew(`{{known}}`)
	if _, err := p.Bind("unknown", "v"); err == nil {
		t.Error("Bind(unknown) succeeded, want error")
	}
}
