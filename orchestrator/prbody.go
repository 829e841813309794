/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/loamworks/conveyor/agent"
	"github.com/loamworks/conveyor/tracker"
)

// bodyTemplate renders the pull request body. Every section is mandatory;
// the review package invariant guarantees the lists are non-empty by the
// time this renders.
var bodyTemplate = template.Must(template.New("prbody").Parse(`## Summary

{{.Package.Summary}}

Resolves {{.Ticket}}.

## Changes

{{range .Files}}- {{.}}
{{end}}
## Review Focus Areas

{{range .Package.FocusAreas}}- {{.}}
{{end}}
## Critical Files

{{range .Package.CriticalFiles}}- {{.}}
{{end}}
## Testing Instructions

{{.Package.TestingInstructions}}

## Review Checklist

- [ ] The change matches the ticket's intent
- [ ] Critical files were reviewed line by line
- [ ] Tests cover the changed behavior
- [ ] Documentation updates are accurate

## Potential Concerns

{{if .Package.Concerns}}{{range .Package.Concerns}}- {{.}}
{{end}}{{else}}None noted.
{{end}}`))

// RenderBody renders the full PR body with the review package embedded.
func RenderBody(ticket tracker.ID, rp ReviewPackage, cs agent.ChangeSet) (string, error) {
	if err := rp.Complete(); err != nil {
		return "", err
	}
	var b strings.Builder
	err := bodyTemplate.Execute(&b, struct {
		Ticket  tracker.ID
		Package ReviewPackage
		Files   []string
	}{ticket, rp, cs.Files()})
	if err != nil {
		return "", fmt.Errorf("rendering pull request body: %w", err)
	}
	return b.String(), nil
}

// BranchName derives the idempotency key for a ticket's pull request:
// "{ticket-id}-{slug}" where the slug is the lowercased summary with
// everything but letters and digits collapsed to single dashes.
func BranchName(ticket tracker.Ticket) string {
	slug := Slug(ticket.Summary)
	if slug == "" {
		return ticket.ID.String()
	}
	return fmt.Sprintf("%s-%s", ticket.ID, slug)
}

// Slug lowercases s and collapses runs of non-alphanumerics into dashes.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	const maxSlug = 60
	out := b.String()
	if len(out) > maxSlug {
		out = strings.TrimRight(out[:maxSlug], "-")
	}
	return out
}
