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

	"github.com/loamworks/conveyor/docstore"
	"github.com/loamworks/conveyor/tracker"
)

// DocIntent is one documentation write the workflow wants to make.
type DocIntent struct {
	Path    string
	Content string
}

// DocIntents derives the documentation writes for a delivered change. It is
// a pure function of the ticket, the files the changeset touched, and the
// pull request URL, so the mapping can be audited and tested on its own.
//
// Two kinds of documents come out: a changelog entry for the ticket, and an
// updated note per ticket component. The changelog entry links to each
// component document and each component document links back, so both sides
// of every cross-reference land in the same commit.
func DocIntents(ticket tracker.Ticket, files []string, prURL string, now time.Time) []DocIntent {
	changelogPath := fmt.Sprintf("changelog/%s.md", strings.ToLower(ticket.ID.String()))

	var componentPaths []string
	for _, c := range ticket.Components {
		slug := Slug(c)
		if slug == "" {
			continue
		}
		componentPaths = append(componentPaths, fmt.Sprintf("components/%s.md", slug))
	}
	sort.Strings(componentPaths)

	var intents []DocIntent

	var entry strings.Builder
	fmt.Fprintf(&entry, "## %s: %s\n\n", ticket.ID, ticket.Summary)
	fmt.Fprintf(&entry, "%s\n\n", strings.TrimSpace(ticket.Description))
	if prURL != "" {
		fmt.Fprintf(&entry, "Delivered by [%s](%s).\n\n", prURL, prURL)
	}
	if len(files) > 0 {
		entry.WriteString("Files changed:\n\n")
		for _, f := range files {
			fmt.Fprintf(&entry, "- `%s`\n", f)
		}
		entry.WriteString("\n")
	}
	if len(componentPaths) > 0 {
		entry.WriteString("Components:\n\n")
		for _, p := range componentPaths {
			fmt.Fprintf(&entry, "- [%s](../%s)\n", componentTitle(p), p)
		}
	}

	intents = append(intents, DocIntent{
		Path: changelogPath,
		Content: docstore.Render(docstore.Document{
			Path:    changelogPath,
			Title:   fmt.Sprintf("%s: %s", ticket.ID, ticket.Summary),
			Updated: now,
			Body:    entry.String(),
		}),
	})

	for _, p := range componentPaths {
		var body strings.Builder
		fmt.Fprintf(&body, "# %s\n\n", componentTitle(p))
		fmt.Fprintf(&body, "Last changed by [%s](../%s): %s\n", ticket.ID, changelogPath, ticket.Summary)
		intents = append(intents, DocIntent{
			Path: p,
			Content: docstore.Render(docstore.Document{
				Path:    p,
				Title:   componentTitle(p),
				Updated: now,
				Body:    body.String(),
			}),
		})
	}

	return intents
}

// stageDocs stages every intent; nothing is persisted until Commit.
func stageDocs(docs Docs, intents []DocIntent) error {
	for _, in := range intents {
		if err := docs.Stage(in.Path, in.Content); err != nil {
			return fmt.Errorf("staging %s: %w", in.Path, err)
		}
	}
	return nil
}

func componentTitle(docPath string) string {
	name := strings.TrimSuffix(strings.TrimPrefix(docPath, "components/"), ".md")
	return strings.ReplaceAll(name, "-", " ")
}
