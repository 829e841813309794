/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package docstore

import (
	"fmt"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Categories are the top-level groupings of the document tree. Every
// document path must begin with one of them.
var Categories = []string{
	"architecture",
	"components",
	"data",
	"apis",
	"dependencies",
	"configuration",
	"changelog",
}

// Document is a named node in the store.
type Document struct {
	// Path is the slash-separated location under the store root,
	// e.g. "components/tracker.md".
	Path string

	Title   string
	Updated time.Time
	Body    string

	// Links are the cross-references parsed from Body, resolved to
	// store-relative paths.
	Links []string
}

type frontMatter struct {
	Title   string    `yaml:"title"`
	Updated time.Time `yaml:"updated"`
}

const frontMatterDelim = "---\n"

// ValidPath reports whether p names a markdown document under a known
// category without escaping the tree.
func ValidPath(p string) error {
	if p == "" {
		return fmt.Errorf("empty document path")
	}
	clean := path.Clean(p)
	if clean != p || strings.HasPrefix(clean, "..") || path.IsAbs(clean) {
		return fmt.Errorf("document path %q escapes the store", p)
	}
	if path.Ext(clean) != ".md" {
		return fmt.Errorf("document path %q must end in .md", p)
	}
	category, _, ok := strings.Cut(clean, "/")
	if !ok {
		return fmt.Errorf("document path %q must live under a category", p)
	}
	for _, c := range Categories {
		if category == c {
			return nil
		}
	}
	return fmt.Errorf("unknown category %q in document path %q", category, p)
}

// Render serializes the document as front-matter plus body.
func Render(d Document) string {
	var sb strings.Builder
	sb.WriteString(frontMatterDelim)
	meta, _ := yaml.Marshal(frontMatter{Title: d.Title, Updated: d.Updated.UTC()})
	sb.Write(meta)
	sb.WriteString(frontMatterDelim)
	sb.WriteString(d.Body)
	if !strings.HasSuffix(d.Body, "\n") {
		sb.WriteString("\n")
	}
	return sb.String()
}

// Parse splits raw document content into header and body and resolves its
// cross-reference links relative to docPath.
func Parse(docPath, content string) (Document, error) {
	d := Document{Path: docPath}

	rest, ok := strings.CutPrefix(content, frontMatterDelim)
	if !ok {
		return d, fmt.Errorf("document %s: missing front-matter header", docPath)
	}
	header, body, ok := strings.Cut(rest, frontMatterDelim)
	if !ok {
		return d, fmt.Errorf("document %s: unterminated front-matter header", docPath)
	}

	var meta frontMatter
	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return d, fmt.Errorf("document %s: parsing header: %w", docPath, err)
	}
	if meta.Title == "" {
		return d, fmt.Errorf("document %s: header missing title", docPath)
	}

	d.Title = meta.Title
	d.Updated = meta.Updated
	d.Body = body
	d.Links = parseLinks(docPath, body)
	return d, nil
}
