/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package docstore

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// linkPattern matches the target of inline markdown links pointing at other
// documents in the tree. External URLs and intra-document anchors are not
// cross-references.
var linkPattern = regexp.MustCompile(`\]\(([^)\s]+\.md)(?:#[^)\s]*)?\)`)

// parseLinks extracts cross-reference targets from body, resolved relative
// to the referencing document's directory. Targets that escape the tree are
// kept as-is so validation reports them as broken rather than dropping them.
func parseLinks(docPath, body string) []string {
	matches := linkPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var links []string
	for _, m := range matches {
		ref := m[1]
		if strings.Contains(ref, "://") {
			continue
		}
		resolved := path.Clean(path.Join(path.Dir(docPath), ref))
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	}
	return links
}

// BrokenLink is a cross-reference that does not resolve to a document in the
// (staged) tree.
type BrokenLink struct {
	// From is the referencing document.
	From string
	// Ref is the resolved target that does not exist.
	Ref string
}

func (b BrokenLink) String() string {
	return fmt.Sprintf("%s -> %s", b.From, b.Ref)
}

// BrokenLinkError reports the full set of broken cross-references found
// during validation. It is a validation failure, never retried.
type BrokenLinkError struct {
	Broken []BrokenLink
}

func (e *BrokenLinkError) Error() string {
	refs := make([]string, len(e.Broken))
	for i, b := range e.Broken {
		refs[i] = b.String()
	}
	return fmt.Sprintf("broken cross-references: %s", strings.Join(refs, ", "))
}
