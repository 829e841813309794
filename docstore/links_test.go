/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package docstore

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLinks(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		want []string
	}{
		{
			name: "sibling and parent-relative links",
			path: "components/tracker.md",
			body: "See [forge](forge.md) and [overview](../architecture/overview.md).",
			want: []string{"components/forge.md", "architecture/overview.md"},
		},
		{
			name: "anchors are stripped",
			path: "apis/tickets.md",
			body: "[search](../components/tracker.md#search)",
			want: []string{"components/tracker.md"},
		},
		{
			name: "external urls ignored",
			path: "dependencies/list.md",
			body: "[upstream](https://example.com/readme.md) and [local](other.md)",
			want: []string{"dependencies/other.md"},
		},
		{
			name: "duplicates collapsed",
			path: "components/a.md",
			body: "[x](b.md) then [y](b.md)",
			want: []string{"components/b.md"},
		},
		{
			name: "non-md links are not cross-references",
			path: "components/a.md",
			body: "[img](diagram.png) [code](../main.go)",
			want: nil,
		},
		{
			name: "escaping reference kept for validation",
			path: "components/a.md",
			body: "[out](../../outside.md)",
			want: []string{"../outside.md"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := parseLinks(tc.path, tc.body)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("parseLinks() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
