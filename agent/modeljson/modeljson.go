/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package modeljson pulls structured JSON out of model text output, which
// tends to arrive wrapped in markdown code fences and surrounding prose.
package modeljson

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Fenced returns the body of the first ```json fence in text. If no fence is
// present the whole text is returned with any stray fence markers and
// whitespace trimmed.
func Fenced(text string) string {
	var body []string
	inFence := false
	for line := range strings.Lines(text) {
		line = strings.TrimSuffix(line, "\n")
		switch {
		case !inFence && line == "```json":
			inFence = true
		case inFence && line == "```":
			return strings.TrimSpace(strings.Join(body, "\n"))
		case inFence:
			body = append(body, line)
		}
	}
	if inFence {
		// Unterminated fence, take what we got.
		return strings.TrimSpace(strings.Join(body, "\n"))
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// Extract unmarshals the fenced JSON in text into T.
func Extract[T any](text string) (T, error) {
	var out T
	if err := json.Unmarshal([]byte(Fenced(text)), &out); err != nil {
		return out, fmt.Errorf("parsing model JSON: %w", err)
	}
	return out, nil
}
