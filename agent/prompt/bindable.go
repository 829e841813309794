/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package prompt

// Bindable is implemented by request types that know how to bind their own
// fields into a prompt template. Executors accept a Bindable so the same
// template can serve every request of that type.
type Bindable interface {
	Bind(p *Prompt) (*Prompt, error)
}

// Noop passes the prompt through unchanged.
type Noop struct{}

func (Noop) Bind(p *Prompt) (*Prompt, error) { return p, nil }
