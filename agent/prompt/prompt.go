/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package prompt

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// template is a private alias so that templates can only be supplied as
// untainted string literals, never as user input.
type template string

// Prompt is a template plus the values bound to its placeholders so far.
// Binding methods return a new Prompt and leave the receiver untouched.
type Prompt struct {
	text   string
	values map[string]*value
}

// value is the bound (or not yet bound) content for one placeholder.
type value struct {
	render func() (string, error)
}

// New parses a template and registers its placeholders, all unbound.
func New(tmpl template) (*Prompt, error) {
	values := make(map[string]*value)
	err := walk(string(tmpl), func(name string) error {
		if _, ok := values[name]; !ok {
			values[name] = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Prompt{text: string(tmpl), values: values}, nil
}

// MustNew is New for package-level templates known to be well formed.
func MustNew(tmpl template) *Prompt {
	p, err := New(tmpl)
	if err != nil {
		panic(err)
	}
	return p
}

// Placeholders returns the set of placeholder names the template declares.
func (p *Prompt) Placeholders() map[string]struct{} {
	out := make(map[string]struct{}, len(p.values))
	for name := range p.values {
		out[name] = struct{}{}
	}
	return out
}

// Bind binds a literal string to a placeholder.
func (p *Prompt) Bind(name, val string) (*Prompt, error) {
	return p.bind(name, func() (string, error) { return val, nil })
}

// BindJSON binds structured data, marshaled as indented JSON.
func (p *Prompt) BindJSON(name string, data any) (*Prompt, error) {
	return p.bind(name, func() (string, error) {
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling %q as JSON: %w", name, err)
		}
		return string(b), nil
	})
}

// BindYAML binds structured data, marshaled as YAML.
func (p *Prompt) BindYAML(name string, data any) (*Prompt, error) {
	return p.bind(name, func() (string, error) {
		b, err := yaml.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("marshaling %q as YAML: %w", name, err)
		}
		return string(b), nil
	})
}

func (p *Prompt) bind(name string, render func() (string, error)) (*Prompt, error) {
	v, ok := p.values[name]
	if !ok {
		return nil, fmt.Errorf("placeholder %q not found in template", name)
	}
	if v != nil {
		return nil, fmt.Errorf("placeholder %q already bound", name)
	}
	next := &Prompt{text: p.text, values: maps.Clone(p.values)}
	next.values[name] = &value{render: render}
	return next, nil
}

// Build renders the prompt. It fails if any placeholder is unbound or a
// bound value fails to marshal.
func (p *Prompt) Build() (string, error) {
	rendered := make(map[string]string, len(p.values))
	for name, v := range p.values {
		if v == nil {
			return "", fmt.Errorf("unbound placeholder: %s", name)
		}
		s, err := v.render()
		if err != nil {
			return "", err
		}
		rendered[name] = s
	}

	var b strings.Builder
	err := walkReplace(p.text, &b, func(name string) (string, error) {
		return rendered[name], nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// walk visits each placeholder name in the template.
func walk(tmpl string, visit func(name string) error) error {
	var sink strings.Builder
	return walkReplace(tmpl, &sink, func(name string) (string, error) {
		return "", visit(name)
	})
}

// walkReplace scans the template, writing literal text to out and asking
// replace for the substitution of each {{name}}.
func walkReplace(tmpl string, out *strings.Builder, replace func(name string) (string, error)) error {
	for len(tmpl) > 0 {
		start := strings.Index(tmpl, "{{")
		if start == -1 {
			out.WriteString(tmpl)
			return nil
		}
		out.WriteString(tmpl[:start])

		end := strings.Index(tmpl[start:], "}}")
		if end == -1 {
			return fmt.Errorf("unclosed placeholder near %q", clip(tmpl[start:]))
		}
		end += start

		name := strings.TrimSpace(tmpl[start+2 : end])
		if !validName(name) {
			return fmt.Errorf("invalid placeholder name %q", name)
		}
		s, err := replace(name)
		if err != nil {
			return err
		}
		out.WriteString(s)
		tmpl = tmpl[end+2:]
	}
	return nil
}

// validName requires a leading letter followed by letters, digits, or
// underscores.
func validName(s string) bool {
	for i, r := range s {
		switch {
		case unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || r == '_'):
		default:
			return false
		}
	}
	return s != ""
}

func clip(s string) string {
	if len(s) > 20 {
		return s[:20] + "..."
	}
	return s
}
