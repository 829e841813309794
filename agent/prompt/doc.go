/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package prompt builds model prompts from templates with named
// placeholders. A template declares placeholders as {{name}}; values are
// bound as literal strings or as JSON/YAML-marshaled structures, and Build
// refuses to produce a prompt while any placeholder is still unbound.
//
// Binding returns a new Prompt, so a package-level template can be shared
// and bound per request:
//
//	var planTemplate = prompt.MustNew(`Plan the change for:
//	{{ticket}}
//
//	Relevant documentation:
//	{{docs}}`)
//
//	p, err := planTemplate.BindJSON("ticket", t)
package prompt
