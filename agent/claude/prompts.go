/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package claude

import (
	"github.com/loamworks/conveyor/agent"
	"github.com/loamworks/conveyor/agent/prompt"
)

var planTemplate = prompt.MustNew(`You are planning a code change for the ticket below.

<ticket>
{{ticket}}
</ticket>

Relevant project documentation:

<documentation>
{{docs}}
</documentation>

Produce an ordered plan. Each intent names one file, an action
(create, modify, or delete), and the rationale for touching it.
List intents in the order they should be carried out. Submit the
plan with the submit_plan tool.`)

var proposeTemplate = prompt.MustNew(`You are implementing the plan below as a complete changeset.

<plan>
{{plan}}
</plan>

Findings from the previous test run, if any. Fix every one of them:

<findings>
{{findings}}
</findings>

Each edit carries the full new content of its file (or marks it
deleted). Include a commit message and the unified diff for the whole
changeset. Submit with the submit_changeset tool.`)

func bindPlanPrompt(brief agent.Brief) (*prompt.Prompt, error) {
	p, err := planTemplate.BindYAML("ticket", brief.Ticket)
	if err != nil {
		return nil, err
	}
	return p.BindYAML("docs", brief.Docs)
}

func bindProposePrompt(plan agent.Plan, findings []agent.Finding) (*prompt.Prompt, error) {
	p, err := proposeTemplate.BindJSON("plan", plan)
	if err != nil {
		return nil, err
	}
	if len(findings) == 0 {
		return p.Bind("findings", "none")
	}
	return p.BindYAML("findings", findings)
}
