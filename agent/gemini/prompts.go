/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package gemini

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

Respond with a single JSON object of the form
{"summary": string, "intents": [{"path": string, "action": "create"|"modify"|"delete", "rationale": string}]}.
List intents in the order they should be carried out.`)

var proposeTemplate = prompt.MustNew(`You are implementing the plan below as a complete changeset.

<plan>
{{plan}}
</plan>

Findings from the previous test run, if any. Fix every one of them:

<findings>
{{findings}}
</findings>

Respond with a single JSON object of the form
{"message": string, "edits": [{"path": string, "content": string, "delete": bool}], "diff": string}.
Each edit carries the full new content of its file. The diff is the unified
diff for the whole changeset.`)

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
