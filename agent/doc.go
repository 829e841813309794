/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package agent defines the capability interfaces the orchestrator drives a
// work item through: planning a change, proposing concrete edits, and running
// the project's tests against them.
//
// The orchestrator never sees a model SDK or a subprocess. It sees a Planner,
// a Proposer, and a Runner, and the subpackages provide implementations:
//
//   - agent/claude and agent/gemini implement Planner and Proposer on top of
//     the Anthropic and Google SDKs.
//   - agent/execrunner implements Runner by executing a configured test
//     command with a wall clock timeout.
//
// agent/prompt, agent/retry, agent/modeljson and agent/metrics are the shared
// plumbing those implementations are built from.
package agent
