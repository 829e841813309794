/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/loamworks/conveyor/agent"
	"github.com/loamworks/conveyor/agent/metrics"
	"github.com/loamworks/conveyor/agent/retry"
	"github.com/loamworks/conveyor/creds"
)

const defaultSecretName = "anthropic-api-key"

// Agent implements agent.Planner and agent.Proposer.
type Agent struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	maxTurns    int
	policy      retry.Policy
	genai       *metrics.GenAI
	extraOpts   []option.RequestOption
}

// Option configures the agent.
type Option func(*Agent)

// WithMaxTokens overrides the per-response token limit.
func WithMaxTokens(n int64) Option {
	return func(a *Agent) { a.maxTokens = n }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(a *Agent) { a.temperature = t }
}

// WithMaxTurns bounds the tool conversation. A model that keeps talking
// without submitting past this many turns is an error, not a hang.
func WithMaxTurns(n int) Option {
	return func(a *Agent) { a.maxTurns = n }
}

// WithRetryPolicy overrides the rate limit retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(a *Agent) { a.policy = p }
}

// WithRequestOptions passes extra options to the underlying SDK client,
// primarily to point it at a test server.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(a *Agent) { a.extraOpts = opts }
}

// New resolves the API key from src and builds the agent. The model must be
// a claude-* model name.
func New(ctx context.Context, src creds.Source, model string, opts ...Option) (*Agent, error) {
	if !strings.HasPrefix(strings.ToLower(model), "claude-") {
		return nil, fmt.Errorf("model %q is not a claude model", model)
	}

	a := &Agent{
		model:       model,
		maxTokens:   32000,
		temperature: 0.2,
		maxTurns:    8,
		policy:      retry.Default(),
		genai:       metrics.NewGenAI(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}

	key, err := src.Secret(ctx, defaultSecretName)
	if err != nil {
		return nil, fmt.Errorf("resolving anthropic credentials: %w", err)
	}
	a.client = anthropic.NewClient(append([]option.RequestOption{
		option.WithAPIKey(key),
	}, a.extraOpts...)...)
	return a, nil
}

// Plan implements agent.Planner.
func (a *Agent) Plan(ctx context.Context, brief agent.Brief) (agent.Plan, error) {
	p, err := bindPlanPrompt(brief)
	if err != nil {
		return agent.Plan{}, err
	}
	return converse[agent.Plan](ctx, a, p, submitTool{
		name:        "submit_plan",
		description: "Submit the final ordered plan for this ticket.",
	})
}

// Propose implements agent.Proposer.
func (a *Agent) Propose(ctx context.Context, plan agent.Plan, findings []agent.Finding) (agent.ChangeSet, error) {
	if plan.Empty() {
		return agent.ChangeSet{}, errors.New("cannot propose from an empty plan")
	}
	p, err := bindProposePrompt(plan, findings)
	if err != nil {
		return agent.ChangeSet{}, err
	}
	return converse[agent.ChangeSet](ctx, a, p, submitTool{
		name:        "submit_changeset",
		description: "Submit the complete changeset realizing the plan.",
	})
}

// isRetryable classifies transient Anthropic API errors: rate limits,
// overload, and gateway timeouts.
func isRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 503, 504, 529:
			return true
		}
	}
	return false
}
