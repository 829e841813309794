/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package gemini implements the planning and proposing capabilities on the
// Google Generative AI API. Unlike the Anthropic provider it uses JSON
// response mode rather than a submit tool: the model is constrained to emit
// a single JSON object matching the expected response shape.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"google.golang.org/genai"

	"github.com/loamworks/conveyor/agent"
	"github.com/loamworks/conveyor/agent/metrics"
	"github.com/loamworks/conveyor/agent/modeljson"
	"github.com/loamworks/conveyor/agent/prompt"
	"github.com/loamworks/conveyor/agent/retry"
	"github.com/loamworks/conveyor/creds"
)

const defaultSecretName = "gemini-api-key"

// Agent implements agent.Planner and agent.Proposer.
type Agent struct {
	client          *genai.Client
	model           string
	temperature     float32
	maxOutputTokens int32
	policy          retry.Policy
	genai           *metrics.GenAI
}

// Option configures the agent.
type Option func(*Agent)

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float32) Option {
	return func(a *Agent) { a.temperature = t }
}

// WithMaxOutputTokens overrides the per-response token limit.
func WithMaxOutputTokens(n int32) Option {
	return func(a *Agent) { a.maxOutputTokens = n }
}

// WithRetryPolicy overrides the rate limit retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(a *Agent) { a.policy = p }
}

// New resolves the API key from src and builds the agent. The model must be
// a gemini-* model name.
func New(ctx context.Context, src creds.Source, model string, opts ...Option) (*Agent, error) {
	if !strings.HasPrefix(strings.ToLower(model), "gemini-") {
		return nil, fmt.Errorf("model %q is not a gemini model", model)
	}

	a := &Agent{
		model:           model,
		temperature:     0.2,
		maxOutputTokens: 32768,
		policy:          retry.Default(),
		genai:           metrics.NewGenAI(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}

	key, err := src.Secret(ctx, defaultSecretName)
	if err != nil {
		return nil, fmt.Errorf("resolving gemini credentials: %w", err)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Google AI client: %w", err)
	}
	a.client = client
	return a, nil
}

// Plan implements agent.Planner.
func (a *Agent) Plan(ctx context.Context, brief agent.Brief) (agent.Plan, error) {
	p, err := bindPlanPrompt(brief)
	if err != nil {
		return agent.Plan{}, err
	}
	return generate[agent.Plan](ctx, a, p)
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
	return generate[agent.ChangeSet](ctx, a, p)
}

// generate makes a single JSON-mode generation call and parses the response.
func generate[T any](ctx context.Context, a *Agent, p *prompt.Prompt) (T, error) {
	var zero T
	log := clog.FromContext(ctx)

	built, err := p.Build()
	if err != nil {
		return zero, fmt.Errorf("building prompt: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(a.temperature),
		MaxOutputTokens:  a.maxOutputTokens,
		ResponseMIMEType: "application/json",
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: built}},
	}}

	log.With("model", a.model).
		With("prompt_length", len(built)).
		Info("Generating model response")

	resp, err := retry.Do(ctx, a.policy, "generate_content", isRetryable, func() (*genai.GenerateContentResponse, error) {
		return a.client.Models.GenerateContent(ctx, a.model, contents, config)
	})
	if err != nil {
		return zero, fmt.Errorf("generating content: %w", err)
	}

	if resp.UsageMetadata != nil {
		a.genai.RecordTokens(ctx, a.model,
			int64(resp.UsageMetadata.PromptTokenCount),
			int64(resp.UsageMetadata.CandidatesTokenCount))
	}

	text := resp.Text()
	if text == "" {
		return zero, errors.New("model returned no content")
	}
	return modeljson.Extract[T](text)
}

// isRetryable matches rate limit, quota, and transient server errors. The
// genai SDK does not expose a stable typed error for these, so this matches
// on the message.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"Resource exhausted", "RESOURCE_EXHAUSTED", "rate limit",
		"quota exceeded", "Overloaded", "429", "503",
		"Internal error", "server error",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
