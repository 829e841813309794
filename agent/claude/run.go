/*
Copyright 2026 The Conveyor Authors
SPDX-License-Identifier: Apache-2.0
*/

package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/chainguard-dev/clog"
	"github.com/invopop/jsonschema"

	"github.com/loamworks/conveyor/agent/modeljson"
	"github.com/loamworks/conveyor/agent/prompt"
	"github.com/loamworks/conveyor/agent/retry"
)

// submitTool names the single tool a conversation carries.
type submitTool struct {
	name        string
	description string
}

// submission is the wire shape of a submit tool invocation.
type submission[T any] struct {
	Reasoning string `json:"reasoning"`
	Payload   T      `json:"payload"`
}

// converse runs a bounded tool conversation and returns the payload the
// model submits through the tool. A final text-only response is parsed as
// fenced JSON instead.
func converse[T any](ctx context.Context, a *Agent, p *prompt.Prompt, tool submitTool) (T, error) {
	var zero T
	log := clog.FromContext(ctx)

	built, err := p.Build()
	if err != nil {
		return zero, fmt.Errorf("building prompt: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(a.temperature),
		Tools: []anthropic.ToolUnionParam{{
			OfTool: &anthropic.ToolParam{
				Name:        tool.name,
				Description: anthropic.String(tool.description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type: constant.Object("object"),
					Properties: map[string]any{
						"reasoning": map[string]any{
							"type":        "string",
							"description": "Why this submission is complete and correct.",
						},
						"payload": schemaFor[T](),
					},
					Required: []string{"reasoning", "payload"},
				},
			},
		}},
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(built),
			},
		}},
	}

	log.With("model", a.model).
		With("tool", tool.name).
		With("prompt_length", len(built)).
		Info("Starting model conversation")

	for turn := 0; turn < a.maxTurns; turn++ {
		message, err := retry.Do(ctx, a.policy, "new_message", isRetryable, func() (anthropic.Message, error) {
			stream := a.client.Messages.NewStreaming(ctx, params)
			var msg anthropic.Message
			for stream.Next() {
				if err := msg.Accumulate(stream.Current()); err != nil {
					return msg, fmt.Errorf("accumulating stream event: %w", err)
				}
			}
			if err := stream.Err(); err != nil {
				return msg, err
			}
			return msg, nil
		})
		if err != nil {
			return zero, fmt.Errorf("streaming model response: %w", err)
		}

		if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
			a.genai.RecordTokens(ctx, a.model, message.Usage.InputTokens, message.Usage.OutputTokens)
		}

		var textContent string
		var toolUses []anthropic.ToolUseBlock
		for _, content := range message.Content {
			switch content.Type {
			case "text":
				textContent = content.Text
			case "tool_use":
				toolUses = append(toolUses, anthropic.ToolUseBlock{
					ID:    content.ID,
					Name:  content.Name,
					Input: content.Input,
				})
			}
		}

		if len(toolUses) == 0 {
			if textContent == "" {
				return zero, errors.New("model returned no content")
			}
			// No submission, treat the text as the structured answer.
			return modeljson.Extract[T](textContent)
		}

		params.Messages = append(params.Messages, message.ToParam())

		var results []anthropic.ContentBlockParamUnion
		for _, use := range toolUses {
			a.genai.RecordToolCall(ctx, a.model, use.Name)

			if use.Name != tool.name {
				log.With("tool", use.Name).Warn("Model requested unknown tool")
				results = append(results, toolResult(use.ID,
					fmt.Sprintf(`{"error": "unknown tool: %s"}`, use.Name)))
				continue
			}

			var sub submission[T]
			if err := json.Unmarshal(use.Input, &sub); err != nil {
				log.With("error", err).Warn("Rejecting malformed submission")
				results = append(results, toolResult(use.ID,
					fmt.Sprintf(`{"error": "invalid input: %s"}`, err)))
				continue
			}

			log.With("reasoning", sub.Reasoning).Info("Model submitted result")
			return sub.Payload, nil
		}

		params.Messages = append(params.Messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRoleUser,
			Content: results,
		})
	}

	return zero, fmt.Errorf("model did not submit within %d turns", a.maxTurns)
}

func toolResult(id, body string) anthropic.ContentBlockParamUnion {
	return anthropic.ContentBlockParamUnion{
		OfToolResult: &anthropic.ToolResultBlockParam{
			ToolUseID: id,
			Content: []anthropic.ToolResultBlockParamContentUnion{{
				OfText: &anthropic.TextBlockParam{Text: body},
			}},
		},
	}
}

// schemaFor reflects T into a JSON schema map for the tool definition.
func schemaFor[T any]() map[string]any {
	r := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  true,
		DoNotReference:             true,
	}
	var zero T
	schema := r.Reflect(&zero)

	b, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}
