package engine

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

const relatedSystemPrompt = `Given the conversation so far, propose exactly 3 short follow-up questions the user is likely to ask next. Each must be self-contained and researchable.`

var relatedSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"questions": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required":             []any{"questions"},
	"additionalProperties": false,
}

// generateRelated produces follow-up questions from the finalized turn. The
// window has already been transformed per the active strategy's related-call
// site selection.
func (e *Engine) generateRelated(ctx context.Context, window []ChatMessage) ([]string, error) {
	comp, err := e.client.Complete(ctx, Request{
		Model:      e.models.Related,
		Messages:   append([]ChatMessage{{Role: "system", Content: relatedSystemPrompt}}, window...),
		JSONSchema: relatedSchema,
	})
	if err != nil {
		return nil, errors.Wrap(err, "generate related questions")
	}

	var out struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(comp.Text), &out); err != nil {
		return nil, errors.Wrap(err, "decode related questions")
	}
	if len(out.Questions) > 3 {
		out.Questions = out.Questions[:3]
	}
	return out.Questions, nil
}

// generateTitle produces a short chat title from the first user message.
func (e *Engine) generateTitle(ctx context.Context, firstMessage string) (string, error) {
	comp, err := e.client.Complete(ctx, Request{
		Model: e.models.Related,
		Messages: []ChatMessage{{
			Role:    "user",
			Content: "Generate a short (5-7 word) title for a chat that starts with:\n\"" + firstMessage + "\"\nReturn only the title, no quotes.",
		}},
	})
	if err != nil {
		return "", err
	}
	return comp.Text, nil
}
