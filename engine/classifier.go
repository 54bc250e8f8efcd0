package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

// Decision outcomes for a turn.
const (
	NextProceed = "proceed"
	NextInquire = "inquire"
)

// Decision is the task classifier's verdict.
type Decision struct {
	Next string `json:"next"`
}

const classifierSystemPrompt = `You decide whether a search assistant should answer the user's latest message directly or first ask one clarifying question.
Reply with "proceed" when the request is specific enough to research, and "inquire" only when the request is genuinely ambiguous and a single clarifying question would materially improve the answer.`

var classifierSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"next": map[string]any{
			"type": "string",
			"enum": []any{NextProceed, NextInquire},
		},
	},
	"required":             []any{"next"},
	"additionalProperties": false,
}

// classifyTask decides proceed vs inquire for the current window. skip is the
// single allowed bypass: it returns proceed without a model call. Any model
// failure or malformed result also yields proceed; the classifier fails open
// so a broken model never stalls the conversation.
func (e *Engine) classifyTask(ctx context.Context, window []ChatMessage, skip bool) Decision {
	proceed := Decision{Next: NextProceed}
	if skip {
		return proceed
	}

	comp, err := e.client.Complete(ctx, Request{
		Model:      e.models.Classifier,
		Messages:   append([]ChatMessage{{Role: "system", Content: classifierSystemPrompt}}, plainWindow(window)...),
		JSONSchema: classifierSchema,
	})
	if err != nil {
		slog.Warn("task classification failed, proceeding", "err", err)
		return proceed
	}

	var decision Decision
	if err := json.Unmarshal([]byte(comp.Text), &decision); err != nil {
		slog.Warn("task classification unparseable, proceeding", "raw", comp.Text)
		return proceed
	}
	if decision.Next != NextInquire {
		return proceed
	}
	return decision
}

// plainWindow filters tool traffic out of the window, keeping only plain
// user/assistant text.
func plainWindow(window []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(window))
	for _, m := range window {
		if m.Role == "tool" || len(m.ToolCalls) > 0 {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}
