package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// PartialInquiry is a clarifying question, possibly with unresolved fields
// while streaming. Only the final question text is ever persisted.
type PartialInquiry struct {
	Question         string   `json:"question"`
	Options          []string `json:"options"`
	AllowsInput      bool     `json:"allowsInput"`
	InputLabel       string   `json:"inputLabel"`
	InputPlaceholder string   `json:"inputPlaceholder"`
}

// inquiryScalars is the comparable subset used for streaming change
// detection.
type inquiryScalars struct {
	question         string
	optionCount      int
	allowsInput      bool
	inputLabel       string
	inputPlaceholder string
}

func scalars(p PartialInquiry) inquiryScalars {
	return inquiryScalars{
		question:         p.Question,
		optionCount:      len(p.Options),
		allowsInput:      p.AllowsInput,
		inputLabel:       p.InputLabel,
		inputPlaceholder: p.InputPlaceholder,
	}
}

const inquirySystemPrompt = `The user's request is ambiguous. Produce one clarifying question with 3-5 selectable options. Set allowsInput to true when a free-form answer is also sensible, with a short inputLabel and inputPlaceholder.`

var inquirySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"question":         map[string]any{"type": "string"},
		"options":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"allowsInput":      map[string]any{"type": "boolean"},
		"inputLabel":       map[string]any{"type": "string"},
		"inputPlaceholder": map[string]any{"type": "string"},
	},
	"required":             []any{"question", "options", "allowsInput", "inputLabel", "inputPlaceholder"},
	"additionalProperties": false,
}

// generateInquiry streams a clarifying question, emitting partial states as
// fields resolve, and returns the finalized inquiry.
func (e *Engine) generateInquiry(ctx context.Context, window []ChatMessage, em Emitter) (*PartialInquiry, error) {
	var buf strings.Builder
	var last inquiryScalars

	comp, err := e.client.StreamComplete(ctx, Request{
		Model:      e.models.Classifier,
		Messages:   append([]ChatMessage{{Role: "system", Content: inquirySystemPrompt}}, plainWindow(window)...),
		JSONSchema: inquirySchema,
	}, func(delta string) {
		buf.WriteString(delta)
		partial, ok := parsePartialInquiry(buf.String())
		if !ok || partial.Question == "" {
			return
		}
		if s := scalars(partial); s != last {
			last = s
			em.Inquiry(partial)
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "generate inquiry")
	}

	var final PartialInquiry
	if err := json.Unmarshal([]byte(comp.Text), &final); err != nil {
		return nil, errors.Wrap(err, "decode inquiry")
	}
	if strings.TrimSpace(final.Question) == "" {
		return nil, errors.New("inquiry produced no question")
	}
	em.Inquiry(final)
	return &final, nil
}

// parsePartialInquiry attempts to decode a JSON prefix by closing any open
// strings, arrays and objects. Returns false while the prefix is still
// undecodable.
func parsePartialInquiry(prefix string) (PartialInquiry, bool) {
	var p PartialInquiry
	if err := json.Unmarshal([]byte(closeJSON(prefix)), &p); err != nil {
		return PartialInquiry{}, false
	}
	return p, true
}

// closeJSON appends the closers needed to make a truncated JSON document
// syntactically complete.
func closeJSON(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				stack = append(stack, c)
			}
		case '}', ']':
			if !inString && len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	out := s
	if inString {
		out += `"`
	}
	// A dangling key or comma leaves invalid JSON even when balanced; strip
	// trailing separators before closing.
	out = strings.TrimRight(out, ", \t\n:")
	var sb strings.Builder
	sb.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case '{':
			sb.WriteByte('}')
		case '[':
			sb.WriteByte(']')
		}
	}
	return sb.String()
}
