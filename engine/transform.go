package engine

import "strings"

// ApplyTransform reshapes a message window per the selected strategy. It is a
// pure function: the input slice is never mutated.
func ApplyTransform(kind TransformKind, msgs []ChatMessage, answer string) []ChatMessage {
	switch kind {
	case TransformSplitTrailingText:
		return splitTrailingText(msgs)
	case TransformCollapseToAnswer:
		return []ChatMessage{{Role: "assistant", Content: answer}}
	default:
		return msgs
	}
}

// splitTrailingText restores the strict call/result alternation some
// providers require: an assistant message carrying both a tool call and
// trailing text is split into (tool-call prefix, the following tool result,
// text suffix). Whitespace-only suffixes are not split.
func splitTrailingText(msgs []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for i := 0; i < len(msgs); i++ {
		m := msgs[i]
		splittable := m.Role == "assistant" &&
			len(m.ToolCalls) > 0 &&
			strings.TrimSpace(m.Content) != "" &&
			i+1 < len(msgs) && msgs[i+1].Role == "tool"
		if !splittable {
			out = append(out, m)
			continue
		}
		out = append(out,
			ChatMessage{Role: "assistant", ToolCalls: m.ToolCalls},
			msgs[i+1],
			ChatMessage{Role: "assistant", Content: m.Content},
		)
		i++ // the tool result was consumed
	}
	return out
}

// capWindow trims the window to at most n messages, dropping from the oldest
// end and never reordering.
func capWindow(msgs []ChatMessage, n int) []ChatMessage {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
