package engine

import (
	"context"

	"github.com/pkg/errors"
)

const finalizerSystemPrompt = `You are a research assistant writing the final answer.
The conversation contains tool outputs gathered while researching the user's question.
Write a complete, well-structured markdown answer grounded in those outputs.
Cite sources inline as [N](#toolCallId) where N is the result's position in that tool call's output.
Do not call tools. Do not mention the research process.`

// finalizeAnswer produces the turn's answer in one non-looping completion.
// It runs when the research loop gathered tool output without writing
// answer text, which is the normal outcome of the tool-call-only mode.
func (e *Engine) finalizeAnswer(ctx context.Context, window []ChatMessage, priorAnswer string, em Emitter) (string, error) {
	view := ApplyTransform(e.strategy.FinalizerTransform, window, priorAnswer)
	view = capWindow(view, e.strategy.Mode.WindowCap())

	msgs := append([]ChatMessage{{Role: "system", Content: finalizerSystemPrompt}}, view...)
	completion, err := e.client.StreamComplete(ctx, Request{
		Model:    e.models.Research,
		Messages: msgs,
	}, func(delta string) {
		em.Token(delta)
	})
	if err != nil {
		return "", errors.Wrap(err, "finalize answer")
	}
	return completion.Text, nil
}
