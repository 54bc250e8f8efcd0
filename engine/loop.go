package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// loopResult is what the research loop hands to the finalizer.
type loopResult struct {
	// Answer is all assistant text accumulated across rounds.
	Answer string
	// ToolOutputs counts tool results produced during the loop.
	ToolOutputs int
	// Rounds is how many model rounds ran.
	Rounds int
	// Window is the working window including the loop's tool traffic.
	Window []ChatMessage
}

// runResearchLoop drives the tool-calling rounds of one turn. The working
// window grows in place as rounds produce tool traffic; each round the model
// sees the transformed, capped view of it. Tool outputs are persisted the
// moment they exist, so an interrupted loop loses no completed work.
func (e *Engine) runResearchLoop(ctx context.Context, window []ChatMessage, tt *turnTools, w *turnWriter, em Emitter) (*loopResult, error) {
	res := &loopResult{}
	seen := map[string]bool{}

	for res.Rounds < e.strategy.MaxRounds {
		res.Rounds++

		view := ApplyTransform(e.strategy.LoopTransform, window, res.Answer)
		view = capWindow(view, e.strategy.Mode.WindowCap())

		var streamed strings.Builder
		completion, err := e.client.StreamComplete(ctx, Request{
			Model:    e.models.Research,
			Messages: view,
			Tools:    tt.defs,
		}, func(delta string) {
			streamed.WriteString(delta)
			em.Token(delta)
		})
		if err != nil {
			// A cut stream still yielded tokens; keep them so the commit
			// preserves the partial answer.
			res.Answer += streamed.String()
			res.Window = window
			return res, errors.Wrap(err, "research round")
		}
		res.Answer += completion.Text

		// Duplicate tool call ids come back from some providers when a
		// stream reconnects. Execute each id once.
		var calls []ToolCall
		for _, call := range completion.ToolCalls {
			if call.ID == "" || seen[call.ID] {
				continue
			}
			seen[call.ID] = true
			calls = append(calls, call)
		}

		if len(calls) > 0 {
			assistant := ChatMessage{Role: "assistant", Content: completion.Text, ToolCalls: calls}
			window = append(window, assistant)

			for _, call := range calls {
				em.ToolCallStarted(call)
				result := tt.execute(ctx, call)
				if _, err := w.AppendTool(ctx, call.Name, call.ID, result); err != nil {
					slog.Error("failed to persist tool output", "tool", call.Name, "err", err)
				}
				res.ToolOutputs++
				em.ToolCallFinished(call, result)
				window = append(window, ChatMessage{Role: "tool", Content: result, ToolCallID: call.ID})
			}
		}

		if e.loopDone(res, completion) {
			break
		}
	}

	res.Window = window
	return res, nil
}

// loopDone decides whether the loop has produced enough to stop, per the
// active operating mode.
func (e *Engine) loopDone(res *loopResult, completion *Completion) bool {
	switch e.strategy.Mode {
	case ModeSingleShot:
		return true
	case ModeToolCallOnly:
		// One batch of tool output, or any answer text, is all this mode
		// wants; the finalizer writes the answer.
		return res.ToolOutputs > 0 || res.Answer != ""
	default:
		// Standard mode runs until the model stops with answer text.
		return completion.FinishReason == "stop" && res.Answer != ""
	}
}
