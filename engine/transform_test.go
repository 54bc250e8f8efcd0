package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTransformIdentity(t *testing.T) {
	msgs := []ChatMessage{{Role: "user", Content: "hi"}}
	assert.Equal(t, msgs, ApplyTransform(TransformIdentity, msgs, ""))
}

func TestApplyTransformCollapseToAnswer(t *testing.T) {
	msgs := []ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "partial", ToolCalls: []ToolCall{{ID: "t1"}}},
		{Role: "tool", Content: "result", ToolCallID: "t1"},
	}
	out := ApplyTransform(TransformCollapseToAnswer, msgs, "the answer so far")
	assert.Equal(t, []ChatMessage{{Role: "assistant", Content: "the answer so far"}}, out)
}

func TestSplitTrailingText(t *testing.T) {
	calls := []ToolCall{{ID: "t1", Name: "search", Arguments: "{}"}}
	msgs := []ChatMessage{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "Let me look that up.", ToolCalls: calls},
		{Role: "tool", Content: "result", ToolCallID: "t1"},
	}
	out := ApplyTransform(TransformSplitTrailingText, msgs, "")
	require.Len(t, out, 4)
	assert.Equal(t, ChatMessage{Role: "user", Content: "question"}, out[0])
	assert.Equal(t, ChatMessage{Role: "assistant", ToolCalls: calls}, out[1])
	assert.Equal(t, ChatMessage{Role: "tool", Content: "result", ToolCallID: "t1"}, out[2])
	assert.Equal(t, ChatMessage{Role: "assistant", Content: "Let me look that up."}, out[3])

	// the input is never mutated
	assert.Equal(t, "Let me look that up.", msgs[1].Content)
	assert.Len(t, msgs, 3)
}

func TestSplitTrailingTextWhitespaceOnly(t *testing.T) {
	msgs := []ChatMessage{
		{Role: "assistant", Content: "  \n\t ", ToolCalls: []ToolCall{{ID: "t1"}}},
		{Role: "tool", Content: "result", ToolCallID: "t1"},
	}
	assert.Equal(t, msgs, ApplyTransform(TransformSplitTrailingText, msgs, ""))
}

func TestSplitTrailingTextNoFollowingToolResult(t *testing.T) {
	msgs := []ChatMessage{
		{Role: "assistant", Content: "text", ToolCalls: []ToolCall{{ID: "t1"}}},
		{Role: "user", Content: "next"},
	}
	assert.Equal(t, msgs, ApplyTransform(TransformSplitTrailingText, msgs, ""))
}

func TestCapWindow(t *testing.T) {
	msgs := []ChatMessage{
		{Role: "user", Content: "1"},
		{Role: "assistant", Content: "2"},
		{Role: "user", Content: "3"},
	}
	assert.Equal(t, msgs, capWindow(msgs, 10))
	assert.Equal(t, msgs, capWindow(msgs, 0))
	assert.Equal(t, msgs[1:], capWindow(msgs, 2))
	assert.Equal(t, msgs[2:], capWindow(msgs, 1))
}

func TestWindowCapPerMode(t *testing.T) {
	assert.Equal(t, 10, ModeStandard.WindowCap())
	assert.Equal(t, 5, ModeToolCallOnly.WindowCap())
	assert.Equal(t, 1, ModeSingleShot.WindowCap())
}
