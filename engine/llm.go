package engine

import "context"

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatMessage is one entry in a model call's message window.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// ToolCalls is set on assistant messages that request tool use.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID links a role=tool message back to its request.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Request is a single chat-completion call.
type Request struct {
	Model    string
	Messages []ChatMessage
	// Tools holds OpenAI-compatible tool definitions.
	Tools []map[string]any
	// JSONSchema, when set, enforces structured output with the given schema.
	JSONSchema map[string]any
}

// Completion is the model's reply.
type Completion struct {
	Text         string
	FinishReason string
	ToolCalls    []ToolCall
}

// Client is the minimal interface the engine needs from an LLM provider.
type Client interface {
	// Complete performs one non-streaming call.
	Complete(ctx context.Context, req Request) (*Completion, error)
	// StreamComplete performs one streaming call, invoking onDelta for each
	// answer-text fragment before returning the finished completion.
	StreamComplete(ctx context.Context, req Request, onDelta func(string)) (*Completion, error)
}
