package engine

import (
	"github.com/openseek/openseek/plugin/streamvar"
)

// Emitter receives turn progress as it happens. Implementations must not
// block: the engine calls these inline from the research loop.
type Emitter interface {
	Inquiry(p PartialInquiry)
	Token(delta string)
	ToolCallStarted(call ToolCall)
	ToolCallFinished(call ToolCall, result string)
	Related(questions []string)
	Error(err error)
	Done(result *TurnResult)
}

// NopEmitter discards all events. Useful for background turns and tests.
type NopEmitter struct{}

func (NopEmitter) Inquiry(PartialInquiry)            {}
func (NopEmitter) Token(string)                      {}
func (NopEmitter) ToolCallStarted(ToolCall)          {}
func (NopEmitter) ToolCallFinished(ToolCall, string) {}
func (NopEmitter) Related([]string)                  {}
func (NopEmitter) Error(error)                       {}
func (NopEmitter) Done(*TurnResult)                  {}

// EventKind labels a streamed turn event.
type EventKind string

const (
	EventInquiry    EventKind = "inquiry"
	EventToken      EventKind = "token"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventRelated    EventKind = "related"
	EventError      EventKind = "error"
	EventDone       EventKind = "done"
)

// Event is one streamed turn event, shaped for direct JSON serialization.
type Event struct {
	Kind       EventKind       `json:"kind"`
	Token      string          `json:"token,omitempty"`
	Inquiry    *PartialInquiry `json:"inquiry,omitempty"`
	ToolCall   *ToolCall       `json:"toolCall,omitempty"`
	ToolResult string          `json:"toolResult,omitempty"`
	Related    []string        `json:"related,omitempty"`
	Error      string          `json:"error,omitempty"`
	Result     *TurnResult     `json:"result,omitempty"`
}

// StreamEmitter broadcasts turn events through a stream variable. The
// engine is the single writer; any number of subscribers may attach, before
// or after events flow, and a late subscriber immediately sees the latest
// state.
type StreamEmitter struct {
	v *streamvar.Var[Event]
}

func NewStreamEmitter() *StreamEmitter {
	return &StreamEmitter{v: streamvar.New[Event]()}
}

// Subscribe returns a channel of turn events and a cancel function. The
// channel closes after the done event; a consumer that stops reading early
// must cancel so the broadcast releases its delivery goroutine.
func (s *StreamEmitter) Subscribe() (<-chan streamvar.Event[Event], func()) {
	return s.v.Subscribe()
}

func (s *StreamEmitter) Inquiry(p PartialInquiry) {
	s.v.Update(Event{Kind: EventInquiry, Inquiry: &p})
}

func (s *StreamEmitter) Token(delta string) {
	s.v.Update(Event{Kind: EventToken, Token: delta})
}

func (s *StreamEmitter) ToolCallStarted(call ToolCall) {
	s.v.Update(Event{Kind: EventToolCall, ToolCall: &call})
}

func (s *StreamEmitter) ToolCallFinished(call ToolCall, result string) {
	s.v.Update(Event{Kind: EventToolResult, ToolCall: &call, ToolResult: result})
}

func (s *StreamEmitter) Related(questions []string) {
	s.v.Update(Event{Kind: EventRelated, Related: questions})
}

func (s *StreamEmitter) Error(err error) {
	s.v.Update(Event{Kind: EventError, Error: err.Error()})
}

func (s *StreamEmitter) Done(result *TurnResult) {
	s.v.Done(Event{Kind: EventDone, Result: result})
}
