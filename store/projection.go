package store

import (
	"encoding/json"
	"strings"
)

// BlockKind classifies a renderable unit of the chat view.
type BlockKind string

const (
	BlockUserInput BlockKind = "user_input"
	BlockInquiry   BlockKind = "inquiry"
	BlockTurn      BlockKind = "turn"
)

// RenderedTool is one tool output inside a turn block.
type RenderedTool struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Block is one UI-renderable unit derived from the message log.
type Block struct {
	Kind    BlockKind      `json:"kind"`
	GroupID string         `json:"groupId,omitempty"`
	Text    string         `json:"text,omitempty"`
	Tools   []RenderedTool `json:"tools,omitempty"`
	Related []string       `json:"related,omitempty"`
	Done    bool           `json:"done"`
}

// View is the ephemeral projection of a chat's persisted log. It is derived
// state: never mutated independently, always recomputed from the log.
type View struct {
	Blocks []Block `json:"blocks"`
	// Complete is true once the end sentinel has been persisted.
	Complete bool `json:"complete"`
}

const inquiryPrefix = "inquiry: "

// Project maps a persisted message log to its UI view. It is a pure function:
// the same log always yields the same view, with no I/O.
func Project(msgs []*Message) View {
	var view View
	// index of the open turn block per group id
	open := map[string]int{}

	turnBlock := func(groupID string) *Block {
		if i, ok := open[groupID]; ok {
			return &view.Blocks[i]
		}
		view.Blocks = append(view.Blocks, Block{Kind: BlockTurn, GroupID: groupID})
		open[groupID] = len(view.Blocks) - 1
		return &view.Blocks[len(view.Blocks)-1]
	}

	for _, m := range msgs {
		switch m.Type {
		case MessageInput, MessageInputRelated:
			view.Blocks = append(view.Blocks, Block{Kind: BlockUserInput, Text: m.Content, Done: true})
		case MessageInquiry:
			view.Blocks = append(view.Blocks, Block{
				Kind: BlockInquiry,
				Text: strings.TrimPrefix(m.Content, inquiryPrefix),
				Done: true,
			})
		case MessageTool:
			b := turnBlock(m.GroupID)
			b.Tools = append(b.Tools, RenderedTool{Name: m.ToolName, Content: m.Content})
		case MessageAnswer:
			turnBlock(m.GroupID).Text = m.Content
		case MessageRelated:
			var related []string
			// Malformed JSON yields no related questions, not a failed view.
			_ = json.Unmarshal([]byte(m.Content), &related)
			turnBlock(m.GroupID).Related = related
		case MessageFollowup:
			turnBlock(m.GroupID).Done = true
		}
	}
	// A log is complete only when the sentinel is its final entry; an end
	// followed by a newer input means a turn is in flight.
	if len(msgs) > 0 && msgs[len(msgs)-1].Type == MessageEnd {
		view.Complete = true
	}
	return view
}
