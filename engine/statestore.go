package engine

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/openseek/openseek/store"
)

// ErrTurnClosed is returned by append operations after a turn has been
// finalized with an inquiry, a commit, or an error.
var ErrTurnClosed = errors.New("turn already closed")

// turnWriter owns every write a single turn makes to a chat's log. Appends
// are serialized; once the turn reaches a terminal message the writer
// refuses further appends. Tool messages are written the moment the tool
// returns, so a turn interrupted mid-research still leaves its completed
// tool outputs in the log.
type turnWriter struct {
	mu      sync.Mutex
	store   *store.Store
	chat    *store.Chat
	groupID string
	traceID string
	closed  bool
}

func newTurnWriter(s *store.Store, chat *store.Chat, traceID string) *turnWriter {
	return &turnWriter{
		store:   s,
		chat:    chat,
		groupID: shortuuid.New(),
		traceID: traceID,
	}
}

func (w *turnWriter) append(ctx context.Context, role store.Role, t store.MessageType, content, toolName, toolCallID string) (*store.Message, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrTurnClosed
	}
	// Only messages from the research phase onward carry the group id; user
	// submissions and inquiries stand alone in the UI.
	groupID := w.groupID
	switch t {
	case store.MessageInput, store.MessageInputRelated, store.MessageInquiry:
		groupID = ""
	}
	msg, err := w.store.CreateMessage(ctx, &store.CreateMessage{
		ChatID:     w.chat.ID,
		UID:        shortuuid.New(),
		Role:       role,
		Type:       t,
		Content:    content,
		ToolName:   toolName,
		ToolCallID: toolCallID,
		GroupID:    groupID,
		TraceID:    w.traceID,
	})
	return msg, errors.Wrapf(err, "append %s message", t)
}

// AppendInput records the user submission that opened the turn.
func (w *turnWriter) AppendInput(ctx context.Context, content string, isRelated bool) (*store.Message, error) {
	t := store.MessageInput
	if isRelated {
		t = store.MessageInputRelated
	}
	return w.append(ctx, store.RoleUser, t, content, "", "")
}

// AppendInquiry records a clarifying question and closes the turn. An
// inquiry is always the sole terminal message of its turn.
func (w *turnWriter) AppendInquiry(ctx context.Context, content string) (*store.Message, error) {
	msg, err := w.append(ctx, store.RoleAssistant, store.MessageInquiry, content, "", "")
	if err != nil {
		return nil, err
	}
	w.close()
	return msg, nil
}

// AppendTool records one tool output. Called immediately after each tool
// returns, before the next model round starts. The tool-call id is kept so
// citation markers in answer text stay resolvable from the log alone.
func (w *turnWriter) AppendTool(ctx context.Context, toolName, toolCallID, content string) (*store.Message, error) {
	return w.append(ctx, store.RoleTool, store.MessageTool, content, toolName, toolCallID)
}

// CommitAnswer writes the turn's terminal group: answer, related questions
// as JSON, followup marker, then the end sentinel. The writer is closed
// afterward.
func (w *turnWriter) CommitAnswer(ctx context.Context, answer string, related []string) error {
	if _, err := w.append(ctx, store.RoleAssistant, store.MessageAnswer, answer, "", ""); err != nil {
		return err
	}
	if related == nil {
		related = []string{}
	}
	relatedJSON, err := json.Marshal(related)
	if err != nil {
		return errors.Wrap(err, "marshal related questions")
	}
	if _, err := w.append(ctx, store.RoleAssistant, store.MessageRelated, string(relatedJSON), "", ""); err != nil {
		return err
	}
	if _, err := w.append(ctx, store.RoleAssistant, store.MessageFollowup, "", "", ""); err != nil {
		return err
	}
	if _, err := w.append(ctx, store.RoleAssistant, store.MessageEnd, "", "", ""); err != nil {
		return err
	}
	w.close()
	return nil
}

// CommitError records whatever answer text survived an errored turn. The
// end sentinel follows only when there is answer text to seal; a turn that
// errored before producing anything leaves no terminal group, so the view
// stays incomplete. No related or followup messages are written for
// errored turns.
func (w *turnWriter) CommitError(ctx context.Context, answer string) error {
	if answer != "" {
		if _, err := w.append(ctx, store.RoleAssistant, store.MessageAnswer, answer, "", ""); err != nil {
			return err
		}
		if _, err := w.append(ctx, store.RoleAssistant, store.MessageEnd, "", "", ""); err != nil {
			return err
		}
	}
	w.close()
	return nil
}

// GroupID is the identifier shared by every message this turn appends.
func (w *turnWriter) GroupID() string { return w.groupID }

func (w *turnWriter) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
