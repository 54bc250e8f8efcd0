package store

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// MessageType is the closed set of message kinds the engine produces.
// Readers must match these exhaustively; unknown kinds are a data error.
type MessageType string

const (
	// MessageInput is a user submission.
	MessageInput MessageType = "input"
	// MessageInputRelated is a user submission picked from related questions.
	MessageInputRelated MessageType = "input_related"
	// MessageInquiry is a clarifying question; always the sole terminal
	// message of its turn.
	MessageInquiry MessageType = "inquiry"
	// MessageTool is a tool output; always carries a tool name.
	MessageTool MessageType = "tool"
	// MessageAnswer is the finalized answer text of a turn.
	MessageAnswer MessageType = "answer"
	// MessageRelated holds JSON-encoded follow-up questions.
	MessageRelated MessageType = "related"
	// MessageFollowup marks the end of a turn's answer group.
	MessageFollowup MessageType = "followup"
	// MessageEnd is the sentinel appended once a chat's log contains an
	// answer; readers use it to detect fully materialized history.
	MessageEnd MessageType = "end"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageInput, MessageInputRelated, MessageInquiry, MessageTool,
		MessageAnswer, MessageRelated, MessageFollowup, MessageEnd:
		return true
	}
	return false
}

// Visibility controls who can read a chat.
type Visibility string

const (
	Private Visibility = "PRIVATE"
	Public  Visibility = "PUBLIC"
)

// Chat is a single conversation thread.
type Chat struct {
	ID         int32
	UID        string
	CreatorID  int32
	Title      string
	Visibility Visibility
	CreatedTs  int64
	UpdatedTs  int64
}

// Message is one entry in a chat's append-only log. Messages are immutable
// once appended; only feedback metadata may be updated afterward.
type Message struct {
	ID      int32
	ChatID  int32
	UID     string
	Role    Role
	Type    MessageType
	Content string
	// ToolName is non-empty iff Role == RoleTool.
	ToolName string
	// ToolCallID is the provider's id for the call that produced a tool
	// message. Citation markers in answer text reference it.
	ToolCallID string
	// GroupID links every message produced by one turn's research phase.
	GroupID string
	// TraceID correlates the message with the tracing collector.
	TraceID         string
	FeedbackScore   int32
	FeedbackComment string
	CreatedTs       int64
}

// FindChat filters for ListChats / GetChat.
type FindChat struct {
	UID       *string
	CreatorID *int32
}

// UpdateChat carries the mutable chat fields.
type UpdateChat struct {
	UID        string
	Title      *string
	Visibility *Visibility
}

// CreateMessage is the payload for appending a message.
type CreateMessage struct {
	ChatID     int32
	UID        string
	Role       Role
	Type       MessageType
	Content    string
	ToolName   string
	ToolCallID string
	GroupID    string
	TraceID    string
}

// FindMessage filters for ListMessages.
type FindMessage struct {
	ChatID  int32
	TraceID *string
}

// UpdateMessageFeedback records user feedback on a message.
type UpdateMessageFeedback struct {
	MessageUID string
	Score      int32
	Comment    string
}
