package store

import (
	"context"

	"github.com/pkg/errors"
)

// CreateChat creates a new chat thread.
func (s *Store) CreateChat(ctx context.Context, create *Chat) (*Chat, error) {
	if create.Visibility == "" {
		create.Visibility = Private
	}
	return s.driver.CreateChat(ctx, create)
}

// ListChats lists chats matching the given filter, newest activity first.
func (s *Store) ListChats(ctx context.Context, find *FindChat) ([]*Chat, error) {
	return s.driver.ListChats(ctx, find)
}

// GetChat returns the first chat matching the given filter, or nil.
func (s *Store) GetChat(ctx context.Context, find *FindChat) (*Chat, error) {
	return s.driver.GetChat(ctx, find)
}

// UpdateChat updates a chat's mutable fields.
func (s *Store) UpdateChat(ctx context.Context, update *UpdateChat) (*Chat, error) {
	return s.driver.UpdateChat(ctx, update)
}

// DeleteChat deletes a chat and all its messages (cascade).
func (s *Store) DeleteChat(ctx context.Context, uid string) error {
	return s.driver.DeleteChat(ctx, uid)
}

// CreateMessage appends a message to a chat's log. The log is append-only;
// there is no update or delete path for message content.
func (s *Store) CreateMessage(ctx context.Context, create *CreateMessage) (*Message, error) {
	if !create.Role.Valid() {
		return nil, errors.Errorf("invalid role %q", create.Role)
	}
	if !create.Type.Valid() {
		return nil, errors.Errorf("invalid message type %q", create.Type)
	}
	if create.Role == RoleTool && create.ToolName == "" {
		return nil, errors.New("tool message requires a tool name")
	}
	return s.driver.CreateMessage(ctx, create)
}

// ListMessages returns a chat's messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error) {
	return s.driver.ListMessages(ctx, find)
}

// UpdateMessageFeedback records feedback metadata on a message. Content is
// never touched.
func (s *Store) UpdateMessageFeedback(ctx context.Context, update *UpdateMessageFeedback) error {
	if update.Score != 1 && update.Score != -1 {
		return errors.Errorf("invalid feedback score %d", update.Score)
	}
	return errors.Wrap(s.driver.UpdateMessageFeedback(ctx, update), "update message feedback")
}
