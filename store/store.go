package store

import "context"

// Driver is the interface each database backend implements.
type Driver interface {
	GetDB() any
	Close() error

	Migrate(ctx context.Context) error

	CreateChat(ctx context.Context, create *Chat) (*Chat, error)
	ListChats(ctx context.Context, find *FindChat) ([]*Chat, error)
	GetChat(ctx context.Context, find *FindChat) (*Chat, error)
	UpdateChat(ctx context.Context, update *UpdateChat) (*Chat, error)
	DeleteChat(ctx context.Context, uid string) error

	CreateMessage(ctx context.Context, create *CreateMessage) (*Message, error)
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)
	UpdateMessageFeedback(ctx context.Context, update *UpdateMessageFeedback) error
}

// Store is the data access layer. All reads and writes go through a Driver.
type Store struct {
	driver Driver
}

// New creates a Store backed by the given driver.
func New(driver Driver) *Store {
	return &Store{driver: driver}
}

// Migrate ensures the schema exists.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.driver.Close()
}
