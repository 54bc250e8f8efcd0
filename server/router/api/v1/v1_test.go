package v1

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/pkg/errors"

	"github.com/openseek/openseek/server/profile"
	"github.com/openseek/openseek/store"
)

// testDriver is an in-memory store.Driver for handler tests.
type testDriver struct {
	mu     sync.Mutex
	nextID int32
	chats  []*store.Chat
	msgs   []*store.Message
}

func (d *testDriver) GetDB() any                    { return nil }
func (d *testDriver) Close() error                  { return nil }
func (d *testDriver) Migrate(context.Context) error { return nil }

func (d *testDriver) CreateChat(_ context.Context, create *store.Chat) (*store.Chat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	chat := *create
	chat.ID = d.nextID
	chat.CreatedTs = time.Now().Unix()
	chat.UpdatedTs = chat.CreatedTs
	d.chats = append(d.chats, &chat)
	return &chat, nil
}

func (d *testDriver) ListChats(_ context.Context, _ *store.FindChat) ([]*store.Chat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*store.Chat(nil), d.chats...), nil
}

func (d *testDriver) GetChat(_ context.Context, find *store.FindChat) (*store.Chat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, chat := range d.chats {
		if find.UID != nil && chat.UID == *find.UID {
			return chat, nil
		}
	}
	return nil, nil
}

func (d *testDriver) UpdateChat(_ context.Context, update *store.UpdateChat) (*store.Chat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, chat := range d.chats {
		if chat.UID == update.UID {
			if update.Title != nil {
				chat.Title = *update.Title
			}
			return chat, nil
		}
	}
	return nil, errors.New("chat not found")
}

func (d *testDriver) DeleteChat(_ context.Context, uid string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, chat := range d.chats {
		if chat.UID == uid {
			d.chats = append(d.chats[:i], d.chats[i+1:]...)
			return nil
		}
	}
	return nil
}

func (d *testDriver) CreateMessage(_ context.Context, create *store.CreateMessage) (*store.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	msg := &store.Message{
		ID:         d.nextID,
		ChatID:     create.ChatID,
		UID:        create.UID,
		Role:       create.Role,
		Type:       create.Type,
		Content:    create.Content,
		ToolName:   create.ToolName,
		ToolCallID: create.ToolCallID,
		GroupID:    create.GroupID,
		TraceID:    create.TraceID,
	}
	d.msgs = append(d.msgs, msg)
	return msg, nil
}

func (d *testDriver) ListMessages(_ context.Context, find *store.FindMessage) ([]*store.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.Message
	for _, m := range d.msgs {
		if m.ChatID == find.ChatID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (d *testDriver) UpdateMessageFeedback(_ context.Context, update *store.UpdateMessageFeedback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.msgs {
		if m.UID == update.MessageUID {
			m.FeedbackScore = update.Score
			m.FeedbackComment = update.Comment
			return nil
		}
	}
	return errors.New("message not found")
}

func newTestService(p *profile.Profile) (*APIV1Service, *echo.Echo, *testDriver) {
	driver := &testDriver{}
	st := store.New(driver)
	svc := NewAPIV1Service(p, st, nil, nil)
	e := echo.New()
	svc.Register(e)
	return svc, e, driver
}
