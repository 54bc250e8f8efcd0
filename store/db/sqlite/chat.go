package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/openseek/openseek/store"
)

func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			uid        TEXT    NOT NULL UNIQUE,
			creator_id INTEGER NOT NULL,
			title      TEXT    NOT NULL DEFAULT 'New Chat',
			visibility TEXT    NOT NULL DEFAULT 'PRIVATE',
			created_ts BIGINT  NOT NULL DEFAULT (strftime('%s', 'now')),
			updated_ts BIGINT  NOT NULL DEFAULT (strftime('%s', 'now'))
		)`,
		`CREATE TABLE IF NOT EXISTS message (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id          INTEGER NOT NULL REFERENCES chat(id) ON DELETE CASCADE,
			uid              TEXT    NOT NULL UNIQUE,
			role             TEXT    NOT NULL,
			type             TEXT    NOT NULL,
			content          TEXT    NOT NULL,
			tool_name        TEXT    NOT NULL DEFAULT '',
			tool_call_id     TEXT    NOT NULL DEFAULT '',
			group_id         TEXT    NOT NULL DEFAULT '',
			trace_id         TEXT    NOT NULL DEFAULT '',
			feedback_score   INTEGER NOT NULL DEFAULT 0,
			feedback_comment TEXT    NOT NULL DEFAULT '',
			created_ts       BIGINT  NOT NULL DEFAULT (strftime('%s', 'now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_message_chat ON message(chat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_message_trace ON message(trace_id)`,
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) CreateChat(ctx context.Context, create *store.Chat) (*store.Chat, error) {
	stmt := `INSERT INTO chat (uid, creator_id, title, visibility)
	         VALUES (?, ?, ?, ?)
	         RETURNING id, created_ts, updated_ts`
	if err := d.db.QueryRowContext(ctx, stmt, create.UID, create.CreatorID, create.Title, create.Visibility).
		Scan(&create.ID, &create.CreatedTs, &create.UpdatedTs); err != nil {
		return nil, err
	}
	return create, nil
}

func (d *DB) ListChats(ctx context.Context, find *store.FindChat) ([]*store.Chat, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "creator_id = ?"), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = ?"), append(args, *v)
	}
	query := fmt.Sprintf(
		`SELECT id, uid, creator_id, title, visibility, created_ts, updated_ts
		 FROM chat WHERE %s ORDER BY updated_ts DESC`,
		strings.Join(where, " AND "),
	)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.Chat
	for rows.Next() {
		c := &store.Chat{}
		if err := rows.Scan(&c.ID, &c.UID, &c.CreatorID, &c.Title, &c.Visibility, &c.CreatedTs, &c.UpdatedTs); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (d *DB) GetChat(ctx context.Context, find *store.FindChat) (*store.Chat, error) {
	list, err := d.ListChats(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *DB) UpdateChat(ctx context.Context, update *store.UpdateChat) (*store.Chat, error) {
	set, args := []string{}, []any{}
	if v := update.Title; v != nil {
		set, args = append(set, "title = ?"), append(args, *v)
	}
	if v := update.Visibility; v != nil {
		set, args = append(set, "visibility = ?"), append(args, string(*v))
	}
	if len(set) == 0 {
		return d.GetChat(ctx, &store.FindChat{UID: &update.UID})
	}
	set = append(set, "updated_ts = strftime('%s', 'now')")
	args = append(args, update.UID)
	stmt := fmt.Sprintf(
		`UPDATE chat SET %s WHERE uid = ?
		 RETURNING id, uid, creator_id, title, visibility, created_ts, updated_ts`,
		strings.Join(set, ", "),
	)
	c := &store.Chat{}
	if err := d.db.QueryRowContext(ctx, stmt, args...).
		Scan(&c.ID, &c.UID, &c.CreatorID, &c.Title, &c.Visibility, &c.CreatedTs, &c.UpdatedTs); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *DB) DeleteChat(ctx context.Context, uid string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM chat WHERE uid = ?`, uid)
	return err
}

func (d *DB) CreateMessage(ctx context.Context, create *store.CreateMessage) (*store.Message, error) {
	stmt := `INSERT INTO message (chat_id, uid, role, type, content, tool_name, tool_call_id, group_id, trace_id)
	         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	         RETURNING id, created_ts`
	m := &store.Message{
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
	if err := d.db.QueryRowContext(ctx, stmt,
		create.ChatID, create.UID, string(create.Role), string(create.Type),
		create.Content, create.ToolName, create.ToolCallID, create.GroupID, create.TraceID,
	).Scan(&m.ID, &m.CreatedTs); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	where, args := []string{"chat_id = ?"}, []any{find.ChatID}
	if v := find.TraceID; v != nil {
		where, args = append(where, "trace_id = ?"), append(args, *v)
	}
	query := fmt.Sprintf(
		`SELECT id, chat_id, uid, role, type, content, tool_name, tool_call_id, group_id, trace_id,
		        feedback_score, feedback_comment, created_ts
		 FROM message WHERE %s ORDER BY id ASC`,
		strings.Join(where, " AND "),
	)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.Message
	for rows.Next() {
		m := &store.Message{}
		if err := rows.Scan(&m.ID, &m.ChatID, &m.UID, &m.Role, &m.Type, &m.Content, &m.ToolName,
			&m.ToolCallID, &m.GroupID, &m.TraceID, &m.FeedbackScore, &m.FeedbackComment, &m.CreatedTs); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (d *DB) UpdateMessageFeedback(ctx context.Context, update *store.UpdateMessageFeedback) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE message SET feedback_score = ?, feedback_comment = ? WHERE uid = ?`,
		update.Score, update.Comment, update.MessageUID,
	)
	return err
}
