package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/openseek/openseek/store"
)

func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS `chat` (" +
			"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
			"`uid` VARCHAR(256) NOT NULL UNIQUE," +
			"`creator_id` INT NOT NULL," +
			"`title` TEXT NOT NULL," +
			"`visibility` VARCHAR(32) NOT NULL DEFAULT 'PRIVATE'," +
			"`created_ts` BIGINT NOT NULL," +
			"`updated_ts` BIGINT NOT NULL)",
		"CREATE TABLE IF NOT EXISTS `message` (" +
			"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
			"`chat_id` INT NOT NULL," +
			"`uid` VARCHAR(256) NOT NULL UNIQUE," +
			"`role` VARCHAR(32) NOT NULL," +
			"`type` VARCHAR(32) NOT NULL," +
			"`content` MEDIUMTEXT NOT NULL," +
			"`tool_name` VARCHAR(256) NOT NULL DEFAULT ''," +
			"`tool_call_id` VARCHAR(256) NOT NULL DEFAULT ''," +
			"`group_id` VARCHAR(256) NOT NULL DEFAULT ''," +
			"`trace_id` VARCHAR(256) NOT NULL DEFAULT ''," +
			"`feedback_score` INT NOT NULL DEFAULT 0," +
			"`feedback_comment` TEXT," +
			"`created_ts` BIGINT NOT NULL," +
			"CONSTRAINT `fk_message_chat` FOREIGN KEY (`chat_id`) REFERENCES `chat`(`id`) ON DELETE CASCADE)",
		"CREATE INDEX `idx_message_chat` ON `message`(`chat_id`)",
		"CREATE INDEX `idx_message_trace` ON `message`(`trace_id`)",
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			// Index creation is not idempotent on mysql; ignore duplicates.
			if strings.Contains(err.Error(), "Duplicate key name") {
				continue
			}
			return err
		}
	}
	return nil
}

func (d *DB) CreateChat(ctx context.Context, create *store.Chat) (*store.Chat, error) {
	stmt := "INSERT INTO `chat` (`uid`, `creator_id`, `title`, `visibility`, `created_ts`, `updated_ts`) " +
		"VALUES (?, ?, ?, ?, UNIX_TIMESTAMP(), UNIX_TIMESTAMP())"
	if _, err := d.db.ExecContext(ctx, stmt, create.UID, create.CreatorID, create.Title, string(create.Visibility)); err != nil {
		return nil, err
	}
	// Fetch it back to populate id and timestamps.
	return d.GetChat(ctx, &store.FindChat{UID: &create.UID})
}

func (d *DB) ListChats(ctx context.Context, find *store.FindChat) ([]*store.Chat, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "`creator_id` = ?"), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "`uid` = ?"), append(args, *v)
	}
	query := fmt.Sprintf(
		"SELECT `id`, `uid`, `creator_id`, `title`, `visibility`, `created_ts`, `updated_ts` "+
			"FROM `chat` WHERE %s ORDER BY `updated_ts` DESC",
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
		set, args = append(set, "`title` = ?"), append(args, *v)
	}
	if v := update.Visibility; v != nil {
		set, args = append(set, "`visibility` = ?"), append(args, string(*v))
	}
	if len(set) == 0 {
		return d.GetChat(ctx, &store.FindChat{UID: &update.UID})
	}
	set = append(set, "`updated_ts` = UNIX_TIMESTAMP()")
	args = append(args, update.UID)
	stmt := fmt.Sprintf("UPDATE `chat` SET %s WHERE `uid` = ?", strings.Join(set, ", "))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, err
	}
	return d.GetChat(ctx, &store.FindChat{UID: &update.UID})
}

func (d *DB) DeleteChat(ctx context.Context, uid string) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM `chat` WHERE `uid` = ?", uid)
	return err
}

func (d *DB) CreateMessage(ctx context.Context, create *store.CreateMessage) (*store.Message, error) {
	stmt := "INSERT INTO `message` (`chat_id`, `uid`, `role`, `type`, `content`, `tool_name`, `tool_call_id`, `group_id`, `trace_id`, `created_ts`) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, UNIX_TIMESTAMP())"
	result, err := d.db.ExecContext(ctx, stmt,
		create.ChatID, create.UID, string(create.Role), string(create.Type),
		create.Content, create.ToolName, create.ToolCallID, create.GroupID, create.TraceID,
	)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	m := &store.Message{
		ID:         int32(id),
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
	if err := d.db.QueryRowContext(ctx, "SELECT `created_ts` FROM `message` WHERE `id` = ?", id).
		Scan(&m.CreatedTs); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	where, args := []string{"`chat_id` = ?"}, []any{find.ChatID}
	if v := find.TraceID; v != nil {
		where, args = append(where, "`trace_id` = ?"), append(args, *v)
	}
	query := fmt.Sprintf(
		"SELECT `id`, `chat_id`, `uid`, `role`, `type`, `content`, `tool_name`, `tool_call_id`, `group_id`, `trace_id`, "+
			"`feedback_score`, COALESCE(`feedback_comment`, ''), `created_ts` "+
			"FROM `message` WHERE %s ORDER BY `id` ASC",
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
		"UPDATE `message` SET `feedback_score` = ?, `feedback_comment` = ? WHERE `uid` = ?",
		update.Score, update.Comment, update.MessageUID,
	)
	return err
}
