package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hrygo/atlas/store"
)

func (d *DB) CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error) {
	fields := []string{"uid", "surface", "thread_id", "created_ts", "updated_ts"}
	args := []any{create.UID, create.Surface, create.ThreadID, create.CreatedTs, create.UpdatedTs}

	stmt := `INSERT INTO conversation (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return create, nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.Surface != nil {
		where, args = append(where, "surface = "+placeholder(len(args)+1)), append(args, *find.Surface)
	}

	query := `SELECT id, uid, surface, thread_id, created_ts, updated_ts FROM conversation WHERE ` + strings.Join(where, " AND ") + ` ORDER BY updated_ts DESC, id DESC`
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Conversation, 0)
	for rows.Next() {
		c := &store.Conversation{}
		if err := rows.Scan(&c.ID, &c.UID, &c.Surface, &c.ThreadID, &c.CreatedTs, &c.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return list, nil
}

func (d *DB) UpdateConversation(ctx context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	set, args := []string{}, []any{}

	if update.ThreadID != nil {
		set, args = append(set, "thread_id = "+placeholder(len(args)+1)), append(args, *update.ThreadID)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE conversation SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` RETURNING id, uid, surface, thread_id, created_ts, updated_ts`
	c := &store.Conversation{}
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&c.ID, &c.UID, &c.Surface, &c.ThreadID, &c.CreatedTs, &c.UpdatedTs); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("conversation not found")
		}
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	return c, nil
}

func (d *DB) DeleteConversation(ctx context.Context, delete *store.DeleteConversation) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM conversation_turn WHERE conversation_id = `+placeholder(1), delete.ID); err != nil {
		return fmt.Errorf("failed to delete conversation_turns: %w", err)
	}
	result, err := d.db.ExecContext(ctx, `DELETE FROM conversation WHERE id = `+placeholder(1), delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("conversation not found")
	}
	return nil
}

func (d *DB) CreateConversationTurn(ctx context.Context, create *store.ConversationTurn) (*store.ConversationTurn, error) {
	fields := []string{"uid", "conversation_id", "role", "content", "failed", "created_ts"}
	args := []any{create.UID, create.ConversationID, string(create.Role), create.Content, create.Failed, create.CreatedTs}

	stmt := `INSERT INTO conversation_turn (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create conversation_turn: %w", err)
	}
	return create, nil
}

func (d *DB) ListConversationTurns(ctx context.Context, find *store.FindConversationTurn) ([]*store.ConversationTurn, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ConversationID != nil {
		where, args = append(where, "conversation_id = "+placeholder(len(args)+1)), append(args, *find.ConversationID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}

	query := `SELECT id, uid, conversation_id, role, content, failed, created_ts FROM conversation_turn WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation_turns: %w", err)
	}
	defer rows.Close()

	list := make([]*store.ConversationTurn, 0)
	for rows.Next() {
		t := &store.ConversationTurn{}
		var role string
		if err := rows.Scan(&t.ID, &t.UID, &t.ConversationID, &role, &t.Content, &t.Failed, &t.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan conversation_turn: %w", err)
		}
		t.Role = store.TurnRole(role)
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation_turns: %w", err)
	}
	return list, nil
}
