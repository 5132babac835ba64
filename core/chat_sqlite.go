package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteChatStore struct {
	db *sql.DB
}

func NewSQLiteChatStore(db *sql.DB) *SQLiteChatStore {
	return &SQLiteChatStore{
		db: db,
	}
}

func directKey(a, b string) string {
	pair := []string{a, b}
	slices.Sort(pair)
	return strings.Join(pair, ":")
}

func countUsers(ctx context.Context, q querier, usernames []string) (int, error) {
	if len(usernames) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(usernames))
	for _, u := range usernames {
		args = append(args, u)
	}
	row := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE username IN ("+strings.Repeat("?,", len(usernames)-1)+"?)", args...)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("scanning count: %w", err)
	}
	return count, nil
}

func (s *SQLiteChatStore) FindOrCreateDirectChat(ctx context.Context, a, b string) (*Chat, bool, error) {
	if a == b {
		return nil, false, NewError(ErrInvalidInput, "cannot start a chat with yourself")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	key := directKey(a, b)
	var id string
	err = tx.QueryRowContext(ctx, "SELECT id FROM chats WHERE direct_key = @key", sql.Named("key", key)).Scan(&id)
	switch {
	case err == nil:
		chat, err := loadChat(ctx, tx, id)
		if err != nil {
			return nil, false, err
		}
		return chat, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("QueryRowContext: %w", err)
	}

	n, err := countUsers(ctx, tx, []string{a, b})
	if err != nil {
		return nil, false, err
	}
	if n != 2 {
		return nil, false, ErrUserNotFound
	}

	id = uuid.New().String()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO chats (id, is_group, direct_key, created_at, updated_at)
		VALUES (@id, FALSE, @key, @now, @now)`,
		sql.Named("id", id), sql.Named("key", key), sql.Named("now", now))
	if err != nil {
		return nil, false, fmt.Errorf("ExecContext(insert chat): %w", err)
	}
	if err := insertMembers(ctx, tx, id, now, a, b); err != nil {
		return nil, false, err
	}

	chat, err := loadChat(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("Commit: %w", err)
	}
	return chat, true, nil
}

func insertMembers(ctx context.Context, q querier, chatID string, at time.Time, usernames ...string) error {
	for _, u := range usernames {
		_, err := q.ExecContext(ctx, `
			INSERT INTO chat_members (chat_id, username, unread, joined_at)
			VALUES (@chat_id, @username, 0, @joined_at)`,
			sql.Named("chat_id", chatID), sql.Named("username", u), sql.Named("joined_at", at))
		if err != nil {
			return fmt.Errorf("ExecContext(insert chat_members): %w", err)
		}
	}
	return nil
}

func (s *SQLiteChatStore) CreateGroupChat(ctx context.Context, name, admin string, members []string) (*Chat, error) {
	members = lo.Uniq(append([]string{admin}, members...))
	if len(members) < 2 {
		return nil, NewError(ErrInvalidInput, "a group needs at least one other member")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	n, err := countUsers(ctx, tx, members)
	if err != nil {
		return nil, err
	}
	if n != len(members) {
		return nil, ErrUserNotFound
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO chats (id, name, is_group, admin, created_at, updated_at)
		VALUES (@id, @name, TRUE, @admin, @now, @now)`,
		sql.Named("id", id), sql.Named("name", name), sql.Named("admin", admin), sql.Named("now", now))
	if err != nil {
		return nil, fmt.Errorf("ExecContext(insert chat): %w", err)
	}
	if err := insertMembers(ctx, tx, id, now, members...); err != nil {
		return nil, err
	}

	chat, err := loadChat(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Commit: %w", err)
	}
	return chat, nil
}

func (s *SQLiteChatStore) GetChatByID(ctx context.Context, chatID string) (*Chat, error) {
	chat, err := loadChat(ctx, s.db, chatID)
	if errors.Is(err, ErrChatNotFound) {
		return nil, nil
	}
	return chat, err
}

// loadChat returns ErrChatNotFound when the chat does not exist.
func loadChat(ctx context.Context, q querier, chatID string) (*Chat, error) {
	chat := &Chat{ID: chatID, Unread: make(map[string]int)}
	var lastMessageID string
	err := q.QueryRowContext(ctx, `
		SELECT name, is_group, admin, last_message_id, created_at, updated_at
		FROM chats WHERE id = @id`, sql.Named("id", chatID)).
		Scan(&chat.Name, &chat.IsGroup, &chat.Admin, &lastMessageID, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("scanning chat: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT username, unread FROM chat_members
		WHERE chat_id = @id ORDER BY joined_at, username`, sql.Named("id", chatID))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	chat.Members = []string{}
	for rows.Next() {
		var username string
		var unread int
		if err := rows.Scan(&username, &unread); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		chat.Members = append(chat.Members, username)
		chat.Unread[username] = unread
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	rows.Close()

	if lastMessageID != "" {
		preview := &MessagePreview{ID: lastMessageID}
		err := q.QueryRowContext(ctx, `
			SELECT sender, content, deleted, created_at FROM messages WHERE id = @id`,
			sql.Named("id", lastMessageID)).
			Scan(&preview.Sender, &preview.Content, &preview.Deleted, &preview.CreatedAt)
		switch {
		case err == nil:
			chat.LastMessage = preview
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("scanning last message: %w", err)
		}
	}

	return chat, nil
}

func (s *SQLiteChatStore) GetUserChats(ctx context.Context, username string) ([]Chat, error) {
	ids, err := s.ChatIDsOf(ctx, username)
	if err != nil {
		return nil, err
	}

	chats := make([]Chat, 0, len(ids))
	for _, id := range ids {
		chat, err := loadChat(ctx, s.db, id)
		if err != nil {
			if errors.Is(err, ErrChatNotFound) {
				continue
			}
			return nil, err
		}
		chats = append(chats, *chat)
	}
	return chats, nil
}

func (s *SQLiteChatStore) ChatIDsOf(ctx context.Context, username string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id FROM chat_members AS cm
		INNER JOIN chats AS c ON c.id = cm.chat_id
		WHERE cm.username = @username
		ORDER BY c.updated_at DESC, c.id`, sql.Named("username", username))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return ids, nil
}

func (s *SQLiteChatStore) ChatMembers(ctx context.Context, chatID string) ([]string, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chats WHERE id = @id", sql.Named("id", chatID)).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("scanning count: %w", err)
	}
	if exists == 0 {
		return nil, ErrChatNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT username FROM chat_members WHERE chat_id = @id ORDER BY username", sql.Named("id", chatID))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		members = append(members, username)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return members, nil
}

func (s *SQLiteChatStore) SetLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE chats SET last_message_id = @message_id, updated_at = @at WHERE id = @id",
		sql.Named("message_id", messageID), sql.Named("at", at.UTC()), sql.Named("id", chatID))
	if err != nil {
		return fmt.Errorf("ExecContext: %w", err)
	}
	return nil
}

func (s *SQLiteChatStore) IncrementUnread(ctx context.Context, chatID, except string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE chat_members SET unread = unread + 1 WHERE chat_id = @chat_id AND username != @except",
		sql.Named("chat_id", chatID), sql.Named("except", except))
	if err != nil {
		return fmt.Errorf("ExecContext: %w", err)
	}
	return nil
}

func (s *SQLiteChatStore) ResetUnread(ctx context.Context, chatID, username string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE chat_members SET unread = 0 WHERE chat_id = @chat_id AND username = @username",
		sql.Named("chat_id", chatID), sql.Named("username", username))
	if err != nil {
		return fmt.Errorf("ExecContext: %w", err)
	}
	return nil
}

func (s *SQLiteChatStore) AddMember(ctx context.Context, chatID, username string) error {
	n, err := countUsers(ctx, s.db, []string{username})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_members (chat_id, username, unread, joined_at)
		VALUES (@chat_id, @username, 0, @joined_at) ON CONFLICT DO NOTHING`,
		sql.Named("chat_id", chatID), sql.Named("username", username), sql.Named("joined_at", time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("ExecContext: %w", err)
	}
	added, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if added == 0 {
		return ErrAlreadyMember
	}
	return nil
}

func (s *SQLiteChatStore) RemoveMember(ctx context.Context, chatID, username string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM chat_members WHERE chat_id = @chat_id AND username = @username",
		sql.Named("chat_id", chatID), sql.Named("username", username))
	if err != nil {
		return fmt.Errorf("ExecContext: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if removed == 0 {
		return ErrNotMember
	}
	return nil
}

// ReplaceMembers sets the members of a chat in one transaction. Every
// username must exist, otherwise nothing changes. Members who stay keep
// their unread counters.
func (s *SQLiteChatStore) ReplaceMembers(ctx context.Context, chatID string, members []string) error {
	members = lo.Uniq(members)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	n, err := countUsers(ctx, tx, members)
	if err != nil {
		return err
	}
	if n != len(members) {
		return ErrUserNotFound
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT username FROM chat_members WHERE chat_id = @id", sql.Named("id", chatID))
	if err != nil {
		return fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var current []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return fmt.Errorf("rows.Scan: %w", err)
		}
		current = append(current, username)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows.Err: %w", err)
	}
	rows.Close()

	for _, u := range lo.Without(current, members...) {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM chat_members WHERE chat_id = @chat_id AND username = @username",
			sql.Named("chat_id", chatID), sql.Named("username", u))
		if err != nil {
			return fmt.Errorf("ExecContext(delete chat_members): %w", err)
		}
	}
	if err := insertMembers(ctx, tx, chatID, time.Now().UTC(), lo.Without(members, current...)...); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	return nil
}

// UpdateGroup sets the name and admin of a group. Empty values are left unchanged.
func (s *SQLiteChatStore) UpdateGroup(ctx context.Context, chatID, name, admin string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chats SET
		name = COALESCE(NULLIF(@name, ''), name),
		admin = COALESCE(NULLIF(@admin, ''), admin),
		updated_at = @now
		WHERE id = @id AND is_group`,
		sql.Named("name", name), sql.Named("admin", admin),
		sql.Named("now", time.Now().UTC()), sql.Named("id", chatID))
	if err != nil {
		return fmt.Errorf("ExecContext: %w", err)
	}
	return nil
}

func (s *SQLiteChatStore) DeleteChat(ctx context.Context, chatID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	queries := []string{
		"DELETE FROM message_receipts WHERE message_id IN (SELECT id FROM messages WHERE chat_id = @id)",
		"DELETE FROM message_reactions WHERE message_id IN (SELECT id FROM messages WHERE chat_id = @id)",
		"DELETE FROM message_edits WHERE message_id IN (SELECT id FROM messages WHERE chat_id = @id)",
		"DELETE FROM messages WHERE chat_id = @id",
		"DELETE FROM chat_members WHERE chat_id = @id",
		"DELETE FROM chats WHERE id = @id",
	}
	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q, sql.Named("id", chatID)); err != nil {
			return fmt.Errorf("ExecContext(%s): %w", q, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	return nil
}
