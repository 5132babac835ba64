package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

type SQLiteMessageStore struct {
	db *sql.DB
}

func NewSQLiteMessageStore(db *sql.DB) *SQLiteMessageStore {
	return &SQLiteMessageStore{db: db}
}

func (s *SQLiteMessageStore) CreateMessage(ctx context.Context, input MessageCreateInput) (*Message, error) {
	attachments := input.Attachments
	if attachments == nil {
		attachments = []Attachment{}
	}
	encoded, err := json.Marshal(attachments)
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, seq, chat_id, sender, content, attachments, created_at, updated_at)
		VALUES (@id, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE chat_id = @chat_id),
		@chat_id, @sender, @content, @attachments, @now, @now)`,
		sql.Named("id", id), sql.Named("chat_id", input.ChatID), sql.Named("sender", input.Sender),
		sql.Named("content", input.Content), sql.Named("attachments", string(encoded)), sql.Named("now", now))
	if err != nil {
		return nil, fmt.Errorf("ExecContext(insert message): %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO message_receipts (message_id, username, kind, at)
		VALUES (@message_id, @username, @kind, @at)`,
		sql.Named("message_id", id), sql.Named("username", input.Sender),
		sql.Named("kind", Delivered), sql.Named("at", now))
	if err != nil {
		return nil, fmt.Errorf("ExecContext(insert receipt): %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Commit: %w", err)
	}

	return &Message{
		ID:          id,
		ChatID:      input.ChatID,
		Sender:      input.Sender,
		Content:     input.Content,
		Attachments: attachments,
		Reactions:   []Reaction{},
		ReadBy:      []Receipt{},
		DeliveredTo: []Receipt{{Username: input.Sender, At: now}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

const messageColumns = "id, chat_id, sender, content, attachments, edited, deleted, created_at, updated_at"

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var m Message
	var attachments string
	if err := row.Scan(&m.ID, &m.ChatID, &m.Sender, &m.Content, &attachments,
		&m.Edited, &m.Deleted, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return m, err
	}
	if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
		return m, fmt.Errorf("unmarshal attachments: %w", err)
	}
	return m, nil
}

func (s *SQLiteMessageStore) GetMessageByID(ctx context.Context, messageID string) (*Message, error) {
	m, err := scanMessage(s.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = @id", sql.Named("id", messageID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning message: %w", err)
	}
	if err := s.loadDetails(ctx, &m, true); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteMessageStore) loadDetails(ctx context.Context, m *Message, withEdits bool) error {
	var err error
	if m.DeliveredTo, err = s.Receipts(ctx, m.ID, Delivered); err != nil {
		return err
	}
	if m.ReadBy, err = s.Receipts(ctx, m.ID, Read); err != nil {
		return err
	}
	if m.Reactions, err = s.Reactions(ctx, m.ID); err != nil {
		return err
	}
	if withEdits {
		if m.EditHistory, err = s.edits(ctx, m.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteMessageStore) GetChatMessages(ctx context.Context, chatID string, offset, limit int) ([]Message, int, error) {
	if limit <= 0 {
		limit = 50
	}
	offset = max(offset, 0)

	var total int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE chat_id = @chat_id",
		sql.Named("chat_id", chatID)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("scanning count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE chat_id = @chat_id
		ORDER BY seq DESC
		LIMIT @limit OFFSET @offset`,
		sql.Named("chat_id", chatID), sql.Named("limit", limit), sql.Named("offset", offset))
	if err != nil {
		return nil, 0, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("rows.Scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows.Err: %w", err)
	}
	// the single connection is needed for the detail queries below
	rows.Close()

	for i := range messages {
		if err := s.loadDetails(ctx, &messages[i], false); err != nil {
			return nil, 0, err
		}
	}

	slices.Reverse(messages)
	return messages, total, nil
}

func (s *SQLiteMessageStore) AddReceipt(ctx context.Context, messageID, username string, kind ReceiptKind, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO message_receipts (message_id, username, kind, at)
		VALUES (@message_id, @username, @kind, @at) ON CONFLICT DO NOTHING`,
		sql.Named("message_id", messageID), sql.Named("username", username),
		sql.Named("kind", kind), sql.Named("at", at.UTC()))
	if err != nil {
		return false, fmt.Errorf("ExecContext: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("RowsAffected: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteMessageStore) Receipts(ctx context.Context, messageID string, kind ReceiptKind) ([]Receipt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, at FROM message_receipts
		WHERE message_id = @message_id AND kind = @kind
		ORDER BY at, rowid`,
		sql.Named("message_id", messageID), sql.Named("kind", kind))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	receipts := []Receipt{}
	for rows.Next() {
		var r Receipt
		if err := rows.Scan(&r.Username, &r.At); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return receipts, nil
}

func (s *SQLiteMessageStore) ToggleReaction(ctx context.Context, messageID, username, emoji string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM message_reactions
		WHERE message_id = @message_id AND username = @username AND emoji = @emoji`,
		sql.Named("message_id", messageID), sql.Named("username", username), sql.Named("emoji", emoji))
	if err != nil {
		return false, fmt.Errorf("ExecContext(delete reaction): %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("RowsAffected: %w", err)
	}

	if removed == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO message_reactions (message_id, username, emoji, created_at)
			VALUES (@message_id, @username, @emoji, @now)`,
			sql.Named("message_id", messageID), sql.Named("username", username),
			sql.Named("emoji", emoji), sql.Named("now", time.Now().UTC()))
		if err != nil {
			return false, fmt.Errorf("ExecContext(insert reaction): %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("Commit: %w", err)
	}
	return removed == 0, nil
}

func (s *SQLiteMessageStore) Reactions(ctx context.Context, messageID string) ([]Reaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, emoji FROM message_reactions
		WHERE message_id = @message_id ORDER BY rowid`,
		sql.Named("message_id", messageID))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	reactions := []Reaction{}
	for rows.Next() {
		var r Reaction
		if err := rows.Scan(&r.Username, &r.Emoji); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		reactions = append(reactions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return reactions, nil
}

func (s *SQLiteMessageStore) edits(ctx context.Context, messageID string) ([]MessageEdit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT content, edited_at FROM message_edits
		WHERE message_id = @message_id ORDER BY edited_at, rowid`,
		sql.Named("message_id", messageID))
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	var edits []MessageEdit
	for rows.Next() {
		var e MessageEdit
		if err := rows.Scan(&e.Content, &e.EditedAt); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		edits = append(edits, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}
	return edits, nil
}

func (s *SQLiteMessageStore) EditMessage(ctx context.Context, messageID, content string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	var previous string
	if err := tx.QueryRowContext(ctx, "SELECT content FROM messages WHERE id = @id",
		sql.Named("id", messageID)).Scan(&previous); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("scanning content: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO message_edits (message_id, content, edited_at)
		VALUES (@message_id, @content, @at)`,
		sql.Named("message_id", messageID), sql.Named("content", previous), sql.Named("at", at.UTC()))
	if err != nil {
		return fmt.Errorf("ExecContext(insert edit): %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE messages SET content = @content, edited = TRUE, updated_at = @at WHERE id = @id`,
		sql.Named("content", content), sql.Named("at", at.UTC()), sql.Named("id", messageID))
	if err != nil {
		return fmt.Errorf("ExecContext(update message): %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	return nil
}

func (s *SQLiteMessageStore) SoftDeleteMessage(ctx context.Context, messageID string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("BeginTx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE messages SET content = '', attachments = '[]', deleted = TRUE, updated_at = @at
		WHERE id = @id`,
		sql.Named("at", at.UTC()), sql.Named("id", messageID))
	if err != nil {
		return fmt.Errorf("ExecContext(update message): %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("RowsAffected: %w", err)
	}
	if n == 0 {
		return ErrMessageNotFound
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM message_reactions WHERE message_id = @id", sql.Named("id", messageID))
	if err != nil {
		return fmt.Errorf("ExecContext(delete reactions): %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	return nil
}
