package core

import (
	"context"
	"time"
)

type Attachment struct {
	URL  string `json:"url" validate:"required,url"`
	Name string `json:"name" validate:"max=255"`
	Type string `json:"type"`
	Size int64  `json:"size" validate:"gte=0"`
}

// Receipt records the first time a user received or read a message.
type Receipt struct {
	Username string    `json:"userId"`
	At       time.Time `json:"at"`
}

type Reaction struct {
	Username string `json:"userId"`
	Emoji    string `json:"emoji"`
}

type MessageEdit struct {
	Content  string    `json:"content"`
	EditedAt time.Time `json:"editedAt"`
}

type ReceiptKind string

const (
	Delivered ReceiptKind = "delivered"
	Read      ReceiptKind = "read"
)

// DeliveryStatus is how a message is shown to its sender.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

type Message struct {
	ID          string        `json:"id"`
	ChatID      string        `json:"chatId"`
	Sender      string        `json:"sender"`
	Content     string        `json:"content"`
	Attachments []Attachment  `json:"attachments"`
	Reactions   []Reaction    `json:"reactions"`
	ReadBy      []Receipt     `json:"readBy"`
	DeliveredTo []Receipt     `json:"deliveredTo"`
	EditHistory []MessageEdit `json:"editHistory,omitempty"`
	Edited      bool          `json:"edited"`
	Deleted     bool          `json:"deleted"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Status derives the display state from receipts by users other than the sender.
// A read by anyone other than the sender wins over delivery.
func (m *Message) Status() DeliveryStatus {
	if hasOtherThan(m.ReadBy, m.Sender) {
		return StatusRead
	}
	if hasOtherThan(m.DeliveredTo, m.Sender) {
		return StatusDelivered
	}
	return StatusSent
}

func hasOtherThan(receipts []Receipt, username string) bool {
	for _, r := range receipts {
		if r.Username != username {
			return true
		}
	}
	return false
}

type MessageCreateInput struct {
	ChatID      string       `json:"chatId" validate:"required"`
	Content     string       `json:"content" validate:"required,max=4096"`
	Attachments []Attachment `json:"attachments" validate:"omitempty,max=10,dive"`
	Sender      string       `json:"-"`
}

type MessagePage struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Pages    int       `json:"pages"`
	Limit    int       `json:"limit"`
}

type MessageStore interface {
	// CreateMessage persists the message with the sender as its first delivery.
	CreateMessage(ctx context.Context, input MessageCreateInput) (*Message, error)

	// GetMessageByID returns nil if the message does not exist.
	GetMessageByID(ctx context.Context, messageID string) (*Message, error)

	// GetChatMessages returns messages in chronological order and the total count.
	GetChatMessages(ctx context.Context, chatID string, offset, limit int) ([]Message, int, error)

	// AddReceipt appends a receipt unless the user already has one of that kind.
	AddReceipt(ctx context.Context, messageID, username string, kind ReceiptKind, at time.Time) (added bool, err error)

	Receipts(ctx context.Context, messageID string, kind ReceiptKind) ([]Receipt, error)

	// ToggleReaction adds the reaction or removes it when it already exists.
	ToggleReaction(ctx context.Context, messageID, username, emoji string) (added bool, err error)

	Reactions(ctx context.Context, messageID string) ([]Reaction, error)

	// EditMessage replaces the content and appends the previous one to the edit history.
	EditMessage(ctx context.Context, messageID, content string, at time.Time) error

	// SoftDeleteMessage blanks the content and drops reactions and attachments.
	SoftDeleteMessage(ctx context.Context, messageID string, at time.Time) error
}
