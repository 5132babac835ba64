package core

import (
	"context"
	"time"
)

// MessagePreview is the last message of a chat as shown in chat lists.
type MessagePreview struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"createdAt"`
}

// Chat is a direct (two members) or group conversation.
// Unread holds exactly one entry per current member.
type Chat struct {
	ID          string          `json:"id"`
	Name        string          `json:"name,omitempty"`
	IsGroup     bool            `json:"isGroup"`
	Admin       string          `json:"admin,omitempty"`
	Members     []string        `json:"members"`
	Unread      map[string]int  `json:"unread"`
	LastMessage *MessagePreview `json:"lastMessage,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (c *Chat) HasMember(username string) bool {
	_, ok := c.Unread[username]
	return ok
}

type CreateGroupInput struct {
	Name    string   `json:"name" validate:"required,max=64"`
	Members []string `json:"members" validate:"required,min=1,dive,required"`
}

type UpdateGroupInput struct {
	Name    string   `json:"name" validate:"omitempty,max=64"`
	Members []string `json:"members" validate:"omitempty,dive,required"`
}

//go:generate mockgen -source=chat.go -destination=mock_chat_store_test.go -package=core
type ChatStore interface {
	// FindOrCreateDirectChat returns the direct chat between a and b,
	// creating it when it does not exist yet.
	FindOrCreateDirectChat(ctx context.Context, a, b string) (chat *Chat, created bool, err error)

	CreateGroupChat(ctx context.Context, name, admin string, members []string) (*Chat, error)

	// GetChatByID returns nil if the chat does not exist.
	GetChatByID(ctx context.Context, chatID string) (*Chat, error)

	// GetUserChats returns the chats of username, most recently active first.
	GetUserChats(ctx context.Context, username string) ([]Chat, error)

	// ChatIDsOf returns the ids of every chat username is a member of.
	ChatIDsOf(ctx context.Context, username string) ([]string, error)

	// ChatMembers returns ErrChatNotFound if the chat does not exist.
	ChatMembers(ctx context.Context, chatID string) ([]string, error)

	SetLastMessage(ctx context.Context, chatID, messageID string, at time.Time) error

	// IncrementUnread adds one to the unread counter of every member but except.
	IncrementUnread(ctx context.Context, chatID, except string) error

	ResetUnread(ctx context.Context, chatID, username string) error

	AddMember(ctx context.Context, chatID, username string) error

	RemoveMember(ctx context.Context, chatID, username string) error

	// ReplaceMembers sets the member list of a chat atomically. It fails
	// with ErrUserNotFound, changing nothing, if a username does not exist.
	ReplaceMembers(ctx context.Context, chatID string, members []string) error

	UpdateGroup(ctx context.Context, chatID, name, admin string) error

	// DeleteChat removes the chat, its members and its messages.
	DeleteChat(ctx context.Context, chatID string) error
}
