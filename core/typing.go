package core

import (
	"context"
	"log/slog"
)

type ChatIDPayload struct {
	ChatID string `json:"chatId" validate:"required"`
}

type TypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// TypingCoordinator forwards typing signals to the other connections of a chat room.
// Nothing is stored and repeated signals are forwarded as they come.
type TypingCoordinator struct {
	membership *MembershipResolver
	rooms      *RoomRouter
	logger     *slog.Logger
}

func NewTypingCoordinator(membership *MembershipResolver, rooms *RoomRouter, logger *slog.Logger) *TypingCoordinator {
	return &TypingCoordinator{membership: membership, rooms: rooms, logger: logger}
}

func (t *TypingCoordinator) Typing(ctx context.Context, c *Conn, chatID string, typing bool) error {
	if _, err := t.membership.Authorize(ctx, chatID, c.User); err != nil {
		return err
	}

	eventType := StopTypingEvent
	if typing {
		eventType = TypingEvent
	}
	e, err := NewEvent(eventType, TypingPayload{ChatID: chatID, UserID: c.User})
	if err != nil {
		return err
	}
	t.rooms.Broadcast(chatID, e, c)
	return nil
}
