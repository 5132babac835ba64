package core

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"
)

type ReactionPayload struct {
	MessageID string `json:"messageId" validate:"required"`
	Emoji     string `json:"emoji" validate:"required"`
}

type ReactionUpdatedPayload struct {
	MessageID string     `json:"messageId"`
	ChatID    string     `json:"chatId"`
	Reactions []Reaction `json:"reactions"`
}

const maxEmojiRunes = 16

type Reactions struct {
	messages   MessageStore
	membership *MembershipResolver
	rooms      *RoomRouter
	locks      *KeyedMutex
	logger     *slog.Logger
}

func NewReactions(messages MessageStore, membership *MembershipResolver, rooms *RoomRouter, locks *KeyedMutex, logger *slog.Logger) *Reactions {
	return &Reactions{
		messages:   messages,
		membership: membership,
		rooms:      rooms,
		locks:      locks,
		logger:     logger,
	}
}

// Toggle adds the reaction of user to a message, or removes it when the
// same user already reacted with the same emoji. It returns the reactions
// after the change.
func (r *Reactions) Toggle(ctx context.Context, user string, input ReactionPayload) ([]Reaction, error) {
	if err := Validate(&input); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(input.Emoji) > maxEmojiRunes {
		return nil, NewError(ErrInvalidInput, "emoji is invalid")
	}

	msg, err := loadAuthorizedMessage(ctx, r.messages, r.membership, user, input.MessageID)
	if err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(msgKey(msg.ID))
	defer unlock()

	// the message may have been deleted while waiting for the lock
	current, err := r.messages.GetMessageByID(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("GetMessageByID: %w", err)
	}
	if current == nil {
		return nil, ErrMessageNotFound
	}
	if current.Deleted {
		return nil, ErrMessageDeleted
	}

	if _, err := r.messages.ToggleReaction(ctx, msg.ID, user, input.Emoji); err != nil {
		return nil, fmt.Errorf("ToggleReaction: %w", err)
	}

	reactions, err := r.messages.Reactions(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("Reactions: %w", err)
	}

	e, err := NewEvent(MessageReactionUpdatedEvent, ReactionUpdatedPayload{MessageID: msg.ID, ChatID: msg.ChatID, Reactions: reactions})
	if err != nil {
		r.logger.Error(err.Error())
		return reactions, nil
	}
	r.rooms.Broadcast(msg.ChatID, e, nil)
	return reactions, nil
}
