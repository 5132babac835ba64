package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

type MessageIDPayload struct {
	MessageID string `json:"messageId" validate:"required"`
}

type MessageDeletedPayload struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

type EditMessageInput struct {
	Content string `json:"content" validate:"required,max=4096"`
}

// Pipeline runs the lifecycle of messages: send, edit, delete and history.
type Pipeline struct {
	chats      ChatStore
	messages   MessageStore
	membership *MembershipResolver
	rooms      *RoomRouter
	registry   *ConnRegistry
	locks      *KeyedMutex
	logger     *slog.Logger
}

func NewPipeline(chats ChatStore, messages MessageStore, membership *MembershipResolver,
	rooms *RoomRouter, registry *ConnRegistry, locks *KeyedMutex, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		chats:      chats,
		messages:   messages,
		membership: membership,
		rooms:      rooms,
		registry:   registry,
		locks:      locks,
		logger:     logger,
	}
}

// Send validates, persists and fans out a new message from sender.
// Anything failing after the message is persisted is logged and does not
// fail the send. The whole send runs under the chat lock so that the
// persisted order of a chat matches its broadcast order.
func (p *Pipeline) Send(ctx context.Context, sender string, input MessageCreateInput) (*Message, error) {
	input.Sender = sender
	if err := Validate(&input); err != nil {
		return nil, err
	}

	unlock := p.locks.Lock(chatKey(input.ChatID))
	defer unlock()

	members, err := p.membership.MembersOf(ctx, input.ChatID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotChatMember
		}
		return nil, err
	}
	if !lo.Contains(members, sender) {
		return nil, ErrNotChatMember
	}

	msg, err := p.messages.CreateMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("CreateMessage: %w", err)
	}
	messagesSent.Inc()

	if err := p.chats.SetLastMessage(ctx, msg.ChatID, msg.ID, msg.CreatedAt); err != nil {
		p.logger.Error(fmt.Sprintf("SetLastMessage: %v", err), slog.String("chat", msg.ChatID))
	}
	if err := p.chats.IncrementUnread(ctx, msg.ChatID, sender); err != nil {
		p.logger.Error(fmt.Sprintf("IncrementUnread: %v", err), slog.String("chat", msg.ChatID))
	}

	if e, err := NewEvent(MessageReceivedEvent, msg); err != nil {
		p.logger.Error(err.Error())
	} else {
		p.rooms.Broadcast(msg.ChatID, e, nil)
	}

	p.notifyChatUpdated(ctx, msg.ChatID)
	return msg, nil
}

// notifyChatUpdated sends the current chat summary to every connection of
// every member, whether or not they have the chat open.
func (p *Pipeline) notifyChatUpdated(ctx context.Context, chatID string) {
	chat, err := p.chats.GetChatByID(ctx, chatID)
	if err != nil {
		p.logger.Error(fmt.Sprintf("GetChatByID: %v", err), slog.String("chat", chatID))
		return
	}
	if chat == nil {
		return
	}
	e, err := NewEvent(ChatUpdatedEvent, chat)
	if err != nil {
		p.logger.Error(err.Error())
		return
	}
	p.registry.SendToUsers(e, chat.Members...)
}

// loadAuthorizedMessage loads messageID and checks user is a member of its chat.
func loadAuthorizedMessage(ctx context.Context, messages MessageStore, membership *MembershipResolver, user, messageID string) (*Message, error) {
	msg, err := messages.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("GetMessageByID: %w", err)
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	ok, err := membership.IsMember(ctx, msg.ChatID, user)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if !ok {
		return nil, ErrNotChatMember
	}
	return msg, nil
}

// Edit replaces the content of a message sent by user and keeps the previous content in its history.
func (p *Pipeline) Edit(ctx context.Context, user, messageID string, input EditMessageInput) (*Message, error) {
	if err := Validate(&input); err != nil {
		return nil, err
	}

	msg, err := p.lockAuthorizedMessage(ctx, user, messageID)
	if err != nil {
		return nil, err
	}
	defer msg.unlock()

	if msg.Sender != user {
		return nil, ErrNotSender
	}
	if msg.Deleted {
		return nil, ErrMessageDeleted
	}

	if err := p.messages.EditMessage(ctx, messageID, input.Content, time.Now()); err != nil {
		return nil, fmt.Errorf("EditMessage: %w", err)
	}
	updated, err := p.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("GetMessageByID: %w", err)
	}

	if e, err := NewEvent(MessageUpdatedEvent, updated); err != nil {
		p.logger.Error(err.Error())
	} else {
		p.rooms.Broadcast(updated.ChatID, e, nil)
	}
	p.notifyChatUpdated(ctx, updated.ChatID)
	return updated, nil
}

// Delete soft-deletes a message sent by user.
func (p *Pipeline) Delete(ctx context.Context, user, messageID string) error {
	msg, err := p.lockAuthorizedMessage(ctx, user, messageID)
	if err != nil {
		return err
	}
	defer msg.unlock()

	if msg.Sender != user {
		return ErrNotSender
	}
	if msg.Deleted {
		return nil
	}

	if err := p.messages.SoftDeleteMessage(ctx, messageID, time.Now()); err != nil {
		return fmt.Errorf("SoftDeleteMessage: %w", err)
	}

	if e, err := NewEvent(MessageDeletedEvent, MessageDeletedPayload{MessageID: msg.ID, ChatID: msg.ChatID}); err != nil {
		p.logger.Error(err.Error())
	} else {
		p.rooms.Broadcast(msg.ChatID, e, nil)
	}
	p.notifyChatUpdated(ctx, msg.ChatID)
	return nil
}

type lockedMessage struct {
	*Message
	unlock func()
}

// lockAuthorizedMessage takes the chat lock then the message lock of messageID
// and returns the message as stored once both are held.
func (p *Pipeline) lockAuthorizedMessage(ctx context.Context, user, messageID string) (*lockedMessage, error) {
	msg, err := loadAuthorizedMessage(ctx, p.messages, p.membership, user, messageID)
	if err != nil {
		return nil, err
	}

	unlockChat := p.locks.Lock(chatKey(msg.ChatID))
	unlockMsg := p.locks.Lock(msgKey(msg.ID))
	unlock := func() {
		unlockMsg()
		unlockChat()
	}

	msg, err = p.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("GetMessageByID: %w", err)
	}
	if msg == nil {
		unlock()
		return nil, ErrMessageNotFound
	}
	return &lockedMessage{Message: msg, unlock: unlock}, nil
}

// History returns a page of the chat in chronological order and resets the unread counter of user.
// Pages are counted from the newest messages, starting at 1.
func (p *Pipeline) History(ctx context.Context, user, chatID string, page, limit int) (*MessagePage, error) {
	if _, err := p.membership.Authorize(ctx, chatID, user); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	messages, total, err := p.messages.GetChatMessages(ctx, chatID, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("GetChatMessages: %w", err)
	}

	if err := p.chats.ResetUnread(ctx, chatID, user); err != nil {
		p.logger.Error(fmt.Sprintf("ResetUnread: %v", err), slog.String("chat", chatID))
	}

	return &MessagePage{
		Messages: messages,
		Total:    total,
		Page:     page,
		Pages:    (total + limit - 1) / limit,
		Limit:    limit,
	}, nil
}
