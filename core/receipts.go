package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type DeliveryUpdatedPayload struct {
	MessageID   string    `json:"messageId"`
	ChatID      string    `json:"chatId"`
	DeliveredTo []Receipt `json:"deliveredTo"`
}

type ReadUpdatedPayload struct {
	MessageID string    `json:"messageId"`
	ChatID    string    `json:"chatId"`
	ReadBy    []Receipt `json:"readBy"`
}

// ReceiptTracker records delivery and read acknowledgements. Each user is
// recorded at most once per kind and the first timestamp wins.
type ReceiptTracker struct {
	messages   MessageStore
	membership *MembershipResolver
	rooms      *RoomRouter
	locks      *KeyedMutex
	logger     *slog.Logger
}

func NewReceiptTracker(messages MessageStore, membership *MembershipResolver, rooms *RoomRouter, locks *KeyedMutex, logger *slog.Logger) *ReceiptTracker {
	return &ReceiptTracker{
		messages:   messages,
		membership: membership,
		rooms:      rooms,
		locks:      locks,
		logger:     logger,
	}
}

func (t *ReceiptTracker) MarkDelivered(ctx context.Context, user, messageID string) error {
	return t.mark(ctx, user, messageID, Delivered)
}

func (t *ReceiptTracker) MarkRead(ctx context.Context, user, messageID string) error {
	return t.mark(ctx, user, messageID, Read)
}

// mark appends a receipt and broadcasts the complete set of that kind to
// the room of the chat. A repeated acknowledgement is a silent no-op.
func (t *ReceiptTracker) mark(ctx context.Context, user, messageID string, kind ReceiptKind) error {
	msg, err := loadAuthorizedMessage(ctx, t.messages, t.membership, user, messageID)
	if err != nil {
		return err
	}

	unlock := t.locks.Lock(msgKey(messageID))
	defer unlock()

	added, err := t.messages.AddReceipt(ctx, messageID, user, kind, time.Now())
	if err != nil {
		return fmt.Errorf("AddReceipt: %w", err)
	}
	if !added {
		return nil
	}

	receipts, err := t.messages.Receipts(ctx, messageID, kind)
	if err != nil {
		t.logger.Error(fmt.Sprintf("Receipts: %v", err), slog.String("message", messageID))
		return nil
	}

	var e *Event
	if kind == Read {
		e, err = NewEvent(MessageReadUpdatedEvent, ReadUpdatedPayload{MessageID: messageID, ChatID: msg.ChatID, ReadBy: receipts})
	} else {
		e, err = NewEvent(MessageDeliveryUpdatedEvent, DeliveryUpdatedPayload{MessageID: messageID, ChatID: msg.ChatID, DeliveredTo: receipts})
	}
	if err != nil {
		t.logger.Error(err.Error())
		return nil
	}
	t.rooms.Broadcast(msg.ChatID, e, nil)
	return nil
}
