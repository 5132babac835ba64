package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Inbound event types.
const (
	JoinChatEvent         = "join_chat"
	LeaveChatEvent        = "leave_chat"
	NewMessageEvent       = "new_message"
	TypingEvent           = "typing"
	StopTypingEvent       = "stop_typing"
	MessageDeliveredEvent = "message_delivered"
	MessageReadEvent      = "message_read"
	MessageReactionEvent  = "message_reaction"
	UpdateStatusEvent     = "update_status"
	CallUserEvent         = "call_user"
	AcceptCallEvent       = "accept_call"
	RejectCallEvent       = "reject_call"
	EndCallEvent          = "end_call"
	JoinGroupCallEvent    = "join_group_call"
	NewPeerSignalEvent    = "new_peer_signal"
	ReturnPeerSignalEvent = "return_peer_signal"
	LeaveGroupCallEvent   = "leave_group_call"
)

// Outbound event types.
const (
	MessageReceivedEvent        = "message_received"
	ChatUpdatedEvent            = "chat_updated"
	UserJoinedEvent             = "user_joined"
	UserLeftEvent               = "user_left"
	MessageDeliveryUpdatedEvent = "message_delivery_updated"
	MessageReadUpdatedEvent     = "message_read_updated"
	MessageReactionUpdatedEvent = "message_reaction_updated"
	MessageUpdatedEvent         = "message_updated"
	MessageDeletedEvent         = "message_deleted"
	UserStatusChangedEvent      = "user_status_changed"
	IncomingCallEvent           = "incoming_call"
	CallAcceptedEvent           = "call_accepted"
	CallRejectedEvent           = "call_rejected"
	CallEndedEvent              = "call_ended"
	UserJoinedCallEvent         = "user_joined_call"
	UserLeftCallEvent           = "user_left_call"
	ReceivePeerSignalEvent      = "receive_peer_signal"
	ReceiveReturnedSignalEvent  = "receive_returned_signal"
	ErrorEvent                  = "error"
)

type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Type: %s, Payload.Size: %d}", e.Type, len(e.Payload))
}

// NewEvent marshals payload once so the same event can be queued on many connections.
func NewEvent(t string, payload interface{}) (*Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Event{Type: t, Payload: b}, nil
}

func EncodeEvent(w io.Writer, e *Event) error {
	if err := json.NewEncoder(w).Encode(e); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return nil
}

func DecodeEvent(r io.Reader, e *Event) error {
	if err := json.NewDecoder(r).Decode(e); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return nil
}

// DecodePayload unmarshals the payload of e into v and validates it.
func DecodePayload(e *Event, v interface{}) error {
	if len(e.Payload) == 0 {
		return NewErrorf(ErrInvalidInput, "%s: missing payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return NewErrorf(ErrInvalidInput, "%s: malformed payload", e.Type)
	}
	return Validate(v)
}

type ErrorPayload struct {
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// EventHandler handles one inbound event from c.
type EventHandler func(ctx context.Context, c *Conn, e *Event) error

// EventRouter maps inbound event types to handlers.
// Handler errors are reported to the originating connection only.
type EventRouter struct {
	handlers map[string]EventHandler
	logger   *slog.Logger
}

func NewEventRouter(logger *slog.Logger) *EventRouter {
	return &EventRouter{
		handlers: make(map[string]EventHandler),
		logger:   logger,
	}
}

// On registers h for event type t. It is not safe to call once connections are being served.
func (r *EventRouter) On(t string, h EventHandler) {
	r.handlers[t] = h
}

// Dispatch runs the handler for e on the calling goroutine.
func (r *EventRouter) Dispatch(ctx context.Context, c *Conn, e *Event) {
	start := time.Now()
	err := r.handle(ctx, c, e)
	eventsHandled.WithLabelValues(e.Type, resultLabel(err)).Inc()
	handlerDuration.WithLabelValues(e.Type).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}

	if isClientError(err) {
		r.logger.Debug(fmt.Sprintf("%s handler: %v", e.Type, err), slog.String("conn", c.ID))
	} else {
		r.logger.Error(fmt.Sprintf("%s handler: %v", e.Type, err), slog.String("conn", c.ID))
	}

	reply, encErr := NewEvent(ErrorEvent, ErrorPayload{Message: PublicMessage(err), Event: e.Type})
	if encErr != nil {
		r.logger.Error(encErr.Error())
		return
	}
	c.Send(reply)
}

func (r *EventRouter) handle(ctx context.Context, c *Conn, e *Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in %s handler: %v", e.Type, rec)
		}
	}()
	h, ok := r.handlers[e.Type]
	if !ok {
		return ErrUnknownEvent
	}
	return h(ctx, c, e)
}

func isClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isClientError(err):
		return "rejected"
	default:
		return "failed"
	}
}
