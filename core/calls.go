package core

import (
	"context"
	"encoding/json"
	"log/slog"
)

type CallUserPayload struct {
	TargetUserID string          `json:"targetUserId" validate:"required"`
	CallerName   string          `json:"callerName"`
	RoomID       string          `json:"roomId" validate:"required"`
	OfferSignal  json.RawMessage `json:"offerSignal"`
}

type IncomingCallPayload struct {
	CallerID    string          `json:"callerId"`
	CallerName  string          `json:"callerName"`
	RoomID      string          `json:"roomId"`
	OfferSignal json.RawMessage `json:"offerSignal,omitempty"`
}

type AcceptCallPayload struct {
	CallerID     string          `json:"callerId" validate:"required"`
	RoomID       string          `json:"roomId" validate:"required"`
	AnswerSignal json.RawMessage `json:"answerSignal"`
}

type CallAcceptedPayload struct {
	UserID       string          `json:"userId"`
	RoomID       string          `json:"roomId"`
	AnswerSignal json.RawMessage `json:"answerSignal,omitempty"`
}

type RejectCallPayload struct {
	CallerID string `json:"callerId" validate:"required"`
	RoomID   string `json:"roomId" validate:"required"`
}

type EndCallPayload struct {
	TargetUserID string `json:"targetUserId" validate:"required"`
	RoomID       string `json:"roomId" validate:"required"`
}

type CallPeerPayload struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

type GroupCallPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

type PeerSignalPayload struct {
	RoomID       string          `json:"roomId" validate:"required"`
	Signal       json.RawMessage `json:"signal" validate:"required"`
	TargetUserID string          `json:"targetUserId" validate:"required"`
}

type ReceivedSignalPayload struct {
	RoomID string          `json:"roomId"`
	Signal json.RawMessage `json:"signal"`
	UserID string          `json:"userId"`
}

// CallRelay relays call setup and signaling between users. It keeps no
// state besides the call room subscriptions of connections, and signal
// payloads are forwarded untouched. The sender is always the user of the
// connection the event came from.
type CallRelay struct {
	registry *ConnRegistry
	rooms    *RoomRouter
	logger   *slog.Logger
}

func NewCallRelay(registry *ConnRegistry, rooms *RoomRouter, logger *slog.Logger) *CallRelay {
	return &CallRelay{registry: registry, rooms: rooms, logger: logger}
}

func (r *CallRelay) sendTo(target, eventType string, payload interface{}) error {
	e, err := NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	r.registry.SendToUsers(e, target)
	return nil
}

func (r *CallRelay) CallUser(_ context.Context, c *Conn, p CallUserPayload) error {
	name := p.CallerName
	if name == "" {
		name = c.User
	}
	return r.sendTo(p.TargetUserID, IncomingCallEvent, IncomingCallPayload{
		CallerID:    c.User,
		CallerName:  name,
		RoomID:      p.RoomID,
		OfferSignal: p.OfferSignal,
	})
}

func (r *CallRelay) AcceptCall(_ context.Context, c *Conn, p AcceptCallPayload) error {
	return r.sendTo(p.CallerID, CallAcceptedEvent, CallAcceptedPayload{
		UserID:       c.User,
		RoomID:       p.RoomID,
		AnswerSignal: p.AnswerSignal,
	})
}

func (r *CallRelay) RejectCall(_ context.Context, c *Conn, p RejectCallPayload) error {
	return r.sendTo(p.CallerID, CallRejectedEvent, CallPeerPayload{UserID: c.User, RoomID: p.RoomID})
}

func (r *CallRelay) EndCall(_ context.Context, c *Conn, p EndCallPayload) error {
	return r.sendTo(p.TargetUserID, CallEndedEvent, CallPeerPayload{UserID: c.User, RoomID: p.RoomID})
}

// JoinGroupCall subscribes c to the call room and announces it to the connections already there.
func (r *CallRelay) JoinGroupCall(_ context.Context, c *Conn, p GroupCallPayload) error {
	room := CallRoom(p.RoomID)
	if err := r.rooms.Join(room, c); err != nil {
		return err
	}
	e, err := NewEvent(UserJoinedCallEvent, CallPeerPayload{UserID: c.User, RoomID: p.RoomID})
	if err != nil {
		return err
	}
	r.rooms.Broadcast(room, e, c)
	return nil
}

func (r *CallRelay) LeaveGroupCall(_ context.Context, c *Conn, p GroupCallPayload) error {
	room := CallRoom(p.RoomID)
	if !c.InRoom(room) {
		return nil
	}
	r.rooms.Leave(room, c)
	r.announceLeft(room, p.RoomID, c.User)
	return nil
}

// LeftCallRooms announces user to the remaining participants of every call
// room among rooms. It runs when a connection goes away without leaving.
func (r *CallRelay) LeftCallRooms(user string, rooms []string) {
	for _, room := range rooms {
		if roomID, ok := isCallRoom(room); ok {
			r.announceLeft(room, roomID, user)
		}
	}
}

func (r *CallRelay) announceLeft(room, roomID, user string) {
	e, err := NewEvent(UserLeftCallEvent, CallPeerPayload{UserID: user, RoomID: roomID})
	if err != nil {
		r.logger.Error(err.Error())
		return
	}
	r.rooms.Broadcast(room, e, nil)
}

func (r *CallRelay) PeerSignal(_ context.Context, c *Conn, p PeerSignalPayload) error {
	return r.sendTo(p.TargetUserID, ReceivePeerSignalEvent, ReceivedSignalPayload{RoomID: p.RoomID, Signal: p.Signal, UserID: c.User})
}

func (r *CallRelay) ReturnSignal(_ context.Context, c *Conn, p PeerSignalPayload) error {
	return r.sendTo(p.TargetUserID, ReceiveReturnedSignalEvent, ReceivedSignalPayload{RoomID: p.RoomID, Signal: p.Signal, UserID: c.User})
}
