package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the caller is not a member of the chat
	// or does not own the resource it is acting on.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned when a message, chat or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for malformed payloads and invalid values.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when the operation contradicts the current state.
	ErrConflict = errors.New("conflict")
)

// Error carries a message that can be returned to the client
// alongside the kind of failure it represents.
type Error struct {
	kind error
	msg  string
}

func NewError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func NewErrorf(kind error, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.kind
}

var (
	ErrChatNotFound    = NewError(ErrNotFound, "chat not found")
	ErrMessageNotFound = NewError(ErrNotFound, "message not found")
	ErrUserNotFound    = NewError(ErrNotFound, "user not found")
	ErrNotChatMember   = NewError(ErrUnauthorized, "chat not found or user not authorized")
	ErrNotGroupChat    = NewError(ErrInvalidInput, "this operation is only valid for group chats")
	ErrNotGroupAdmin   = NewError(ErrUnauthorized, "only admin can perform this operation")
	ErrAlreadyMember   = NewError(ErrConflict, "user already in the group")
	ErrNotMember       = NewError(ErrInvalidInput, "user not in the group")
	ErrMessageDeleted  = NewError(ErrInvalidInput, "cannot modify a deleted message")
	ErrNotSender       = NewError(ErrUnauthorized, "not authorized to modify this message")
	ErrInvalidStatus   = NewError(ErrInvalidInput, "invalid status")
	ErrNotConnected    = NewError(ErrConflict, "user has no live connection")
	ErrConnClosed      = NewError(ErrConflict, "connection closed")
	ErrRateLimited     = NewError(ErrInvalidInput, "too many events")
	ErrUnknownEvent    = NewError(ErrInvalidInput, "unknown event")
)

// PublicMessage returns the message that is safe to send back to the client.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.msg
	}
	for _, kind := range []error{ErrUnauthorized, ErrNotFound, ErrInvalidInput, ErrConflict} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "internal error"
}
