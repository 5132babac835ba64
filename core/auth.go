package core

import (
	"context"
	"time"
)

type Session struct {
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

var (
	ErrBadCredentials  = NewError(ErrUnauthorized, "invalid credentials")
	ErrUnauthenticated = NewError(ErrUnauthorized, "unauthenticated")
)

type AuthStore interface {
	NewSession(ctx context.Context, username, password string) (session *Session, err error)

	DestroySession(ctx context.Context, session Session) error

	// Session returns ErrUnauthenticated for expired, invalid or revoked tokens.
	Session(ctx context.Context, token string) (session *Session, err error)
}
