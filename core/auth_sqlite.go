package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type SQLiteAuthStore struct {
	tokenExp  time.Duration
	secret    []byte
	userStore UserStore
	db        *sql.DB
}

type AuthOption func(*SQLiteAuthStore)

func WithTokenExp(exp time.Duration) AuthOption {
	return func(a *SQLiteAuthStore) {
		a.tokenExp = exp
	}
}

func NewSQLiteAuthStore(db *sql.DB, userStore UserStore, secret []byte, opts ...AuthOption) *SQLiteAuthStore {
	auth := &SQLiteAuthStore{
		tokenExp:  time.Hour * 24,
		secret:    secret,
		userStore: userStore,
		db:        db,
	}
	for _, opt := range opts {
		opt(auth)
	}
	return auth
}

func (a *SQLiteAuthStore) NewSession(ctx context.Context, username, password string) (*Session, error) {
	user, err := a.userStore.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("GetUserByUsername: %w", err)
	}
	if user == nil {
		return nil, ErrBadCredentials
	}

	ok, err := a.userStore.ComparePassword(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("ComparePassword: %w", err)
	}
	if !ok {
		return nil, ErrBadCredentials
	}

	token, exp, err := NewToken(*user, a.tokenExp, a.secret)
	if err != nil {
		return nil, fmt.Errorf("NewToken: %w", err)
	}

	return &Session{Username: user.Username, Token: token, ExpiresAt: exp}, nil
}

func (a *SQLiteAuthStore) DestroySession(ctx context.Context, session Session) error {
	if err := a.blacklistToken(ctx, session.Token, session.ExpiresAt); err != nil {
		return fmt.Errorf("blacklisting token: %w", err)
	}
	return nil
}

func (a *SQLiteAuthStore) blacklistToken(ctx context.Context, token string, exp time.Time) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO blacklists (token, expires_at) VALUES (@token, @expires_at) ON CONFLICT DO NOTHING",
		sql.Named("token", token), sql.Named("expires_at", exp.UTC()))
	if err != nil {
		return fmt.Errorf("ExecContext: %w", err)
	}
	return nil
}

func (a *SQLiteAuthStore) isBlacklisted(ctx context.Context, token string) (bool, error) {
	row := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blacklists WHERE token = @token", sql.Named("token", token))
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("scanning count: %w", err)
	}
	return count > 0, nil
}

// PurgeBlacklist drops revoked tokens that have expired anyway.
func (a *SQLiteAuthStore) PurgeBlacklist(ctx context.Context) (int64, error) {
	res, err := a.db.ExecContext(ctx, "DELETE FROM blacklists WHERE expires_at < @now", sql.Named("now", time.Now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("ExecContext: %w", err)
	}
	return res.RowsAffected()
}

func (a *SQLiteAuthStore) Session(ctx context.Context, t string) (*Session, error) {
	claims, err := VerifyToken(t, a.secret)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrUnrecognizedToken) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("VerifyToken: %w", err)
	}

	blacklisted, err := a.isBlacklisted(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("checking blacklist: %w", err)
	}
	if blacklisted {
		return nil, ErrUnauthenticated
	}

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return &Session{Username: claims.Username, Token: t, ExpiresAt: exp}, nil
}
