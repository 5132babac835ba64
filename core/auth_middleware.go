package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/putto11262002/parley/pkg/router"
)

const (
	key            sessionKey = "session"
	AuthCookieName            = "auth_token"
)

type sessionKey string

func ContextWithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, key, session)
}

func sessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(key).(Session)
	return session, ok
}

// SessionFromRequest extracts the session from the request context.
// It must be called in handlers that are protected by the JWTMiddleware.
// It panics if the session is not found in the request context.
func SessionFromRequest(r *http.Request) Session {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		panic("session not found in request context: call this function in handlers that are protected by JWTMiddleware")
	}
	return session
}

func NewAuthCookie(session Session, httpOnly bool, path string) *http.Cookie {
	return &http.Cookie{
		Name:     AuthCookieName,
		Value:    session.Token,
		Expires:  session.ExpiresAt,
		HttpOnly: httpOnly,
		Path:     path,
		SameSite: http.SameSiteLaxMode,
	}
}

// TokenFromRequest looks for a session token in the auth cookie,
// the Authorization header and the token query parameter, in that order.
// Browsers cannot set headers on websocket handshakes, hence the query parameter.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(AuthCookieName); err == nil && cookie.Valid() == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// JWTMiddleware extracts the JWT token from the request, validates it and attaches the session to the request context.
// The session is guaranteed to be attached to the request context for subsequent handlers.
func JWTMiddleware(a AuthStore) router.Middleware {
	return func(next http.Handler) router.HandlerFunc {
		authErr := router.NewJsonError(http.StatusUnauthorized, ErrUnauthenticated.Error())

		return func(w http.ResponseWriter, r *http.Request) error {
			ctx := r.Context()

			token := TokenFromRequest(r)
			if token == "" {
				return authErr
			}

			session, err := a.Session(ctx, token)
			if err != nil {
				if errors.Is(err, ErrUnauthenticated) {
					return authErr
				}
				return err
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(ctx, *session)))
			return nil
		}
	}
}
