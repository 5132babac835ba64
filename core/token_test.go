package core

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	secret := []byte("secret")
	user := UserWithoutSecrets{
		Username: "username",
		Name:     "User",
	}
	t.Run("valid token", func(t *testing.T) {
		before := time.Now()
		token, expiresAt, err := NewToken(user, time.Hour, secret)
		require.NoError(t, err)
		require.NotEmpty(t, token)
		require.True(t, !expiresAt.Before(before.Add(time.Hour)))

		claims, err := VerifyToken(token, secret)
		require.NoError(t, err)
		assert.Equal(t, user.Username, claims.Username)
		assert.Equal(t, user.Username, claims.Subject)
	})

	t.Run("expired", func(t *testing.T) {
		token, _, err := NewToken(user, -time.Minute, secret)
		require.NoError(t, err)
		_, err = VerifyToken(token, secret)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := NewToken(user, time.Hour, secret)
		require.NoError(t, err)
		_, err = VerifyToken(token, []byte("other"))
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		claims := NewClaim(user, time.Now().Add(time.Hour))
		claims.Issuer = "someone-else"
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		require.NoError(t, err)
		_, err = VerifyToken(token, secret)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := VerifyToken("a.b", secret)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
