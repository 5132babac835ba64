package parley

import (
	"net/http"
	"time"

	"github.com/putto11262002/parley/core"
	"github.com/putto11262002/parley/pkg/router"
)

type AuthHandler struct {
	store core.AuthStore
	// secure marks the auth cookie Secure, which browsers only send over https.
	secure bool
}

func NewAuthHandler(store core.AuthStore, secure bool) *AuthHandler {
	return &AuthHandler{store: store, secure: secure}
}

type SigninPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) SigninHandler(w http.ResponseWriter, r *http.Request) error {
	var payload SigninPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}

	session, err := h.store.NewSession(r.Context(), payload.Username, payload.Password)
	if err != nil {
		return err
	}

	cookie := core.NewAuthCookie(*session, true, "/")
	cookie.Secure = h.secure
	http.SetCookie(w, cookie)

	return router.WriteJSON(w, http.StatusOK, session)
}

func (h *AuthHandler) SignoutHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if err := h.store.DestroySession(r.Context(), session); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     core.AuthCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secure,
		Path:     "/",
	})
	w.WriteHeader(http.StatusOK)
	return nil
}
