package parley

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/putto11262002/parley/core"
	"github.com/putto11262002/parley/pkg/router"
)

type UserHandler struct {
	store    core.UserStore
	presence *core.PresenceTracker
}

func NewUserHandler(store core.UserStore, presence *core.PresenceTracker) *UserHandler {
	return &UserHandler{store: store, presence: presence}
}

func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) error {
	var user core.User
	if err := decodeBody(r, &user); err != nil {
		return err
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		return err
	}

	w.WriteHeader(http.StatusCreated)
	return nil
}

func (h *UserHandler) MeHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	user, err := h.store.GetUserByUsername(r.Context(), session.Username)
	if err != nil {
		return err
	}
	if user == nil {
		return core.ErrUserNotFound
	}
	return router.WriteJSON(w, http.StatusOK, user)
}

func (h *UserHandler) GetUserByUsernameHandler(w http.ResponseWriter, r *http.Request) error {
	user, err := h.store.GetUserByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		return err
	}
	if user == nil {
		return core.ErrUserNotFound
	}
	return router.WriteJSON(w, http.StatusOK, user)
}

// SearchUsersHandler matches q against usernames and names, leaving out the caller.
func (h *UserHandler) SearchUsersHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	users, err := h.store.GetUsers(r.Context(), &core.GetUsersOptions{
		Q:       r.URL.Query().Get("q"),
		Limit:   queryInt(r, "limit", 20),
		Offset:  queryInt(r, "offset", 0),
		Exclude: session.Username,
	})
	if err != nil {
		return err
	}
	if users == nil {
		users = []core.UserWithoutSecrets{}
	}
	return router.WriteJSON(w, http.StatusOK, users)
}

func (h *UserHandler) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload core.StatusPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}
	if err := h.presence.SetStatus(r.Context(), session.Username, payload.Status); err != nil {
		return err
	}
	return router.WriteJSON(w, http.StatusOK, payload)
}
