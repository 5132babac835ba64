package parley

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/putto11262002/parley/core"
	"github.com/putto11262002/parley/pkg/router"
)

type ChatHandler struct {
	chats *core.Chats
}

func NewChatHandler(chats *core.Chats) *ChatHandler {
	return &ChatHandler{chats: chats}
}

type CreateDirectChatPayload struct {
	Username string `json:"username" validate:"required"`
}

func (h *ChatHandler) GetMyChatsHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	chats, err := h.chats.List(r.Context(), session.Username)
	if err != nil {
		return err
	}
	if chats == nil {
		chats = []core.Chat{}
	}
	return router.WriteJSON(w, http.StatusOK, chats)
}

func (h *ChatHandler) GetChatHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	chat, err := h.chats.Open(r.Context(), session.Username, chi.URLParam(r, "chatID"))
	if err != nil {
		return err
	}
	return router.WriteJSON(w, http.StatusOK, chat)
}

func (h *ChatHandler) CreateDirectChatHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload CreateDirectChatPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}
	chat, err := h.chats.CreateDirect(r.Context(), session.Username, payload.Username)
	if err != nil {
		return err
	}
	return router.WriteJSON(w, http.StatusOK, chat)
}

func (h *ChatHandler) CreateGroupChatHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload core.CreateGroupInput
	if err := decodeBody(r, &payload); err != nil {
		return err
	}
	chat, err := h.chats.CreateGroup(r.Context(), session.Username, payload)
	if err != nil {
		return err
	}
	return router.WriteJSON(w, http.StatusCreated, chat)
}

func (h *ChatHandler) UpdateGroupHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload core.UpdateGroupInput
	if err := decodeBody(r, &payload); err != nil {
		return err
	}
	chat, err := h.chats.UpdateGroup(r.Context(), session.Username, chi.URLParam(r, "chatID"), payload)
	if err != nil {
		return err
	}
	return router.WriteJSON(w, http.StatusOK, chat)
}

func (h *ChatHandler) AddMemberHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload core.MemberPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}
	chat, err := h.chats.AddMember(r.Context(), session.Username, chi.URLParam(r, "chatID"), payload.Username)
	if err != nil {
		return err
	}
	return router.WriteJSON(w, http.StatusOK, chat)
}

// RemoveMemberHandler responds 204 when the group was deleted because its last member left.
func (h *ChatHandler) RemoveMemberHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload core.MemberPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}
	chat, err := h.chats.RemoveMember(r.Context(), session.Username, chi.URLParam(r, "chatID"), payload.Username)
	if err != nil {
		return err
	}
	if chat == nil {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	return router.WriteJSON(w, http.StatusOK, chat)
}
