package parley

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/putto11262002/parley/core"
	"github.com/putto11262002/parley/pkg/router"
)

type MessageHandler struct {
	pipeline  *core.Pipeline
	receipts  *core.ReceiptTracker
	reactions *core.Reactions
}

func NewMessageHandler(pipeline *core.Pipeline, receipts *core.ReceiptTracker, reactions *core.Reactions) *MessageHandler {
	return &MessageHandler{pipeline: pipeline, receipts: receipts, reactions: reactions}
}

type ReactPayload struct {
	Emoji string `json:"emoji" validate:"required"`
}

func (h *MessageHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var input core.MessageCreateInput
	if err := decodeBody(r, &input); err != nil {
		return err
	}
	msg, err := h.pipeline.Send(r.Context(), session.Username, input)
	if err != nil {
		return err
	}
	return router.WriteJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) GetChatMessagesHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	page, err := h.pipeline.History(r.Context(), session.Username, chi.URLParam(r, "chatID"),
		queryInt(r, "page", 1), queryInt(r, "limit", 50))
	if err != nil {
		return err
	}
	return router.WriteJSON(w, http.StatusOK, page)
}

func (h *MessageHandler) EditMessageHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var input core.EditMessageInput
	if err := decodeBody(r, &input); err != nil {
		return err
	}
	msg, err := h.pipeline.Edit(r.Context(), session.Username, chi.URLParam(r, "messageID"), input)
	if err != nil {
		return err
	}
	return router.WriteJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if err := h.pipeline.Delete(r.Context(), session.Username, chi.URLParam(r, "messageID")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *MessageHandler) ReactHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	var payload ReactPayload
	if err := decodeBody(r, &payload); err != nil {
		return err
	}
	reactions, err := h.reactions.Toggle(r.Context(), session.Username, core.ReactionPayload{
		MessageID: chi.URLParam(r, "messageID"),
		Emoji:     payload.Emoji,
	})
	if err != nil {
		return err
	}
	if reactions == nil {
		reactions = []core.Reaction{}
	}
	return router.WriteJSON(w, http.StatusOK, reactions)
}

func (h *MessageHandler) ReadHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if err := h.receipts.MarkRead(r.Context(), session.Username, chi.URLParam(r, "messageID")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *MessageHandler) DeliverHandler(w http.ResponseWriter, r *http.Request) error {
	session := core.SessionFromRequest(r)
	if err := h.receipts.MarkDelivered(r.Context(), session.Username, chi.URLParam(r, "messageID")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
