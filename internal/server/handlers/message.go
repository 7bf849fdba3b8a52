package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/chatter/internal/common"
	"github.com/dmitrijs2005/chatter/internal/server/models"
)

type sendMessageRequest struct {
	ChatID   string `json:"chat_id" validate:"required,uuid4"`
	Content  string `json:"content" validate:"max=5000"`
	ImageKey string `json:"image_key"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Type      string    `json:"type"`
	Content   string    `json:"content,omitempty"`
	ImageKey  string    `json:"image_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toMessageResponse(m *models.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Type:      m.Type,
		Content:   m.Content,
		ImageKey:  m.ImageKey,
		CreatedAt: m.CreatedAt,
	}
}

func (h *Handlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := h.decodeValid(r, &req); err != nil {
		if errors.Is(err, common.ErrorValidation) {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		writeValidationErrors(w, err)
		return
	}

	claims := claimsFrom(r.Context())
	msg, err := h.messages.Send(r.Context(), claims.UserID, req.ChatID, req.Content, req.ImageKey)
	if err != nil {
		if errors.Is(err, common.ErrorValidation) {
			writeError(w, http.StatusBadRequest, "message needs content or an image")
			return
		}
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, "", toMessageResponse(msg))
}

func (h *Handlers) listMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	chatID, ok := uuidParam(w, r, "chatID")
	if !ok {
		return
	}

	claims := claimsFrom(r.Context())
	msgs, err := h.messages.List(r.Context(), chatID, claims.UserID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	writeData(w, http.StatusOK, "", out)
}

func (h *Handlers) deleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := uuidParam(w, r, "messageID")
	if !ok {
		return
	}

	claims := claimsFrom(r.Context())
	if err := h.messages.Delete(r.Context(), messageID, claims.UserID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, "deleted", nil)
}

func (h *Handlers) markRead(w http.ResponseWriter, r *http.Request) {
	chatID, ok := uuidParam(w, r, "chatID")
	if !ok {
		return
	}

	claims := claimsFrom(r.Context())
	if err := h.messages.MarkRead(r.Context(), chatID, claims.UserID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", nil)
}
