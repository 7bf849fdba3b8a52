package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/chatter/internal/common"
	"github.com/dmitrijs2005/chatter/internal/server/models"
)

type createPrivateChatRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
}

type createGroupChatRequest struct {
	MemberIDs []string `json:"member_ids" validate:"required,min=1,dive,uuid4"`
}

type chatMemberResponse struct {
	UserID     string     `json:"user_id"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastReadAt *time.Time `json:"last_read_at,omitempty"`
}

type chatResponse struct {
	ID        string               `json:"id"`
	Type      string               `json:"type"`
	CreatedAt time.Time            `json:"created_at"`
	Members   []chatMemberResponse `json:"members"`
}

func toChatResponse(c *models.Chat) chatResponse {
	out := chatResponse{ID: c.ID, Type: c.Type, CreatedAt: c.CreatedAt}
	for _, m := range c.Members {
		out.Members = append(out.Members, chatMemberResponse{
			UserID:     m.UserID,
			JoinedAt:   m.JoinedAt,
			LastReadAt: m.LastReadAt,
		})
	}
	return out
}

func (h *Handlers) createPrivateChat(w http.ResponseWriter, r *http.Request) {
	var req createPrivateChatRequest
	if err := h.decodeValid(r, &req); err != nil {
		if errors.Is(err, common.ErrorValidation) {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		writeValidationErrors(w, err)
		return
	}

	claims := claimsFrom(r.Context())
	chat, created, err := h.chats.GetOrCreatePrivateChat(r.Context(), claims.UserID, req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeData(w, status, "", toChatResponse(chat))
}

func (h *Handlers) createGroupChat(w http.ResponseWriter, r *http.Request) {
	var req createGroupChatRequest
	if err := h.decodeValid(r, &req); err != nil {
		if errors.Is(err, common.ErrorValidation) {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		writeValidationErrors(w, err)
		return
	}

	claims := claimsFrom(r.Context())
	chat, err := h.chats.CreateGroupChat(r.Context(), claims.UserID, req.MemberIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusCreated, "", toChatResponse(chat))
}

func (h *Handlers) listChats(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	chats, err := h.chats.ListChats(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]chatResponse, 0, len(chats))
	for _, c := range chats {
		out = append(out, toChatResponse(c))
	}
	writeData(w, http.StatusOK, "", out)
}

func (h *Handlers) getChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := uuidParam(w, r, "chatID")
	if !ok {
		return
	}

	claims := claimsFrom(r.Context())
	chat, err := h.chats.GetChat(r.Context(), chatID, claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", toChatResponse(chat))
}
