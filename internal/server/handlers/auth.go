package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/chatter/internal/common"
	"github.com/dmitrijs2005/chatter/internal/server/models"
	"github.com/dmitrijs2005/chatter/internal/server/services"
)

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required,min=3,max=30,username"`
	Password  string `json:"password" validate:"required,min=6,max=100"`
	AvatarKey string `json:"avatar_key" validate:"omitempty,max=255"`
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	AvatarKey string `json:"avatar_key,omitempty"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Username: u.Username, AvatarKey: u.AvatarKey}
}

func (h *Handlers) decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return common.ErrorValidation
	}
	return h.validate.Struct(dst)
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decodeValid(r, &req); err != nil {
		if errors.Is(err, common.ErrorValidation) {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		writeValidationErrors(w, err)
		return
	}

	user, pair, err := h.auth.Register(r.Context(), req.Email, req.Username, req.Password, req.AvatarKey, deviceInfo(r))
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			writeError(w, http.StatusConflict, "email or username already taken")
			return
		}
		h.logger.Error(r.Context(), "register failed", "error", err)
		writeServiceError(w, err)
		return
	}

	h.setAuthCookies(w, pair)
	writeData(w, http.StatusCreated, "registered", toUserResponse(user))
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decodeValid(r, &req); err != nil {
		if errors.Is(err, common.ErrorValidation) {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		writeValidationErrors(w, err)
		return
	}

	user, pair, err := h.auth.Login(r.Context(), req.Identifier, req.Password, deviceInfo(r))
	if err != nil {
		if !errors.Is(err, common.ErrorUnauthorized) {
			h.logger.Error(r.Context(), "login failed", "error", err)
		}
		writeServiceError(w, err)
		return
	}

	h.setAuthCookies(w, pair)
	writeData(w, http.StatusOK, "logged in", toUserResponse(user))
}

// refresh rotates the refresh token from the cookie. Every unsuccessful
// outcome answers the same generic 401 so a probing client learns nothing
// about why its token was rejected.
func (h *Handlers) refresh(w http.ResponseWriter, r *http.Request) {
	raw := cookieValue(r, refreshCookieName)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	res, err := h.auth.Refresh(r.Context(), raw)
	if err != nil {
		h.logger.Error(r.Context(), "refresh failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if res.Outcome != services.OutcomeRotated {
		h.clearAuthCookies(w)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	h.setAuthCookies(w, res.Pair)
	writeData(w, http.StatusOK, "refreshed", toUserResponse(res.User))
}

// logout revokes the presented session and clears both cookies. It succeeds
// whether or not the session still existed.
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), cookieValue(r, refreshCookieName)); err != nil {
		h.logger.Error(r.Context(), "logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.clearAuthCookies(w)
	writeData(w, http.StatusOK, "logged out", nil)
}

// logoutAll revokes every session of the authenticated user.
func (h *Handlers) logoutAll(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	n, err := h.auth.RevokeAll(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error(r.Context(), "logout all failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.clearAuthCookies(w)
	writeData(w, http.StatusOK, "logged out everywhere", map[string]int64{"revoked": n})
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	user, err := h.auth.GetUser(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, "", toUserResponse(user))
}
