package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/chatter/internal/server/auth"
	"github.com/dmitrijs2005/chatter/internal/server/services"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// requireAuth authenticates the request from the access token cookie or an
// Authorization bearer header and stores the claims in the request context.
func (h *Handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := cookieValue(r, accessCookieName)
		if raw == "" {
			if v := r.Header.Get("Authorization"); strings.HasPrefix(v, "Bearer ") {
				raw = strings.TrimPrefix(v, "Bearer ")
			}
		}
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := h.auth.VerifyAccessToken(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// claimsFrom returns the authenticated claims stored by requireAuth.
func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

// uuidParam reads a URL parameter that must be a UUID. A value that does not
// parse cannot name any row, so it is rejected before touching storage.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := chi.URLParam(r, name)
	if _, err := uuid.Parse(v); err != nil {
		writeError(w, http.StatusBadRequest, name+" must be a valid id")
		return "", false
	}
	return v, true
}

func deviceInfo(r *http.Request) services.DeviceInfo {
	return services.DeviceInfo{
		UserAgent:  r.UserAgent(),
		ClientAddr: r.RemoteAddr,
	}
}
