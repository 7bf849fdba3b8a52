package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Router assembles the API: public auth routes, then everything else behind
// the access token middleware.
func (h *Handlers) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Get("/test", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, "ok", nil)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", h.register)
			r.Post("/login", h.login)
			r.Post("/refresh", h.refresh)
			r.Post("/logout", h.logout)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Post("/logout-all", h.logoutAll)
				r.Get("/me", h.me)
			})
		})

		r.Route("/chats", func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/", h.createPrivateChat)
			r.Post("/group", h.createGroupChat)
			r.Get("/", h.listChats)
			r.Get("/{chatID}", h.getChat)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/", h.sendMessage)
			r.Get("/{chatID}", h.listMessages)
			r.Delete("/{messageID}", h.deleteMessage)
			r.Post("/{chatID}/read", h.markRead)
		})

		r.Route("/media", func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Get("/upload-url", h.uploadURL)
			r.Get("/download-url", h.downloadURL)
		})
	})

	return r
}
