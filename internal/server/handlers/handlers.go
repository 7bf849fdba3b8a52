// Package handlers is the HTTP surface: request decoding and validation,
// cookie transport for the token pair, and the uniform response envelope.
// All business rules live in the services layer.
package handlers

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/chatter/internal/logging"
	"github.com/dmitrijs2005/chatter/internal/server/services"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Handlers bundles the services behind the HTTP routes.
type Handlers struct {
	auth          *services.AuthService
	chats         *services.ChatService
	messages      *services.MessageService
	media         *services.MediaService
	logger        logging.Logger
	validate      *validator.Validate
	secureCookies bool
}

func NewHandlers(
	auth *services.AuthService,
	chats *services.ChatService,
	messages *services.MessageService,
	media *services.MediaService,
	logger logging.Logger,
	secureCookies bool,
) *Handlers {
	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})

	return &Handlers{
		auth:          auth,
		chats:         chats,
		messages:      messages,
		media:         media,
		logger:        logger,
		validate:      validate,
		secureCookies: secureCookies,
	}
}
