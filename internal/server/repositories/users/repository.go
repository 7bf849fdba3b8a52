// Package users declares the identity-store contract. The authentication
// core only ever reads users; creation happens at registration.
package users

import (
	"context"

	"github.com/dmitrijs2005/chatter/internal/server/models"
)

type Repository interface {
	// Create inserts a new user. A duplicate email or username returns
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByID looks a user up by id, returning common.ErrorNotFound when
	// absent.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByIdentifier looks a user up by email or username (the login form
	// accepts either), returning common.ErrorNotFound when absent.
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
}
