// Package chats declares the repository contract for chats and their
// memberships.
package chats

import (
	"context"
	"time"

	"github.com/dmitrijs2005/chatter/internal/server/models"
)

type Repository interface {
	// Create inserts a chat and its initial members. Callers wanting the
	// chat and memberships to appear atomically run this inside dbx.WithTx.
	Create(ctx context.Context, chatType string, memberIDs []string) (*models.Chat, error)

	// FindPrivateBetween returns the private chat joining the two users, or
	// common.ErrorNotFound.
	FindPrivateBetween(ctx context.Context, userA, userB string) (*models.Chat, error)

	// GetByID returns a chat with its members, or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.Chat, error)

	// ListByUser returns every chat the user belongs to, members included,
	// newest first.
	ListByUser(ctx context.Context, userID string) ([]*models.Chat, error)

	// IsMember reports whether userID belongs to chatID.
	IsMember(ctx context.Context, chatID, userID string) (bool, error)

	// SetLastRead records when userID last read chatID. Unknown membership
	// returns common.ErrorNotFound.
	SetLastRead(ctx context.Context, chatID, userID string, readAt time.Time) error
}
