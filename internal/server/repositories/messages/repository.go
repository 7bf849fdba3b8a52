// Package messages declares the repository contract for chat messages.
package messages

import (
	"context"
	"time"

	"github.com/dmitrijs2005/chatter/internal/server/models"
)

type Repository interface {
	// Create inserts a message and returns it with its generated id and
	// timestamp.
	Create(ctx context.Context, message *models.Message) (*models.Message, error)

	// ListByChat returns up to limit non-deleted messages for a chat,
	// newest first.
	ListByChat(ctx context.Context, chatID string, limit int) ([]*models.Message, error)

	// SoftDelete marks a message deleted if senderID authored it, reporting
	// how many rows changed (0 means no such message by that sender).
	SoftDelete(ctx context.Context, messageID, senderID string, deletedAt time.Time) (int64, error)
}
