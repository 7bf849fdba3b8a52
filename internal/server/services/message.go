package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/chatter/internal/common"
	"github.com/dmitrijs2005/chatter/internal/logging"
	"github.com/dmitrijs2005/chatter/internal/server/broadcast"
	"github.com/dmitrijs2005/chatter/internal/server/models"
	"github.com/dmitrijs2005/chatter/internal/server/repositories/repomanager"
)

const defaultMessagePageSize = 50

// MessageService posts, lists, deletes and acknowledges messages. Every
// operation checks chat membership before touching messages.
type MessageService struct {
	db        *sql.DB
	repo      repomanager.RepositoryManager
	publisher broadcast.Publisher
	logger    logging.Logger
	now       func() time.Time
}

func NewMessageService(db *sql.DB, repo repomanager.RepositoryManager, publisher broadcast.Publisher, logger logging.Logger) *MessageService {
	return &MessageService{db: db, repo: repo, publisher: publisher, logger: logger, now: time.Now}
}

// Send posts a message to a chat the sender belongs to. A message with an
// image key is typed as an image; content may accompany it as a caption.
func (s *MessageService) Send(ctx context.Context, senderID, chatID, content, imageKey string) (*models.Message, error) {
	if content == "" && imageKey == "" {
		return nil, common.ErrorValidation
	}
	if err := s.requireMember(ctx, chatID, senderID); err != nil {
		return nil, err
	}

	msgType := models.MessageTypeText
	if imageKey != "" {
		msgType = models.MessageTypeImage
	}

	msg, err := s.repo.Messages(s.db).Create(ctx, &models.Message{
		ChatID:   chatID,
		SenderID: senderID,
		Type:     msgType,
		Content:  content,
		ImageKey: imageKey,
	})
	if err != nil {
		return nil, err
	}

	// Delivery to live subscribers is best effort; the message is already
	// durable.
	if err := s.publisher.PublishMessage(ctx, broadcast.Event{
		ChatID:    msg.ChatID,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Type:      msg.Type,
		Content:   msg.Content,
		ImageKey:  msg.ImageKey,
		CreatedAt: msg.CreatedAt,
	}); err != nil {
		s.logger.Warn(ctx, "broadcast publish failed", "chat_id", msg.ChatID, "error", err)
	}

	return msg, nil
}

// List returns up to limit recent messages of a chat the user belongs to,
// newest first.
func (s *MessageService) List(ctx context.Context, chatID, userID string, limit int) ([]*models.Message, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessagePageSize
	}
	return s.repo.Messages(s.db).ListByChat(ctx, chatID, limit)
}

// Delete soft-deletes a message. Only the sender may delete their own
// message; anything else is reported as not found.
func (s *MessageService) Delete(ctx context.Context, messageID, userID string) error {
	n, err := s.repo.Messages(s.db).SoftDelete(ctx, messageID, userID, s.now())
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// MarkRead records that the user has read the chat up to now.
func (s *MessageService) MarkRead(ctx context.Context, chatID, userID string) error {
	return s.repo.Chats(s.db).SetLastRead(ctx, chatID, userID, s.now())
}

func (s *MessageService) requireMember(ctx context.Context, chatID, userID string) error {
	if _, err := s.repo.Chats(s.db).GetByID(ctx, chatID); err != nil {
		return err
	}
	ok, err := s.repo.Chats(s.db).IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrorForbidden
	}
	return nil
}
