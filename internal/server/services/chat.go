package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chatter/internal/common"
	"github.com/dmitrijs2005/chatter/internal/dbx"
	"github.com/dmitrijs2005/chatter/internal/logging"
	"github.com/dmitrijs2005/chatter/internal/server/models"
	"github.com/dmitrijs2005/chatter/internal/server/repositories/repomanager"
)

// ChatService manages chats and their memberships.
type ChatService struct {
	db     *sql.DB
	repo   repomanager.RepositoryManager
	logger logging.Logger
}

func NewChatService(db *sql.DB, repo repomanager.RepositoryManager, logger logging.Logger) *ChatService {
	return &ChatService{db: db, repo: repo, logger: logger}
}

// GetOrCreatePrivateChat returns the private chat between the two users,
// creating it on first contact. The second return value reports whether the
// chat was created by this call.
func (s *ChatService) GetOrCreatePrivateChat(ctx context.Context, userID, otherUserID string) (*models.Chat, bool, error) {
	if userID == otherUserID {
		return nil, false, fmt.Errorf("%w: cannot start a chat with yourself", common.ErrorValidation)
	}

	if _, err := s.repo.Users(s.db).GetByID(ctx, otherUserID); err != nil {
		return nil, false, err
	}

	chat, err := s.repo.Chats(s.db).FindPrivateBetween(ctx, userID, otherUserID)
	if err == nil {
		return chat, false, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, false, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		chat, err = s.repo.Chats(tx).Create(ctx, models.ChatTypePrivate, []string{userID, otherUserID})
		return err
	})
	if err != nil {
		return nil, false, err
	}

	s.logger.Info(ctx, "private chat created", "chat_id", chat.ID)
	return chat, true, nil
}

// CreateGroupChat creates a group chat with the creator and the given
// members.
func (s *ChatService) CreateGroupChat(ctx context.Context, creatorID string, memberIDs []string) (*models.Chat, error) {
	seen := map[string]bool{creatorID: true}
	all := []string{creatorID}
	for _, id := range memberIDs {
		if seen[id] {
			continue
		}
		if _, err := s.repo.Users(s.db).GetByID(ctx, id); err != nil {
			return nil, err
		}
		seen[id] = true
		all = append(all, id)
	}
	if len(all) < 2 {
		return nil, fmt.Errorf("%w: a group chat needs at least one other member", common.ErrorValidation)
	}

	var chat *models.Chat
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		chat, err = s.repo.Chats(tx).Create(ctx, models.ChatTypeGroup, all)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "group chat created", "chat_id", chat.ID, "members", len(all))
	return chat, nil
}

// ListChats returns every chat the user belongs to, newest first.
func (s *ChatService) ListChats(ctx context.Context, userID string) ([]*models.Chat, error) {
	return s.repo.Chats(s.db).ListByUser(ctx, userID)
}

// GetChat returns a chat the user is a member of.
func (s *ChatService) GetChat(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	chat, err := s.repo.Chats(s.db).GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	member := false
	for _, m := range chat.Members {
		if m.UserID == userID {
			member = true
			break
		}
	}
	if !member {
		return nil, common.ErrorForbidden
	}
	return chat, nil
}
