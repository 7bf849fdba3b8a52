package chats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chatter/internal/common"
	"github.com/dmitrijs2005/chatter/internal/dbx"
	"github.com/dmitrijs2005/chatter/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, chatType string, memberIDs []string) (*models.Chat, error) {
	chat := &models.Chat{Type: chatType}

	query := `
		INSERT INTO chats (type)
		VALUES ($1)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowContext(ctx, query, chatType).Scan(&chat.ID, &chat.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	memberQuery := `
		INSERT INTO chat_members (chat_id, user_id)
		VALUES ($1, $2)
		RETURNING joined_at
	`
	for _, userID := range memberIDs {
		member := &models.ChatMember{ChatID: chat.ID, UserID: userID}
		if err := r.db.QueryRowContext(ctx, memberQuery, chat.ID, userID).Scan(&member.JoinedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		chat.Members = append(chat.Members, member)
	}

	return chat, nil
}

func (r *PostgresRepository) FindPrivateBetween(ctx context.Context, userA, userB string) (*models.Chat, error) {
	query := `
		SELECT c.id, c.type, c.created_at
		FROM chats c
		JOIN chat_members m1 ON m1.chat_id = c.id AND m1.user_id = $1
		JOIN chat_members m2 ON m2.chat_id = c.id AND m2.user_id = $2
		WHERE c.type = 'PRIVATE'
	`
	chat := &models.Chat{}
	err := r.db.QueryRowContext(ctx, query, userA, userB).Scan(&chat.ID, &chat.Type, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := r.loadMembers(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	query := `
		SELECT id, type, created_at
		FROM chats
		WHERE id = $1
	`
	chat := &models.Chat{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&chat.ID, &chat.Type, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := r.loadMembers(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Chat, error) {
	// One join query; rows arrive grouped by chat and are folded in Go.
	query := `
		SELECT c.id, c.type, c.created_at, m.user_id, m.joined_at, m.last_read_at
		FROM chats c
		JOIN chat_members cm ON cm.chat_id = c.id AND cm.user_id = $1
		JOIN chat_members m ON m.chat_id = c.id
		ORDER BY c.created_at DESC, c.id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var chats []*models.Chat
	byID := map[string]*models.Chat{}

	for rows.Next() {
		var (
			chatID, chatType string
			createdAt        time.Time
			member           models.ChatMember
		)
		if err := rows.Scan(&chatID, &chatType, &createdAt, &member.UserID, &member.JoinedAt, &member.LastReadAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}

		chat, ok := byID[chatID]
		if !ok {
			chat = &models.Chat{ID: chatID, Type: chatType, CreatedAt: createdAt}
			byID[chatID] = chat
			chats = append(chats, chat)
		}
		member.ChatID = chatID
		chat.Members = append(chat.Members, &member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return chats, nil
}

func (r *PostgresRepository) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM chat_members
			WHERE chat_id = $1 AND user_id = $2
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, chatID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) SetLastRead(ctx context.Context, chatID, userID string, readAt time.Time) error {
	query := `
		UPDATE chat_members
		SET last_read_at = $3
		WHERE chat_id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, chatID, userID, readAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) loadMembers(ctx context.Context, chat *models.Chat) error {
	query := `
		SELECT user_id, joined_at, last_read_at
		FROM chat_members
		WHERE chat_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, chat.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		member := &models.ChatMember{ChatID: chat.ID}
		if err := rows.Scan(&member.UserID, &member.JoinedAt, &member.LastReadAt); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		chat.Members = append(chat.Members, member)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
