package messages

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chatter/internal/dbx"
	"github.com/dmitrijs2005/chatter/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, message *models.Message) (*models.Message, error) {
	query := `
		INSERT INTO messages (chat_id, sender_id, type, content, image_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		message.ChatID, message.SenderID, message.Type, message.Content, message.ImageKey).
		Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return message, nil
}

func (r *PostgresRepository) ListByChat(ctx context.Context, chatID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, chat_id, sender_id, type, content, image_key, created_at
		FROM messages
		WHERE chat_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Type, &m.Content, &m.ImageKey, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, messageID, senderID string, deletedAt time.Time) (int64, error) {
	query := `
		UPDATE messages
		SET deleted_at = $3
		WHERE id = $1 AND sender_id = $2 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, messageID, senderID, deletedAt)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
