package models

import "time"

// Chat types.
const (
	ChatTypePrivate = "PRIVATE"
	ChatTypeGroup   = "GROUP"
)

type Chat struct {
	ID        string
	Type      string
	CreatedAt time.Time
	Members   []*ChatMember
}

// ChatMember links a user into a chat. LastReadAt backs read receipts.
type ChatMember struct {
	ChatID     string
	UserID     string
	JoinedAt   time.Time
	LastReadAt *time.Time
}
