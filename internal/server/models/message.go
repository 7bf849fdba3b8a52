package models

import "time"

// Message types.
const (
	MessageTypeText  = "TEXT"
	MessageTypeImage = "IMAGE"
)

// Message is a single chat message. ImageKey references an uploaded object in
// media storage; Content may be empty for image-only messages. DeletedAt marks
// a soft delete by the sender.
type Message struct {
	ID        string
	ChatID    string
	SenderID  string
	Type      string
	Content   string
	ImageKey  string
	CreatedAt time.Time
	DeletedAt *time.Time
}
