// Package broadcast fans chat events out to connected clients through a
// message broker. The HTTP layer stays request/response; realtime delivery
// is the broker's problem.
package broadcast

import (
	"context"
	"time"
)

// Event is one chat event as published to subscribers.
type Event struct {
	ChatID    string    `json:"chat_id"`
	MessageID string    `json:"message_id"`
	SenderID  string    `json:"sender_id"`
	Type      string    `json:"type"`
	Content   string    `json:"content,omitempty"`
	ImageKey  string    `json:"image_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Publisher delivers chat events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishMessage(ctx context.Context, event Event) error
	Close()
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishMessage(ctx context.Context, event Event) error { return nil }

func (NoopPublisher) Close() {}
