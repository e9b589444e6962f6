// Package queue provides the notification channels the consumer polls.
package queue

import (
	"context"
	"time"
)

// Message is one notification received from a channel.
type Message struct {
	ID   string
	Body string

	// Receipt identifies this delivery; it is what Delete acknowledges.
	Receipt string
}

// Channel delivers notification messages at least once. A received message
// that is not deleted becomes visible again and is redelivered.
type Channel interface {
	// Receive blocks up to wait for at most limit messages.
	// It may return an empty batch.
	Receive(ctx context.Context, limit int, wait time.Duration) ([]Message, error)

	// Delete acknowledges a message so it is not redelivered.
	Delete(ctx context.Context, msg Message) error
}
