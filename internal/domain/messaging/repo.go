package messaging

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Message) error
	// Thread returns messages between a and b in either direction, oldest
	// first.
	Thread(ctx context.Context, a, b uuid.UUID, limit, offset int) ([]*Message, int, error)
	// MarkRead flags the listed unread messages from sender to receiver as
	// read. Ids outside that direction are left untouched.
	MarkRead(ctx context.Context, receiver, sender uuid.UUID, ids []uuid.UUID) (int64, error)
	// DeleteThread removes both directions between a and b.
	DeleteThread(ctx context.Context, a, b uuid.UUID) (int64, error)
	Conversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Conversation, int, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}
