package messaging

import (
	"time"

	"github.com/google/uuid"
)

const (
	maxBodyLength   = 4000
	maxClientRefLen = 64
)

// Message is one direct message. A thread is the unordered pair of sender
// and receiver.
type Message struct {
	ID         uuid.UUID `db:"id" json:"id"`
	SenderID   uuid.UUID `db:"sender_id" json:"sender_id"`
	ReceiverID uuid.UUID `db:"receiver_id" json:"receiver_id"`
	Body       string    `db:"body" json:"body"`
	IsRead     bool      `db:"is_read" json:"is_read"`
	IsUrgent   bool      `db:"is_urgent" json:"is_urgent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`

	// ClientRef is echoed back to the sender and never stored.
	ClientRef string `json:"client_ref,omitempty"`
}

type SendInput struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
	Body       string    `json:"body"`
	IsUrgent   bool      `json:"is_urgent"`
	ClientRef  string    `json:"client_ref"`
}

// Conversation summarises the thread with one counterpart.
type Conversation struct {
	CounterpartID   uuid.UUID `db:"counterpart_id" json:"counterpart_id"`
	CounterpartName string    `db:"counterpart_name" json:"counterpart_name"`
	CounterpartRole string    `db:"counterpart_role" json:"counterpart_role"`
	LastMessage     string    `db:"last_message" json:"last_message"`
	LastSenderID    uuid.UUID `db:"last_sender_id" json:"last_sender_id"`
	LastMessageAt   time.Time `db:"last_message_at" json:"last_message_at"`
	UnreadCount     int       `db:"unread_count" json:"unread_count"`
}

// ThreadPage is a page of a thread in chronological order.
type ThreadPage struct {
	Messages []*Message `json:"messages"`
	Total    int        `json:"total"`
	// MarkedRead is how many incoming messages were marked read on open.
	MarkedRead int64 `json:"marked_read"`
}
