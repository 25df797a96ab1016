package messaging

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/db"
)

type messageRepoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &messageRepoPG{q: q} }

const messageCols = `id, sender_id, receiver_id, body, is_read, is_urgent, created_at`

const threadWhere = ` WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)`

func (r *messageRepoPG) scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Body, &m.IsRead, &m.IsUrgent, &m.CreatedAt)
	return &m, err
}

func (r *messageRepoPG) Create(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	return r.q.QueryRow(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, body, is_urgent)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING is_read, created_at`,
		m.ID, m.SenderID, m.ReceiverID, m.Body, m.IsUrgent,
	).Scan(&m.IsRead, &m.CreatedAt)
}

func (r *messageRepoPG) Thread(ctx context.Context, a, b uuid.UUID, limit, offset int) ([]*Message, int, error) {
	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM messages`+threadWhere, a, b).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.q.Query(ctx, `SELECT `+messageCols+` FROM messages`+threadWhere+`
		ORDER BY created_at ASC, id ASC LIMIT $3 OFFSET $4`, a, b, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Message
	for rows.Next() {
		m, err := r.scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *messageRepoPG) MarkRead(ctx context.Context, receiver, sender uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE receiver_id = $1 AND sender_id = $2 AND is_read = FALSE AND id = ANY($3)`, receiver, sender, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *messageRepoPG) DeleteThread(ctx context.Context, a, b uuid.UUID) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM messages`+threadWhere, a, b)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *messageRepoPG) Conversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Conversation, int, error) {
	const counterpart = `CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END`

	var total int
	if err := r.q.QueryRow(ctx, `
		SELECT COUNT(DISTINCT `+counterpart+`) FROM messages
		WHERE sender_id = $1 OR receiver_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.q.Query(ctx, `
		WITH mine AS (
			SELECT `+counterpart+` AS counterpart_id, sender_id, receiver_id, body, is_read, created_at
			FROM messages
			WHERE sender_id = $1 OR receiver_id = $1
		), latest AS (
			SELECT DISTINCT ON (counterpart_id) counterpart_id, body, sender_id, created_at
			FROM mine
			ORDER BY counterpart_id, created_at DESC
		), unread AS (
			SELECT counterpart_id, COUNT(*) AS n
			FROM mine
			WHERE receiver_id = $1 AND NOT is_read
			GROUP BY counterpart_id
		)
		SELECT l.counterpart_id, u.display_name, u.role, l.body, l.sender_id, l.created_at,
			COALESCE(n.n, 0)
		FROM latest l
		JOIN users u ON u.id = l.counterpart_id
		LEFT JOIN unread n ON n.counterpart_id = l.counterpart_id
		ORDER BY l.created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.CounterpartID, &c.CounterpartName, &c.CounterpartRole, &c.LastMessage,
			&c.LastSenderID, &c.LastMessageAt, &c.UnreadCount); err != nil {
			return nil, 0, err
		}
		items = append(items, &c)
	}
	return items, total, rows.Err()
}

func (r *messageRepoPG) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND NOT is_read`, userID).Scan(&n)
	return n, err
}
