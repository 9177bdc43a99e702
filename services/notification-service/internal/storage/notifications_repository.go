package storage

import (
	"context"

	"github.com/petcare-labs/clinibook/libs/db"
)

// Notification is one delivery attempt, kept for auditing.
type Notification struct {
	BookingID string
	EventType string
	Channel   string
	Recipient string
	Payload   []byte
	Status    string
	Error     string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (booking_id, event_type, channel, recipient, payload, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	`, n.BookingID, n.EventType, n.Channel, n.Recipient, n.Payload, n.Status, n.Error)
	return err
}
