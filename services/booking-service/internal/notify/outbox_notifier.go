package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/petcare-labs/clinibook/libs/db"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/outbox"
)

// OutboxNotifier hands notifications to the delivery pipeline by writing
// outbox events; the publisher ships them to Kafka and notification-service
// does the actual sending. An enqueue failure surfaces to the caller but the
// booking mutation that triggered it has already committed.
type OutboxNotifier struct {
	pool *db.Pool
	repo *outbox.Repository
}

func NewOutboxNotifier(pool *db.Pool, repo *outbox.Repository) *OutboxNotifier {
	return &OutboxNotifier{pool: pool, repo: repo}
}

func (n *OutboxNotifier) StaffAssigned(ctx context.Context, note AssignmentNote) error {
	payload, err := json.Marshal(map[string]any{
		"booking_id":  note.BookingID,
		"staff_email": note.StaffEmail,
		"staff_name":  note.StaffName,
		"client_name": note.ClientName,
		"pet_name":    note.PetName,
		"date":        note.StartsAt.Format("2006-01-02"),
		"time":        note.StartsAt.Format("15:04"),
		"type":        note.Type,
	})
	if err != nil {
		return err
	}
	return n.insert(ctx, note.BookingID, outbox.EventBookingAssigned, payload)
}

func (n *OutboxNotifier) BookingReminder(ctx context.Context, note ReminderNote) error {
	payload, err := json.Marshal(map[string]any{
		"booking_id":   note.BookingID,
		"client_email": note.ClientEmail,
		"client_name":  note.ClientName,
		"pet_name":     note.PetName,
		"date":         note.StartsAt.Format("2006-01-02"),
		"time":         note.StartsAt.Format("15:04"),
		"location":     note.Location,
	})
	if err != nil {
		return err
	}
	return n.insert(ctx, note.BookingID, outbox.EventBookingReminder, payload)
}

func (n *OutboxNotifier) SlotReleased(ctx context.Context, note ReleaseNote) error {
	payload, err := json.Marshal(map[string]any{
		"booking_id":  note.BookingID,
		"staff_email": note.StaffEmail,
		"staff_name":  note.StaffName,
		"date":        note.StartsAt.Format("2006-01-02"),
		"time":        note.StartsAt.Format("15:04"),
		"status":      note.Status,
		"reason":      note.Reason,
		"released_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return n.insert(ctx, note.BookingID, outbox.EventSlotReleased, payload)
}

func (n *OutboxNotifier) insert(ctx context.Context, bookingID, eventType string, payload []byte) error {
	tx, err := n.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := n.repo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   bookingID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
