package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/petcare-labs/clinibook/libs/db"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/booking"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/lifecycle"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/model"
)

// BookingRepository is the pgx-backed booking catalog. Slot exclusivity is
// enforced by a partial unique index on (staff_id, starts_at) restricted to
// confirmed bookings, so cancelled and aborted bookings free their slot.
type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

const bookingColumns = `id, pet_id, staff_id, starts_at, type, status,
	reminder_requested, reminder_sent, COALESCE(cancel_reason, ''), created_at, updated_at`

// Same list, qualified for queries that join through pets.
const bookingColumnsB = `b.id, b.pet_id, b.staff_id, b.starts_at, b.type, b.status,
	b.reminder_requested, b.reminder_sent, COALESCE(b.cancel_reason, ''), b.created_at, b.updated_at`

func (r *BookingRepository) Insert(ctx context.Context, b model.Booking) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings
			(id, pet_id, staff_id, starts_at, type, status, reminder_requested, reminder_sent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, b.ID, b.PetID, b.StaffID, b.StartsAt, b.Type, b.Status, b.ReminderRequested, b.ReminderSent, b.CreatedAt, b.UpdatedAt)
	if isUniqueViolation(err) {
		return booking.ErrSlotConflict
	}
	return err
}

func (r *BookingRepository) Get(ctx context.Context, id string) (model.Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Booking{}, fmt.Errorf("%w: booking %s", booking.ErrNotFound, id)
	}
	return b, err
}

func (r *BookingRepository) UpdateDetails(ctx context.Context, b model.Booking) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET staff_id = $2,
			starts_at = $3,
			type = $4,
			reminder_requested = $5,
			reminder_sent = $6,
			updated_at = $7
		WHERE id = $1 AND status = $8
	`, b.ID, b.StaffID, b.StartsAt, b.Type, b.ReminderRequested, b.ReminderSent, b.UpdatedAt, model.StatusConfirmed)
	if isUniqueViolation(err) {
		return booking.ErrSlotConflict
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.explainMissedUpdate(ctx, b.ID)
	}
	return nil
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, from, to model.Status, reason string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = $3,
			cancel_reason = NULLIF($4, ''),
			updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the booking vanished or a concurrent transition won.
		return r.explainMissedUpdate(ctx, id)
	}
	return nil
}

func (r *BookingRepository) explainMissedUpdate(ctx context.Context, id string) error {
	var status model.Status
	err := r.pool.QueryRow(ctx, `SELECT status FROM bookings WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: booking %s", booking.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: booking is %s", lifecycle.ErrInvalidTransition, status)
}

func (r *BookingRepository) SlotTaken(ctx context.Context, staffID string, startsAt time.Time, excludeID string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE staff_id = $1
				AND starts_at = $2
				AND status = $3
				AND id::text <> $4
		)
	`, staffID, startsAt, model.StatusConfirmed, excludeID).Scan(&taken)
	return taken, err
}

func (r *BookingRepository) OccupiedSlots(ctx context.Context, staffID string, dayStart, dayEnd time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT starts_at FROM bookings
		WHERE staff_id = $1
			AND status = $2
			AND starts_at >= $3
			AND starts_at < $4
		ORDER BY starts_at
	`, staffID, model.StatusConfirmed, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		slots = append(slots, t)
	}
	return slots, rows.Err()
}

func (r *BookingRepository) ListByPet(ctx context.Context, petID string) ([]model.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE pet_id = $1
		ORDER BY starts_at DESC
	`, petID)
}

func (r *BookingRepository) ListByStaff(ctx context.Context, staffID string) ([]model.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE staff_id = $1
		ORDER BY starts_at DESC
	`, staffID)
}

func (r *BookingRepository) ListUpcomingByStaff(ctx context.Context, staffID string, now time.Time) ([]model.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE staff_id = $1 AND status = $2 AND starts_at >= $3
		ORDER BY starts_at
	`, staffID, model.StatusConfirmed, now)
}

func (r *BookingRepository) ListUpcomingByClient(ctx context.Context, clientID string, now time.Time) ([]model.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumnsB+`
		FROM bookings b
		JOIN pets p ON p.id = b.pet_id
		WHERE p.owner_client_id = $1 AND b.status = $2 AND b.starts_at >= $3
		ORDER BY b.starts_at
	`, clientID, model.StatusConfirmed, now)
}

func (r *BookingRepository) ListHistoryByClient(ctx context.Context, clientID string, now time.Time) ([]model.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumnsB+`
		FROM bookings b
		JOIN pets p ON p.id = b.pet_id
		WHERE p.owner_client_id = $1 AND (b.status <> $2 OR b.starts_at < $3)
		ORDER BY b.starts_at DESC
	`, clientID, model.StatusConfirmed, now)
}

// DueReminders implements the reminder worker's store: confirmed bookings in
// [from, to) with an unsent requested reminder and a contactable owner.
func (r *BookingRepository) DueReminders(ctx context.Context, from, to time.Time) ([]model.DueReminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, c.name, c.email, p.name, b.starts_at
		FROM bookings b
		JOIN pets p ON p.id = b.pet_id
		JOIN clients c ON c.id = p.owner_client_id
		WHERE b.status = $1
			AND b.reminder_requested
			AND NOT b.reminder_sent
			AND b.starts_at >= $2
			AND b.starts_at < $3
			AND c.email <> ''
		ORDER BY b.starts_at
	`, model.StatusConfirmed, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []model.DueReminder
	for rows.Next() {
		var d model.DueReminder
		if err := rows.Scan(&d.BookingID, &d.ClientName, &d.ClientEmail, &d.PetName, &d.StartsAt); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

func (r *BookingRepository) MarkReminderSent(ctx context.Context, bookingID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET reminder_sent = TRUE, updated_at = now()
		WHERE id = $1 AND reminder_sent = FALSE
	`, bookingID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.PetID,
		&b.StaffID,
		&b.StartsAt,
		&b.Type,
		&b.Status,
		&b.ReminderRequested,
		&b.ReminderSent,
		&b.CancelReason,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
