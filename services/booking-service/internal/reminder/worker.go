package reminder

import (
	"context"
	"log/slog"
	"time"

	"github.com/petcare-labs/clinibook/services/booking-service/internal/model"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/notify"
)

// Store is the slice of the booking catalog the reminder job needs.
type Store interface {
	// DueReminders returns confirmed bookings starting inside [from, to)
	// with the reminder requested and not yet sent.
	DueReminders(ctx context.Context, from, to time.Time) ([]model.DueReminder, error)
	// MarkReminderSent flips reminder_sent from false to true; returns
	// false when another run already claimed the booking.
	MarkReminderSent(ctx context.Context, bookingID string) (bool, error)
}

type Notifier interface {
	BookingReminder(ctx context.Context, note notify.ReminderNote) error
}

type Worker struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	interval time.Duration
	location string
}

type Config struct {
	// Interval between scans. Every run targets tomorrow's bookings, so any
	// interval up to a day behaves like a daily trigger; shorter intervals
	// only add no-op passes once the day's reminders are sent.
	Interval time.Duration
	// Location is the clinic address included in reminder messages.
	Location string
}

func NewWorker(store Store, notifier Notifier, logger *slog.Logger, cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Hour
	}
	return &Worker{
		store:    store,
		notifier: notifier,
		logger:   logger,
		interval: cfg.Interval,
		location: cfg.Location,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx, time.Now()); err != nil {
				w.logger.Error("reminder scan failed", "err", err)
			}
		}
	}
}

// RunOnce processes one reminder pass for the day after now. A notifier
// failure for one booking leaves its sent flag untouched and does not stop
// the rest of the batch. Bookings whose date passed without a run are not
// retried.
func (w *Worker) RunOnce(ctx context.Context, now time.Time) error {
	y, m, d := now.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	to := from.AddDate(0, 0, 1)

	due, err := w.store.DueReminders(ctx, from, to)
	if err != nil {
		return err
	}

	var sent, failed int
	for _, r := range due {
		if err := w.notifier.BookingReminder(ctx, notify.ReminderNote{
			BookingID:   r.BookingID,
			ClientEmail: r.ClientEmail,
			ClientName:  r.ClientName,
			PetName:     r.PetName,
			StartsAt:    r.StartsAt,
			Location:    w.location,
		}); err != nil {
			failed++
			w.logger.Error("reminder dispatch failed", "booking_id", r.BookingID, "err", err)
			continue
		}

		ok, err := w.store.MarkReminderSent(ctx, r.BookingID)
		if err != nil {
			w.logger.Error("reminder flag update failed", "booking_id", r.BookingID, "err", err)
			continue
		}
		if !ok {
			w.logger.Info("reminder already marked sent", "booking_id", r.BookingID)
			continue
		}
		sent++
	}

	if sent > 0 || failed > 0 {
		w.logger.Info("reminder pass finished", "due", len(due), "sent", sent, "failed", failed)
	}
	return nil
}
