package reminder

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/petcare-labs/clinibook/services/booking-service/internal/model"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/notify"
)

type fakeStore struct {
	reminders map[string]model.DueReminder
	sent      map[string]bool
}

func newFakeStore(rs ...model.DueReminder) *fakeStore {
	s := &fakeStore{
		reminders: map[string]model.DueReminder{},
		sent:      map[string]bool{},
	}
	for _, r := range rs {
		s.reminders[r.BookingID] = r
	}
	return s
}

func (s *fakeStore) DueReminders(_ context.Context, from, to time.Time) ([]model.DueReminder, error) {
	var due []model.DueReminder
	for id, r := range s.reminders {
		if s.sent[id] {
			continue
		}
		if r.StartsAt.Before(from) || !r.StartsAt.Before(to) {
			continue
		}
		due = append(due, r)
	}
	return due, nil
}

func (s *fakeStore) MarkReminderSent(_ context.Context, id string) (bool, error) {
	if s.sent[id] {
		return false, nil
	}
	s.sent[id] = true
	return true, nil
}

type fakeNotifier struct {
	notes  []notify.ReminderNote
	failOn map[string]bool
}

func (n *fakeNotifier) BookingReminder(_ context.Context, note notify.ReminderNote) error {
	if n.failOn[note.BookingID] {
		return errors.New("smtp down")
	}
	n.notes = append(n.notes, note)
	return nil
}

var testLogger = slog.New(slog.DiscardHandler)

func TestRunOnceSendsTomorrowsReminders(t *testing.T) {
	now := time.Date(2026, 9, 7, 6, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2026, 9, 8, 9, 30, 0, 0, time.UTC)

	store := newFakeStore(
		model.DueReminder{BookingID: "b1", ClientEmail: "ana@example.com", ClientName: "Ana", PetName: "Rex", StartsAt: tomorrow},
		model.DueReminder{BookingID: "b2", ClientEmail: "rui@example.com", ClientName: "Rui", PetName: "Mia", StartsAt: tomorrow.AddDate(0, 0, 3)},
	)
	notifier := &fakeNotifier{}
	w := NewWorker(store, notifier, testLogger, Config{Location: "Clinic HQ"})

	if err := w.RunOnce(context.Background(), now); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(notifier.notes))
	}
	note := notifier.notes[0]
	if note.BookingID != "b1" || note.PetName != "Rex" || note.Location != "Clinic HQ" {
		t.Fatalf("unexpected note: %+v", note)
	}
	if !store.sent["b1"] {
		t.Fatal("expected b1 marked sent")
	}
	if store.sent["b2"] {
		t.Fatal("b2 is not due tomorrow and must stay unsent")
	}
}

func TestRunOnceIsIdempotent(t *testing.T) {
	now := time.Date(2026, 9, 7, 6, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC)

	store := newFakeStore(model.DueReminder{BookingID: "b1", ClientEmail: "ana@example.com", StartsAt: tomorrow})
	notifier := &fakeNotifier{}
	w := NewWorker(store, notifier, testLogger, Config{})

	if err := w.RunOnce(context.Background(), now); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := w.RunOnce(context.Background(), now.Add(2*time.Hour)); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("expected exactly 1 reminder across two runs, got %d", len(notifier.notes))
	}
}

func TestRunOnceToleratesNotifierFailure(t *testing.T) {
	now := time.Date(2026, 9, 7, 6, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2026, 9, 8, 9, 0, 0, 0, time.UTC)

	store := newFakeStore(
		model.DueReminder{BookingID: "b1", ClientEmail: "a@example.com", StartsAt: tomorrow},
		model.DueReminder{BookingID: "b2", ClientEmail: "b@example.com", StartsAt: tomorrow.Add(30 * time.Minute)},
	)
	notifier := &fakeNotifier{failOn: map[string]bool{"b1": true}}
	w := NewWorker(store, notifier, testLogger, Config{})

	if err := w.RunOnce(context.Background(), now); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if store.sent["b1"] {
		t.Fatal("failed reminder must not be marked sent")
	}
	if !store.sent["b2"] {
		t.Fatal("failure for b1 must not block b2")
	}

	// Next pass retries the failed booking once the notifier recovers.
	notifier.failOn = nil
	if err := w.RunOnce(context.Background(), now.Add(time.Hour)); err != nil {
		t.Fatalf("retry run failed: %v", err)
	}
	if !store.sent["b1"] {
		t.Fatal("expected b1 sent on the recovered run")
	}
}
