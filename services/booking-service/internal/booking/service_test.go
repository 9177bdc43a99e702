package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/petcare-labs/clinibook/libs/auth"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/lifecycle"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/model"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/notify"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/rules"
)

type fakeCatalog struct {
	bookings map[string]model.Booking
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{bookings: map[string]model.Booking{}}
}

func (c *fakeCatalog) Insert(_ context.Context, b model.Booking) error {
	for _, other := range c.bookings {
		if other.StaffID == b.StaffID && other.StartsAt.Equal(b.StartsAt) && other.Status == model.StatusConfirmed {
			return ErrSlotConflict
		}
	}
	c.bookings[b.ID] = b
	return nil
}

func (c *fakeCatalog) Get(_ context.Context, id string) (model.Booking, error) {
	b, ok := c.bookings[id]
	if !ok {
		return model.Booking{}, fmt.Errorf("%w: booking %s", ErrNotFound, id)
	}
	return b, nil
}

func (c *fakeCatalog) UpdateDetails(_ context.Context, b model.Booking) error {
	cur, ok := c.bookings[b.ID]
	if !ok {
		return fmt.Errorf("%w: booking %s", ErrNotFound, b.ID)
	}
	if cur.Status != model.StatusConfirmed {
		return fmt.Errorf("%w: booking is %s", lifecycle.ErrInvalidTransition, cur.Status)
	}
	for id, other := range c.bookings {
		if id == b.ID {
			continue
		}
		if other.StaffID == b.StaffID && other.StartsAt.Equal(b.StartsAt) && other.Status == model.StatusConfirmed {
			return ErrSlotConflict
		}
	}
	c.bookings[b.ID] = b
	return nil
}

func (c *fakeCatalog) UpdateStatus(_ context.Context, id string, from, to model.Status, reason string) error {
	cur, ok := c.bookings[id]
	if !ok {
		return fmt.Errorf("%w: booking %s", ErrNotFound, id)
	}
	if cur.Status != from {
		return fmt.Errorf("%w: booking is %s", lifecycle.ErrInvalidTransition, cur.Status)
	}
	cur.Status = to
	cur.CancelReason = reason
	c.bookings[id] = cur
	return nil
}

func (c *fakeCatalog) SlotTaken(_ context.Context, staffID string, startsAt time.Time, excludeID string) (bool, error) {
	for id, b := range c.bookings {
		if id == excludeID {
			continue
		}
		if b.StaffID == staffID && b.StartsAt.Equal(startsAt) && b.Status == model.StatusConfirmed {
			return true, nil
		}
	}
	return false, nil
}

func (c *fakeCatalog) OccupiedSlots(_ context.Context, staffID string, dayStart, dayEnd time.Time) ([]time.Time, error) {
	var slots []time.Time
	for _, b := range c.bookings {
		if b.StaffID == staffID && b.Status == model.StatusConfirmed &&
			!b.StartsAt.Before(dayStart) && b.StartsAt.Before(dayEnd) {
			slots = append(slots, b.StartsAt)
		}
	}
	return slots, nil
}

func (c *fakeCatalog) ListByPet(_ context.Context, petID string) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range c.bookings {
		if b.PetID == petID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (c *fakeCatalog) ListByStaff(_ context.Context, staffID string) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range c.bookings {
		if b.StaffID == staffID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (c *fakeCatalog) ListUpcomingByStaff(_ context.Context, staffID string, now time.Time) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range c.bookings {
		if b.StaffID == staffID && b.Status == model.StatusConfirmed && !b.StartsAt.Before(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (c *fakeCatalog) ListUpcomingByClient(context.Context, string, time.Time) ([]model.Booking, error) {
	return nil, nil
}

func (c *fakeCatalog) ListHistoryByClient(context.Context, string, time.Time) ([]model.Booking, error) {
	return nil, nil
}

type fakeDirectory struct {
	pets    map[string]model.Pet
	clients map[string]model.Client
	staff   map[string]model.Staff
}

func (d *fakeDirectory) PetByID(_ context.Context, id string) (model.Pet, error) {
	p, ok := d.pets[id]
	if !ok {
		return model.Pet{}, fmt.Errorf("%w: pet %s", ErrNotFound, id)
	}
	return p, nil
}

func (d *fakeDirectory) ClientByID(_ context.Context, id string) (model.Client, error) {
	c, ok := d.clients[id]
	if !ok {
		return model.Client{}, fmt.Errorf("%w: client %s", ErrNotFound, id)
	}
	return c, nil
}

func (d *fakeDirectory) StaffByID(_ context.Context, id string) (model.Staff, error) {
	s, ok := d.staff[id]
	if !ok {
		return model.Staff{}, fmt.Errorf("%w: staff %s", ErrNotFound, id)
	}
	return s, nil
}

type recordingNotifier struct {
	assignments []notify.AssignmentNote
	releases    []notify.ReleaseNote
	fail        bool
}

func (n *recordingNotifier) StaffAssigned(_ context.Context, note notify.AssignmentNote) error {
	if n.fail {
		return errors.New("broker unavailable")
	}
	n.assignments = append(n.assignments, note)
	return nil
}

func (n *recordingNotifier) SlotReleased(_ context.Context, note notify.ReleaseNote) error {
	if n.fail {
		return errors.New("broker unavailable")
	}
	n.releases = append(n.releases, note)
	return nil
}

// Tuesday 2026-09-08 08:00 in the clinic's zone.
var testNow = time.Date(2026, 9, 8, 8, 0, 0, 0, time.UTC)

// Wednesday 10:00, a valid morning slot.
var testSlot = time.Date(2026, 9, 9, 10, 0, 0, 0, time.UTC)

func newTestService() (*Service, *fakeCatalog, *fakeDirectory, *recordingNotifier) {
	catalog := newFakeCatalog()
	dir := &fakeDirectory{
		pets: map[string]model.Pet{
			"pet-1": {ID: "pet-1", OwnerClientID: "client-1", Name: "Rex", Species: "dog"},
			"pet-2": {ID: "pet-2", OwnerClientID: "client-2", Name: "Mia", Species: "cat"},
			"pet-3": {ID: "pet-3", OwnerClientID: "client-3", Name: "Boo", Species: "rabbit"},
		},
		clients: map[string]model.Client{
			"client-1": {ID: "client-1", Name: "Ana", Email: "ana@example.com", Active: true},
			"client-2": {ID: "client-2", Name: "Rui", Email: "", Active: true},
			"client-3": {ID: "client-3", Name: "Eva", Email: "eva@example.com", Active: false},
		},
		staff: map[string]model.Staff{
			"vet-1":  {ID: "vet-1", Name: "Dr. Silva", Email: "silva@clinic.example", Profile: model.ProfileVeterinarian},
			"vet-2":  {ID: "vet-2", Name: "Dr. Nunes", Email: "nunes@clinic.example", Profile: model.ProfileVeterinarian},
			"aux-1":  {ID: "aux-1", Name: "Jo Costa", Email: "costa@clinic.example", Profile: model.ProfileAuxiliary},
			"tech-1": {ID: "tech-1", Name: "Sam Reis", Email: "reis@clinic.example", Profile: model.ProfileTechnician},
		},
	}
	notifier := &recordingNotifier{}
	svc := NewService(catalog, dir, notifier, slog.New(slog.DiscardHandler)).
		WithClock(func() time.Time { return testNow })
	return svc, catalog, dir, notifier
}

var (
	clientActor   = Actor{ID: "client-1", Role: auth.RoleClient, Name: "Ana"}
	otherClient   = Actor{ID: "client-2", Role: auth.RoleClient, Name: "Rui"}
	inactiveActor = Actor{ID: "client-3", Role: auth.RoleClient, Name: "Eva"}
	staffActor    = Actor{ID: "vet-1", Role: auth.RoleStaff, Name: "Dr. Silva"}
)

func TestCreateBooking(t *testing.T) {
	svc, _, _, notifier := newTestService()

	b, err := svc.Create(context.Background(), clientActor, CreateInput{
		PetID:             "pet-1",
		StaffID:           "vet-1",
		StartsAt:          testSlot,
		Type:              model.TypeConsultation,
		ReminderRequested: true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if b.Status != model.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", b.Status)
	}
	if b.ReminderSent {
		t.Fatal("new booking must not have its reminder marked sent")
	}
	if b.ID == "" {
		t.Fatal("expected a generated id")
	}
	if len(notifier.assignments) != 1 {
		t.Fatalf("expected 1 assignment note, got %d", len(notifier.assignments))
	}
	if note := notifier.assignments[0]; note.StaffEmail != "silva@clinic.example" || note.PetName != "Rex" {
		t.Fatalf("unexpected assignment note: %+v", note)
	}
}

func TestCreateRejections(t *testing.T) {
	cases := []struct {
		name    string
		actor   Actor
		in      CreateInput
		wantErr error
	}{
		{
			name:    "staff cannot create",
			actor:   staffActor,
			in:      CreateInput{PetID: "pet-1", StaffID: "vet-1", StartsAt: testSlot, Type: model.TypeConsultation},
			wantErr: ErrUnauthorized,
		},
		{
			name:    "missing fields",
			actor:   clientActor,
			in:      CreateInput{PetID: "pet-1", Type: model.TypeConsultation},
			wantErr: ErrValidation,
		},
		{
			name:    "unknown type",
			actor:   clientActor,
			in:      CreateInput{PetID: "pet-1", StaffID: "vet-1", StartsAt: testSlot, Type: "dentistry"},
			wantErr: ErrValidation,
		},
		{
			name:    "pet owned by someone else",
			actor:   clientActor,
			in:      CreateInput{PetID: "pet-2", StaffID: "vet-1", StartsAt: testSlot, Type: model.TypeConsultation},
			wantErr: ErrUnauthorized,
		},
		{
			name:    "inactive account",
			actor:   inactiveActor,
			in:      CreateInput{PetID: "pet-3", StaffID: "vet-1", StartsAt: testSlot, Type: model.TypeConsultation},
			wantErr: ErrAccountInactive,
		},
		{
			name:    "reminder without contact email",
			actor:   otherClient,
			in:      CreateInput{PetID: "pet-2", StaffID: "vet-1", StartsAt: testSlot, Type: model.TypeConsultation, ReminderRequested: true},
			wantErr: ErrValidation,
		},
		{
			name:    "grooming needs an auxiliary",
			actor:   clientActor,
			in:      CreateInput{PetID: "pet-1", StaffID: "vet-1", StartsAt: testSlot, Type: model.TypeGrooming},
			wantErr: rules.ErrProfileMismatch,
		},
		{
			name:    "past date",
			actor:   clientActor,
			in:      CreateInput{PetID: "pet-1", StaffID: "vet-1", StartsAt: testNow.AddDate(0, 0, -1), Type: model.TypeConsultation},
			wantErr: rules.ErrInvalidSchedule,
		},
		{
			name:    "unknown staff",
			actor:   clientActor,
			in:      CreateInput{PetID: "pet-1", StaffID: "vet-404", StartsAt: testSlot, Type: model.TypeConsultation},
			wantErr: ErrNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _, _ := newTestService()
			if _, err := svc.Create(context.Background(), tc.actor, tc.in); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreateSlotConflict(t *testing.T) {
	svc, _, _, _ := newTestService()

	first := CreateInput{PetID: "pet-1", StaffID: "vet-1", StartsAt: testSlot, Type: model.TypeConsultation}
	if _, err := svc.Create(context.Background(), clientActor, first); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	second := CreateInput{PetID: "pet-2", StaffID: "vet-1", StartsAt: testSlot, Type: model.TypeVaccination}
	if _, err := svc.Create(context.Background(), otherClient, second); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected slot conflict, got %v", err)
	}

	// The same instant with different staff is fine.
	third := CreateInput{PetID: "pet-2", StaffID: "aux-1", StartsAt: testSlot, Type: model.TypeBathing}
	if _, err := svc.Create(context.Background(), otherClient, third); err != nil {
		t.Fatalf("create with different staff failed: %v", err)
	}
}

func TestCreateNotifierFailureDoesNotFailBooking(t *testing.T) {
	svc, catalog, _, notifier := newTestService()
	notifier.fail = true

	b, err := svc.Create(context.Background(), clientActor, CreateInput{
		PetID: "pet-1", StaffID: "vet-1", StartsAt: testSlot, Type: model.TypeConsultation,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, ok := catalog.bookings[b.ID]; !ok {
		t.Fatal("booking must be persisted despite notifier failure")
	}
}

func TestUpdateReschedule(t *testing.T) {
	svc, catalog, _, _ := newTestService()

	b, err := svc.Create(context.Background(), clientActor, CreateInput{
		PetID: "pet-1", StaffID: "vet-1", StartsAt: testSlot, Type: model.TypeConsultation, ReminderRequested: true,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Simulate an already-sent reminder, then reschedule.
	stored := catalog.bookings[b.ID]
	stored.ReminderSent = true
	catalog.bookings[b.ID] = stored

	newSlot := testSlot.Add(time.Hour)
	updated, err := svc.Update(context.Background(), clientActor, b.ID, UpdateInput{StartsAt: &newSlot})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !updated.StartsAt.Equal(newSlot) {
		t.Fatalf("expected %v, got %v", newSlot, updated.StartsAt)
	}
	if updated.ReminderSent {
		t.Fatal("reschedule must reset the reminder flag")
	}
}

func TestUpdateRejections(t *testing.T) {
	svc, catalog, _, _ := newTestService()

	b, err := svc.Create(context.Background(), clientActor, CreateInput{
		PetID: "pet-1", StaffID: "vet-1", StartsAt: testSlot, Type: model.TypeConsultation,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	blocker, err := svc.Create(context.Background(), otherClient, CreateInput{
		PetID: "pet-2", StaffID: "vet-1", StartsAt: testSlot.Add(30 * time.Minute), Type: model.TypeVaccination,
	})
	if err != nil {
		t.Fatalf("blocker create failed: %v", err)
	}

	// Moving onto an occupied slot conflicts.
	if _, err := svc.Update(context.Background(), clientActor, b.ID, UpdateInput{StartsAt: &blocker.StartsAt}); !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("expected slot conflict, got %v", err)
	}

	// Switching to a mismatched profile fails.
	aux := "aux-1"
	if _, err := svc.Update(context.Background(), clientActor, b.ID, UpdateInput{StaffID: &aux}); !errors.Is(err, rules.ErrProfileMismatch) {
		t.Fatalf("expected profile mismatch, got %v", err)
	}

	// Only the owner edits.
	slot := testSlot.Add(time.Hour)
	if _, err := svc.Update(context.Background(), otherClient, b.ID, UpdateInput{StartsAt: &slot}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	// Terminal bookings are immutable.
	stored := catalog.bookings[b.ID]
	stored.Status = model.StatusCancelled
	catalog.bookings[b.ID] = stored
	if _, err := svc.Update(context.Background(), clientActor, b.ID, UpdateInput{StartsAt: &slot}); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestUpdateStaffOnPastBooking(t *testing.T) {
	svc, catalog, _, _ := newTestService()

	// A confirmed booking whose slot has already passed; nothing changed it
	// in time.
	catalog.bookings["b-stale"] = model.Booking{
		ID: "b-stale", PetID: "pet-1", StaffID: "vet-1",
		StartsAt: testNow.Add(-24 * time.Hour),
		Type:     model.TypeConsultation, Status: model.StatusConfirmed,
	}

	// Reassigning to another veterinarian keeps the slot, but the calendar
	// rules still apply to it.
	vet2 := "vet-2"
	if _, err := svc.Update(context.Background(), clientActor, "b-stale", UpdateInput{StaffID: &vet2}); !errors.Is(err, rules.ErrInvalidSchedule) {
		t.Fatalf("expected invalid schedule for past-dated reassignment, got %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	newBooking := func(t *testing.T) (*Service, *recordingNotifier, model.Booking) {
		t.Helper()
		svc, _, _, notifier := newTestService()
		b, err := svc.Create(context.Background(), clientActor, CreateInput{
			PetID: "pet-1", StaffID: "vet-1", StartsAt: testSlot, Type: model.TypeConsultation,
		})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		return svc, notifier, b
	}

	t.Run("client cancels own booking", func(t *testing.T) {
		svc, notifier, b := newBooking(t)
		got, err := svc.UpdateStatus(context.Background(), clientActor, b.ID, model.StatusCancelled, "trip came up")
		if err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		if got.Status != model.StatusCancelled || got.CancelReason != "trip came up" {
			t.Fatalf("unexpected booking after cancel: %+v", got)
		}
		if len(notifier.releases) != 1 {
			t.Fatalf("expected a slot release note, got %d", len(notifier.releases))
		}
	})

	t.Run("staff aborts", func(t *testing.T) {
		svc, notifier, b := newBooking(t)
		got, err := svc.UpdateStatus(context.Background(), staffActor, b.ID, model.StatusAborted, "no-show")
		if err != nil {
			t.Fatalf("abort failed: %v", err)
		}
		if got.Status != model.StatusAborted {
			t.Fatalf("expected aborted, got %s", got.Status)
		}
		if len(notifier.releases) != 1 {
			t.Fatal("abort must release the slot")
		}
	})

	t.Run("staff completes without release note", func(t *testing.T) {
		svc, notifier, b := newBooking(t)
		got, err := svc.UpdateStatus(context.Background(), staffActor, b.ID, model.StatusCompleted, "")
		if err != nil {
			t.Fatalf("complete failed: %v", err)
		}
		if got.Status != model.StatusCompleted {
			t.Fatalf("expected completed, got %s", got.Status)
		}
		if len(notifier.releases) != 0 {
			t.Fatal("completion is not a slot release")
		}
	})

	t.Run("client may not complete", func(t *testing.T) {
		svc, _, b := newBooking(t)
		if _, err := svc.UpdateStatus(context.Background(), clientActor, b.ID, model.StatusCompleted, ""); !errors.Is(err, lifecycle.ErrInvalidTransition) {
			t.Fatalf("expected invalid transition, got %v", err)
		}
	})

	t.Run("client may not cancel someone else's booking", func(t *testing.T) {
		svc, _, b := newBooking(t)
		if _, err := svc.UpdateStatus(context.Background(), otherClient, b.ID, model.StatusCancelled, ""); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected unauthorized, got %v", err)
		}
	})

	t.Run("terminal states are final", func(t *testing.T) {
		svc, _, b := newBooking(t)
		if _, err := svc.UpdateStatus(context.Background(), clientActor, b.ID, model.StatusCancelled, ""); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}
		if _, err := svc.UpdateStatus(context.Background(), staffActor, b.ID, model.StatusCompleted, ""); !errors.Is(err, lifecycle.ErrInvalidTransition) {
			t.Fatalf("expected invalid transition, got %v", err)
		}
	})

	t.Run("inactive client can still cancel", func(t *testing.T) {
		svc, catalog, _, _ := newTestService()
		// Booking created while the account was active; the account has
		// since been deactivated.
		catalog.bookings["b-old"] = model.Booking{
			ID: "b-old", PetID: "pet-3", StaffID: "vet-1",
			StartsAt: testSlot, Type: model.TypeConsultation, Status: model.StatusConfirmed,
		}
		got, err := svc.UpdateStatus(context.Background(), inactiveActor, "b-old", model.StatusCancelled, "")
		if err != nil {
			t.Fatalf("cancel by inactive owner failed: %v", err)
		}
		if got.Status != model.StatusCancelled {
			t.Fatalf("expected cancelled, got %s", got.Status)
		}
	})
}

func TestStaffSlots(t *testing.T) {
	svc, _, _, _ := newTestService()

	if _, err := svc.Create(context.Background(), clientActor, CreateInput{
		PetID: "pet-1", StaffID: "vet-1", StartsAt: testSlot, Type: model.TypeConsultation,
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	day := time.Date(2026, 9, 9, 0, 0, 0, 0, time.UTC)
	occupied, free, err := svc.StaffSlots(context.Background(), "vet-1", day)
	if err != nil {
		t.Fatalf("StaffSlots failed: %v", err)
	}
	if len(occupied) != 1 || !occupied[0].Equal(testSlot) {
		t.Fatalf("unexpected occupied slots: %v", occupied)
	}
	// A weekday grid has 16 slots; one is taken.
	if len(free) != 15 {
		t.Fatalf("expected 15 free slots, got %d", len(free))
	}
	for _, s := range free {
		if s.Equal(testSlot) {
			t.Fatal("occupied slot leaked into the free list")
		}
	}
}

func TestQueriesEnforceScope(t *testing.T) {
	svc, _, _, _ := newTestService()

	if _, err := svc.BookingsByPet(context.Background(), clientActor, "pet-2"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for another client's pet, got %v", err)
	}
	if _, err := svc.BookingsByPet(context.Background(), staffActor, "pet-2"); err != nil {
		t.Fatalf("staff lookup failed: %v", err)
	}
	if _, err := svc.UpcomingForClient(context.Background(), staffActor); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for staff in client scope, got %v", err)
	}
	if _, err := svc.AgendaForStaff(context.Background(), clientActor, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for client in staff scope, got %v", err)
	}
}
