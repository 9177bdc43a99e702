package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/petcare-labs/clinibook/libs/auth"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/lifecycle"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/model"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/notify"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/rules"
)

var (
	ErrValidation      = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("not allowed")
	ErrAccountInactive = errors.New("client account inactive")
	ErrSlotConflict    = errors.New("slot already booked")
)

// Catalog is the persisted booking collection. Implementations must enforce
// slot exclusivity on insert/reschedule (returning ErrSlotConflict) and
// compare-and-set semantics on status changes so that no two concurrent
// transitions both succeed.
type Catalog interface {
	Insert(ctx context.Context, b model.Booking) error
	Get(ctx context.Context, id string) (model.Booking, error)
	UpdateDetails(ctx context.Context, b model.Booking) error
	UpdateStatus(ctx context.Context, id string, from, to model.Status, reason string) error

	SlotTaken(ctx context.Context, staffID string, startsAt time.Time, excludeID string) (bool, error)
	OccupiedSlots(ctx context.Context, staffID string, dayStart, dayEnd time.Time) ([]time.Time, error)

	ListByPet(ctx context.Context, petID string) ([]model.Booking, error)
	ListByStaff(ctx context.Context, staffID string) ([]model.Booking, error)
	ListUpcomingByStaff(ctx context.Context, staffID string, now time.Time) ([]model.Booking, error)
	ListUpcomingByClient(ctx context.Context, clientID string, now time.Time) ([]model.Booking, error)
	ListHistoryByClient(ctx context.Context, clientID string, now time.Time) ([]model.Booking, error)
}

// Directory resolves the externally-owned pet/client/staff records.
type Directory interface {
	PetByID(ctx context.Context, id string) (model.Pet, error)
	ClientByID(ctx context.Context, id string) (model.Client, error)
	StaffByID(ctx context.Context, id string) (model.Staff, error)
}

// Notifier delivers best-effort notifications. Failures are reported but
// never roll back the booking mutation that triggered them.
type Notifier interface {
	StaffAssigned(ctx context.Context, note notify.AssignmentNote) error
	SlotReleased(ctx context.Context, note notify.ReleaseNote) error
}

// Actor is the authenticated principal acting on a booking.
type Actor struct {
	ID   string
	Role string
	Name string
}

type Service struct {
	catalog  Catalog
	dir      Directory
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(catalog Catalog, dir Directory, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		catalog:  catalog,
		dir:      dir,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the service clock; tests inject deterministic time.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateInput struct {
	PetID             string
	StaffID           string
	StartsAt          time.Time
	Type              model.BookingType
	ReminderRequested bool
}

func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (model.Booking, error) {
	if actor.Role != auth.RoleClient {
		return model.Booking{}, fmt.Errorf("%w: only clients create bookings", ErrUnauthorized)
	}
	if in.PetID == "" || in.StaffID == "" || in.StartsAt.IsZero() {
		return model.Booking{}, fmt.Errorf("%w: pet, staff and slot are required", ErrValidation)
	}
	if _, ok := model.ParseBookingType(string(in.Type)); !ok {
		return model.Booking{}, fmt.Errorf("%w: unknown booking type %q", ErrValidation, in.Type)
	}

	pet, client, err := s.resolveOwnedPet(ctx, actor, in.PetID)
	if err != nil {
		return model.Booking{}, err
	}
	if in.ReminderRequested && client.Email == "" {
		return model.Booking{}, fmt.Errorf("%w: reminders need a contact email on file", ErrValidation)
	}

	staff, err := s.dir.StaffByID(ctx, in.StaffID)
	if err != nil {
		return model.Booking{}, err
	}

	if err := rules.ValidateProfile(in.Type, staff.Profile); err != nil {
		return model.Booking{}, err
	}
	if err := rules.ValidateSchedule(in.StartsAt, s.now()); err != nil {
		return model.Booking{}, err
	}
	taken, err := s.catalog.SlotTaken(ctx, in.StaffID, in.StartsAt, "")
	if err != nil {
		return model.Booking{}, err
	}
	if taken {
		return model.Booking{}, ErrSlotConflict
	}

	now := s.now()
	b := model.Booking{
		ID:                uuid.NewString(),
		PetID:             in.PetID,
		StaffID:           in.StaffID,
		StartsAt:          in.StartsAt,
		Type:              in.Type,
		Status:            model.StatusConfirmed,
		ReminderRequested: in.ReminderRequested,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// The catalog's uniqueness constraint closes the check-then-insert race:
	// a concurrent create for the same slot surfaces here as ErrSlotConflict.
	if err := s.catalog.Insert(ctx, b); err != nil {
		return model.Booking{}, err
	}

	if err := s.notifier.StaffAssigned(ctx, notify.AssignmentNote{
		BookingID:  b.ID,
		StaffEmail: staff.Email,
		StaffName:  staff.Name,
		ClientName: client.Name,
		PetName:    pet.Name,
		StartsAt:   b.StartsAt,
		Type:       string(b.Type),
	}); err != nil {
		s.logger.Warn("assignment notification failed", "booking_id", b.ID, "err", err)
	}

	return b, nil
}

type UpdateInput struct {
	StartsAt          *time.Time
	Type              *model.BookingType
	StaffID           *string
	ReminderRequested *bool
}

func (s *Service) Update(ctx context.Context, actor Actor, bookingID string, in UpdateInput) (model.Booking, error) {
	if actor.Role != auth.RoleClient {
		return model.Booking{}, fmt.Errorf("%w: only the owning client edits bookings", ErrUnauthorized)
	}

	b, err := s.catalog.Get(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	_, client, err := s.resolveOwnedPet(ctx, actor, b.PetID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status.Terminal() {
		return model.Booking{}, fmt.Errorf("%w: booking is %s", lifecycle.ErrInvalidTransition, b.Status)
	}

	staffChanged := in.StaffID != nil && *in.StaffID != b.StaffID
	timeChanged := in.StartsAt != nil && !in.StartsAt.Equal(b.StartsAt)
	typeChanged := in.Type != nil && *in.Type != b.Type

	if in.StaffID != nil {
		b.StaffID = *in.StaffID
	}
	if in.StartsAt != nil {
		b.StartsAt = *in.StartsAt
	}
	if in.Type != nil {
		if _, ok := model.ParseBookingType(string(*in.Type)); !ok {
			return model.Booking{}, fmt.Errorf("%w: unknown booking type %q", ErrValidation, *in.Type)
		}
		b.Type = *in.Type
	}
	if in.ReminderRequested != nil {
		if *in.ReminderRequested && client.Email == "" {
			return model.Booking{}, fmt.Errorf("%w: reminders need a contact email on file", ErrValidation)
		}
		b.ReminderRequested = *in.ReminderRequested
	}

	if staffChanged || typeChanged {
		staff, err := s.dir.StaffByID(ctx, b.StaffID)
		if err != nil {
			return model.Booking{}, err
		}
		if err := rules.ValidateProfile(b.Type, staff.Profile); err != nil {
			return model.Booking{}, err
		}
	}
	if staffChanged || timeChanged {
		// A staff-only reassignment must also pass the calendar rules: the
		// retained slot may have drifted into the past by now.
		if err := rules.ValidateSchedule(b.StartsAt, s.now()); err != nil {
			return model.Booking{}, err
		}
	}
	if timeChanged {
		// A rescheduled booking earns a fresh reminder.
		b.ReminderSent = false
	}
	if staffChanged || timeChanged {
		taken, err := s.catalog.SlotTaken(ctx, b.StaffID, b.StartsAt, b.ID)
		if err != nil {
			return model.Booking{}, err
		}
		if taken {
			return model.Booking{}, ErrSlotConflict
		}
	}

	b.UpdatedAt = s.now()
	if err := s.catalog.UpdateDetails(ctx, b); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// UpdateStatus moves a booking through the lifecycle state machine.
// Client-initiated transitions additionally verify pet ownership.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, bookingID string, target model.Status, reason string) (model.Booking, error) {
	b, err := s.catalog.Get(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}

	if actor.Role == auth.RoleClient {
		// Ownership only; an inactive account may still cancel its own booking.
		pet, err := s.dir.PetByID(ctx, b.PetID)
		if err != nil {
			return model.Booking{}, err
		}
		if pet.OwnerClientID != actor.ID {
			return model.Booking{}, fmt.Errorf("%w: pet belongs to another client", ErrUnauthorized)
		}
	}

	if err := lifecycle.Transition(b.Status, target, actor.Role); err != nil {
		return model.Booking{}, err
	}
	if err := s.catalog.UpdateStatus(ctx, bookingID, b.Status, target, reason); err != nil {
		return model.Booking{}, err
	}

	prev := b.Status
	b.Status = target
	b.CancelReason = reason
	b.UpdatedAt = s.now()

	if prev == model.StatusConfirmed && (target == model.StatusCancelled || target == model.StatusAborted) {
		s.notifySlotReleased(ctx, b, reason)
	}
	return b, nil
}

func (s *Service) notifySlotReleased(ctx context.Context, b model.Booking, reason string) {
	staff, err := s.dir.StaffByID(ctx, b.StaffID)
	if err != nil {
		s.logger.Warn("slot release lookup failed", "booking_id", b.ID, "err", err)
		return
	}
	if err := s.notifier.SlotReleased(ctx, notify.ReleaseNote{
		BookingID:  b.ID,
		StaffEmail: staff.Email,
		StaffName:  staff.Name,
		StartsAt:   b.StartsAt,
		Status:     string(b.Status),
		Reason:     reason,
	}); err != nil {
		s.logger.Warn("slot release notification failed", "booking_id", b.ID, "err", err)
	}
}

// resolveOwnedPet loads the pet and its owning client, enforcing that the
// actor owns the pet and holds an active account.
func (s *Service) resolveOwnedPet(ctx context.Context, actor Actor, petID string) (model.Pet, model.Client, error) {
	pet, err := s.dir.PetByID(ctx, petID)
	if err != nil {
		return model.Pet{}, model.Client{}, err
	}
	if pet.OwnerClientID != actor.ID {
		return model.Pet{}, model.Client{}, fmt.Errorf("%w: pet belongs to another client", ErrUnauthorized)
	}
	client, err := s.dir.ClientByID(ctx, actor.ID)
	if err != nil {
		return model.Pet{}, model.Client{}, err
	}
	if !client.Active {
		return model.Pet{}, model.Client{}, ErrAccountInactive
	}
	return pet, client, nil
}
